// Package config defines the data structures related to configuration and
// includes functions for loading, normalizing and validating it.
package config

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rpkwiecinski/giftcard-engine/pkg/constants"
	"github.com/spf13/viper"
)

// Configuration holds all configuration for the basket engine.
type Configuration struct {
	Engine   EngineConfig   `yaml:"engine" mapstructure:"engine"`
	Selector SelectorConfig `yaml:"selector" mapstructure:"selector"`
	Refiner  RefinerConfig  `yaml:"refiner" mapstructure:"refiner"`
	Schedule ScheduleConfig `yaml:"schedule" mapstructure:"schedule"`
	Storage  StorageConfig  `yaml:"storage" mapstructure:"storage"`
	Trainer  TrainerConfig  `yaml:"trainer" mapstructure:"trainer"`
	Logging  LoggingConfig  `yaml:"logging,omitempty" mapstructure:"logging"`
	Output   OutputConfig   `yaml:"output,omitempty" mapstructure:"output"`
}

// EngineConfig holds the packing rules and the profit model. It is passed by
// value into every component so concurrent runs never share it.
type EngineConfig struct {
	Denominations         []int   `yaml:"denominations" mapstructure:"denominations"`
	FixedCost             float64 `yaml:"fixedCost" mapstructure:"fixedCost"`
	CurrencyRate          float64 `yaml:"currencyRate" mapstructure:"currencyRate"`
	MinItems              int     `yaml:"minItems" mapstructure:"minItems"`
	MaxItems              int     `yaml:"maxItems" mapstructure:"maxItems"`
	MinFillFraction       float64 `yaml:"minFillFraction" mapstructure:"minFillFraction"`
	ExtraBuyLimitFraction float64 `yaml:"extraBuyLimitFraction" mapstructure:"extraBuyLimitFraction"`
	WasteThreshold        float64 `yaml:"wasteThreshold" mapstructure:"wasteThreshold"`
	BackfillFanout        int     `yaml:"backfillFanout" mapstructure:"backfillFanout"`
}

// SelectorConfig tunes the adaptive strategy selector.
type SelectorConfig struct {
	Policy           string        `yaml:"policy" mapstructure:"policy"`                     // ucb1, epsilon-greedy
	Iterations       int           `yaml:"iterations" mapstructure:"iterations"`             // trials per pipeline run
	Budget           time.Duration `yaml:"budget,omitempty" mapstructure:"budget"`           // optional wall-clock cap
	UCBC             float64       `yaml:"ucbC" mapstructure:"ucbC"`                         // exploration constant
	UnseenBonus      float64       `yaml:"unseenBonus" mapstructure:"unseenBonus"`           // score of never-run strategies
	ExplorationNoise float64       `yaml:"explorationNoise" mapstructure:"explorationNoise"` // max noise added with probability epsilon
	EpsilonStart     float64       `yaml:"epsilonStart" mapstructure:"epsilonStart"`
	EpsilonMin       float64       `yaml:"epsilonMin" mapstructure:"epsilonMin"`
	EpsilonDecay     float64       `yaml:"epsilonDecay" mapstructure:"epsilonDecay"`
	RollingWindow    int           `yaml:"rollingWindow" mapstructure:"rollingWindow"`
	TrimEvery        int           `yaml:"trimEvery" mapstructure:"trimEvery"`
	Seed             int64         `yaml:"seed,omitempty" mapstructure:"seed"`
}

// RefinerConfig tunes the evolutionary refinement pass.
type RefinerConfig struct {
	EliteK                  int `yaml:"eliteK" mapstructure:"eliteK"`
	Generations             int `yaml:"generations" mapstructure:"generations"`
	MutantsPerElite         int `yaml:"mutantsPerElite" mapstructure:"mutantsPerElite"`
	CrossoversPerGeneration int `yaml:"crossoversPerGeneration" mapstructure:"crossoversPerGeneration"`
}

// ScheduleConfig holds the default processing capacity.
type ScheduleConfig struct {
	Workers    int `yaml:"workers" mapstructure:"workers"`
	DailyLimit int `yaml:"dailyLimit" mapstructure:"dailyLimit"`
}

// StorageConfig selects where statistics, session logs and results live.
type StorageConfig struct {
	Backend       string `yaml:"backend" mapstructure:"backend"` // file, redis, memory
	StatsPath     string `yaml:"statsPath" mapstructure:"statsPath"`
	HistoryDir    string `yaml:"historyDir" mapstructure:"historyDir"`
	Compress      bool   `yaml:"compress,omitempty" mapstructure:"compress"`
	RedisAddr     string `yaml:"redisAddr,omitempty" mapstructure:"redisAddr"`
	RedisKey      string `yaml:"redisKey,omitempty" mapstructure:"redisKey"`
	ResultHistory int    `yaml:"resultHistory" mapstructure:"resultHistory"`
}

// TrainerConfig drives the continuous trainer. An empty CataloguePath disables it.
type TrainerConfig struct {
	CataloguePath string        `yaml:"cataloguePath,omitempty" mapstructure:"cataloguePath"`
	Interval      time.Duration `yaml:"interval" mapstructure:"interval"`
}

// LoggingConfig holds logging configuration options
type LoggingConfig struct {
	Level      string `yaml:"level,omitempty" mapstructure:"level"`           // debug, info, warn, error
	Format     string `yaml:"format,omitempty" mapstructure:"format"`         // json, console
	OutputFile string `yaml:"outputFile,omitempty" mapstructure:"outputFile"` // optional file output
}

// OutputConfig holds output format configuration options
type OutputConfig struct {
	Format string `yaml:"format,omitempty" mapstructure:"format"` // pretty, csv, json
}

// Default returns the configuration used when no file is given. It decodes
// the same defaults LoadConfiguration starts from.
func Default() *Configuration {
	v := viper.New()
	setDefaults(v)
	var conf Configuration
	if err := v.Unmarshal(&conf); err != nil {
		panic(fmt.Sprintf("default configuration does not decode: %v", err))
	}
	conf.Normalize()
	return &conf
}

// LoadConfiguration takes a file path as input and loads the YAML-formatted
// configuration there. An empty path yields the defaults, still subject to
// environment overrides.
func LoadConfiguration(configPath string) (*Configuration, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(constants.EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file, %s", err)
		}
	}

	var configuration Configuration
	if err := v.Unmarshal(&configuration); err != nil {
		return nil, fmt.Errorf("unable to decode into struct, %s", err)
	}

	configuration.Normalize()
	if err := configuration.Validate(); err != nil {
		return nil, err
	}
	return &configuration, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("engine.denominations", constants.DefaultDenominations())
	v.SetDefault("engine.fixedCost", constants.DefaultFixedCost)
	v.SetDefault("engine.currencyRate", constants.DefaultCurrencyRate)
	v.SetDefault("engine.minItems", constants.DefaultMinItems)
	v.SetDefault("engine.maxItems", constants.DefaultMaxItems)
	v.SetDefault("engine.minFillFraction", constants.DefaultMinFillFraction)
	v.SetDefault("engine.extraBuyLimitFraction", constants.DefaultExtraBuyLimitFraction)
	v.SetDefault("engine.wasteThreshold", constants.DefaultWasteThreshold)
	v.SetDefault("engine.backfillFanout", constants.DefaultBackfillFanout)

	v.SetDefault("selector.policy", constants.PolicyUCB1)
	v.SetDefault("selector.iterations", constants.DefaultIterations)
	v.SetDefault("selector.budget", time.Duration(0))
	v.SetDefault("selector.ucbC", constants.DefaultUCBC)
	v.SetDefault("selector.unseenBonus", constants.DefaultUnseenBonus)
	v.SetDefault("selector.explorationNoise", constants.DefaultExplorationNoise)
	v.SetDefault("selector.epsilonStart", constants.DefaultEpsilonStart)
	v.SetDefault("selector.epsilonMin", constants.DefaultEpsilonMin)
	v.SetDefault("selector.epsilonDecay", constants.DefaultEpsilonDecay)
	v.SetDefault("selector.rollingWindow", constants.DefaultRollingWindow)
	v.SetDefault("selector.trimEvery", constants.DefaultTrimEvery)
	v.SetDefault("selector.seed", 0)

	v.SetDefault("refiner.eliteK", constants.DefaultEliteK)
	v.SetDefault("refiner.generations", constants.DefaultGenerations)
	v.SetDefault("refiner.mutantsPerElite", constants.DefaultMutantsPerElite)
	v.SetDefault("refiner.crossoversPerGeneration", constants.DefaultCrossoversPerGeneration)

	v.SetDefault("schedule.workers", constants.DefaultWorkers)
	v.SetDefault("schedule.dailyLimit", constants.DefaultDailyLimit)

	v.SetDefault("storage.backend", constants.StorageBackendFile)
	v.SetDefault("storage.statsPath", constants.DefaultStatsPath)
	v.SetDefault("storage.historyDir", constants.DefaultHistoryDir)
	v.SetDefault("storage.compress", false)
	v.SetDefault("storage.redisAddr", constants.DefaultRedisAddr)
	v.SetDefault("storage.redisKey", constants.DefaultRedisKey)
	v.SetDefault("storage.resultHistory", constants.DefaultResultHistory)

	v.SetDefault("trainer.cataloguePath", "")
	v.SetDefault("trainer.interval", constants.DefaultTrainerIntervalSeconds*time.Second)

	v.SetDefault("output.format", constants.OutputFormatPretty)
}

// Normalize fills zero values with defaults and canonicalizes enumerations.
// Zero stays meaningful for epsilonMin, wasteThreshold and the refiner
// counts (0 generations disables refinement), and iterations may be 0 when a
// budget bounds the run. Unset keys get their defaults from the loader.
func (c *Configuration) Normalize() {
	e := &c.Engine
	if len(e.Denominations) == 0 {
		e.Denominations = constants.DefaultDenominations()
	}
	e.Denominations = sortedUnique(e.Denominations)
	if e.FixedCost < 0 {
		e.FixedCost = 0
	}
	if e.CurrencyRate == 0 {
		e.CurrencyRate = constants.DefaultCurrencyRate
	}
	if e.MinItems <= 0 {
		e.MinItems = constants.DefaultMinItems
	}
	if e.MaxItems <= 0 {
		e.MaxItems = constants.DefaultMaxItems
	}
	if e.MinFillFraction == 0 {
		e.MinFillFraction = constants.DefaultMinFillFraction
	}
	if e.ExtraBuyLimitFraction == 0 {
		e.ExtraBuyLimitFraction = constants.DefaultExtraBuyLimitFraction
	}
	if e.WasteThreshold < 0 {
		e.WasteThreshold = 0
	}
	if e.BackfillFanout <= 0 {
		e.BackfillFanout = constants.DefaultBackfillFanout
	}

	s := &c.Selector
	s.Policy = CanonicalPolicy(s.Policy)
	if s.Iterations < 0 {
		s.Iterations = 0
	}
	if s.Iterations == 0 && s.Budget <= 0 {
		s.Iterations = constants.DefaultIterations
	}
	if s.UCBC == 0 {
		s.UCBC = constants.DefaultUCBC
	}
	if s.UnseenBonus == 0 {
		s.UnseenBonus = constants.DefaultUnseenBonus
	}
	if s.ExplorationNoise == 0 {
		s.ExplorationNoise = constants.DefaultExplorationNoise
	}
	if s.EpsilonStart == 0 {
		s.EpsilonStart = constants.DefaultEpsilonStart
	}
	if s.EpsilonDecay == 0 {
		s.EpsilonDecay = constants.DefaultEpsilonDecay
	}
	if s.RollingWindow <= 0 {
		s.RollingWindow = constants.DefaultRollingWindow
	}
	if s.TrimEvery <= 0 {
		s.TrimEvery = constants.DefaultTrimEvery
	}

	r := &c.Refiner
	if r.EliteK <= 0 {
		r.EliteK = constants.DefaultEliteK
	}
	if r.Generations < 0 {
		r.Generations = 0
	}
	if r.MutantsPerElite < 0 {
		r.MutantsPerElite = 0
	}
	if r.CrossoversPerGeneration < 0 {
		r.CrossoversPerGeneration = 0
	}

	if c.Schedule.Workers <= 0 {
		c.Schedule.Workers = constants.DefaultWorkers
	}
	if c.Schedule.DailyLimit <= 0 {
		c.Schedule.DailyLimit = constants.DefaultDailyLimit
	}

	st := &c.Storage
	st.Backend = strings.ToLower(strings.TrimSpace(st.Backend))
	if st.Backend == "" {
		st.Backend = constants.StorageBackendFile
	}
	if st.StatsPath == "" {
		st.StatsPath = constants.DefaultStatsPath
	}
	if st.HistoryDir == "" {
		st.HistoryDir = constants.DefaultHistoryDir
	}
	if st.RedisAddr == "" {
		st.RedisAddr = constants.DefaultRedisAddr
	}
	if st.RedisKey == "" {
		st.RedisKey = constants.DefaultRedisKey
	}
	if st.ResultHistory <= 0 {
		st.ResultHistory = constants.DefaultResultHistory
	}

	if c.Trainer.Interval <= 0 {
		c.Trainer.Interval = constants.DefaultTrainerIntervalSeconds * time.Second
	}

	if c.Output.Format == "" {
		c.Output.Format = constants.OutputFormatPretty
	}
}

// Validate returns an error when the configuration cannot drive a run.
func (c *Configuration) Validate() error {
	if err := c.Engine.Validate(); err != nil {
		return err
	}

	s := c.Selector
	switch s.Policy {
	case constants.PolicyUCB1, constants.PolicyEpsilonGreedy:
	default:
		return fmt.Errorf("selector policy %q is not supported", s.Policy)
	}
	if s.EpsilonStart < 0 || s.EpsilonStart > 1 {
		return fmt.Errorf("selector epsilonStart %.3f must be within [0,1]", s.EpsilonStart)
	}
	if s.EpsilonMin < 0 || s.EpsilonMin > s.EpsilonStart {
		return fmt.Errorf("selector epsilonMin %.3f must be within [0,epsilonStart]", s.EpsilonMin)
	}
	if s.EpsilonDecay <= 0 || s.EpsilonDecay > 1 {
		return fmt.Errorf("selector epsilonDecay %.3f must be within (0,1]", s.EpsilonDecay)
	}
	if s.Budget < 0 {
		return fmt.Errorf("selector budget %s cannot be negative", s.Budget)
	}
	if s.Iterations <= 0 && s.Budget == 0 {
		return fmt.Errorf("selector needs iterations or a budget")
	}

	switch c.Storage.Backend {
	case constants.StorageBackendFile, constants.StorageBackendRedis, constants.StorageBackendMemory:
	default:
		return fmt.Errorf("storage backend %q is not supported", c.Storage.Backend)
	}
	return nil
}

// Validate checks the packing rules.
func (e EngineConfig) Validate() error {
	if len(e.Denominations) == 0 {
		return fmt.Errorf("at least one denomination is required")
	}
	for _, d := range e.Denominations {
		if d <= 0 {
			return fmt.Errorf("denomination %d must be positive", d)
		}
	}
	if e.MinItems < 1 {
		return fmt.Errorf("minItems %d must be at least 1", e.MinItems)
	}
	if e.MinItems > e.MaxItems {
		return fmt.Errorf("minItems %d must not exceed maxItems %d", e.MinItems, e.MaxItems)
	}
	if e.MinFillFraction <= 0 || e.MinFillFraction > 1 {
		return fmt.Errorf("minFillFraction %.3f must be within (0,1]", e.MinFillFraction)
	}
	if e.ExtraBuyLimitFraction < 1 {
		return fmt.Errorf("extraBuyLimitFraction %.3f must be at least 1", e.ExtraBuyLimitFraction)
	}
	if e.WasteThreshold < 0 {
		return fmt.Errorf("wasteThreshold %.3f cannot be negative", e.WasteThreshold)
	}
	if e.CurrencyRate < 0 {
		return fmt.Errorf("currencyRate %.3f cannot be negative", e.CurrencyRate)
	}
	return nil
}

// Ascending returns the denominations smallest first.
func (e EngineConfig) Ascending() []int {
	return sortedUnique(e.Denominations)
}

// Descending returns the denominations largest first.
func (e EngineConfig) Descending() []int {
	out := sortedUnique(e.Denominations)
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// CanonicalPolicy returns the canonical identifier for a selector policy.
func CanonicalPolicy(value string) string {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "ucb", "ucb1":
		return constants.PolicyUCB1
	case "epsilon", "egreedy", "epsilon-greedy", "epsilon_greedy", "epsilongreedy":
		return constants.PolicyEpsilonGreedy
	default:
		return strings.ToLower(strings.TrimSpace(value))
	}
}

func sortedUnique(values []int) []int {
	out := make([]int, 0, len(values))
	seen := make(map[int]struct{}, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Ints(out)
	return out
}
