package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"sort"
	"sync"

	"github.com/go-redis/redis/v8"
	"github.com/rpkwiecinski/giftcard-engine/internal/config"
	"github.com/rpkwiecinski/giftcard-engine/internal/engine"
	"github.com/rpkwiecinski/giftcard-engine/internal/selector"
	"github.com/rpkwiecinski/giftcard-engine/pkg/constants"
	"go.uber.org/zap"
)

// FileStatsStore keeps the statistics table in a JSON file as a list of
// entries ordered by strategy name.
type FileStatsStore struct {
	mu   sync.Mutex
	path string
}

// NewFileStatsStore stores statistics at path; a .br suffix enables brotli.
func NewFileStatsStore(path string) *FileStatsStore {
	return &FileStatsStore{path: path}
}

// Load reads the table. A missing file is an empty table.
func (s *FileStatsStore) Load(_ context.Context) (map[string]selector.StrategyStat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var list []selector.StrategyStat
	if err := readJSON(s.path, &list); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return map[string]selector.StrategyStat{}, nil
		}
		return nil, fmt.Errorf("failed to load statistics from %s: %w", s.path, err)
	}
	return fromList(list), nil
}

// Save replaces the file atomically.
func (s *FileStatsStore) Save(_ context.Context, stats map[string]selector.StrategyStat) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return writeJSON(s.path, toList(stats))
}

// MemoryStatsStore keeps the table for the lifetime of the process.
type MemoryStatsStore struct {
	mu    sync.Mutex
	stats map[string]selector.StrategyStat
}

// NewMemoryStatsStore creates an empty in-memory store.
func NewMemoryStatsStore() *MemoryStatsStore {
	return &MemoryStatsStore{stats: map[string]selector.StrategyStat{}}
}

// Load returns a copy of the stored table.
func (s *MemoryStatsStore) Load(_ context.Context) (map[string]selector.StrategyStat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyStats(s.stats), nil
}

// Save replaces the stored table.
func (s *MemoryStatsStore) Save(_ context.Context, stats map[string]selector.StrategyStat) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats = copyStats(stats)
	return nil
}

// RedisStatsStore keeps the table in a Redis hash, one JSON-encoded field per
// strategy, so several engine processes can share what they learn.
type RedisStatsStore struct {
	client *redis.Client
	key    string
}

// NewRedisStatsStore connects lazily to addr and stores the table under key.
func NewRedisStatsStore(addr, key string) *RedisStatsStore {
	return &RedisStatsStore{
		client: redis.NewClient(&redis.Options{Addr: addr}),
		key:    key,
	}
}

// Load reads every field of the hash.
func (s *RedisStatsStore) Load(ctx context.Context) (map[string]selector.StrategyStat, error) {
	fields, err := s.client.HGetAll(ctx, s.key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load statistics from redis key %s: %w", s.key, err)
	}
	return decodeFields(fields)
}

// Save replaces the hash in one transaction.
func (s *RedisStatsStore) Save(ctx context.Context, stats map[string]selector.StrategyStat) error {
	fields, err := encodeFields(stats)
	if err != nil {
		return err
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.key)
		if len(fields) > 0 {
			pipe.HSet(ctx, s.key, fields)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save statistics to redis key %s: %w", s.key, err)
	}
	return nil
}

// Close releases the connection pool.
func (s *RedisStatsStore) Close() error {
	return s.client.Close()
}

func encodeFields(stats map[string]selector.StrategyStat) (map[string]interface{}, error) {
	fields := make(map[string]interface{}, len(stats))
	for name, st := range stats {
		raw, err := json.Marshal(st)
		if err != nil {
			return nil, fmt.Errorf("failed to encode statistics for %s: %w", name, err)
		}
		fields[name] = string(raw)
	}
	return fields, nil
}

func decodeFields(fields map[string]string) (map[string]selector.StrategyStat, error) {
	out := make(map[string]selector.StrategyStat, len(fields))
	for name, raw := range fields {
		var st selector.StrategyStat
		if err := json.Unmarshal([]byte(raw), &st); err != nil {
			return nil, fmt.Errorf("failed to decode statistics for %s: %w", name, err)
		}
		if st.Strategy == "" {
			st.Strategy = name
		}
		out[name] = st
	}
	return out, nil
}

func toList(stats map[string]selector.StrategyStat) []selector.StrategyStat {
	list := make([]selector.StrategyStat, 0, len(stats))
	for name, st := range stats {
		if st.Strategy == "" {
			st.Strategy = name
		}
		list = append(list, st)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Strategy < list[j].Strategy })
	return list
}

func fromList(list []selector.StrategyStat) map[string]selector.StrategyStat {
	out := make(map[string]selector.StrategyStat, len(list))
	for _, st := range list {
		out[st.Strategy] = st
	}
	return out
}

func copyStats(in map[string]selector.StrategyStat) map[string]selector.StrategyStat {
	out := make(map[string]selector.StrategyStat, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// NewStatsStore builds the store selected by the storage configuration.
func NewStatsStore(logger *zap.Logger, conf config.StorageConfig) engine.StatsStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	switch conf.Backend {
	case constants.StorageBackendRedis:
		logger.Info("using redis statistics store",
			zap.String("op", "store.NewStatsStore"),
			zap.String("addr", conf.RedisAddr),
			zap.String("key", conf.RedisKey),
		)
		return NewRedisStatsStore(conf.RedisAddr, conf.RedisKey)
	case constants.StorageBackendMemory:
		return NewMemoryStatsStore()
	default:
		path := conf.StatsPath
		if conf.Compress {
			path += BrotliExt
		}
		return NewFileStatsStore(path)
	}
}

// CloseStatsStore releases the connection held by stores that keep one open.
// Stores without a Close method are left alone.
func CloseStatsStore(logger *zap.Logger, s engine.StatsStore) error {
	c, ok := s.(io.Closer)
	if !ok {
		return nil
	}
	if err := c.Close(); err != nil {
		if logger != nil {
			logger.Warn("failed to close statistics store",
				zap.String("op", "store.CloseStatsStore"),
				zap.Error(err),
			)
		}
		return err
	}
	return nil
}
