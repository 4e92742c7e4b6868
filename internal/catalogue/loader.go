package catalogue

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rpkwiecinski/giftcard-engine/pkg/datetime"
	"github.com/tidwall/gjson"
	"gopkg.in/yaml.v3"
)

// ErrMalformed marks catalogue input that cannot be turned into items.
var ErrMalformed = errors.New("malformed catalogue")

// Record is one catalogue row as read from input, before per-run counters exist.
type Record struct {
	Title           string    `json:"title" validate:"required"`
	Price           float64   `json:"price" validate:"gt=0"`
	Required        int       `json:"required" validate:"gte=0"`
	ProfitPct       float64   `json:"profitPct" validate:"gte=0,lte=1"`
	PromoFrom       time.Time `json:"promoFrom" validate:"required"`
	PromoTo         time.Time `json:"promoTo" validate:"required,gtefield=PromoFrom"`
	Rating          int       `json:"rating" validate:"gte=0"`
	Family          string    `json:"family,omitempty"`
	FamilyExclusive bool      `json:"familyExclusive,omitempty"`
}

// Field names are matched after lower-casing.
const (
	fieldTitle           = "title"
	fieldPrice           = "price"
	fieldRequired        = "required"
	fieldProfitPct       = "profitpct"
	fieldPromoFrom       = "promofrom"
	fieldPromoTo         = "promoto"
	fieldRating          = "rating"
	fieldFamily          = "family"
	fieldFamilyExclusive = "familyexclusive"
)

var mandatoryFields = []string{
	fieldTitle, fieldPrice, fieldRequired, fieldProfitPct, fieldPromoFrom, fieldPromoTo, fieldRating,
}

// wrapperKeys are accepted when the records sit under an object key rather
// than at the document root.
var wrapperKeys = map[string]struct{}{"items": {}, "games": {}, "catalogue": {}, "catalog": {}}

var validate = validator.New()

// rawRecord maps lower-cased field names to their textual value.
type rawRecord map[string]string

// Load reads a catalogue file, choosing the format from its extension.
func Load(path string, extraBuyLimitFraction float64) (Catalogue, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalogue %s: %w", path, err)
	}

	var records []Record
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		records, err = ParseJSON(data)
	case ".yaml", ".yml":
		records, err = ParseYAML(data)
	case ".csv":
		records, err = ParseCSV(bytes.NewReader(data))
	default:
		return nil, fmt.Errorf("%w: unsupported catalogue extension %q", ErrMalformed, filepath.Ext(path))
	}
	if err != nil {
		return nil, err
	}
	return Build(records, extraBuyLimitFraction)
}

// Build validates records and turns them into a fresh catalogue.
func Build(records []Record, extraBuyLimitFraction float64) (Catalogue, error) {
	seen := make(map[string]struct{}, len(records))
	out := make(Catalogue, 0, len(records))
	for i, r := range records {
		if err := validate.Struct(r); err != nil {
			return nil, fmt.Errorf("%w: record %d (%s): %v", ErrMalformed, i, r.Title, err)
		}
		if _, dup := seen[r.Title]; dup {
			return nil, fmt.Errorf("%w: duplicate title %q", ErrMalformed, r.Title)
		}
		seen[r.Title] = struct{}{}
		out = append(out, NewItem(r, extraBuyLimitFraction))
	}
	return out, nil
}

// ParseJSON accepts an array of records, or an object holding the array under
// items/games/catalogue. Keys are matched case-insensitively.
func ParseJSON(data []byte) ([]Record, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("%w: invalid JSON", ErrMalformed)
	}
	root := gjson.ParseBytes(data)
	if root.IsObject() {
		var inner gjson.Result
		root.ForEach(func(key, value gjson.Result) bool {
			if _, ok := wrapperKeys[strings.ToLower(key.String())]; ok && value.IsArray() {
				inner = value
				return false
			}
			return true
		})
		if !inner.Exists() {
			return nil, fmt.Errorf("%w: expected an array of items", ErrMalformed)
		}
		root = inner
	}
	if !root.IsArray() {
		return nil, fmt.Errorf("%w: expected an array of items", ErrMalformed)
	}

	var raws []rawRecord
	var parseErr error
	root.ForEach(func(_, value gjson.Result) bool {
		if !value.IsObject() {
			parseErr = fmt.Errorf("%w: record %d is not an object", ErrMalformed, len(raws))
			return false
		}
		raw := make(rawRecord)
		value.ForEach(func(k, v gjson.Result) bool {
			if v.Type == gjson.Null {
				return true
			}
			raw[strings.ToLower(k.String())] = v.String()
			return true
		})
		raws = append(raws, raw)
		return true
	})
	if parseErr != nil {
		return nil, parseErr
	}
	return fromRaw(raws)
}

// ParseYAML accepts a YAML sequence of records, or a mapping holding it under
// items/games/catalogue.
func ParseYAML(data []byte) ([]Record, error) {
	var doc interface{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if m, ok := doc.(map[string]interface{}); ok {
		doc = nil
		for k, v := range m {
			if _, wrap := wrapperKeys[strings.ToLower(k)]; wrap {
				doc = v
				break
			}
		}
	}
	list, ok := doc.([]interface{})
	if !ok {
		return nil, fmt.Errorf("%w: expected a sequence of items", ErrMalformed)
	}

	raws := make([]rawRecord, 0, len(list))
	for i, entry := range list {
		m, ok := entry.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("%w: record %d is not a mapping", ErrMalformed, i)
		}
		raw := make(rawRecord, len(m))
		for k, v := range m {
			if v == nil {
				continue
			}
			raw[strings.ToLower(k)] = yamlScalar(v)
		}
		raws = append(raws, raw)
	}
	return fromRaw(raws)
}

func yamlScalar(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case time.Time:
		return t.Format(datetime.DateLayout)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprint(t)
	}
}

// ParseCSV reads a header row followed by one record per line.
func ParseCSV(r io.Reader) ([]Record, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: missing CSV header", ErrMalformed)
	}

	header := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		header[i] = strings.ToLower(strings.TrimSpace(h))
	}
	raws := make([]rawRecord, 0, len(rows)-1)
	for _, row := range rows[1:] {
		raw := make(rawRecord, len(header))
		for i, cell := range row {
			if i >= len(header) || strings.TrimSpace(cell) == "" {
				continue
			}
			raw[header[i]] = strings.TrimSpace(cell)
		}
		raws = append(raws, raw)
	}
	return fromRaw(raws)
}

func fromRaw(raws []rawRecord) ([]Record, error) {
	records := make([]Record, 0, len(raws))
	for i, raw := range raws {
		rec, err := raw.record()
		if err != nil {
			return nil, fmt.Errorf("%w: record %d: %v", ErrMalformed, i, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

func (raw rawRecord) record() (Record, error) {
	for _, f := range mandatoryFields {
		if _, ok := raw[f]; !ok {
			return Record{}, fmt.Errorf("missing field %q", f)
		}
	}

	var rec Record
	var err error
	rec.Title = strings.TrimSpace(raw[fieldTitle])
	if rec.Price, err = strconv.ParseFloat(raw[fieldPrice], 64); err != nil {
		return rec, fmt.Errorf("invalid price %q", raw[fieldPrice])
	}
	if rec.Required, err = parseCount(raw[fieldRequired]); err != nil {
		return rec, fmt.Errorf("invalid required %q", raw[fieldRequired])
	}
	if rec.ProfitPct, err = strconv.ParseFloat(raw[fieldProfitPct], 64); err != nil {
		return rec, fmt.Errorf("invalid profitPct %q", raw[fieldProfitPct])
	}
	if rec.PromoFrom, err = datetime.ParseDate(raw[fieldPromoFrom]); err != nil {
		return rec, fmt.Errorf("invalid promoFrom: %v", err)
	}
	if rec.PromoTo, err = datetime.ParseDate(raw[fieldPromoTo]); err != nil {
		return rec, fmt.Errorf("invalid promoTo: %v", err)
	}
	if rec.Rating, err = parseCount(raw[fieldRating]); err != nil {
		return rec, fmt.Errorf("invalid rating %q", raw[fieldRating])
	}
	rec.Family = strings.TrimSpace(raw[fieldFamily])
	if v, ok := raw[fieldFamilyExclusive]; ok {
		if rec.FamilyExclusive, err = strconv.ParseBool(strings.TrimSpace(v)); err != nil {
			return rec, fmt.Errorf("invalid familyExclusive %q", v)
		}
	}
	return rec, nil
}

// parseCount accepts integral values written as floats, e.g. "3.0".
func parseCount(s string) (int, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != float64(int(f)) {
		return 0, fmt.Errorf("not an integer: %s", s)
	}
	return int(f), nil
}
