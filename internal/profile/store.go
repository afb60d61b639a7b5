package profile

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/fallrisk/super-serial/internal/linkerr"
	"github.com/fallrisk/super-serial/internal/metric"
	"github.com/fallrisk/super-serial/internal/serialcfg"
)

// Format is the on-disk encoding of a profile file.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatFor picks the encoding from the file extension. Anything other than
// .yaml or .yml is JSON.
func FormatFor(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// fileRecord is the persisted shape of one profile.
type fileRecord struct {
	Name        string  `json:"name" yaml:"name"`
	Port        string  `json:"port" yaml:"port"`
	Baud        int     `json:"baud" yaml:"baud"`
	DataBits    int     `json:"dataBits" yaml:"dataBits"`
	StopBits    float64 `json:"stopBits" yaml:"stopBits"`
	Parity      string  `json:"parity" yaml:"parity"`
	FlowControl string  `json:"flowControl" yaml:"flowControl"`
}

// decodedRecord is what mapstructure fills from a schema-checked record.
type decodedRecord struct {
	Name                string `mapstructure:"name"`
	serialcfg.RawConfig `mapstructure:",squash"`
}

// LoadResult describes the outcome of a load.
type LoadResult struct {
	Path     string
	Profiles []Profile
	// NotFound is set when the file does not exist yet.
	NotFound bool
}

// Store reads and writes profile files.
type Store struct {
	logger  *zap.Logger
	metrics *metric.Metrics
}

// NewStore creates a store. metrics may be nil.
func NewStore(logger *zap.Logger, metrics *metric.Metrics) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		logger:  logger.With(zap.String("component", "profiles")),
		metrics: metrics,
	}
}

// Load reads the profiles in path. A missing file yields no profiles and no
// error. If any record is invalid the whole load fails with SchemaError and
// no profiles are returned.
func (s *Store) Load(path string) ([]Profile, error) {
	result, err := s.LoadDetailed(path)
	if err != nil {
		return nil, err
	}
	return result.Profiles, nil
}

// LoadDetailed is Load that also reports whether the file was missing.
func (s *Store) LoadDetailed(path string) (LoadResult, error) {
	result := LoadResult{Path: path}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.logger.Info("Profile file not found, starting with no profiles", zap.String("path", path))
			result.NotFound = true
			s.metrics.RecordProfileLoad(true, 0)
			return result, nil
		}
		s.metrics.RecordProfileLoad(false, 0)
		return LoadResult{}, fmt.Errorf("failed to read profile file: %w", err)
	}

	profiles, err := s.parse(data, FormatFor(path))
	if err != nil {
		s.metrics.RecordProfileLoad(false, 0)
		s.logger.Error("Profile file rejected", zap.String("path", path), zap.Error(err))
		return LoadResult{}, err
	}

	result.Profiles = profiles
	s.metrics.RecordProfileLoad(true, len(profiles))
	s.logger.Info("Profile file loaded", zap.String("path", path), zap.Int("count", len(profiles)))
	return result, nil
}

func (s *Store) parse(data []byte, format Format) ([]Profile, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}

	var doc interface{}
	switch format {
	case FormatYAML:
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, linkerr.Wrap(linkerr.SchemaError, "profile file is not valid YAML", err)
		}
	default:
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, linkerr.Wrap(linkerr.SchemaError, "profile file is not valid JSON", err)
		}
	}

	if problems := validateDocument(doc); len(problems) > 0 {
		return nil, linkerr.Join(problems)
	}

	items, ok := doc.([]interface{})
	if !ok {
		return nil, linkerr.New(linkerr.SchemaError, "profile file must hold a list of records")
	}

	collection := NewCollection(nil)
	for i, item := range items {
		p, err := decodeRecord(item)
		if err != nil {
			return nil, recordError(i, err)
		}
		if _, dup := collection.Get(p.Name); dup {
			s.logger.Warn("Duplicate profile name, keeping the last one", zap.String("name", p.Name))
		}
		collection.Put(p)
	}

	return collection.List(), nil
}

func decodeRecord(item interface{}) (Profile, error) {
	var rec decodedRecord
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: decimalHook,
		Result:     &rec,
	})
	if err != nil {
		return Profile{}, err
	}
	if err := decoder.Decode(item); err != nil {
		return Profile{}, err
	}

	return New(rec.Name, rec.RawConfig)
}

// recordError turns a decode or validation failure of record i into
// SchemaError records.
func recordError(i int, err error) error {
	records := linkerr.Records(err)
	if len(records) == 0 {
		return linkerr.Wrap(linkerr.SchemaError, fmt.Sprintf("record %d could not be decoded", i), err)
	}

	out := make([]*linkerr.Error, 0, len(records))
	for _, r := range records {
		out = append(out, &linkerr.Error{
			Kind:    linkerr.SchemaError,
			Message: fmt.Sprintf("record %d: %s", i, r.Message),
			Field:   r.Field,
			Err:     r,
		})
	}
	return linkerr.Join(out)
}

var decimalType = reflect.TypeOf(decimal.Decimal{})

// decimalHook lets stopBits arrive as any number or numeric string.
func decimalHook(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
	if to != decimalType {
		return data, nil
	}
	switch v := data.(type) {
	case float64:
		return decimal.NewFromFloat(v), nil
	case float32:
		return decimal.NewFromFloat32(v), nil
	case int:
		return decimal.NewFromInt(int64(v)), nil
	case int64:
		return decimal.NewFromInt(v), nil
	case json.Number:
		return decimal.NewFromString(v.String())
	case string:
		return decimal.NewFromString(v)
	default:
		return data, nil
	}
}

// Save writes profiles to path atomically. Every profile must be named and
// valid; a repeated name keeps its first position and its last value.
func (s *Store) Save(profiles []Profile, path string) error {
	err := s.save(profiles, path)
	s.metrics.RecordProfileSave(err == nil)
	if err != nil {
		s.logger.Error("Failed to save profiles", zap.String("path", path), zap.Error(err))
		return err
	}
	s.logger.Info("Profiles saved", zap.String("path", path), zap.Int("count", len(profiles)))
	return nil
}

func (s *Store) save(profiles []Profile, path string) error {
	// normalize the way Load does so what is written reads back unchanged
	normalized := make([]Profile, 0, len(profiles))
	for _, p := range profiles {
		n, err := New(p.Name, p.Raw())
		if err != nil {
			if linkerr.Is(err, linkerr.NameRequired) {
				return err
			}
			return fmt.Errorf("profile %q: %w", p.Name, err)
		}
		normalized = append(normalized, n)
	}

	unique := NewCollection(normalized).List()
	records := make([]fileRecord, 0, len(unique))
	for _, p := range unique {
		stop, _ := p.StopBits.Decimal().Float64()
		records = append(records, fileRecord{
			Name:        p.Name,
			Port:        p.Port,
			Baud:        p.Baud,
			DataBits:    int(p.DataBits),
			StopBits:    stop,
			Parity:      string(p.Parity),
			FlowControl: string(p.FlowControl),
		})
	}

	data, err := encode(records, FormatFor(path))
	if err != nil {
		return fmt.Errorf("failed to encode profiles: %w", err)
	}

	return writeFileAtomic(path, data)
}

func encode(records []fileRecord, format Format) ([]byte, error) {
	if format == FormatYAML {
		return yaml.Marshal(records)
	}
	data, err := json.MarshalIndent(records, "", "    ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// writeFileAtomic replaces path with data through a synced temp file in
// the same directory.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create profile directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		if tmpName != "" {
			os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write profiles: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync profiles: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		return fmt.Errorf("failed to set profile file mode: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to replace profile file: %w", err)
	}

	tmpName = ""
	return nil
}
