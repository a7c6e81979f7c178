// Package holdings loads and watches the YAML holdings file consumed by the
// sell evaluators.
package holdings

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"sab/internal/logger"
	"sab/internal/market"
	"sab/internal/pkg/convert"

	"github.com/fsnotify/fsnotify"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Settings carries the file-level defaults applied to holdings that omit a
// field.
type Settings struct {
	DefaultCurrency string   `yaml:"default_currency"`
	DefaultStrategy string   `yaml:"default_strategy"`
	DefaultTags     []string `yaml:"default_tags"`
}

// Snapshot is an immutable view of the holdings file at one load.
type Snapshot struct {
	Version  int64
	LoadedAt time.Time
	Path     string
	Settings Settings
	Holdings []market.Holding
}

// ChangeListener fires after the registry reloads a changed file.
type ChangeListener func(Snapshot)

// Registry reads the holdings file, validates it against the document
// schema, and hot-reloads on file change.
type Registry struct {
	path string
	v    *viper.Viper

	mu        sync.RWMutex
	snapshot  Snapshot
	listeners []ChangeListener
}

const documentSchema = `{
  "type": "object",
  "properties": {
    "settings": {
      "type": "object",
      "properties": {
        "default_currency": {"type": "string"},
        "default_strategy": {"type": "string"},
        "default_tags": {"type": "array", "items": {"type": "string"}}
      }
    },
    "holdings": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["ticker"],
        "properties": {
          "ticker": {"type": "string", "minLength": 1},
          "quantity": {"type": ["number", "string"]},
          "entry_price": {"type": ["number", "string"]},
          "entry_currency": {"type": "string"},
          "entry_date": {"type": "string"},
          "strategy": {"type": "string"},
          "notes": {"type": "string"},
          "tags": {"type": "array"},
          "stop_override": {"type": ["number", "string", "null"]},
          "target_override": {"type": ["number", "string", "null"]}
        }
      }
    }
  }
}`

var compiledSchema = mustCompileSchema()

func mustCompileSchema() *jsonschema.Schema {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("holdings.json", strings.NewReader(documentSchema)); err != nil {
		panic(fmt.Sprintf("holdings schema resource: %v", err))
	}
	schema, err := compiler.Compile("holdings.json")
	if err != nil {
		panic(fmt.Sprintf("holdings schema compile: %v", err))
	}
	return schema
}

// NewRegistry loads the file at path and starts watching it. A blank or
// missing path yields an empty, static registry: running without holdings is
// a normal buy-only setup, not an error.
func NewRegistry(path string) (*Registry, error) {
	r := &Registry{path: strings.TrimSpace(path)}
	if r.path == "" {
		r.snapshot = Snapshot{Version: 1, LoadedAt: time.Now()}
		return r, nil
	}
	if _, err := os.Stat(r.path); err != nil {
		logger.Warnf("Holdings file %s not found; starting with no positions", r.path)
		r.snapshot = Snapshot{Version: 1, LoadedAt: time.Now(), Path: r.path}
		return r, nil
	}

	if err := r.reload(); err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetConfigFile(r.path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read holdings file failed: %w", err)
	}
	v.OnConfigChange(func(fsnotify.Event) {
		if err := r.reload(); err != nil {
			logger.Errorf("holdings reload failed: %v", err)
			return
		}
		r.notifyListeners()
	})
	v.WatchConfig()
	r.v = v
	return r, nil
}

// Snapshot returns the current holdings view.
func (r *Registry) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return cloneSnapshot(r.snapshot)
}

// OnChange registers a listener invoked after every successful reload.
func (r *Registry) OnChange(fn ChangeListener) {
	if fn == nil {
		return
	}
	r.mu.Lock()
	r.listeners = append(r.listeners, fn)
	r.mu.Unlock()
}

func (r *Registry) reload() error {
	settings, list, err := LoadFile(r.path)
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.snapshot = Snapshot{
		Version:  r.snapshot.Version + 1,
		LoadedAt: time.Now(),
		Path:     r.path,
		Settings: settings,
		Holdings: list,
	}
	r.mu.Unlock()
	logger.Infof("Holdings registry loaded %d positions from %s", len(list), filepath.Base(r.path))
	return nil
}

func (r *Registry) notifyListeners() {
	r.mu.RLock()
	snap := cloneSnapshot(r.snapshot)
	listeners := append([]ChangeListener(nil), r.listeners...)
	r.mu.RUnlock()
	for _, fn := range listeners {
		go func(cb ChangeListener) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Errorf("holdings listener panic: %v", rec)
				}
			}()
			cb(snap)
		}(fn)
	}
}

func cloneSnapshot(src Snapshot) Snapshot {
	dst := src
	dst.Holdings = append([]market.Holding(nil), src.Holdings...)
	dst.Settings.DefaultTags = append([]string(nil), src.Settings.DefaultTags...)
	return dst
}

// LoadFile parses and validates one holdings file without a watcher.
func LoadFile(path string) (Settings, []market.Holding, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, nil, fmt.Errorf("read holdings file failed: %w", err)
	}

	var doc map[string]any
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return Settings{}, nil, nil
		}
		return Settings{}, nil, fmt.Errorf("parse holdings file failed: %w", err)
	}
	if doc == nil {
		return Settings{}, nil, nil
	}
	// The schema validator wants JSON-decoded values; YAML hands us Go ints.
	normalized, err := toJSONValue(doc)
	if err != nil {
		return Settings{}, nil, fmt.Errorf("holdings file invalid: %w", err)
	}
	if err := compiledSchema.Validate(normalized); err != nil {
		return Settings{}, nil, fmt.Errorf("holdings file invalid: %w", err)
	}

	settings := decodeSettings(doc["settings"])
	items, _ := doc["holdings"].([]any)
	list := make([]market.Holding, 0, len(items))
	for _, item := range items {
		entry, ok := item.(map[string]any)
		if !ok {
			continue
		}
		h := decodeHolding(entry, settings)
		if h.Ticker == "" {
			continue
		}
		list = append(list, h)
	}
	return settings, list, nil
}

func decodeSettings(v any) Settings {
	m, ok := v.(map[string]any)
	if !ok {
		return Settings{}
	}
	return Settings{
		DefaultCurrency: strAt(m, "default_currency"),
		DefaultStrategy: strAt(m, "default_strategy"),
		DefaultTags:     strList(m["default_tags"]),
	}
}

func decodeHolding(m map[string]any, defaults Settings) market.Holding {
	h := market.Holding{
		Ticker:         strAt(m, "ticker"),
		Quantity:       convert.ToFloat64(m["quantity"]),
		EntryPrice:     convert.ToFloat64(m["entry_price"]),
		EntryCurrency:  strAt(m, "entry_currency"),
		EntryDate:      strAt(m, "entry_date"),
		Strategy:       strAt(m, "strategy"),
		Notes:          strAt(m, "notes"),
		StopOverride:   convert.OptFloat(m["stop_override"]),
		TargetOverride: convert.OptFloat(m["target_override"]),
	}
	if h.EntryCurrency == "" {
		h.EntryCurrency = defaults.DefaultCurrency
	}
	if h.Strategy == "" {
		h.Strategy = defaults.DefaultStrategy
	}
	if tags, ok := m["tags"]; ok {
		h.Tags = strList(tags)
	} else {
		h.Tags = append([]string(nil), defaults.DefaultTags...)
	}
	return h
}

func toJSONValue(v any) (any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func strAt(m map[string]any, key string) string {
	v, ok := m[key]
	if !ok || v == nil {
		return ""
	}
	// yaml.v3 decodes unquoted ISO dates into time.Time.
	if t, ok := v.(time.Time); ok {
		return t.Format("2006-01-02")
	}
	return strings.TrimSpace(fmt.Sprint(v))
}

func strList(v any) []string {
	switch t := v.(type) {
	case nil:
		return nil
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			out = append(out, strings.TrimSpace(fmt.Sprint(item)))
		}
		return out
	case []string:
		return append([]string(nil), t...)
	default:
		return []string{strings.TrimSpace(fmt.Sprint(v))}
	}
}
