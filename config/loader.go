// Package config merges layered configuration sources into viper.
package config

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/viper"
)

// Loader merges its sources by priority and exposes the result through viper
type Loader struct {
	sources      []ConfigSource
	mergedConfig map[string]interface{}
	v            *viper.Viper
	loadedFiles  []string
}

func NewLoader() *Loader {
	return &Loader{
		sources:      make([]ConfigSource, 0),
		mergedConfig: make(map[string]interface{}),
		v:            viper.New(),
		loadedFiles:  make([]string, 0),
	}
}

func (l *Loader) AddSource(source ConfigSource) {
	l.sources = append(l.sources, source)
}

// Load reads every source from lowest to highest priority; later keys win
func (l *Loader) Load() error {
	sort.SliceStable(l.sources, func(i, j int) bool {
		return l.sources[i].Priority() < l.sources[j].Priority()
	})

	l.mergedConfig = make(map[string]interface{})
	l.loadedFiles = l.loadedFiles[:0]
	for _, source := range l.sources {
		data, err := source.Load()
		if err != nil {
			return fmt.Errorf("load source %s: %w", source.Name(), err)
		}

		if fileSource, ok := source.(*FileSource); ok {
			l.loadedFiles = append(l.loadedFiles, fileSource.path)
		}

		for key, value := range data {
			l.mergedConfig[strings.ToLower(key)] = value
		}
	}

	l.syncToViper()
	return nil
}

func (l *Loader) syncToViper() {
	l.v = viper.New()
	for key, value := range unflattenMap(l.mergedConfig) {
		l.v.Set(key, value)
	}
}

// unflattenMap turns {"redis.pool_size": 10} into {"redis": {"pool_size": 10}}
func unflattenMap(flat map[string]interface{}) map[string]interface{} {
	result := make(map[string]interface{})
	for key, value := range flat {
		setNestedValue(result, key, value)
	}
	return result
}

func setNestedValue(m map[string]interface{}, key string, value interface{}) {
	keys := splitKey(key)
	if len(keys) == 0 {
		return
	}

	current := m
	for _, k := range keys[:len(keys)-1] {
		nested, ok := current[k].(map[string]interface{})
		if !ok {
			// a scalar at an intermediate level is replaced by the deeper key
			nested = make(map[string]interface{})
			current[k] = nested
		}
		current = nested
	}
	current[keys[len(keys)-1]] = value
}

func splitKey(key string) []string {
	parts := strings.Split(key, ".")
	result := parts[:0]
	for _, p := range parts {
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}

// Unmarshal decodes the merged configuration using mapstructure tags.
// Comma separated strings decode into slices and "5s" style strings into durations.
func (l *Loader) Unmarshal(v interface{}) error {
	return l.v.Unmarshal(v)
}

// UnmarshalKey decodes one sub tree, e.g. UnmarshalKey("redis", &cfg)
func (l *Loader) UnmarshalKey(key string, v interface{}) error {
	return l.v.UnmarshalKey(key, v)
}

func (l *Loader) Get(key string) interface{} {
	return l.v.Get(key)
}

func (l *Loader) GetString(key string) string {
	return l.v.GetString(key)
}

func (l *Loader) GetInt(key string) int {
	return l.v.GetInt(key)
}

func (l *Loader) GetBool(key string) bool {
	return l.v.GetBool(key)
}

func (l *Loader) IsSet(key string) bool {
	return l.v.IsSet(key)
}

func (l *Loader) AllSettings() map[string]interface{} {
	return l.v.AllSettings()
}

// GetLoadedFiles lists the file sources consulted by the last Load
func (l *Loader) GetLoadedFiles() []string {
	return l.loadedFiles
}

func (l *Loader) Reload() error {
	return l.Load()
}
