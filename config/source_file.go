package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/viper"
)

// FileSource reads one YAML file (any format viper knows by extension).
// An absent file contributes nothing, so config.yaml and <env>.yaml are both optional.
type FileSource struct {
	path     string
	priority int
}

func NewFileSource(path string, priority int) *FileSource {
	return &FileSource{path: path, priority: priority}
}

func (s *FileSource) Name() string  { return "file:" + s.path }
func (s *FileSource) Priority() int { return s.priority }
func (s *FileSource) Path() string  { return s.path }

// Load returns dotted keys, e.g. redis.addr, as viper's AllKeys reports them
func (s *FileSource) Load() (map[string]interface{}, error) {
	if _, err := os.Stat(s.path); errors.Is(err, fs.ErrNotExist) {
		return map[string]interface{}{}, nil
	} else if err != nil {
		return nil, fmt.Errorf("stat %s: %w", s.path, err)
	}

	v := viper.New()
	v.SetConfigFile(s.path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("parse %s: %w", s.path, err)
	}

	keys := v.AllKeys()
	out := make(map[string]interface{}, len(keys))
	for _, key := range keys {
		out[key] = v.Get(key)
	}
	return out, nil
}
