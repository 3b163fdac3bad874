package config

import (
	"fmt"
	"reflect"
	"strings"
)

// FlagSource maps a struct of parsed command line flags onto config keys
// through `config` tags. Zero values are skipped so unset flags never override.
//
//	type ServeFlags struct {
//	    Port int `config:"server.port"`
//	}
type FlagSource struct {
	flags    interface{}
	priority int
}

func NewFlagSource(flags interface{}, priority int) *FlagSource {
	return &FlagSource{
		flags:    flags,
		priority: priority,
	}
}

func (s *FlagSource) Name() string {
	return "flags"
}

func (s *FlagSource) Priority() int {
	return s.priority
}

func (s *FlagSource) Load() (map[string]interface{}, error) {
	result := make(map[string]interface{})

	if s.flags == nil {
		return result, nil
	}

	v := reflect.ValueOf(s.flags)
	if v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return result, nil
		}
		v = v.Elem()
	}

	if v.Kind() != reflect.Struct {
		return nil, fmt.Errorf("flags must be a struct or pointer to struct")
	}

	t := v.Type()
	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		if !field.CanInterface() || isZeroValue(field) {
			continue
		}

		// one flag may feed several keys: `config:"server.port,metrics.port"`
		for _, key := range strings.Split(t.Field(i).Tag.Get("config"), ",") {
			key = strings.TrimSpace(key)
			if key == "" || key == "-" {
				continue
			}
			result[key] = field.Interface()
		}
	}

	return result, nil
}

func isZeroValue(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.String:
		return v.String() == ""
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int() == 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return v.Uint() == 0
	case reflect.Float32, reflect.Float64:
		return v.Float() == 0
	case reflect.Bool:
		return !v.Bool()
	case reflect.Ptr, reflect.Interface, reflect.Slice, reflect.Map:
		return v.IsNil()
	default:
		return false
	}
}
