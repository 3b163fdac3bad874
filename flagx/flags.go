// Package flagx binds cobra flags to tagged structs.
//
//	type CreateUserFlags struct {
//	    Email string   `flag:"email,e" usage:"login email" required:"true"`
//	    Roles []string `flag:"role" usage:"granted role" default:"ROLE_USER"`
//	}
//
//	var f CreateUserFlags
//	_ = flagx.Bind(cmd, &f)        // while building the command
//	_ = flagx.Parse(cmd, &f)       // inside RunE
package flagx

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var durationType = reflect.TypeOf(time.Duration(0))

type flagSpec struct {
	name     string
	short    string
	usage    string
	def      string
	required bool
}

func parseTag(f reflect.StructField) (flagSpec, bool) {
	tag := f.Tag.Get("flag")
	if tag == "" || tag == "-" {
		return flagSpec{}, false
	}
	parts := strings.Split(tag, ",")
	s := flagSpec{
		name:     strings.TrimSpace(parts[0]),
		usage:    f.Tag.Get("usage"),
		def:      f.Tag.Get("default"),
		required: f.Tag.Get("required") == "true",
	}
	if len(parts) > 1 {
		s.short = strings.TrimSpace(parts[1])
	}
	return s, true
}

func structOf(target interface{}) (reflect.Value, error) {
	v := reflect.ValueOf(target)
	if v.Kind() != reflect.Ptr || v.IsNil() || v.Elem().Kind() != reflect.Struct {
		return reflect.Value{}, fmt.Errorf("flagx: target must be a pointer to struct, got %T", target)
	}
	return v.Elem(), nil
}

// Bind registers one flag per tagged field on cmd's local flag set
func Bind(cmd *cobra.Command, target interface{}) error {
	v, err := structOf(target)
	if err != nil {
		return err
	}

	fs := cmd.Flags()
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		s, ok := parseTag(field)
		if !ok {
			continue
		}

		switch {
		case field.Type == durationType:
			def, err := parseDefault(s, time.ParseDuration)
			if err != nil {
				return err
			}
			fs.DurationP(s.name, s.short, def, s.usage)
		case field.Type.Kind() == reflect.String:
			fs.StringP(s.name, s.short, s.def, s.usage)
		case field.Type.Kind() == reflect.Int:
			def, err := parseDefault(s, strconv.Atoi)
			if err != nil {
				return err
			}
			fs.IntP(s.name, s.short, def, s.usage)
		case field.Type.Kind() == reflect.Int64:
			def, err := parseDefault(s, func(v string) (int64, error) { return strconv.ParseInt(v, 10, 64) })
			if err != nil {
				return err
			}
			fs.Int64P(s.name, s.short, def, s.usage)
		case field.Type.Kind() == reflect.Bool:
			def, err := parseDefault(s, strconv.ParseBool)
			if err != nil {
				return err
			}
			fs.BoolP(s.name, s.short, def, s.usage)
		case field.Type.Kind() == reflect.Slice && field.Type.Elem().Kind() == reflect.String:
			var def []string
			if s.def != "" {
				def = strings.Split(s.def, ",")
			}
			fs.StringSliceP(s.name, s.short, def, s.usage)
		default:
			return fmt.Errorf("flagx: field %s has unsupported type %s", field.Name, field.Type)
		}

		if s.required {
			if err := cmd.MarkFlagRequired(s.name); err != nil {
				return err
			}
		}
	}
	return nil
}

func parseDefault[T any](s flagSpec, parse func(string) (T, error)) (T, error) {
	var zero T
	if s.def == "" {
		return zero, nil
	}
	v, err := parse(s.def)
	if err != nil {
		return zero, fmt.Errorf("flagx: bad default %q for --%s: %w", s.def, s.name, err)
	}
	return v, nil
}

// Parse copies parsed flag values into the tagged fields of target
func Parse(cmd *cobra.Command, target interface{}) error {
	v, err := structOf(target)
	if err != nil {
		return err
	}

	fs := cmd.Flags()
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		s, ok := parseTag(field)
		if !ok || !v.Field(i).CanSet() {
			continue
		}
		out := v.Field(i)

		switch {
		case field.Type == durationType:
			d, err := fs.GetDuration(s.name)
			if err != nil {
				return err
			}
			out.SetInt(int64(d))
		case field.Type.Kind() == reflect.String:
			val, err := fs.GetString(s.name)
			if err != nil {
				return err
			}
			out.SetString(val)
		case field.Type.Kind() == reflect.Int:
			val, err := fs.GetInt(s.name)
			if err != nil {
				return err
			}
			out.SetInt(int64(val))
		case field.Type.Kind() == reflect.Int64:
			val, err := fs.GetInt64(s.name)
			if err != nil {
				return err
			}
			out.SetInt(val)
		case field.Type.Kind() == reflect.Bool:
			val, err := fs.GetBool(s.name)
			if err != nil {
				return err
			}
			out.SetBool(val)
		case field.Type.Kind() == reflect.Slice && field.Type.Elem().Kind() == reflect.String:
			val, err := fs.GetStringSlice(s.name)
			if err != nil {
				return err
			}
			out.Set(reflect.ValueOf(val))
		default:
			return fmt.Errorf("flagx: field %s has unsupported type %s", field.Name, field.Type)
		}
	}
	return nil
}
