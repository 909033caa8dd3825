// Package envconf fills config structs from environment variables.
//
// Fields are bound with an `env:"NAME"` tag. When the variable is unset the
// `default:"..."` tag is used, and a field with neither is required. Untagged
// struct and pointer-to-struct fields are walked recursively, so service
// packages can own their config sections and a binary composes them.
package envconf

import (
	"encoding"
	"errors"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"
)

var (
	ErrMissingRequired = errors.New("missing required environment variable")
	ErrUnsupportedType = errors.New("unsupported field type")
	ErrBadDestination  = errors.New("destination must be a non-nil pointer to a struct")
)

// LookupFunc reports the value of a variable and whether it is set.
type LookupFunc func(name string) (string, bool)

// Load fills dst from the process environment.
func Load(dst any) error {
	return LoadFrom(os.LookupEnv, dst)
}

// LoadFrom fills dst using lookup instead of the process environment.
func LoadFrom(lookup LookupFunc, dst any) error {
	v := reflect.ValueOf(dst)
	if dst == nil || v.Kind() != reflect.Pointer || v.IsNil() || v.Elem().Kind() != reflect.Struct {
		return ErrBadDestination
	}

	return loadStruct(lookup, v.Elem(), "")
}

var (
	durationType        = reflect.TypeOf(time.Duration(0))
	textUnmarshalerType = reflect.TypeOf((*encoding.TextUnmarshaler)(nil)).Elem()
)

func loadStruct(lookup LookupFunc, v reflect.Value, prefix string) error {
	t := v.Type()

	for i := range t.NumField() {
		sf := t.Field(i)
		if !sf.IsExported() {
			continue
		}

		fv := v.Field(i)
		path := prefix + sf.Name

		name, tagged := sf.Tag.Lookup("env")
		if !tagged || name == "" || name == "-" {
			err := loadNested(lookup, fv, path)
			if err != nil {
				return err
			}

			continue
		}

		raw, ok := lookup(name)
		if !ok {
			raw, ok = sf.Tag.Lookup("default")
		}

		if !ok {
			return fmt.Errorf("%w: %s (field %s)", ErrMissingRequired, name, path)
		}

		err := setValue(fv, raw)
		if err != nil {
			return fmt.Errorf("%s (field %s): %w", name, path, err)
		}
	}

	return nil
}

// loadNested walks untagged struct fields. Any other untagged field is left
// untouched.
func loadNested(lookup LookupFunc, fv reflect.Value, path string) error {
	switch {
	case fv.Kind() == reflect.Struct:
		return loadStruct(lookup, fv, path+".")
	case fv.Kind() == reflect.Pointer && fv.Type().Elem().Kind() == reflect.Struct:
		if fv.IsNil() {
			fv.Set(reflect.New(fv.Type().Elem()))
		}

		return loadStruct(lookup, fv.Elem(), path+".")
	default:
		return nil
	}
}

// setValue parses raw into fv. TextUnmarshaler wins over the kind switch, so
// slog.Level, decimal.Decimal and similar types work without special cases.
func setValue(fv reflect.Value, raw string) error {
	if fv.Kind() == reflect.Pointer {
		elem := reflect.New(fv.Type().Elem())

		err := setValue(elem.Elem(), raw)
		if err != nil {
			return err
		}

		fv.Set(elem)

		return nil
	}

	if reflect.PointerTo(fv.Type()).Implements(textUnmarshalerType) {
		err := fv.Addr().Interface().(encoding.TextUnmarshaler).UnmarshalText([]byte(raw))
		if err != nil {
			return fmt.Errorf("unmarshal text: %w", err)
		}

		return nil
	}

	if fv.Type() == durationType {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("parse duration: %w", err)
		}

		fv.SetInt(int64(d))

		return nil
	}

	switch fv.Kind() {
	case reflect.String:
		fv.SetString(raw)
	case reflect.Bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return fmt.Errorf("parse bool: %w", err)
		}

		fv.SetBool(b)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(raw, 10, fv.Type().Bits())
		if err != nil {
			return fmt.Errorf("parse int: %w", err)
		}

		fv.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := strconv.ParseUint(raw, 10, fv.Type().Bits())
		if err != nil {
			return fmt.Errorf("parse uint: %w", err)
		}

		fv.SetUint(n)
	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(raw, fv.Type().Bits())
		if err != nil {
			return fmt.Errorf("parse float: %w", err)
		}

		fv.SetFloat(f)
	case reflect.Slice:
		return setSlice(fv, raw)
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedType, fv.Type())
	}

	return nil
}

// setSlice splits raw on commas. An empty value yields an empty slice.
func setSlice(fv reflect.Value, raw string) error {
	var parts []string
	if strings.TrimSpace(raw) != "" {
		parts = strings.Split(raw, ",")
	}

	out := reflect.MakeSlice(fv.Type(), len(parts), len(parts))

	for i, p := range parts {
		err := setValue(out.Index(i), strings.TrimSpace(p))
		if err != nil {
			return fmt.Errorf("element %d: %w", i, err)
		}
	}

	fv.Set(out)

	return nil
}
