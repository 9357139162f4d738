package handlers

import (
	"fmt"
	"net/url"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/xavierca1/firm-backoffice/internal/usecase"
)

var timeType = reflect.TypeOf(time.Time{})

// decodeFilter fills a filter struct from query parameters matched by json
// tag. Parameters that are neither filter fields nor reserved are rejected.
func decodeFilter[F any](q url.Values, reserved ...string) (F, error) {
	var f F
	v := reflect.ValueOf(&f).Elem()
	if v.Kind() != reflect.Struct {
		return f, nil
	}

	known := make(map[string]bool)
	for _, name := range reserved {
		known[name] = true
	}

	var errs usecase.ValidationErrors
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		name, _, _ := strings.Cut(t.Field(i).Tag.Get("json"), ",")
		if name == "" || name == "-" {
			continue
		}
		known[name] = true

		raw := q.Get(name)
		if raw == "" {
			continue
		}
		if err := setField(v.Field(i), raw); err != nil {
			errs = append(errs, usecase.ValidationError{Field: name, Message: err.Error()})
		}
	}

	for key := range q {
		if !known[key] {
			errs = append(errs, usecase.ValidationError{Field: key, Message: "is not a known filter"})
		}
	}

	if len(errs) > 0 {
		sort.Slice(errs, func(i, j int) bool { return errs[i].Field < errs[j].Field })
		return f, errs
	}
	return f, nil
}

func setField(fv reflect.Value, raw string) error {
	if fv.Kind() == reflect.Pointer {
		elem := reflect.New(fv.Type().Elem())
		if err := setField(elem.Elem(), raw); err != nil {
			return err
		}
		fv.Set(elem)
		return nil
	}

	if fv.Type() == timeType {
		ts, err := parseTime(raw)
		if err != nil {
			return err
		}
		fv.Set(reflect.ValueOf(ts))
		return nil
	}

	switch fv.Kind() {
	case reflect.String:
		fv.SetString(raw)
	case reflect.Bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return fmt.Errorf("must be true or false")
		}
		fv.SetBool(b)
	case reflect.Int, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return fmt.Errorf("must be an integer")
		}
		fv.SetInt(n)
	default:
		return fmt.Errorf("cannot be filtered on")
	}
	return nil
}

// parseTime accepts RFC 3339 timestamps and plain dates (UTC midnight).
func parseTime(raw string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339, raw); err == nil {
		return ts, nil
	}
	if d, err := time.Parse(time.DateOnly, raw); err == nil {
		return d, nil
	}
	return time.Time{}, fmt.Errorf("must be a date (YYYY-MM-DD) or RFC 3339 timestamp")
}
