package upsert

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

var timeLayouts = []string{
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05.000",
	"2006-01-02 15:04:05.000000",
	"2006/01/02",
	"01/02/2006",
	"02/01/2006",
}

// Coercion turns an opaque staging string into a typed value. Empty strings
// coerce to nil pointers; a non-empty string that will not parse fails the
// row with a coercion error.

func coerceFloat(field, raw string) (*float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, fmt.Errorf("field %s: unable to coerce %q to number", field, raw)
	}
	return &f, nil
}

func coerceInt(field, raw string) (*int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
		v := int(i)
		return &v, nil
	}
	// Allow float representations that convert losslessly to int.
	if f, err := strconv.ParseFloat(raw, 64); err == nil && math.Mod(f, 1) == 0 {
		v := int(f)
		return &v, nil
	}
	return nil, fmt.Errorf("field %s: unable to coerce %q to integer", field, raw)
}

func coerceBool(field, raw string) (*bool, error) {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if raw == "" {
		return nil, nil
	}
	switch raw {
	case "1", "yes", "y":
		v := true
		return &v, nil
	case "0", "no", "n":
		v := false
		return &v, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, fmt.Errorf("field %s: unable to coerce %q to boolean", field, raw)
	}
	return &v, nil
}

func coerceTime(field, raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	for _, layout := range timeLayouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			return &ts, nil
		}
	}
	return nil, fmt.Errorf("field %s: unrecognized timestamp %q", field, raw)
}
