package storefront

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// The marketplace is inconsistent about scalar encoding: prices arrive as
// "150.00" or 150, flags as 1, "1" or true, ids as numbers or strings.

type flexDecimal struct{ decimal.Decimal }

func (d *flexDecimal) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(bytes.TrimSpace(b)), `"`)
	if s == "" || s == "null" {
		d.Decimal = decimal.Zero
		return nil
	}
	v, err := decimal.NewFromString(s)
	if err != nil {
		return fmt.Errorf("storefront: invalid amount %s: %w", b, err)
	}
	d.Decimal = v
	return nil
}

type flexBool bool

func (f *flexBool) UnmarshalJSON(b []byte) error {
	switch strings.ToLower(strings.Trim(string(bytes.TrimSpace(b)), `"`)) {
	case "1", "true", "yes":
		*f = true
	case "", "0", "false", "no", "null":
		*f = false
	default:
		return fmt.Errorf("storefront: invalid flag %s", b)
	}
	return nil
}

type flexInt int64

func (f *flexInt) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(bytes.TrimSpace(b)), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		fv, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil {
			return fmt.Errorf("storefront: invalid id %s", b)
		}
		v = int64(fv)
	}
	*f = flexInt(v)
	return nil
}

// envelope is the usual {"success": ..., "message": ..., "data": ...} wrapper.
type envelope[T any] struct {
	Success *bool  `json:"success"`
	Message string `json:"message"`
	Data    T      `json:"data"`
}

// decodeList accepts either a bare array or an object with the array under
// one of keys.
func decodeList[T any](raw json.RawMessage, keys ...string) ([]T, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return []T{}, nil
	}
	if raw[0] == '[' {
		var out []T
		if err := json.Unmarshal(raw, &out); err != nil {
			return nil, err
		}
		return out, nil
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, err
	}
	for _, k := range keys {
		if v, ok := obj[k]; ok {
			return decodeList[T](v)
		}
	}
	return []T{}, nil
}
