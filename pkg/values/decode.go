package values

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

// ErrUnsupportedType - тип значения не поддерживается
var ErrUnsupportedType = errors.New("unsupported value type")

var timeLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	time.RFC3339,
}

// ParseTime разбирает метку времени в одном из поддерживаемых форматов
func ParseTime(s string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid time stamp %q", s)
}

// member - поле JSON объекта с сохранением порядка
type member struct {
	key   string
	value any
}

// Parse декодирует значение из пары (blob, type) базы данных
func Parse(blob []byte, typ string) (any, error) {
	blob = bytes.TrimSpace(blob)
	if len(blob) == 0 || string(blob) == "null" {
		return nil, nil
	}
	raw, err := decodeOrdered(blob)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s value: %w", typ, err)
	}
	if typ == "" {
		if members, ok := raw.([]member); ok {
			typ, _ = field(members, "type").(string)
		}
	}
	return fromRaw(raw, typ)
}

func fromRaw(raw any, typ string) (any, error) {
	switch typ {
	case "", TypeFloat, TypeString, TypeBool:
		switch x := raw.(type) {
		case nil, float64, string, bool:
			return x, nil
		}
		return nil, fmt.Errorf("%w: expected scalar, got %T", ErrUnsupportedType, raw)
	case TypeDateTime:
		s, err := dataString(raw)
		if err != nil {
			return nil, err
		}
		return ParseTime(s)
	case TypeDuration:
		s, err := dataString(raw)
		if err != nil {
			return nil, err
		}
		return ParseDuration(s)
	case TypeTimeSeries, TypeTimePattern, TypeArray, TypeMap:
		members, ok := raw.([]member)
		if !ok {
			return nil, fmt.Errorf("%w: %s value must be an object", ErrUnsupportedType, typ)
		}
		return decodeIndexed(members, typ)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedType, typ)
	}
}

func decodeIndexed(members []member, typ string) (*Indexed, error) {
	v := &Indexed{Type: typ}
	if name, ok := field(members, "index_name").(string); ok {
		v.IndexName = name
	}
	data := field(members, "data")

	switch typ {
	case TypeTimeSeries:
		if v.IndexName == "" {
			v.IndexName = DefaultTimeSeriesIndexName
		}
		if err := decodeTimeSeries(v, data, field(members, "index")); err != nil {
			return nil, err
		}
	case TypeTimePattern:
		if v.IndexName == "" {
			v.IndexName = DefaultTimePatternIndexName
		}
		pairs, err := dataPairs(data)
		if err != nil {
			return nil, err
		}
		for _, p := range pairs {
			key, ok := p.key.(string)
			if !ok {
				return nil, fmt.Errorf("time pattern index must be a string")
			}
			v.Indexes = append(v.Indexes, key)
			v.Values = append(v.Values, p.value)
		}
	case TypeArray:
		if v.IndexName == "" {
			v.IndexName = DefaultArrayIndexName
		}
		valueType, _ := field(members, "value_type").(string)
		list, ok := data.([]any)
		if !ok {
			return nil, fmt.Errorf("array data must be a list")
		}
		for i, x := range list {
			value, err := scalarOf(x, valueType)
			if err != nil {
				return nil, fmt.Errorf("array element %d: %w", i, err)
			}
			v.Indexes = append(v.Indexes, int64(i))
			v.Values = append(v.Values, value)
		}
	case TypeMap:
		if v.IndexName == "" {
			v.IndexName = DefaultMapIndexName
		}
		indexType, _ := field(members, "index_type").(string)
		pairs, err := dataPairs(data)
		if err != nil {
			return nil, err
		}
		for _, p := range pairs {
			index, err := scalarOf(p.key, indexType)
			if err != nil {
				return nil, fmt.Errorf("map index: %w", err)
			}
			value, err := nestedOf(p.value)
			if err != nil {
				return nil, fmt.Errorf("map value at %v: %w", index, err)
			}
			v.Indexes = append(v.Indexes, index)
			v.Values = append(v.Values, value)
		}
	}
	return v, nil
}

func decodeTimeSeries(v *Indexed, data, index any) error {
	var options []member
	if m, ok := index.([]member); ok {
		options = m
	}
	v.IgnoreYear, _ = field(options, "ignore_year").(bool)
	v.Repeat, _ = field(options, "repeat").(bool)

	// Фиксированное разрешение: data - список чисел
	if list, ok := data.([]any); ok && (len(list) == 0 || !isList(list[0])) {
		start := time.Date(1, 1, 1, 0, 0, 0, 0, time.UTC)
		if s, ok := field(options, "start").(string); ok {
			t, err := ParseTime(s)
			if err != nil {
				return err
			}
			start = t
		}
		resolution := Duration{Count: 1, Unit: "h"}
		if s, ok := field(options, "resolution").(string); ok {
			d, err := ParseDuration(s)
			if err != nil {
				return err
			}
			resolution = d
		}
		stamp := start
		for _, x := range list {
			v.Indexes = append(v.Indexes, stamp)
			v.Values = append(v.Values, x)
			stamp = resolution.AddTo(stamp)
		}
		return nil
	}

	pairs, err := dataPairs(data)
	if err != nil {
		return err
	}
	for _, p := range pairs {
		s, ok := p.key.(string)
		if !ok {
			return fmt.Errorf("time series stamp must be a string")
		}
		t, err := ParseTime(s)
		if err != nil {
			return err
		}
		v.Indexes = append(v.Indexes, t)
		v.Values = append(v.Values, p.value)
	}
	return nil
}

type pair struct {
	key   any
	value any
}

// dataPairs принимает объект {k: v} или список [[k, v], ...]
func dataPairs(data any) ([]pair, error) {
	switch x := data.(type) {
	case []member:
		pairs := make([]pair, len(x))
		for i, m := range x {
			pairs[i] = pair{key: m.key, value: m.value}
		}
		return pairs, nil
	case []any:
		pairs := make([]pair, len(x))
		for i, item := range x {
			row, ok := item.([]any)
			if !ok || len(row) != 2 {
				return nil, fmt.Errorf("data row %d must be a [index, value] pair", i)
			}
			pairs[i] = pair{key: row[0], value: row[1]}
		}
		return pairs, nil
	case nil:
		return nil, nil
	default:
		return nil, fmt.Errorf("unexpected data of type %T", data)
	}
}

// nestedOf декодирует значение внутри map: скаляр или объект с полем type
func nestedOf(raw any) (any, error) {
	members, ok := raw.([]member)
	if !ok {
		return raw, nil
	}
	typ, _ := field(members, "type").(string)
	if typ == "" {
		return nil, fmt.Errorf("nested value has no type")
	}
	return fromRaw(members, typ)
}

func scalarOf(raw any, typ string) (any, error) {
	switch typ {
	case "", TypeFloat, TypeString:
		return raw, nil
	case TypeDateTime:
		s, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("date_time must be a string")
		}
		return ParseTime(s)
	case TypeDuration:
		s, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("duration must be a string")
		}
		return ParseDuration(s)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedType, typ)
}

func dataString(raw any) (string, error) {
	switch x := raw.(type) {
	case string:
		return x, nil
	case []member:
		if s, ok := field(x, "data").(string); ok {
			return s, nil
		}
	}
	return "", fmt.Errorf("expected a string or an object with string data")
}

func field(members []member, key string) any {
	for _, m := range members {
		if m.key == key {
			return m.value
		}
	}
	return nil
}

func isList(x any) bool {
	_, ok := x.([]any)
	return ok
}

// decodeOrdered декодирует JSON, сохраняя порядок полей объектов
func decodeOrdered(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	value, err := decodeValue(dec)
	if err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("trailing data after value")
	}
	return value, nil
}

func decodeValue(dec *json.Decoder) (any, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			var members []member
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return nil, err
				}
				key, _ := keyTok.(string)
				value, err := decodeValue(dec)
				if err != nil {
					return nil, err
				}
				members = append(members, member{key: key, value: value})
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			if members == nil {
				members = []member{}
			}
			return members, nil
		case '[':
			list := []any{}
			for dec.More() {
				value, err := decodeValue(dec)
				if err != nil {
					return nil, err
				}
				list = append(list, value)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return list, nil
		}
		return nil, fmt.Errorf("unexpected delimiter %v", t)
	case json.Number:
		return strconv.ParseFloat(strings.TrimSpace(t.String()), 64)
	default:
		return t, nil
	}
}
