package values

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

const stampLayout = "2006-01-02T15:04:05"

// Marshal кодирует значение в пару (blob, type) базы данных
func Marshal(v any) ([]byte, string, error) {
	switch x := v.(type) {
	case nil:
		return nil, "", nil
	case float64, string, bool:
		blob, err := json.Marshal(x)
		return blob, TypeName(x), err
	case int:
		blob, err := json.Marshal(float64(x))
		return blob, TypeFloat, err
	case time.Time:
		blob, err := json.Marshal(map[string]string{"data": x.Format(stampLayout)})
		return blob, TypeDateTime, err
	case Duration:
		blob, err := json.Marshal(map[string]string{"data": x.String()})
		return blob, TypeDuration, err
	case *Indexed:
		var buf bytes.Buffer
		if err := writeIndexed(&buf, x, false); err != nil {
			return nil, "", err
		}
		return buf.Bytes(), x.Type, nil
	default:
		return nil, "", fmt.Errorf("%w: %T", ErrUnsupportedType, v)
	}
}

func writeIndexed(buf *bytes.Buffer, v *Indexed, nested bool) error {
	buf.WriteByte('{')
	if nested {
		fmt.Fprintf(buf, `"type":%q,`, v.Type)
	}
	switch v.Type {
	case TypeArray:
		buf.WriteString(`"value_type":"float","data":[`)
		for i, x := range v.Values {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeScalar(buf, x); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case TypeMap:
		fmt.Fprintf(buf, `"index_type":%q,"data":[`, indexTypeOf(v))
		for i := range v.Indexes {
			if i > 0 {
				buf.WriteByte(',')
			}
			buf.WriteByte('[')
			if err := writeScalar(buf, v.Indexes[i]); err != nil {
				return err
			}
			buf.WriteByte(',')
			if nestedValue, ok := v.Values[i].(*Indexed); ok {
				if err := writeIndexed(buf, nestedValue, true); err != nil {
					return err
				}
			} else if err := writeNestedScalar(buf, v.Values[i]); err != nil {
				return err
			}
			buf.WriteByte(']')
		}
		buf.WriteByte(']')
	case TypeTimeSeries, TypeTimePattern:
		buf.WriteString(`"data":{`)
		for i := range v.Indexes {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeScalar(buf, keyString(v.Indexes[i])); err != nil {
				return err
			}
			buf.WriteByte(':')
			if err := writeScalar(buf, v.Values[i]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
		if v.Type == TypeTimeSeries {
			fmt.Fprintf(buf, `,"index":{"ignore_year":%t,"repeat":%t}`, v.IgnoreYear, v.Repeat)
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedType, v.Type)
	}
	fmt.Fprintf(buf, `,"index_name":%q}`, v.IndexName)
	return nil
}

func writeScalar(buf *bytes.Buffer, x any) error {
	switch t := x.(type) {
	case time.Time:
		x = t.Format(stampLayout)
	case Duration:
		x = t.String()
	case int64:
		x = float64(t)
	}
	blob, err := json.Marshal(x)
	if err != nil {
		return err
	}
	buf.Write(blob)
	return nil
}

// writeNestedScalar кодирует date_time и duration внутри map как объекты с типом
func writeNestedScalar(buf *bytes.Buffer, x any) error {
	switch t := x.(type) {
	case time.Time:
		fmt.Fprintf(buf, `{"type":"date_time","data":%q}`, t.Format(stampLayout))
		return nil
	case Duration:
		fmt.Fprintf(buf, `{"type":"duration","data":%q}`, t.String())
		return nil
	}
	return writeScalar(buf, x)
}

func keyString(x any) any {
	if t, ok := x.(time.Time); ok {
		return t.Format(stampLayout)
	}
	return x
}

func indexTypeOf(v *Indexed) string {
	if len(v.Indexes) == 0 {
		return TypeString
	}
	switch v.Indexes[0].(type) {
	case float64, int64:
		return TypeFloat
	case time.Time:
		return TypeDateTime
	case Duration:
		return TypeDuration
	}
	return TypeString
}
