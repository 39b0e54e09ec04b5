package mysql

import (
	"github.com/go-faster/jx"
)

// encodeStrings renders values as a JSON array for JSON columns. A nil slice
// becomes [].
func encodeStrings(values []string) []byte {
	var e jx.Encoder
	e.ArrStart()
	for _, v := range values {
		e.Str(v)
	}
	e.ArrEnd()
	return e.Bytes()
}

// decodeStrings parses a JSON array of strings. NULL yields an empty slice.
func decodeStrings(data []byte) ([]string, error) {
	out := []string{}
	if len(data) == 0 {
		return out, nil
	}
	d := jx.DecodeBytes(data)
	if d.Next() == jx.Null {
		return out, nil
	}
	err := d.Arr(func(d *jx.Decoder) error {
		s, err := d.Str()
		if err != nil {
			return err
		}
		out = append(out, s)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
