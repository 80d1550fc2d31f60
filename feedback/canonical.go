package feedback

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/elmanelman/sql-judge/sandbox"
)

const timeLayout = "2006-01-02T15:04:05"

// encodeTime formats t the way stored results encode dates: seconds
// precision, plus milliseconds when there is a sub-second part.
func encodeTime(t time.Time) string {
	s := t.Format(timeLayout)
	if us := t.Nanosecond() / int(time.Microsecond); us != 0 {
		s += fmt.Sprintf(".%03d", us/1000)
	}
	return s
}

func prepareValue(v interface{}) interface{} {
	switch x := v.(type) {
	case time.Time:
		return encodeTime(x)
	case *time.Time:
		if x == nil {
			return nil
		}
		return encodeTime(*x)
	default:
		return v
	}
}

func decode(data []byte, v interface{}) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return dec.Decode(v)
}

// DecodeTable decodes a stored result. Numbers are kept as json.Number.
func DecodeTable(data []byte) (*sandbox.ShapedTable, error) {
	var t sandbox.ShapedTable
	if err := decode(data, &t); err != nil {
		return nil, fmt.Errorf("decode table: %w", err)
	}
	if t.Rows == nil {
		t.Rows = [][]interface{}{}
	}
	return &t, nil
}

// Canonicalize passes t through the same JSON encoding used for stored
// results, so values read from the database compare equal to stored ones.
// A nil table is treated as an empty one.
func Canonicalize(t *sandbox.ShapedTable) (*sandbox.ShapedTable, error) {
	if t == nil {
		return &sandbox.ShapedTable{Rows: [][]interface{}{}}, nil
	}
	prepared := sandbox.ShapedTable{
		Header: t.Header,
		Rows:   make([][]interface{}, len(t.Rows)),
	}
	for i, row := range t.Rows {
		r := make([]interface{}, len(row))
		for j, v := range row {
			r[j] = prepareValue(v)
		}
		prepared.Rows[i] = r
	}
	data, err := json.Marshal(prepared)
	if err != nil {
		return nil, fmt.Errorf("encode table: %w", err)
	}
	return DecodeTable(data)
}

// CanonicalizeDatabase canonicalizes every table of db.
func CanonicalizeDatabase(db sandbox.Database) (sandbox.Database, error) {
	out := make(sandbox.Database, len(db))
	for name, t := range db {
		c, err := Canonicalize(t)
		if err != nil {
			return nil, fmt.Errorf("table %s: %w", name, err)
		}
		out[name] = c
	}
	return out, nil
}

func canonicalValue(v interface{}) (interface{}, error) {
	data, err := json.Marshal(prepareValue(v))
	if err != nil {
		return nil, err
	}
	var out interface{}
	if err := decode(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// key identifies a canonical value: equal values have equal keys.
func key(v interface{}) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func rowKeys(rows [][]interface{}) ([]string, error) {
	keys := make([]string, len(rows))
	for i, row := range rows {
		k, err := key(row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		keys[i] = k
	}
	return keys, nil
}
