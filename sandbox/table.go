package sandbox

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// Column is one entry of a result header.
type Column struct {
	Name string
	Type string
}

// MarshalJSON encodes the column as a [name, type] pair.
func (c Column) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]string{c.Name, c.Type})
}

func (c *Column) UnmarshalJSON(data []byte) error {
	var pair [2]string
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("column: %w", err)
	}
	c.Name, c.Type = pair[0], pair[1]
	return nil
}

// ShapedTable is the result set of one query.
type ShapedTable struct {
	Header []Column         `json:"header"`
	Rows   [][]interface{} `json:"rows"`
}

// Database maps table names to their full contents.
type Database map[string]*ShapedTable

// TableNames returns the table names in sorted order.
func (db Database) TableNames() []string {
	names := make([]string, 0, len(db))
	for name := range db {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// FunctionResults maps test calls to their values, iterating in the order
// the calls were first recorded. Recording a call again replaces its value.
type FunctionResults struct {
	calls  []string
	values map[string]interface{}
}

func NewFunctionResults() *FunctionResults {
	return &FunctionResults{values: map[string]interface{}{}}
}

func (r *FunctionResults) Set(call string, value interface{}) {
	if r.values == nil {
		r.values = map[string]interface{}{}
	}
	if _, ok := r.values[call]; !ok {
		r.calls = append(r.calls, call)
	}
	r.values[call] = value
}

func (r *FunctionResults) Get(call string) (interface{}, bool) {
	if r == nil {
		return nil, false
	}
	v, ok := r.values[call]
	return v, ok
}

// Calls returns the recorded calls in order.
func (r *FunctionResults) Calls() []string {
	if r == nil {
		return nil
	}
	return append([]string(nil), r.calls...)
}

func (r *FunctionResults) Len() int {
	if r == nil {
		return 0
	}
	return len(r.calls)
}

// MarshalJSON encodes the results as a JSON object keeping call order.
func (r *FunctionResults) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, call := range r.Calls() {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(call)
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(r.values[call])
		if err != nil {
			return nil, fmt.Errorf("call %s: %w", call, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (r *FunctionResults) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("function results: expected object, got %v", tok)
	}

	*r = FunctionResults{values: map[string]interface{}{}}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		call, ok := tok.(string)
		if !ok {
			return fmt.Errorf("function results: unexpected key %v", tok)
		}
		var value interface{}
		if err := dec.Decode(&value); err != nil {
			return fmt.Errorf("function results: call %s: %w", call, err)
		}
		r.Set(call, value)
	}
	_, err = dec.Token()
	return err
}

// SelectOutcome is the result of evaluating a SELECT statement.
type SelectOutcome struct {
	Result *ShapedTable `json:"result"`
	DB     Database     `json:"db,omitempty"`
}

// ChangeOutcome holds the database before and after the submitted code ran.
type ChangeOutcome struct {
	Pre  Database `json:"pre"`
	Post Database `json:"post"`
}

// FunctionOutcome is the initial database plus the value of every test call.
type FunctionOutcome struct {
	DB      Database         `json:"db"`
	Results *FunctionResults `json:"results"`
}
