// Package feedback compares expected and obtained results and explains the
// first difference it finds.
package feedback

import (
	"fmt"
	"html/template"

	"github.com/elmanelman/sql-judge/sandbox"
)

type Verdict int

const (
	Accepted Verdict = iota + 1
	WrongAnswer
)

func (v Verdict) String() string {
	switch v {
	case Accepted:
		return "accepted"
	case WrongAnswer:
		return "wrong_answer"
	default:
		return "unknown"
	}
}

func verdictOf(feedback string, err error) (Verdict, string, error) {
	if err != nil {
		return 0, "", err
	}
	if feedback == "" {
		return Accepted, "", nil
	}
	return WrongAnswer, feedback, nil
}

// CompareResults compares two query results. Headers are checked first;
// rows are then compared as multisets, and finally by position when
// orderMatters.
func CompareResults(expected, obtained *sandbox.ShapedTable, orderMatters bool) (Verdict, string, error) {
	expected, err := Canonicalize(expected)
	if err != nil {
		return 0, "", fmt.Errorf("expected result: %w", err)
	}
	obtained, err = Canonicalize(obtained)
	if err != nil {
		return 0, "", fmt.Errorf("obtained result: %w", err)
	}

	if !sameHeader(expected.Header, obtained.Header) {
		return verdictOf(Render("headers", struct{ Expected, Obtained string }{
			Expected: HeaderString(expected.Header),
			Obtained: HeaderString(obtained.Header),
		}))
	}
	return verdictOf(compareRows(expected, obtained, orderMatters))
}

func sameHeader(a, b []sandbox.Column) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Name != b[i].Name || PrettyType(a[i].Type) != PrettyType(b[i].Type) {
			return false
		}
	}
	return true
}

func compareRows(expected, obtained *sandbox.ShapedTable, orderMatters bool) (string, error) {
	expectedKeys, err := rowKeys(expected.Rows)
	if err != nil {
		return "", err
	}
	obtainedKeys, err := rowKeys(obtained.Rows)
	if err != nil {
		return "", err
	}
	want := NewMultiset(expectedKeys...)
	got := NewMultiset(obtainedKeys...)

	if extra := got.Difference(want); extra.Len() > 0 {
		marked := make(map[int]bool, extra.Len())
		for i, k := range obtainedKeys {
			if extra.Len() == 0 {
				break
			}
			if extra.Remove(k, 1) == 1 {
				marked[i] = true
			}
		}
		return Render("wrong_rows", tableView{Header: expected.Header, Rows: obtained.Rows, Marked: marked})
	}

	if missing := want.Difference(got); missing.Len() > 0 {
		rowOf := make(map[string][]interface{}, len(expectedKeys))
		for i, k := range expectedKeys {
			rowOf[k] = expected.Rows[i]
		}
		rows := make([][]interface{}, 0, missing.Len())
		for _, k := range missing.Keys() {
			rows = append(rows, rowOf[k])
		}
		return Render("missing_rows", struct{ Obtained, Missing tableView }{
			Obtained: tableView{Header: obtained.Header, Rows: obtained.Rows},
			Missing:  markAll(expected.Header, rows),
		})
	}

	if orderMatters && !equalStrings(expectedKeys, obtainedKeys) {
		return Render("order", struct{ Expected, Obtained tableView }{
			Expected: tableView{Header: expected.Header, Rows: expected.Rows},
			Obtained: tableView{Header: obtained.Header, Rows: obtained.Rows},
		})
	}
	return "", nil
}

// CompareDatabases compares two database snapshots table by table and
// reports only the first incorrect table.
func CompareDatabases(expected, obtained sandbox.Database) (Verdict, string, error) {
	expectedNames, obtainedNames := expected.TableNames(), obtained.TableNames()
	if !equalStrings(expectedNames, obtainedNames) {
		return verdictOf(Render("tables", struct{ Expected, Obtained []string }{
			Expected: expectedNames,
			Obtained: obtainedNames,
		}))
	}

	for _, name := range expectedNames {
		verdict, fb, err := CompareResults(expected[name], obtained[name], false)
		if err != nil {
			return 0, "", fmt.Errorf("table %s: %w", name, err)
		}
		if verdict != Accepted {
			fb, err = Render("wrong_table", struct {
				Name     string
				Feedback template.HTML
			}{name, template.HTML(fb)})
			if err != nil {
				return 0, "", err
			}
			return verdict, fb, nil
		}
	}
	return Accepted, "", nil
}

// CompareFunctionResults checks the calls of expected in order and reports
// the first one whose obtained value differs.
func CompareFunctionResults(expected, obtained *sandbox.FunctionResults) (Verdict, string, error) {
	for _, call := range expected.Calls() {
		raw, _ := expected.Get(call)
		want, err := canonicalValue(raw)
		if err != nil {
			return 0, "", fmt.Errorf("expected value of %s: %w", call, err)
		}
		raw, ok := obtained.Get(call)
		got, err := canonicalValue(raw)
		if err != nil {
			return 0, "", fmt.Errorf("obtained value of %s: %w", call, err)
		}

		wantKey, err := key(want)
		if err != nil {
			return 0, "", err
		}
		gotKey, err := key(got)
		if err != nil {
			return 0, "", err
		}
		if ok && wantKey == gotKey {
			continue
		}
		return verdictOf(Render("function", struct {
			Call               string
			Expected, Obtained interface{}
			Missing            bool
		}{call, want, got, !ok}))
	}
	return Accepted, "", nil
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
