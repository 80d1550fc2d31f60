package feedback

import (
	"encoding/json"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/elmanelman/sql-judge/sandbox"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var idHeader = []sandbox.Column{{Name: "ID", Type: "NUMBER"}}

func ids(values ...int) *sandbox.ShapedTable {
	t := &sandbox.ShapedTable{Header: idHeader, Rows: [][]interface{}{}}
	for _, v := range values {
		t.Rows = append(t.Rows, []interface{}{json.Number(strconv.Itoa(v))})
	}
	return t
}

func TestCompareResultsOrder(t *testing.T) {
	expected, obtained := ids(1, 2), ids(2, 1)

	verdict, fb, err := CompareResults(expected, obtained, false)
	require.NoError(t, err)
	assert.Equal(t, Accepted, verdict)
	assert.Empty(t, fb)

	verdict, fb, err = CompareResults(expected, obtained, true)
	require.NoError(t, err)
	assert.Equal(t, WrongAnswer, verdict)
	assert.Contains(t, fb, "not in the expected order")
}

func TestCompareResultsExtraRows(t *testing.T) {
	verdict, fb, err := CompareResults(ids(1, 2), ids(1, 3, 2), false)
	require.NoError(t, err)
	assert.Equal(t, WrongAnswer, verdict)
	assert.Contains(t, fb, "should not be there")
	assert.Equal(t, 1, strings.Count(fb, "table-danger"))
	assert.Contains(t, fb, `<tr class="table-danger"><td>3</td></tr>`)
}

func TestCompareResultsExtraDuplicates(t *testing.T) {
	// unexpected rows are marked scanning from the top
	verdict, fb, err := CompareResults(ids(1, 2), ids(1, 2, 1, 1), false)
	require.NoError(t, err)
	assert.Equal(t, WrongAnswer, verdict)
	assert.Equal(t, 2, strings.Count(fb, "table-danger"))
	assert.Equal(t, 1, strings.Count(fb, `<tr><td>1</td></tr>`))
}

func TestCompareResultsMissingRows(t *testing.T) {
	verdict, fb, err := CompareResults(ids(1, 2, 2, 3), ids(2, 1), false)
	require.NoError(t, err)
	assert.Equal(t, WrongAnswer, verdict)
	assert.Contains(t, fb, "missing some rows")
	assert.Contains(t, fb, `<tr class="table-danger"><td>2</td></tr>`)
	assert.Contains(t, fb, `<tr class="table-danger"><td>3</td></tr>`)
	assert.Equal(t, 2, strings.Count(fb, "table-danger"))
}

func TestCompareResultsHeaderFirst(t *testing.T) {
	obtained := &sandbox.ShapedTable{
		Header: []sandbox.Column{{Name: "ID", Type: "NUMBER"}, {Name: "NAME", Type: "VARCHAR2"}},
		Rows:   [][]interface{}{{json.Number("7"), "x"}},
	}
	verdict, fb, err := CompareResults(ids(1, 2), obtained, true)
	require.NoError(t, err)
	assert.Equal(t, WrongAnswer, verdict)
	assert.Contains(t, fb, "(ID: NUMBER)")
	assert.Contains(t, fb, "(ID: NUMBER, NAME: VARCHAR2)")
	assert.NotContains(t, fb, "should not be there")
}

func TestCompareResultsPrettyTypes(t *testing.T) {
	expected := &sandbox.ShapedTable{
		Header: []sandbox.Column{{Name: "ID", Type: "<class 'cx_Oracle.NUMBER'>"}},
		Rows:   [][]interface{}{{json.Number("1")}},
	}
	verdict, _, err := CompareResults(expected, ids(1), true)
	require.NoError(t, err)
	assert.Equal(t, Accepted, verdict)
}

func TestCompareResultsPermutations(t *testing.T) {
	expected := ids(1, 1, 2, 3)
	perms := [][]int{{1, 1, 2, 3}, {3, 2, 1, 1}, {1, 2, 1, 3}, {2, 1, 3, 1}}
	for _, p := range perms {
		verdict, _, err := CompareResults(expected, ids(p...), false)
		require.NoError(t, err)
		assert.Equal(t, Accepted, verdict, "%v", p)
	}

	for _, p := range [][]int{{1, 2, 3}, {1, 1, 1, 2, 3}, {1, 2, 2, 3}} {
		verdict, _, err := CompareResults(expected, ids(p...), false)
		require.NoError(t, err)
		assert.Equal(t, WrongAnswer, verdict, "%v", p)
	}
}

func TestCompareResultsDates(t *testing.T) {
	// stored results keep dates as strings
	stored, err := DecodeTable([]byte(`{"header": [["D", "DATE"]], "rows": [["2020-01-31T10:20:30"], ["2020-02-01T00:00:00.250"]]}`))
	require.NoError(t, err)
	obtained := &sandbox.ShapedTable{
		Header: []sandbox.Column{{Name: "D", Type: "DATE"}},
		Rows: [][]interface{}{
			{time.Date(2020, 2, 1, 0, 0, 0, 250*int(time.Millisecond), time.UTC)},
			{time.Date(2020, 1, 31, 10, 20, 30, 0, time.UTC)},
		},
	}
	verdict, fb, err := CompareResults(stored, obtained, false)
	require.NoError(t, err)
	assert.Equal(t, Accepted, verdict, fb)
}

func TestCanonicalizeIdempotent(t *testing.T) {
	table := &sandbox.ShapedTable{
		Header: []sandbox.Column{{Name: "N", Type: "NUMBER"}, {Name: "S", Type: "VARCHAR2"}, {Name: "D", Type: "DATE"}},
		Rows: [][]interface{}{
			{int64(1), "a", time.Date(2021, 3, 4, 5, 6, 7, 0, time.UTC)},
			{json.Number("2.5"), nil, nil},
		},
	}
	once, err := Canonicalize(table)
	require.NoError(t, err)
	twice, err := Canonicalize(once)
	require.NoError(t, err)
	if diff := cmp.Diff(once, twice); diff != "" {
		t.Errorf("canonical form changed (-once +twice):\n%s", diff)
	}
	assert.Equal(t, []interface{}{json.Number("1"), "a", "2021-03-04T05:06:07"}, once.Rows[0])

	empty, err := Canonicalize(nil)
	require.NoError(t, err)
	assert.NotNil(t, empty.Rows)
}

func TestCompareDatabases(t *testing.T) {
	t.Run("table sets differ", func(t *testing.T) {
		verdict, fb, err := CompareDatabases(
			sandbox.Database{"B": ids(1), "A": ids(1)},
			sandbox.Database{"A": ids(5), "C": ids(1)},
		)
		require.NoError(t, err)
		assert.Equal(t, WrongAnswer, verdict)
		assert.Contains(t, fb, "Expected: <code>A, B</code>")
		assert.Contains(t, fb, "Obtained: <code>A, C</code>")
		assert.NotContains(t, fb, "is incorrect")
	})

	t.Run("first wrong table", func(t *testing.T) {
		verdict, fb, err := CompareDatabases(
			sandbox.Database{"A": ids(1), "B": ids(1, 2), "C": ids(3)},
			sandbox.Database{"A": ids(1), "B": ids(2, 1, 9), "C": ids(4)},
		)
		require.NoError(t, err)
		assert.Equal(t, WrongAnswer, verdict)
		assert.True(t, strings.HasPrefix(fb, "<h4>Table <code>B</code> is incorrect:</h4>"), fb)
		assert.NotContains(t, fb, "<code>C</code>")
	})

	t.Run("equal", func(t *testing.T) {
		verdict, fb, err := CompareDatabases(
			sandbox.Database{"A": ids(1, 2)},
			sandbox.Database{"A": ids(2, 1)},
		)
		require.NoError(t, err)
		assert.Equal(t, Accepted, verdict)
		assert.Empty(t, fb)
	})
}

func TestCompareFunctionResults(t *testing.T) {
	expected := sandbox.NewFunctionResults()
	expected.Set("f(1)", json.Number("1"))
	expected.Set("f(2)", json.Number("4"))
	expected.Set("f(3)", json.Number("9"))

	obtained := sandbox.NewFunctionResults()
	obtained.Set("f(1)", int64(1))
	obtained.Set("f(2)", int64(5))
	obtained.Set("f(3)", int64(10))

	verdict, fb, err := CompareFunctionResults(expected, obtained)
	require.NoError(t, err)
	assert.Equal(t, WrongAnswer, verdict)
	assert.Contains(t, fb, "<code>f(2)</code>")
	assert.Contains(t, fb, "Expected: <code>4</code>")
	assert.Contains(t, fb, "Obtained: <code>5</code>")
	assert.NotContains(t, fb, "f(3)")

	obtained.Set("f(2)", int64(4))
	obtained.Set("f(3)", float64(9))
	verdict, fb, err = CompareFunctionResults(expected, obtained)
	require.NoError(t, err)
	assert.Equal(t, Accepted, verdict)
	assert.Empty(t, fb)
}

func TestCompareFunctionResultsMissingCall(t *testing.T) {
	expected := sandbox.NewFunctionResults()
	expected.Set("g('a')", nil)

	verdict, fb, err := CompareFunctionResults(expected, sandbox.NewFunctionResults())
	require.NoError(t, err)
	assert.Equal(t, WrongAnswer, verdict)
	assert.Contains(t, fb, "Expected: <code>NULL</code>")
	assert.Contains(t, fb, "no value")
}
