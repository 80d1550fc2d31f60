package feedback

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"regexp"
	"strings"

	"github.com/elmanelman/sql-judge/sandbox"
)

//go:embed templates/*.html
var templateFiles embed.FS

var templates = template.Must(
	template.New("feedback").Funcs(template.FuncMap{
		"cell": cell,
		"join": func(names []string) string { return strings.Join(names, ", ") },
	}).ParseFS(templateFiles, "templates/*.html"),
)

// Render executes the named feedback template with params.
func Render(name string, params interface{}) (string, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, params); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return buf.String(), nil
}

func cell(v interface{}) string {
	if v == nil {
		return "NULL"
	}
	return fmt.Sprint(v)
}

// tableView is a table with some of its rows highlighted.
type tableView struct {
	Header []sandbox.Column
	Rows   [][]interface{}
	Marked map[int]bool
}

func markAll(header []sandbox.Column, rows [][]interface{}) tableView {
	marked := make(map[int]bool, len(rows))
	for i := range rows {
		marked[i] = true
	}
	return tableView{Header: header, Rows: rows, Marked: marked}
}

var driverType = regexp.MustCompile(`^<class '(?:[\w.]*\.)?(\w+)'>$`)

// PrettyType drops the class and package qualifiers some drivers add to
// type names.
func PrettyType(t string) string {
	if m := driverType.FindStringSubmatch(t); m != nil {
		return m[1]
	}
	if i := strings.LastIndexByte(t, '.'); i >= 0 {
		return t[i+1:]
	}
	return t
}

// HeaderString formats a header as "(NAME: TYPE, ...)".
func HeaderString(header []sandbox.Column) string {
	columns := make([]string, len(header))
	for i, c := range header {
		columns[i] = c.Name + ": " + PrettyType(c.Type)
	}
	return "(" + strings.Join(columns, ", ") + ")"
}

// CompilationFeedback lists the compiler diagnostics of a stored program.
func CompilationFeedback(diagnostics *sandbox.ShapedTable) (string, error) {
	if diagnostics == nil {
		return Render("compilation", tableView{})
	}
	return Render("compilation", tableView{Header: diagnostics.Header, Rows: diagnostics.Rows})
}
