// Package sqlsplit turns submitted SQL text into a list of executable
// statements.
package sqlsplit

import (
	"errors"
	"fmt"
	"strings"

	"github.com/xwb1989/sqlparser"
)

var ErrWrongNumberOfStatements = errors.New("wrong number of statements")

// neutral blanks out bytes the tokenizer reads the MySQL way: '#' starts a
// comment and '\' escapes inside strings, while Oracle treats both as plain
// characters. Every replacement is one byte for one byte so token offsets
// still index the original code.
var neutral = strings.NewReplacer("#", "_", `\`, "_")

// Split returns the statements contained in code with comments removed.
// Plain statements lose their trailing semicolon, PL/SQL units keep it.
func Split(code string) []string {
	s := splitter{code: code}
	s.run()
	return s.statements
}

// SplitBounded is Split plus a check on the number of statements.
// A non-positive bound leaves that side unbounded.
func SplitBounded(code string, min, max int) ([]string, error) {
	statements := Split(code)
	n := len(statements)
	if (min > 0 && n < min) || (max > 0 && n > max) {
		return nil, fmt.Errorf("%w: got %d, allowed [%d, %d]", ErrWrongNumberOfStatements, n, min, max)
	}
	return statements, nil
}

type splitter struct {
	code       string
	statements []string

	current  strings.Builder
	segStart int

	words      []string
	decided    bool
	plsql      bool
	depth      int
	closed     bool
	pendingEnd bool
}

func (s *splitter) run() {
	tkn := sqlparser.NewStringTokenizer(neutral.Replace(s.code))
	for {
		typ, val := tkn.Scan()
		// the tokenizer keeps one character of lookahead
		end := tkn.Position - 1
		if end > len(s.code) {
			end = len(s.code)
		}

		switch {
		case typ == 0:
			s.current.WriteString(s.code[s.segStart:])
			s.emit()
			return
		case typ == sqlparser.COMMENT:
			start := end - len(val)
			if start < s.segStart {
				start = s.segStart
			}
			s.current.WriteString(s.code[s.segStart:start])
			if strings.HasSuffix(string(val), "\n") {
				s.current.WriteByte('\n')
			} else {
				s.current.WriteByte(' ')
			}
			s.segStart = end
		case typ == ';':
			s.resolveEnd("")
			if s.plsql && !(s.closed && s.depth == 0) {
				continue
			}
			if s.plsql {
				s.current.WriteString(s.code[s.segStart:end])
			} else {
				s.current.WriteString(s.code[s.segStart : end-1])
			}
			s.segStart = end
			s.emit()
		case typ == '/' && s.aloneOnLine(end-1):
			s.current.WriteString(s.code[s.segStart : end-1])
			s.segStart = end
			s.emit()
		case typ != sqlparser.STRING && isWord(val):
			s.word(strings.ToUpper(string(val)))
		default:
			s.resolveEnd("")
		}
	}
}

func (s *splitter) word(w string) {
	if s.resolveEnd(w) {
		return
	}
	if !s.decided {
		s.classify(w)
	}
	if !s.plsql {
		return
	}
	switch w {
	case "BEGIN", "CASE":
		s.depth++
	case "END":
		s.pendingEnd = true
	}
}

// resolveEnd settles a pending END once the following token is known. It
// reports whether next was consumed as part of the END.
func (s *splitter) resolveEnd(next string) bool {
	if !s.pendingEnd {
		return false
	}
	s.pendingEnd = false
	switch next {
	case "IF", "LOOP":
		return true
	}
	if s.depth > 0 {
		s.depth--
	}
	if s.depth == 0 {
		s.closed = true
	}
	return next == "CASE"
}

func (s *splitter) classify(w string) {
	s.words = append(s.words, w)
	switch s.words[0] {
	case "DECLARE", "BEGIN":
		s.decided, s.plsql = true, true
		return
	case "CREATE":
	default:
		s.decided = true
		return
	}
	if len(s.words) == 1 {
		return
	}
	switch w {
	case "OR", "REPLACE", "EDITIONABLE", "NONEDITIONABLE":
		return
	case "FUNCTION", "PROCEDURE", "TRIGGER":
		s.decided, s.plsql = true, true
	case "PACKAGE":
		// the package itself is a block closed by its final END
		s.decided, s.plsql, s.depth = true, true, 1
	case "TYPE":
		// only TYPE BODY holds PL/SQL, decided on the next word
	case "BODY":
		if s.words[len(s.words)-2] == "TYPE" {
			s.decided, s.plsql, s.depth = true, true, 1
			return
		}
		s.decided = true
	default:
		s.decided = true
	}
}

func (s *splitter) emit() {
	text := strings.TrimSpace(s.current.String())
	if !s.plsql {
		text = strings.TrimRight(text, "\n\t\r ;")
	}
	if text != "" {
		s.statements = append(s.statements, text)
	}
	s.current.Reset()
	s.words = nil
	s.decided, s.plsql, s.closed, s.pendingEnd = false, false, false, false
	s.depth = 0
}

// aloneOnLine reports whether the byte at pos is the only non-blank
// character of its line.
func (s *splitter) aloneOnLine(pos int) bool {
	for i := pos - 1; i >= 0 && s.code[i] != '\n'; i-- {
		if !isBlank(s.code[i]) {
			return false
		}
	}
	for i := pos + 1; i < len(s.code) && s.code[i] != '\n'; i++ {
		if !isBlank(s.code[i]) {
			return false
		}
	}
	return true
}

func isBlank(c byte) bool {
	return c == ' ' || c == '\t' || c == '\r'
}

func isWord(val []byte) bool {
	if len(val) == 0 {
		return false
	}
	c := val[0]
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
