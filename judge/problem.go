package judge

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/elmanelman/sql-judge/sandbox"
	"gopkg.in/yaml.v3"
)

type Kind string

const (
	KindSelect    Kind = "select"
	KindDML       Kind = "dml"
	KindFunction  Kind = "function"
	KindProcedure Kind = "procedure"
	KindTrigger   Kind = "trigger"
)

func (k Kind) Valid() bool {
	switch k {
	case KindSelect, KindDML, KindFunction, KindProcedure, KindTrigger:
		return true
	default:
		return false
	}
}

// Problem is everything needed to run and check a submission.
//
// Tests depends on the kind: one function call per line for functions, the
// call statement for procedures and the statements that fire the trigger
// for triggers.
type Problem struct {
	Kind         Kind     `yaml:"kind" json:"kind"`
	CreationSQL  string   `yaml:"creation_sql" json:"creation_sql"`
	InsertionSQL string   `yaml:"insertion_sql" json:"insertion_sql"`
	Solution     string   `yaml:"solution" json:"solution"`
	Tests        string   `yaml:"tests" json:"tests"`
	CheckOrder   bool     `yaml:"check_order" json:"check_order"`
	MinStmt      int      `yaml:"min_stmt" json:"min_stmt"`
	MaxStmt      int      `yaml:"max_stmt" json:"max_stmt"`
	Restrictions []string `yaml:"restrictions" json:"restrictions"`
}

func LoadProblem(path string) (Problem, error) {
	var p Problem
	data, err := os.ReadFile(path)
	if err != nil {
		return p, err
	}
	if err := yaml.Unmarshal(data, &p); err != nil {
		return p, fmt.Errorf("problem %s: %w", path, err)
	}
	if !p.Kind.Valid() {
		return p, fmt.Errorf("problem %s: unknown kind %q", path, p.Kind)
	}
	return p, nil
}

// Outcome is what running a solution produced. Exactly one field is set,
// depending on the problem kind.
type Outcome struct {
	Select   *sandbox.SelectOutcome   `json:"select,omitempty"`
	Change   *sandbox.ChangeOutcome   `json:"change,omitempty"`
	Function *sandbox.FunctionOutcome `json:"function,omitempty"`
}

// DecodeOutcome decodes a stored outcome, keeping numbers as json.Number.
func DecodeOutcome(data []byte) (Outcome, error) {
	var o Outcome
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&o); err != nil {
		return o, fmt.Errorf("decode outcome: %w", err)
	}
	return o, nil
}
