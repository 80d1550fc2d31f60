package judge

import "database/sql"

// Job is a pending submission joined with its problem.
type Job struct {
	SubmissionID      int64          `db:"SUBMISSION_ID"`
	ProblemID         int64          `db:"PROBLEM_ID"`
	Kind              string         `db:"KIND"`
	CreationSQL       sql.NullString `db:"CREATION_SQL"`
	InsertionSQL      sql.NullString `db:"INSERTION_SQL"`
	ReferenceSolution string         `db:"REFERENCE_SOLUTION"`
	Tests             sql.NullString `db:"TESTS"`
	CheckOrder        string         `db:"CHECK_ORDER"`
	MinStmt           sql.NullInt64  `db:"MIN_STMT"`
	MaxStmt           sql.NullInt64  `db:"MAX_STMT"`
	ExpectedResult    sql.NullString `db:"EXPECTED_RESULT"`
	Solution          string         `db:"SOLUTION"`
}

// Problem builds the problem of the job. Restrictions are fetched separately.
func (j *Job) Problem() Problem {
	return Problem{
		Kind:         Kind(j.Kind),
		CreationSQL:  j.CreationSQL.String,
		InsertionSQL: j.InsertionSQL.String,
		Solution:     j.ReferenceSolution,
		Tests:        j.Tests.String,
		CheckOrder:   j.CheckOrder == "Y",
		MinStmt:      int(j.MinStmt.Int64),
		MaxStmt:      int(j.MaxStmt.Int64),
	}
}

func (j *Job) expected() []byte {
	if !j.ExpectedResult.Valid {
		return nil
	}
	return []byte(j.ExpectedResult.String)
}
