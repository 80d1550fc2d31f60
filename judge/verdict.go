package judge

// Submission statuses as stored in SUBMISSIONS.SUBMISSION_STATUS_ID.
const (
	Unknown int = iota
	PendingReview
	OnReview
	Accepted
	WrongAnswer
	RuntimeError
	CompilationError
	TimeLimitExceeded
	WrongNumberOfStatements
	InternalError
	RestrictionViolated
)

var statusNames = map[int]string{
	Unknown:                 "unknown",
	PendingReview:           "pending_review",
	OnReview:                "on_review",
	Accepted:                "accepted",
	WrongAnswer:             "wrong_answer",
	RuntimeError:            "runtime_error",
	CompilationError:        "compilation_error",
	TimeLimitExceeded:       "time_limit_exceeded",
	WrongNumberOfStatements: "wrong_number_of_statements",
	InternalError:           "internal_error",
	RestrictionViolated:     "restriction_violated",
}

func StatusName(status int) string {
	if name, ok := statusNames[status]; ok {
		return name
	}
	return statusNames[Unknown]
}

type Verdict struct {
	SubmissionID       int64  `db:"SUBMISSION_ID"`
	SubmissionStatusID int    `db:"SUBMISSION_STATUS_ID"`
	ReviewerMessage    string `db:"REVIEWER_MESSAGE"`
}
