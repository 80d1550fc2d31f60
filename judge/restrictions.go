package judge

import (
	"context"
	"strings"

	"github.com/elmanelman/sql-judge/templates"
)

func (j *Judges) FetchRestrictions(ctx context.Context, submissionID int64) ([]string, error) {
	query := templates.FetchTaskRestrictions
	var restrictions []string
	err := j.mainDB.SelectContext(ctx, &restrictions, query, submissionID)
	if err != nil {
		return nil, err
	}
	return restrictions, nil
}

// CheckRestrictions returns the first forbidden keyword found in code,
// ignoring case.
func CheckRestrictions(code string, restrictions []string) (string, bool) {
	normalized := normalizeCode(code)
	for _, r := range restrictions {
		keyword := strings.ToUpper(strings.TrimSpace(r))
		if keyword != "" && strings.Contains(normalized, keyword) {
			return r, true
		}
	}
	return "", false
}
