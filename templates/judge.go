package templates

// Main database queries used by the judge workers.
const (
	FetchPendingJobs = `
SELECT s.SUBMISSION_ID,
       p.PROBLEM_ID,
       p.KIND,
       p.CREATION_SQL,
       p.INSERTION_SQL,
       p.SOLUTION AS REFERENCE_SOLUTION,
       p.TESTS,
       p.CHECK_ORDER,
       p.MIN_STMT,
       p.MAX_STMT,
       p.EXPECTED_RESULT,
       s.SOLUTION
  FROM SUBMISSIONS s
  JOIN PROBLEMS p ON p.PROBLEM_ID = s.PROBLEM_ID
 WHERE s.SUBMISSION_STATUS_ID = :1
 ORDER BY s.SUBMISSION_ID
 FETCH FIRST :2 ROWS ONLY`

	FetchTaskRestrictions = `
SELECT r.RESTRICTION
  FROM RESTRICTIONS r
  JOIN SUBMISSIONS s ON s.PROBLEM_ID = r.PROBLEM_ID
 WHERE s.SUBMISSION_ID = :1`

	UpdateSubmissionReviewInfo = `
UPDATE SUBMISSIONS
   SET SUBMISSION_STATUS_ID = :1,
       REVIEWER_MESSAGE = :2
 WHERE SUBMISSION_ID = :3`

	// UpdateExpectedResult caches the outcome of the reference solution.
	UpdateExpectedResult = `
UPDATE PROBLEMS
   SET EXPECTED_RESULT = :1
 WHERE PROBLEM_ID = :2
   AND EXPECTED_RESULT IS NULL`
)
