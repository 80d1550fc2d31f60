package judge

import (
	"context"
	"sync"
	"time"

	"github.com/elmanelman/sql-judge/config"
	"github.com/elmanelman/sql-judge/templates"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// Judges polls the main database for pending submissions, reviews them with
// a fixed number of reviewers and writes the verdicts back.
type Judges struct {
	logger *zap.Logger

	mainDB    *sqlx.DB
	evaluator Evaluator

	waitGroup *sync.WaitGroup
	workers   sync.WaitGroup
	stop      chan struct{}
	stopOnce  sync.Once

	fetchTicker *time.Ticker
	jobs        chan Job
	verdicts    chan Verdict
}

func NewJudges(wg *sync.WaitGroup, logger *zap.Logger, mainDB *sqlx.DB, evaluator Evaluator) *Judges {
	return &Judges{
		logger:    logger,
		mainDB:    mainDB,
		evaluator: evaluator,
		waitGroup: wg,
		stop:      make(chan struct{}),
		jobs:      make(chan Job),
		verdicts:  make(chan Verdict),
	}
}

// Start launches the fetcher, the reviewers and the submission updater.
// Reviews run with ctx.
func (j *Judges) Start(ctx context.Context, cfg config.JudgeConfig) {
	j.fetchTicker = time.NewTicker(cfg.Period())

	j.workers.Add(1 + cfg.ReviewerCount)
	go j.StartFetching(ctx, cfg.FetchLimit)
	for id := 1; id <= cfg.ReviewerCount; id++ {
		go j.Reviewer(ctx, id)
	}

	j.waitGroup.Add(2)
	go j.SubmissionUpdater()
	go func() {
		defer j.waitGroup.Done()
		j.workers.Wait()
		close(j.verdicts)
	}()

	j.logger.Info(
		"judges started",
		zap.Duration("fetch_period", cfg.Period()),
		zap.Int("reviewer_count", cfg.ReviewerCount),
	)
}

// Stop stops fetching. Reviews in progress finish and their verdicts are
// written before the wait group is released.
func (j *Judges) Stop() {
	j.stopOnce.Do(func() {
		if j.fetchTicker != nil {
			j.fetchTicker.Stop()
		}
		close(j.stop)
	})
}

func (j *Judges) UpdateSubmissionReviewInfo(ctx context.Context, id int64, statusID int, reviewerMessage string) error {
	query := templates.UpdateSubmissionReviewInfo
	_, err := j.mainDB.ExecContext(ctx, query, statusID, reviewerMessage, id)
	return err
}

func (j *Judges) FetchJobs(ctx context.Context, limit int) ([]Job, error) {
	rows, err := j.mainDB.QueryxContext(ctx, templates.FetchPendingJobs, PendingReview, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []Job
	for rows.Next() {
		var job Job
		if err := rows.StructScan(&job); err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// dispatch marks each job as on review and hands it to a reviewer. A job
// that cannot be handed over before stopping goes back to pending.
func (j *Judges) dispatch(ctx context.Context, jobs []Job) {
	for _, job := range jobs {
		if err := j.UpdateSubmissionReviewInfo(ctx, job.SubmissionID, OnReview, ""); err != nil {
			j.logger.Error(
				"failed to mark submission as on review",
				zap.Int64("submission_id", job.SubmissionID),
				zap.Error(err),
			)
			continue
		}
		select {
		case j.jobs <- job:
		case <-j.stop:
			j.requeue(job)
			return
		}
	}
}

func (j *Judges) requeue(job Job) {
	if err := j.UpdateSubmissionReviewInfo(context.Background(), job.SubmissionID, PendingReview, ""); err != nil {
		j.logger.Error(
			"failed to requeue submission",
			zap.Int64("submission_id", job.SubmissionID),
			zap.Error(err),
		)
	}
}

func (j *Judges) StartFetching(ctx context.Context, limit int) {
	defer func() {
		j.logger.Info("stopped fetching jobs")
		j.workers.Done()
	}()
	for {
		select {
		case <-j.stop:
			return
		case <-j.fetchTicker.C:
			jobs, err := j.FetchJobs(ctx, limit)
			if err != nil {
				j.logger.Error("failed fetching jobs", zap.Error(err))
				continue
			}
			j.dispatch(ctx, jobs)
		}
	}
}

func (j *Judges) Reviewer(ctx context.Context, reviewerID int) {
	defer func() {
		j.logger.Info(
			"stopped reviewer",
			zap.Int("reviewer_id", reviewerID),
		)
		j.workers.Done()
	}()
	for {
		select {
		case <-j.stop:
			return
		case job := <-j.jobs:
			j.verdicts <- j.review(ctx, reviewerID, job)
		}
	}
}

func (j *Judges) review(ctx context.Context, reviewerID int, job Job) Verdict {
	logger := j.logger.With(
		zap.Int("reviewer_id", reviewerID),
		zap.Int64("submission_id", job.SubmissionID),
		zap.String("kind", job.Kind),
	)
	start := time.Now()

	problem := job.Problem()
	restrictions, err := j.FetchRestrictions(ctx, job.SubmissionID)
	if err != nil {
		logger.Error("failed to fetch task restrictions", zap.Error(err))
		return Verdict{SubmissionID: job.SubmissionID, SubmissionStatusID: PendingReview}
	}
	problem.Restrictions = restrictions

	res := Review(ctx, j.evaluator, problem, job.expected(), job.Solution)
	if res.Status == InternalError {
		logger.Error("review failed", zap.Error(res.Err))
	}
	if res.Expected != nil {
		if _, err := j.mainDB.ExecContext(ctx, templates.UpdateExpectedResult, string(res.Expected), job.ProblemID); err != nil {
			logger.Warn("failed to store expected result", zap.Int64("problem_id", job.ProblemID), zap.Error(err))
		}
	}

	observeReview(res.Status, time.Since(start))
	logger.Info(
		"submission reviewed",
		zap.String("status", StatusName(res.Status)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return Verdict{
		SubmissionID:       job.SubmissionID,
		SubmissionStatusID: res.Status,
		ReviewerMessage:    res.Message,
	}
}

// SubmissionUpdater writes verdicts until every reviewer has stopped.
func (j *Judges) SubmissionUpdater() {
	defer func() {
		j.logger.Info("stopped submission updater")
		j.waitGroup.Done()
	}()
	ctx := context.Background()
	for v := range j.verdicts {
		if err := j.UpdateSubmissionReviewInfo(
			ctx,
			v.SubmissionID,
			v.SubmissionStatusID,
			v.ReviewerMessage,
		); err != nil {
			j.logger.Error(
				"submission update failed",
				zap.Int64("submission_id", v.SubmissionID),
				zap.Error(err),
			)
		}
	}
}
