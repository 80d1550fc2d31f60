package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/elmanelman/sql-judge/judge"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	expectedPath string
	showExpected bool
)

var checkCmd = &cobra.Command{
	Use:   "check <problem.yaml> <submission.sql>",
	Short: "Review one submission against a problem file",
	Long: `Run a submission and the problem's reference solution in sandbox users
and print the verdict with its feedback. Exits with a non-zero status unless
the submission is accepted.

An outcome printed earlier with --show-expected can be passed back with
--expected to skip running the reference solution.`,
	Args: cobra.ExactArgs(2),
	RunE: runCheck,
}

func init() {
	checkCmd.Flags().StringVar(&expectedPath, "expected", "", "file with the stored outcome of the reference solution")
	checkCmd.Flags().BoolVar(&showExpected, "show-expected", false, "print the outcome of the reference solution when it was run")
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	problem, err := judge.LoadProblem(args[0])
	if err != nil {
		return err
	}
	code, err := os.ReadFile(args[1])
	if err != nil {
		return fmt.Errorf("failed to read submission: %w", err)
	}
	var expected []byte
	if expectedPath != "" {
		if expected, err = os.ReadFile(expectedPath); err != nil {
			return fmt.Errorf("failed to read expected outcome: %w", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	executor, pool, err := newExecutor(ctx, cfg.Sandbox, logger)
	if err != nil {
		return err
	}
	defer pool.Close()

	var res judge.Result
	if expected != nil {
		res = judge.Review(ctx, executor, problem, expected, string(code))
	} else if res, err = reviewConcurrently(ctx, executor, problem, string(code)); err != nil {
		return err
	}
	if res.Err != nil {
		logger.Debug("review error", zap.Error(res.Err))
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, judge.StatusName(res.Status))
	if res.Message != "" {
		fmt.Fprintln(out, res.Message)
	}
	if showExpected && res.Expected != nil {
		fmt.Fprintln(out, string(res.Expected))
	}

	switch res.Status {
	case judge.Accepted:
		return nil
	case judge.InternalError:
		return fmt.Errorf("review failed: %w", res.Err)
	default:
		return fmt.Errorf("submission not accepted: %s", judge.StatusName(res.Status))
	}
}

// reviewConcurrently runs the reference solution next to the submission. A
// failing reference is reported as an error since the problem file is broken.
func reviewConcurrently(ctx context.Context, ev judge.Evaluator, p judge.Problem, code string) (judge.Result, error) {
	if r, violated := judge.CheckRestrictions(code, p.Restrictions); violated {
		return judge.Result{Status: judge.RestrictionViolated, Message: fmt.Sprintf("%q is restricted", r)}, nil
	}

	var (
		want, obtained judge.Outcome
		runErr         error
	)
	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		var err error
		if want, err = judge.Run(egCtx, ev, p, p.Solution, true); err != nil {
			return fmt.Errorf("reference solution: %w", err)
		}
		return nil
	})
	eg.Go(func() error {
		obtained, runErr = judge.Run(egCtx, ev, p, code, false)
		return nil
	})
	if err := eg.Wait(); err != nil {
		return judge.Result{}, err
	}
	if runErr != nil {
		return judge.ResultFromError(runErr), nil
	}

	data, err := json.Marshal(want)
	if err != nil {
		return judge.Result{}, fmt.Errorf("failed to encode reference outcome: %w", err)
	}
	res := judge.Grade(p, want, obtained)
	res.Expected = data
	return res, nil
}
