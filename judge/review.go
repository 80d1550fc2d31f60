package judge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/elmanelman/sql-judge/feedback"
	"github.com/elmanelman/sql-judge/sandbox"
)

// Evaluator runs solutions in a sandbox. *sandbox.Executor implements it.
type Evaluator interface {
	EvaluateSelect(ctx context.Context, req sandbox.SelectRequest) (*sandbox.SelectOutcome, error)
	EvaluateDML(ctx context.Context, req sandbox.DMLRequest) (*sandbox.ChangeOutcome, error)
	EvaluateFunction(ctx context.Context, req sandbox.FunctionRequest) (*sandbox.FunctionOutcome, error)
	EvaluateProcedure(ctx context.Context, req sandbox.ProcedureRequest) (*sandbox.ChangeOutcome, error)
	EvaluateTrigger(ctx context.Context, req sandbox.TriggerRequest) (*sandbox.ChangeOutcome, error)
}

var _ Evaluator = (*sandbox.Executor)(nil)

var errIncomplete = errors.New("outcome does not match the problem kind")

// Run evaluates code as a solution of p. The reference run records the
// database before the code ran and ignores statement count bounds.
func Run(ctx context.Context, ev Evaluator, p Problem, code string, reference bool) (Outcome, error) {
	var (
		out Outcome
		err error
	)
	switch p.Kind {
	case KindSelect:
		out.Select, err = ev.EvaluateSelect(ctx, sandbox.SelectRequest{
			CreationSQL:  p.CreationSQL,
			InsertionSQL: p.InsertionSQL,
			SelectSQL:    code,
		})
	case KindDML:
		req := sandbox.DMLRequest{
			CreationSQL:  p.CreationSQL,
			InsertionSQL: p.InsertionSQL,
			DMLSQL:       code,
			WantPre:      reference,
		}
		if !reference {
			req.MinStmt, req.MaxStmt = p.MinStmt, p.MaxStmt
		}
		out.Change, err = ev.EvaluateDML(ctx, req)
	case KindFunction:
		out.Function, err = ev.EvaluateFunction(ctx, sandbox.FunctionRequest{
			CreationSQL:  p.CreationSQL,
			InsertionSQL: p.InsertionSQL,
			Definition:   code,
			TestCalls:    p.Tests,
		})
	case KindProcedure:
		out.Change, err = ev.EvaluateProcedure(ctx, sandbox.ProcedureRequest{
			CreationSQL:  p.CreationSQL,
			InsertionSQL: p.InsertionSQL,
			Definition:   code,
			Call:         p.Tests,
			WantPre:      reference,
		})
	case KindTrigger:
		out.Change, err = ev.EvaluateTrigger(ctx, sandbox.TriggerRequest{
			CreationSQL:  p.CreationSQL,
			InsertionSQL: p.InsertionSQL,
			Definition:   code,
			Tests:        p.Tests,
			WantPre:      reference,
		})
	default:
		err = fmt.Errorf("unknown problem kind %q", p.Kind)
	}
	return out, err
}

// Compare checks obtained against expected the way the problem kind
// requires.
func Compare(p Problem, expected, obtained Outcome) (feedback.Verdict, string, error) {
	switch p.Kind {
	case KindSelect:
		if expected.Select == nil || obtained.Select == nil {
			return 0, "", errIncomplete
		}
		return feedback.CompareResults(expected.Select.Result, obtained.Select.Result, p.CheckOrder)
	case KindDML, KindProcedure, KindTrigger:
		if expected.Change == nil || obtained.Change == nil {
			return 0, "", errIncomplete
		}
		return feedback.CompareDatabases(expected.Change.Post, obtained.Change.Post)
	case KindFunction:
		if expected.Function == nil || obtained.Function == nil {
			return 0, "", errIncomplete
		}
		return feedback.CompareFunctionResults(expected.Function.Results, obtained.Function.Results)
	default:
		return 0, "", fmt.Errorf("unknown problem kind %q", p.Kind)
	}
}

// Result is the outcome of a review. Expected is set when the reference
// solution had to be run and can be cached by the caller.
type Result struct {
	Status   int
	Message  string
	Expected []byte
	Err      error
}

// Review runs code and grades it against expected, the stored outcome of
// the reference solution. When expected is empty the reference solution is
// run as well.
func Review(ctx context.Context, ev Evaluator, p Problem, expected []byte, code string) Result {
	if r, violated := CheckRestrictions(code, p.Restrictions); violated {
		return Result{
			Status:  RestrictionViolated,
			Message: fmt.Sprintf("%q is restricted", r),
		}
	}

	obtained, err := Run(ctx, ev, p, code, false)
	if err != nil {
		return ResultFromError(err)
	}

	var stored []byte
	var want Outcome
	if len(expected) > 0 {
		if want, err = DecodeOutcome(expected); err != nil {
			return internal(fmt.Errorf("stored expected result: %w", err))
		}
	} else {
		if want, err = Run(ctx, ev, p, p.Solution, true); err != nil {
			if e, ok := sandbox.AsError(err); ok && e.Kind == sandbox.KindPoolExhausted {
				return ResultFromError(err)
			}
			return internal(fmt.Errorf("reference solution: %w", err))
		}
		if stored, err = json.Marshal(want); err != nil {
			return internal(fmt.Errorf("encode expected result: %w", err))
		}
	}

	graded := Grade(p, want, obtained)
	graded.Expected = stored
	return graded
}

// Grade compares two successful runs and turns the comparison into a
// verdict.
func Grade(p Problem, expected, obtained Outcome) Result {
	verdict, fb, err := Compare(p, expected, obtained)
	if err != nil {
		return internal(fmt.Errorf("compare: %w", err))
	}
	if verdict == feedback.Accepted {
		return Result{Status: Accepted}
	}
	return Result{Status: WrongAnswer, Message: fb}
}

func internal(err error) Result {
	return Result{Status: InternalError, Message: "internal error", Err: err}
}

// ResultFromError maps a failed run of the submitted code to a verdict.
func ResultFromError(err error) Result {
	e, ok := sandbox.AsError(err)
	if !ok {
		return internal(err)
	}
	switch e.Kind {
	case sandbox.KindWrongNumberOfStatements:
		return Result{Status: WrongNumberOfStatements, Message: e.Message, Err: err}
	case sandbox.KindTimeLimitExceeded, sandbox.KindResourceLimitExceeded:
		return Result{Status: TimeLimitExceeded, Message: e.Message, Err: err}
	case sandbox.KindCompilation:
		msg, rerr := feedback.CompilationFeedback(e.Diagnostics)
		if rerr != nil {
			msg = e.Message
		}
		return Result{Status: CompilationError, Message: msg, Err: err}
	case sandbox.KindRuntimeDatabase:
		if e.State.UserCode() {
			return Result{Status: RuntimeError, Message: e.Message, Err: err}
		}
		return internal(err)
	case sandbox.KindPoolExhausted:
		return Result{Status: PendingReview, Err: err}
	default:
		return internal(err)
	}
}
