// Package sandbox runs untrusted SQL as a throwaway Oracle user and captures
// what it produced.
package sandbox

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Settings configures every session of an Executor.
type Settings struct {
	Tablespace       string
	UserPrefix       string
	StatementTimeout time.Duration
	Limits           Limits
}

// Executor evaluates submissions, one session per call. It is safe for
// concurrent use.
type Executor struct {
	settings Settings
	pool     *Pool
	connect  Connector
	logger   *zap.Logger
}

func NewExecutor(settings Settings, pool *Pool, connect Connector, logger *zap.Logger) *Executor {
	if settings.UserPrefix == "" {
		settings.UserPrefix = DefaultUserPrefix
	}
	return &Executor{
		settings: settings,
		pool:     pool,
		connect:  connect,
		logger:   logger,
	}
}

type SelectRequest struct {
	CreationSQL  string
	InsertionSQL string
	SelectSQL    string
	WantDB       bool
}

type DMLRequest struct {
	CreationSQL  string
	InsertionSQL string
	DMLSQL       string
	WantPre      bool
	MinStmt      int
	MaxStmt      int
}

type FunctionRequest struct {
	CreationSQL  string
	InsertionSQL string
	Definition   string
	TestCalls    string
}

type ProcedureRequest struct {
	CreationSQL  string
	InsertionSQL string
	Definition   string
	Call         string
	WantPre      bool
}

type TriggerRequest struct {
	CreationSQL  string
	InsertionSQL string
	Definition   string
	Tests        string
	WantPre      bool
}

// run executes one session: setup, body, then teardown on every path.
// Teardown failures are returned only when body succeeded.
func (e *Executor) run(
	ctx context.Context,
	kind, creation, insertion string,
	body func(s *session) error,
) (err error) {
	s := &session{
		ex:     e,
		logger: e.logger.With(zap.String("session_id", uuid.NewString()), zap.String("kind", kind)),
	}
	start := time.Now()

	defer func() {
		terr := s.teardown(context.WithoutCancel(ctx))
		if err == nil {
			err = terr
		}
		observeSession(kind, err, time.Since(start))
		if err == nil {
			s.logger.Debug("sandbox session finished", zap.Duration("elapsed", time.Since(start)))
		}
	}()

	if err := s.open(ctx, creation, insertion); err != nil {
		return err
	}
	return body(s)
}

// EvaluateSelect runs one SELECT statement and optionally reads back the
// whole database.
func (e *Executor) EvaluateSelect(ctx context.Context, req SelectRequest) (*SelectOutcome, error) {
	out := &SelectOutcome{}
	err := e.run(ctx, "select", req.CreationSQL, req.InsertionSQL, func(s *session) error {
		if err := s.step(ExecuteUserCode, func() (err error) {
			out.Result, err = s.user.RunQuery(ctx, req.SelectSQL)
			return err
		}); err != nil {
			return err
		}
		if !req.WantDB {
			return nil
		}
		return s.snapshot(ctx, GetAllTables, &out.DB)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// EvaluateDML runs data modification statements and returns the database
// before and after them.
func (e *Executor) EvaluateDML(ctx context.Context, req DMLRequest) (*ChangeOutcome, error) {
	out := &ChangeOutcome{Pre: Database{}}
	err := e.run(ctx, "dml", req.CreationSQL, req.InsertionSQL, func(s *session) error {
		if req.WantPre {
			if err := s.snapshot(ctx, GetInitialTables, &out.Pre); err != nil {
				return err
			}
		}
		if err := s.step(ExecuteUserCode, func() error {
			return s.user.RunBoundedScript(ctx, req.DMLSQL, req.MinStmt, req.MaxStmt)
		}); err != nil {
			return err
		}
		return s.snapshot(ctx, GetAllTables, &out.Post)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// EvaluateFunction creates a function and evaluates every test call. The
// database is read once, before the function is created.
func (e *Executor) EvaluateFunction(ctx context.Context, req FunctionRequest) (*FunctionOutcome, error) {
	out := &FunctionOutcome{}
	err := e.run(ctx, "function", req.CreationSQL, req.InsertionSQL, func(s *session) error {
		if err := s.snapshot(ctx, GetInitialTables, &out.DB); err != nil {
			return err
		}
		if err := s.define(ctx, req.Definition, "FUNCTION"); err != nil {
			return err
		}
		return s.step(ExecuteUserCode, func() (err error) {
			out.Results, err = s.user.EvaluateCalls(ctx, req.TestCalls)
			return err
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// EvaluateProcedure creates a procedure and invokes it once.
func (e *Executor) EvaluateProcedure(ctx context.Context, req ProcedureRequest) (*ChangeOutcome, error) {
	out := &ChangeOutcome{}
	err := e.run(ctx, "procedure", req.CreationSQL, req.InsertionSQL, func(s *session) error {
		if req.WantPre {
			if err := s.snapshot(ctx, GetInitialTables, &out.Pre); err != nil {
				return err
			}
		}
		if err := s.define(ctx, req.Definition, "PROCEDURE"); err != nil {
			return err
		}
		if err := s.step(ExecuteUserCode, func() error {
			return s.user.CallProcedure(ctx, req.Call)
		}); err != nil {
			return err
		}
		return s.snapshot(ctx, GetAllTables, &out.Post)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// EvaluateTrigger installs a trigger and runs the statements that fire it.
// Triggers are compiled lazily by Oracle, so errors in the trigger body
// only show up while running the tests.
func (e *Executor) EvaluateTrigger(ctx context.Context, req TriggerRequest) (*ChangeOutcome, error) {
	out := &ChangeOutcome{}
	err := e.run(ctx, "trigger", req.CreationSQL, req.InsertionSQL, func(s *session) error {
		if req.WantPre {
			if err := s.snapshot(ctx, GetInitialTables, &out.Pre); err != nil {
				return err
			}
		}
		if err := s.step(ExecuteUserCode, func() error {
			if err := s.user.Define(ctx, req.Definition); err != nil {
				return err
			}
			return s.user.RunScript(ctx, req.Tests)
		}); err != nil {
			return err
		}
		return s.snapshot(ctx, GetAllTables, &out.Post)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// define creates a stored program and checks that it compiled.
func (s *session) define(ctx context.Context, definition, objectType string) error {
	if err := s.step(ExecuteUserCode, func() error {
		return s.user.Define(ctx, definition)
	}); err != nil {
		return err
	}
	return s.step(CompileCheck, func() error {
		return s.user.CheckCompilation(ctx, objectType, definition)
	})
}
