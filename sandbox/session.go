package sandbox

import (
	"context"

	"github.com/jmoiron/sqlx"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// session owns the resources of one evaluation. Resources are recorded as
// soon as they exist so that teardown releases exactly what was acquired.
type session struct {
	ex     *Executor
	logger *zap.Logger
	state  State

	admin     *sqlx.Conn
	principal *Principal
	userDB    *sqlx.DB
	user      *Conn
}

// step enters state and runs fn, classifying its failure.
func (s *session) step(state State, fn func() error) error {
	s.state = state
	if err := fn(); err != nil {
		e := classify(state, err)
		s.logger.Info(
			"sandbox step failed",
			zap.Stringer("state", state),
			zap.Stringer("kind", e.Kind),
			zap.String("statement", e.Statement),
			zap.Error(err),
		)
		return e
	}
	return nil
}

// open runs everything before the submitted code: admin connection,
// principal, principal connection and the problem setup scripts.
func (s *session) open(ctx context.Context, creation, insertion string) error {
	if err := s.step(GetAdminConnection, func() (err error) {
		s.admin, err = s.ex.pool.Acquire(ctx)
		return err
	}); err != nil {
		return err
	}

	if err := s.step(CreateUser, func() (err error) {
		s.principal, err = CreatePrincipal(ctx, s.admin, s.ex.settings.UserPrefix, s.ex.settings.Tablespace, s.logger)
		return err
	}); err != nil {
		return err
	}
	s.logger = s.logger.With(zap.String("user", s.principal.Username))

	if err := s.step(GetUserConnection, func() error {
		db, err := s.ex.connect(ctx, s.principal.Username, s.principal.Password)
		if err != nil {
			return err
		}
		s.userDB = db
		conn, err := db.Connx(ctx)
		if err != nil {
			return err
		}
		s.user = NewConn(conn, s.principal.Username, s.ex.settings.StatementTimeout, s.ex.settings.Limits, s.logger)
		return nil
	}); err != nil {
		return err
	}

	if err := s.step(ExecuteCreate, func() error {
		return s.user.RunScript(ctx, creation)
	}); err != nil {
		return err
	}

	return s.step(ExecuteInsert, func() error {
		return s.user.RunScript(ctx, insertion)
	})
}

// snapshot reads the whole database in state, GetInitialTables before the
// submitted code ran or GetAllTables after it.
func (s *session) snapshot(ctx context.Context, state State, db *Database) error {
	return s.step(state, func() (err error) {
		*db, err = s.user.Snapshot(ctx)
		return err
	})
}

type release struct {
	state State
	run   func(ctx context.Context) error
}

// teardown attempts every release action independently and reports the
// first failure. All failures are logged.
func (s *session) teardown(ctx context.Context) error {
	releases := []release{
		{CloseUserConnection, s.closeUser},
		{DropUser, s.dropPrincipal},
		{ReleaseAdminConnection, s.releaseAdmin},
	}

	var (
		first *Error
		all   error
	)
	for _, r := range releases {
		s.state = r.state
		if err := r.run(ctx); err != nil {
			all = multierr.Append(all, err)
			if first == nil {
				first = classify(r.state, err)
			}
		}
	}
	if all != nil {
		s.logger.Error("sandbox teardown failed", zap.Error(all))
		return first
	}
	return nil
}

func (s *session) closeUser(context.Context) error {
	var err error
	if s.user != nil {
		err = multierr.Append(err, s.user.conn.Close())
		s.user = nil
	}
	if s.userDB != nil {
		err = multierr.Append(err, s.userDB.Close())
		s.userDB = nil
	}
	return err
}

func (s *session) dropPrincipal(ctx context.Context) error {
	if s.principal == nil || s.admin == nil {
		return nil
	}
	err := DropPrincipal(ctx, s.admin, s.principal.Username, s.logger)
	s.principal = nil
	return err
}

func (s *session) releaseAdmin(context.Context) error {
	if s.admin == nil {
		return nil
	}
	err := s.ex.pool.Release(s.admin)
	s.admin = nil
	return err
}
