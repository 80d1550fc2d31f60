package sandbox

import (
	"context"
	"errors"
	"fmt"
	"time"

	_ "github.com/godror/godror"
	"github.com/jmoiron/sqlx"
)

const DriverName = "godror"

// Pool hands out dedicated admin connections. It is created once per
// process and shared by every session.
type Pool struct {
	db          *sqlx.DB
	waitTimeout time.Duration
}

// OpenPool connects to the admin account described by connectionString.
func OpenPool(ctx context.Context, connectionString string, min, max int, waitTimeout time.Duration) (*Pool, error) {
	db, err := sqlx.ConnectContext(ctx, DriverName, connectionString)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(max)
	db.SetMaxIdleConns(min)
	return NewPool(db, waitTimeout), nil
}

func NewPool(db *sqlx.DB, waitTimeout time.Duration) *Pool {
	return &Pool{db: db, waitTimeout: waitTimeout}
}

// Acquire blocks until a connection is free or the wait timeout expires.
// An expired wait is reported as KindPoolExhausted.
func (p *Pool) Acquire(ctx context.Context) (*sqlx.Conn, error) {
	start := time.Now()
	waitCtx := ctx
	if p.waitTimeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, p.waitTimeout)
		defer cancel()
	}

	conn, err := p.db.Connx(waitCtx)
	poolWait.Observe(time.Since(start).Seconds())
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			e := newError(KindPoolExhausted, "", err)
			e.Message = fmt.Sprintf("no admin connection available after %s", p.waitTimeout)
			return nil, e
		}
		return nil, newError(KindAdminConnection, "", err)
	}
	return conn, nil
}

func (p *Pool) Release(conn *sqlx.Conn) error {
	return conn.Close()
}

func (p *Pool) Close() error {
	return p.db.Close()
}

// Connector opens a connection as a principal.
type Connector func(ctx context.Context, username, password string) (*sqlx.DB, error)

// EasyConnect returns a Connector for host:port/sid.
func EasyConnect(host, port, sid string) Connector {
	return func(ctx context.Context, username, password string) (*sqlx.DB, error) {
		connectionString := fmt.Sprintf("%s/%s@%s:%s/%s", username, password, host, port, sid)
		db, err := sqlx.ConnectContext(ctx, DriverName, connectionString)
		if err != nil {
			return nil, err
		}
		db.SetMaxOpenConns(1)
		return db, nil
	}
}
