package sandbox

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/elmanelman/sql-judge/sqlsplit"
	"github.com/elmanelman/sql-judge/templates"
	"github.com/godror/godror"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// Limits caps the size of everything read back from a principal.
// Zero disables a cap.
type Limits struct {
	MaxRows   int
	MaxCols   int
	MaxTables int
}

// Conn runs statements as a principal. Every statement gets its own call
// timeout.
type Conn struct {
	conn    *sqlx.Conn
	user    string
	timeout time.Duration
	limits  Limits
	logger  *zap.Logger
}

func NewConn(conn *sqlx.Conn, user string, timeout time.Duration, limits Limits, logger *zap.Logger) *Conn {
	return &Conn{
		conn:    conn,
		user:    user,
		timeout: timeout,
		limits:  limits,
		logger:  logger,
	}
}

func (c *Conn) statementContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}

// RunQuery executes exactly one statement and returns its result.
func (c *Conn) RunQuery(ctx context.Context, statement string) (*ShapedTable, error) {
	statements, err := sqlsplit.SplitBounded(statement, 1, 1)
	if err != nil {
		c.logger.Debug(
			"query does not contain exactly one statement",
			zap.String("user", c.user),
			zap.String("statement", statement),
		)
		return nil, wrongNumberOfStatements(statement, err)
	}

	start := time.Now()
	table, err := c.query(ctx, statements[0])
	if err != nil {
		return nil, withStatement(err, statements[0])
	}
	c.logger.Debug(
		"select statement executed",
		zap.String("user", c.user),
		zap.String("statement", statements[0]),
		zap.Duration("elapsed", time.Since(start)),
	)
	return table, nil
}

// RunScript executes every statement of script in order and commits once.
func (c *Conn) RunScript(ctx context.Context, script string) error {
	return c.exec(ctx, sqlsplit.Split(script))
}

// RunBoundedScript is RunScript for submitted code: the number of
// statements must lie within [min, max] and cannot be zero.
func (c *Conn) RunBoundedScript(ctx context.Context, script string, min, max int) error {
	statements, err := sqlsplit.SplitBounded(script, min, max)
	if err == nil && len(statements) == 0 {
		err = fmt.Errorf("%w: no statements", sqlsplit.ErrWrongNumberOfStatements)
	}
	if err != nil {
		c.logger.Debug(
			"unexpected number of statements",
			zap.String("user", c.user),
			zap.Int("min", min),
			zap.Int("max", max),
			zap.Error(err),
		)
		return wrongNumberOfStatements(script, err)
	}
	return c.exec(ctx, statements)
}

// Snapshot reads every table owned by the principal.
func (c *Conn) Snapshot(ctx context.Context) (Database, error) {
	names, err := c.tableNames(ctx)
	if err != nil {
		return nil, withStatement(err, templates.UserTables)
	}

	db := Database{}
	for _, name := range names {
		statement := fmt.Sprintf(templates.SelectAll, name)
		table, err := c.query(ctx, statement)
		if err != nil {
			if e, ok := AsError(err); ok && e.Kind == KindResourceLimitExceeded {
				return nil, e
			}
			// names needing quotes only work in their quoted form
			statement = fmt.Sprintf(templates.SelectAllQuoted, name)
			table, err = c.query(ctx, statement)
		}
		if err != nil {
			return nil, withStatement(err, statement)
		}
		db[name] = table
	}
	return db, nil
}

// Define runs the single CREATE statement of a function, procedure or
// trigger.
func (c *Conn) Define(ctx context.Context, definition string) error {
	statements, err := sqlsplit.SplitBounded(definition, 1, 1)
	if err != nil {
		return wrongNumberOfStatements(definition, err)
	}
	return c.execOne(ctx, statements[0])
}

// CheckCompilation fails with KindCompilation when USER_ERRORS lists any
// error for objects of objectType.
func (c *Conn) CheckCompilation(ctx context.Context, objectType, definition string) error {
	ctx, cancel := c.statementContext(ctx)
	defer cancel()

	rows, err := c.conn.QueryxContext(ctx, templates.CompilationErrors, objectType)
	if err != nil {
		return withStatement(err, templates.CompilationErrors)
	}
	defer rows.Close()

	errs, err := c.shape(rows, templates.CompilationErrors)
	if err != nil {
		return withStatement(err, templates.CompilationErrors)
	}
	if len(errs.Rows) > 0 {
		return &Error{
			Kind:        KindCompilation,
			Statement:   definition,
			Message:     fmt.Sprintf("%s has %d compilation errors", strings.ToLower(objectType), len(errs.Rows)),
			Diagnostics: errs,
		}
	}
	return nil
}

// EvaluateCalls evaluates one function call per non blank line of calls.
func (c *Conn) EvaluateCalls(ctx context.Context, calls string) (*FunctionResults, error) {
	start := time.Now()
	results := NewFunctionResults()
	for _, line := range strings.Split(calls, "\n") {
		call := strings.TrimSpace(line)
		if call == "" {
			continue
		}
		statement := fmt.Sprintf(templates.FunctionCall, call)
		value, err := c.scalar(ctx, statement)
		if err != nil {
			return nil, withStatement(err, statement)
		}
		results.Set(call, value)
	}
	c.logger.Debug(
		"function calls evaluated",
		zap.String("user", c.user),
		zap.Int("calls", results.Len()),
		zap.Duration("elapsed", time.Since(start)),
	)
	return results, nil
}

// CallProcedure invokes call inside an anonymous block.
func (c *Conn) CallProcedure(ctx context.Context, call string) error {
	call = strings.TrimSpace(strings.TrimRight(strings.TrimSpace(call), ";"))
	return c.execOne(ctx, fmt.Sprintf(templates.ProcedureCall, call))
}

func (c *Conn) exec(ctx context.Context, statements []string) error {
	if len(statements) == 0 {
		return nil
	}

	start := time.Now()
	tx, err := c.conn.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	for _, statement := range statements {
		if err := c.execTx(ctx, tx, statement); err != nil {
			if rerr := tx.Rollback(); rerr != nil {
				c.logger.Debug("rollback failed", zap.String("user", c.user), zap.Error(rerr))
			}
			return withStatement(err, statement)
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	c.logger.Debug(
		"script executed",
		zap.String("user", c.user),
		zap.Strings("statements", statements),
		zap.Duration("elapsed", time.Since(start)),
	)
	return nil
}

func (c *Conn) execTx(ctx context.Context, tx *sqlx.Tx, statement string) error {
	ctx, cancel := c.statementContext(ctx)
	defer cancel()
	_, err := tx.ExecContext(ctx, statement)
	return err
}

func (c *Conn) execOne(ctx context.Context, statement string) error {
	ctx, cancel := c.statementContext(ctx)
	defer cancel()
	_, err := c.conn.ExecContext(ctx, statement)
	return withStatement(err, statement)
}

func (c *Conn) scalar(ctx context.Context, statement string) (interface{}, error) {
	ctx, cancel := c.statementContext(ctx)
	defer cancel()
	var value interface{}
	if err := c.conn.QueryRowxContext(ctx, statement).Scan(&value); err != nil {
		return nil, err
	}
	return normalizeValue(value), nil
}

func (c *Conn) query(ctx context.Context, statement string) (*ShapedTable, error) {
	ctx, cancel := c.statementContext(ctx)
	defer cancel()

	rows, err := c.conn.QueryxContext(ctx, statement)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return c.shape(rows, statement)
}

func (c *Conn) shape(rows *sqlx.Rows, statement string) (*ShapedTable, error) {
	types, err := rows.ColumnTypes()
	if err != nil {
		return nil, err
	}
	if c.limits.MaxCols > 0 && len(types) > c.limits.MaxCols {
		c.logger.Debug("too many columns in result", zap.String("user", c.user), zap.Int("columns", len(types)))
		return nil, resourceLimit(statement, "result has %d columns, at most %d allowed", len(types), c.limits.MaxCols)
	}

	table := &ShapedTable{
		Header: make([]Column, len(types)),
		Rows:   [][]interface{}{},
	}
	for i, t := range types {
		table.Header[i] = Column{Name: t.Name(), Type: t.DatabaseTypeName()}
	}

	for rows.Next() {
		if c.limits.MaxRows > 0 && len(table.Rows) == c.limits.MaxRows {
			c.logger.Debug("too many rows in result", zap.String("user", c.user))
			return nil, resourceLimit(statement, "result has more than %d rows", c.limits.MaxRows)
		}
		row, err := rows.SliceScan()
		if err != nil {
			return nil, err
		}
		for i := range row {
			row[i] = normalizeValue(row[i])
		}
		table.Rows = append(table.Rows, row)
	}
	return table, rows.Err()
}

func (c *Conn) tableNames(ctx context.Context) ([]string, error) {
	ctx, cancel := c.statementContext(ctx)
	defer cancel()

	rows, err := c.conn.QueryxContext(ctx, templates.UserTables)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		if c.limits.MaxTables > 0 && len(names) == c.limits.MaxTables {
			c.logger.Debug("too many tables in user schema", zap.String("user", c.user))
			return nil, resourceLimit(templates.UserTables, "schema has more than %d tables", c.limits.MaxTables)
		}
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// normalizeValue maps driver specific values to plain ones.
func normalizeValue(v interface{}) interface{} {
	switch x := v.(type) {
	case godror.Number:
		return json.Number(x)
	case *godror.Number:
		if x == nil {
			return nil
		}
		return json.Number(*x)
	default:
		return v
	}
}
