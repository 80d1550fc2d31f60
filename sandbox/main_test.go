package sandbox

import (
	"context"
	"database/sql/driver"
	"fmt"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// oraError mimics the driver error type, which exposes the ORA code.
type oraError struct {
	code int
}

func (e oraError) Error() string {
	return fmt.Sprintf("ORA-%05d: simulated", e.code)
}

func (e oraError) Code() int {
	return e.code
}

func newMockConn(t *testing.T, limits Limits) (*Conn, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	db := sqlx.NewDb(mockDB, DriverName)
	conn, err := db.Connx(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = conn.Close()
		_ = db.Close()
	})
	return NewConn(conn, "lsql_test0000", time.Second, limits, zaptest.NewLogger(t)), mock
}

type testEnv struct {
	ex       *Executor
	pool     *Pool
	admin    sqlmock.Sqlmock
	user     sqlmock.Sqlmock
	connects int
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	adminDB, admin, err := sqlmock.New()
	require.NoError(t, err)
	userDB, user, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = adminDB.Close()
		_ = userDB.Close()
	})

	env := &testEnv{admin: admin, user: user}
	db := sqlx.NewDb(adminDB, DriverName)
	db.SetMaxOpenConns(1)
	env.pool = NewPool(db, 100*time.Millisecond)

	connect := func(ctx context.Context, username, password string) (*sqlx.DB, error) {
		env.connects++
		return sqlx.NewDb(userDB, DriverName), nil
	}
	settings := Settings{
		Tablespace:       "USERS",
		StatementTimeout: time.Second,
		Limits:           Limits{MaxRows: 100, MaxCols: 10, MaxTables: 10},
	}
	env.ex = NewExecutor(settings, env.pool, connect, zaptest.NewLogger(t))
	return env
}

func (env *testEnv) expectCreateUser() {
	env.admin.ExpectExec(`^CREATE USER lsql_[a-z0-9]{8} IDENTIFIED BY "[a-z0-9]{8}" DEFAULT TABLESPACE USERS `).
		WillReturnResult(sqlmock.NewResult(0, 0))
	env.admin.ExpectExec(`^GRANT create table, .* TO lsql_[a-z0-9]{8}$`).
		WillReturnResult(sqlmock.NewResult(0, 0))
}

// storedUsername matches a generated user name the way Oracle stores it.
type storedUsername struct{}

var storedUsernamePattern = regexp.MustCompile(`^LSQL_[A-Z0-9]{8}$`)

func (storedUsername) Match(v driver.Value) bool {
	s, ok := v.(string)
	return ok && storedUsernamePattern.MatchString(s)
}

func (env *testEnv) expectDropUser() {
	env.admin.ExpectQuery(`^SELECT sid, serial# FROM v\$session WHERE username = :1$`).
		WithArgs(storedUsername{}).
		WillReturnRows(sqlmock.NewRows([]string{"SID", "SERIAL#"}))
	env.admin.ExpectExec(`^DROP USER lsql_[a-z0-9]{8} CASCADE$`).
		WillReturnResult(sqlmock.NewResult(0, 0))
}

func (env *testEnv) expectScript(statements ...string) {
	env.user.ExpectBegin()
	for _, s := range statements {
		env.user.ExpectExec(regexp.QuoteMeta(s)).WillReturnResult(sqlmock.NewResult(0, 1))
	}
	env.user.ExpectCommit()
}

func (env *testEnv) expectSnapshot(tables ...string) {
	names := sqlmock.NewRows([]string{"TABLE_NAME"})
	for _, name := range tables {
		names.AddRow(name)
	}
	env.user.ExpectQuery(`^SELECT table_name FROM USER_TABLES`).WillReturnRows(names)
	for _, name := range tables {
		env.user.ExpectQuery(regexp.QuoteMeta("SELECT * FROM "+name) + "$").
			WillReturnRows(numberRows("ID", 1, 2))
	}
}

// verify checks that every expectation was consumed and that no admin
// connection is still checked out.
func (env *testEnv) verify(t *testing.T) {
	t.Helper()
	require.NoError(t, env.admin.ExpectationsWereMet())
	require.NoError(t, env.user.ExpectationsWereMet())
	require.Zero(t, env.pool.db.Stats().InUse)
}

func numberRows(column string, values ...int64) *sqlmock.Rows {
	rows := sqlmock.NewRowsWithColumnDefinition(sqlmock.NewColumn(column).OfType("NUMBER", int64(0)))
	for _, v := range values {
		rows.AddRow(v)
	}
	return rows
}

func numberTable(column string, values ...int64) *ShapedTable {
	table := &ShapedTable{
		Header: []Column{{Name: column, Type: "NUMBER"}},
		Rows:   [][]interface{}{},
	}
	for _, v := range values {
		table.Rows = append(table.Rows, []interface{}{v})
	}
	return table
}

// textRows builds rows with typed columns; result shaping reads the
// database type of every column.
func textRows(columns ...string) *sqlmock.Rows {
	defs := make([]*sqlmock.Column, len(columns))
	for i, name := range columns {
		defs[i] = sqlmock.NewColumn(name).OfType("VARCHAR2", "")
	}
	return sqlmock.NewRowsWithColumnDefinition(defs...)
}

func diagnosticRows() *sqlmock.Rows {
	return textRows("NAME", "LINE", "POSITION", "TEXT", "ATTRIBUTE")
}
