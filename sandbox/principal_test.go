package sandbox

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newAdminConn(t *testing.T) (*sqlx.Conn, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	db := sqlx.NewDb(mockDB, DriverName)
	conn, err := db.Connx(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = conn.Close()
		_ = db.Close()
	})
	return conn, mock
}

func TestRandomString(t *testing.T) {
	valid := regexp.MustCompile(`^[a-z0-9]{8}$`)
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		s, err := randomString(randomLength)
		require.NoError(t, err)
		require.Regexp(t, valid, s)
		seen[s] = true
	}
	assert.Greater(t, len(seen), 95)
}

func TestCreatePrincipal(t *testing.T) {
	admin, mock := newAdminConn(t)
	mock.ExpectExec(`^CREATE USER judge_[a-z0-9]{8} IDENTIFIED BY "[a-z0-9]{8}" DEFAULT TABLESPACE EXERCISES TEMPORARY TABLESPACE TEMP QUOTA UNLIMITED ON EXERCISES$`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`^GRANT create table, .*execute any procedure TO judge_[a-z0-9]{8}$`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	p, err := CreatePrincipal(context.Background(), admin, "judge_", "EXERCISES", zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.Regexp(t, `^judge_[a-z0-9]{8}$`, p.Username)
	assert.Regexp(t, `^[a-z0-9]{8}$`, p.Password)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreatePrincipalFailures(t *testing.T) {
	t.Run("create", func(t *testing.T) {
		admin, mock := newAdminConn(t)
		mock.ExpectExec(`^CREATE USER`).WillReturnError(errors.New("ORA-01031: insufficient privileges"))

		p, err := CreatePrincipal(context.Background(), admin, DefaultUserPrefix, "USERS", zaptest.NewLogger(t))
		require.Error(t, err)
		assert.Nil(t, p)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("grant", func(t *testing.T) {
		admin, mock := newAdminConn(t)
		mock.ExpectExec(`^CREATE USER`).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec(`^GRANT`).WillReturnError(errors.New("ORA-01031: insufficient privileges"))

		p, err := CreatePrincipal(context.Background(), admin, DefaultUserPrefix, "USERS", zaptest.NewLogger(t))
		require.Error(t, err)
		require.NotNil(t, p, "a created user must be returned so that it gets dropped")
		assert.Regexp(t, `^lsql_[a-z0-9]{8}$`, p.Username)
	})
}

func TestDropPrincipal(t *testing.T) {
	admin, mock := newAdminConn(t)
	mock.ExpectQuery(`^SELECT sid, serial# FROM v\$session`).WithArgs("LSQL_ABCD1234").
		WillReturnRows(sqlmock.NewRows([]string{"SID", "SERIAL#"}).AddRow(int64(10), int64(20)).AddRow(int64(11), int64(5)))
	mock.ExpectExec(`^ALTER SYSTEM KILL SESSION '10,20' IMMEDIATE$`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`^ALTER SYSTEM KILL SESSION '11,5' IMMEDIATE$`).
		WillReturnError(errors.New("ORA-00030: User session ID does not exist"))
	mock.ExpectExec(`^DROP USER lsql_abcd1234 CASCADE$`).WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, DropPrincipal(context.Background(), admin, "lsql_abcd1234", zaptest.NewLogger(t)))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDropPrincipalIgnoresSessionQueryFailure(t *testing.T) {
	admin, mock := newAdminConn(t)
	mock.ExpectQuery(`^SELECT sid, serial# FROM v\$session`).WithArgs("LSQL_ABCD1234").WillReturnError(errors.New("ORA-00942: table or view does not exist"))
	mock.ExpectExec(`^DROP USER lsql_abcd1234 CASCADE$`).WillReturnError(errors.New("ORA-01940: cannot drop a user that is currently connected"))

	err := DropPrincipal(context.Background(), admin, "lsql_abcd1234", zaptest.NewLogger(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ORA-01940")
	require.NoError(t, mock.ExpectationsWereMet())
}
