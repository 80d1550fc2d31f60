package sandbox

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"

	"github.com/elmanelman/sql-judge/templates"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

const (
	DefaultUserPrefix = "lsql_"

	randomLength   = 8
	randomAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"
)

// Principal is a throwaway database user owning one session.
type Principal struct {
	Username string
	Password string
}

type userSession struct {
	SID    int64 `db:"SID"`
	Serial int64 `db:"SERIAL#"`
}

func randomString(n int) (string, error) {
	max := big.NewInt(int64(len(randomAlphabet)))
	b := make([]byte, n)
	for i := range b {
		k, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b[i] = randomAlphabet[k.Int64()]
	}
	return string(b), nil
}

func newPrincipal(prefix string) (*Principal, error) {
	name, err := randomString(randomLength)
	if err != nil {
		return nil, fmt.Errorf("generate username: %w", err)
	}
	password, err := randomString(randomLength)
	if err != nil {
		return nil, fmt.Errorf("generate password: %w", err)
	}
	return &Principal{Username: prefix + name, Password: password}, nil
}

// CreatePrincipal creates a user with a random name and password restricted
// to tablespace. When the user exists but the grants failed, the principal
// is returned along with the error so that it can still be dropped.
func CreatePrincipal(
	ctx context.Context,
	admin *sqlx.Conn,
	prefix, tablespace string,
	logger *zap.Logger,
) (*Principal, error) {
	p, err := newPrincipal(prefix)
	if err != nil {
		return nil, err
	}

	create := fmt.Sprintf(templates.CreateUser, p.Username, p.Password, tablespace, tablespace)
	if _, err := admin.ExecContext(ctx, create); err != nil {
		logger.Error("failed to create user", zap.String("user", p.Username), zap.Error(err))
		return nil, fmt.Errorf("create user %s: %w", p.Username, err)
	}
	logger.Debug("created user", zap.String("user", p.Username))

	if _, err := admin.ExecContext(ctx, fmt.Sprintf(templates.GrantUser, p.Username)); err != nil {
		logger.Error("failed to grant privileges", zap.String("user", p.Username), zap.Error(err))
		return p, fmt.Errorf("grant privileges to %s: %w", p.Username, err)
	}
	logger.Debug("granted privileges", zap.String("user", p.Username))

	return p, nil
}

// DropPrincipal removes the user and everything it owns. Sessions still
// open by the user are killed first.
func DropPrincipal(ctx context.Context, admin *sqlx.Conn, username string, logger *zap.Logger) error {
	// unquoted names are stored upper case in v$session
	var sessions []userSession
	if err := admin.SelectContext(ctx, &sessions, templates.UserSessions, strings.ToUpper(username)); err != nil {
		logger.Warn("failed to list user sessions", zap.String("user", username), zap.Error(err))
	} else {
		logger.Debug(
			"user active connections",
			zap.String("user", username),
			zap.Int("count", len(sessions)),
		)
		for _, s := range sessions {
			if _, err := admin.ExecContext(ctx, fmt.Sprintf(templates.KillSession, s.SID, s.Serial)); err != nil {
				logger.Warn(
					"failed to kill user session",
					zap.String("user", username),
					zap.Int64("sid", s.SID),
					zap.Error(err),
				)
			}
		}
	}

	if _, err := admin.ExecContext(ctx, fmt.Sprintf(templates.DropUser, username)); err != nil {
		logger.Error("failed to drop user", zap.String("user", username), zap.Error(err))
		return fmt.Errorf("drop user %s: %w", username, err)
	}
	logger.Debug("dropped user", zap.String("user", username))

	return nil
}
