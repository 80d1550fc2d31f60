package judge

import (
	"context"

	_ "github.com/godror/godror"
	"github.com/jmoiron/sqlx"
)

const oracleDriverName = "godror"

func ConnectDB(ctx context.Context, connectionString string) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, oracleDriverName, connectionString)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}
