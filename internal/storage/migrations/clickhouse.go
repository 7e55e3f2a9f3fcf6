package migrations

import (
	"context"
	"fmt"

	chstore "sei-tracker/internal/storage/clickhouse"
)

// RunClickhouseMigrations creates the database named by dsn, applies every
// migration and returns a connection to that database. ClickHouse has no
// transactional DDL, so migrations run on every start and must be idempotent.
func RunClickhouseMigrations(ctx context.Context, dsn string) (*chstore.Conn, error) {
	migrations, err := Load(ClickHouse)
	if err != nil {
		return nil, err
	}

	if _, err := chstore.EnsureDatabase(ctx, dsn); err != nil {
		return nil, err
	}
	conn, err := chstore.NewConn(ctx, dsn)
	if err != nil {
		return nil, err
	}

	for _, m := range migrations {
		for _, stmt := range m.Statements {
			if err := conn.Exec(ctx, stmt); err != nil {
				conn.Close()
				return nil, fmt.Errorf("apply migration %s: %w", m.Version, err)
			}
		}
	}
	return conn, nil
}
