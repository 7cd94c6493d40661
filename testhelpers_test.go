package mymcp_test

import (
	"context"
	"database/sql"
	"os"
	"testing"

	mymcp "github.com/querysafe/mysql-mcp"
	"github.com/querysafe/mysql-mcp/internal/pool"
	"github.com/rs/zerolog"

	_ "modernc.org/sqlite"
)

func testLogger() zerolog.Logger {
	return zerolog.New(os.Stderr).Level(zerolog.Disabled)
}

// defaultConfig returns a permissive development config so tests can run
// DDL for setup. Individual tests tighten the policy as needed.
func defaultConfig() mymcp.Config {
	return mymcp.Config{
		Connection: mymcp.ConnectionConfig{Database: "main"},
		Security: mymcp.SecurityConfig{
			AllowedRiskLevels: "LOW,MEDIUM,HIGH",
			EnableQueryCheck:  true,
		},
	}
}

// sqliteOpen substitutes the MySQL opener with an in-memory database.
// A single open connection keeps every statement on the same memory
// database.
func sqliteOpen(cfg pool.Config) (*sql.DB, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	return db, nil
}

func newTestInstance(t *testing.T, config mymcp.Config) *mymcp.MysqlMcp {
	t.Helper()
	p, err := mymcp.New(config, testLogger(),
		mymcp.WithPoolOptions(pool.WithOpenFunc(sqliteOpen)))
	if err != nil {
		t.Fatalf("Failed to create MysqlMcp: %v", err)
	}
	t.Cleanup(func() { p.Close(context.Background()) })
	return p
}

func setupTable(t *testing.T, p *mymcp.MysqlMcp, sql string) {
	t.Helper()
	output := p.Query(context.Background(), mymcp.QueryInput{SQL: sql})
	if output.Error != "" {
		t.Fatalf("setup failed: %s", output.Error)
	}
}
