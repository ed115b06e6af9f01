package db

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// pool sizes per driver. SQLite gets one writer so vote transfers never
// race each other into SQLITE_BUSY.
var pools = map[string]struct{ open, idle int }{
	"sqlite": {open: 1, idle: 1},
	"pgx":    {open: 25, idle: 5},
}

// Init opens and pings the database. Plain SQLite paths get their parent
// directory created first.
func Init(driver, connection string) (*sqlx.DB, error) {
	if driver == "sqlite" && isFilePath(connection) {
		err := os.MkdirAll(filepath.Dir(connection), 0o755)
		if err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	database, err := sqlx.Open(driver, connection)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", driver, err)
	}

	if pool, ok := pools[driver]; ok {
		database.SetMaxOpenConns(pool.open)
		database.SetMaxIdleConns(pool.idle)
	}
	database.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err = database.PingContext(ctx)
	if err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("failed to reach %s database: %w", driver, err)
	}

	slog.Info("database connected", "driver", driver)
	return database, nil
}

func isFilePath(connection string) bool {
	return !strings.HasPrefix(connection, "file:") && !strings.HasPrefix(connection, ":memory:")
}

func Close(database *sqlx.DB) error {
	if database == nil {
		return nil
	}
	return database.Close()
}
