package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-sql-driver/mysql"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Dialect names a supported SQL backend. Its value is the database/sql
// driver name.
type Dialect string

const (
	MySQL  Dialect = "mysql"
	SQLite Dialect = "sqlite"
)

// ParseDialect validates a configured driver name.
func ParseDialect(name string) (Dialect, error) {
	switch d := Dialect(name); d {
	case MySQL, SQLite:
		return d, nil
	}
	return "", fmt.Errorf("sqlstore: unsupported driver %q", name)
}

const mysqlDuplicateEntry = 1062

func (d Dialect) isDuplicate(err error) bool {
	switch d {
	case MySQL:
		var me *mysql.MySQLError
		return errors.As(err, &me) && me.Number == mysqlDuplicateEntry
	case SQLite:
		var se *sqlite.Error
		return errors.As(err, &se) && se.Code()&0xff == sqlite3.SQLITE_CONSTRAINT
	}
	return false
}

// OpenMySQL opens a MySQL pool using the provided DSN.
// Example DSN: user:pass@tcp(host:3306)/dbname?parseTime=true
func OpenMySQL(ctx context.Context, dsn string, log *slog.Logger) (*Store, error) {
	if dsn == "" {
		return nil, errors.New("mysql: DSN is required")
	}
	db, err := sql.Open(string(MySQL), dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	c, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(c); err != nil {
		db.Close()
		return nil, err
	}
	log.Info("mysql store opened")
	return New(db, MySQL, log), nil
}

// OpenSQLite opens (creating if needed) a SQLite database file. SQLite
// serialises writers, so the pool holds a single connection.
func OpenSQLite(ctx context.Context, path string, log *slog.Logger) (*Store, error) {
	if path == "" {
		return nil, errors.New("sqlite: path is required")
	}
	db, err := sql.Open(string(SQLite), path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	c, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := db.ExecContext(c, "PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, err
	}
	log.Info("sqlite store opened", slog.String("path", path))
	return New(db, SQLite, log), nil
}
