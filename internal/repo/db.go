package repo

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// Open opens a database/sql handle for driver ("postgres" or "sqlite3")
// against dsn. The two drivers above are registered via blank import so
// callers never need their own import of lib/pq or go-sqlite3.
func Open(driver, dsn string) (*sql.DB, error) {
	switch driver {
	case "postgres", "sqlite3":
	default:
		return nil, fmt.Errorf("repo: unsupported driver %q", driver)
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrDB, driver, err)
	}
	return db, nil
}
