package sqlorm

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/lib/pq"

	"github.com/custodia-labs/synchronoux/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/synchronoux/internal/core/domain"
)

// Supported drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Dialect renders the parts of a statement that differ between databases.
type Dialect interface {
	// Name returns the driver name.
	Name() string

	// Placeholder returns the bind parameter for the n-th argument (n starts at 1).
	Placeholder(n int) string

	// Quote quotes a table or column identifier.
	Quote(identifier string) string
}

type sqliteDialect struct{}

func (sqliteDialect) Name() string           { return DriverSQLite }
func (sqliteDialect) Placeholder(int) string { return "?" }

func (sqliteDialect) Quote(identifier string) string {
	return `"` + strings.ReplaceAll(strings.TrimSpace(identifier), `"`, `""`) + `"`
}

type postgresDialect struct{}

func (postgresDialect) Name() string             { return DriverPostgres }
func (postgresDialect) Placeholder(n int) string { return "$" + strconv.Itoa(n) }

func (postgresDialect) Quote(identifier string) string {
	return pq.QuoteIdentifier(strings.TrimSpace(identifier))
}

// DialectFor returns the dialect of a driver name.
func DialectFor(driver string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case DriverSQLite, "sqlite3", "":
		return sqliteDialect{}, nil
	case DriverPostgres, "postgresql", "pg":
		return postgresDialect{}, nil
	}
	return nil, fmt.Errorf("%w: orm driver %q", domain.ErrUnsupportedType, driver)
}

// Open connects to the local store. SQLite databases are opened in WAL mode
// with foreign keys enabled.
func Open(driver, dsn string) (*sql.DB, Dialect, error) {
	dialect, err := DialectFor(driver)
	if err != nil {
		return nil, nil, err
	}
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, nil, fmt.Errorf("%w: empty dsn", domain.ErrInvalidInput)
	}

	if dialect.Name() == DriverSQLite {
		db, err := sqlite.Open(dsn)
		if err != nil {
			return nil, nil, err
		}
		return db, dialect, nil
	}

	db, err := sql.Open(DriverPostgres, dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("opening database: %w", err)
	}
	return db, dialect, nil
}
