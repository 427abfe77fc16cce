package sqlstore

import "errors"

var (
	// ErrUnsupportedDialect is returned for dialects other than postgres and sqlite3.
	ErrUnsupportedDialect = errors.New("sqlstore: unsupported dialect")

	// ErrMissingDSN is returned when no data source name is configured.
	ErrMissingDSN = errors.New("sqlstore: DSN is required")

	// ErrNilDB is returned when New receives a nil *sql.DB.
	ErrNilDB = errors.New("sqlstore: db cannot be nil")
)
