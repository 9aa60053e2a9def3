package sqlite

import (
	"fmt"
	"strings"
	"time"
)

// DefaultBusyTimeout is how long a writer waits for a locked database file.
const DefaultBusyTimeout = 5 * time.Second

// Config holds SQLite repository configuration derived from storage.Config.
type Config struct {
	// DSN is a SQLite connection string or file path, e.g.:
	//   "file:geoetl.db?_pragma=busy_timeout(5000)"
	//   "geoetl.db"
	//   ":memory:"
	DSN string
	// BusyTimeout is added as a busy_timeout pragma unless the DSN already
	// sets one. Zero leaves the driver default.
	BusyTimeout time.Duration
}

// driverDSN returns the DSN handed to the driver. In-memory databases are
// returned unchanged.
func (c Config) driverDSN() string {
	dsn := strings.TrimSpace(c.DSN)
	if c.BusyTimeout <= 0 || strings.Contains(dsn, ":memory:") || strings.Contains(dsn, "busy_timeout") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return fmt.Sprintf("%s%s_pragma=busy_timeout(%d)", dsn, sep, c.BusyTimeout.Milliseconds())
}
