//go:build cgo

package remote

// The production remote is a Turso database; importing the libsql driver
// here lets Open("libsql", dsn) resolve it. Tests register the embedded
// sqlite3 driver themselves.
import _ "github.com/tursodatabase/go-libsql"
