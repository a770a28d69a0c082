// Package migrations embeds the numbered SQL migrations shipped with the server.
package migrations

import (
	"embed"
	"io/fs"
)

//go:embed postgres/*.sql
var postgres embed.FS

// PostgresFS returns the Postgres migrations rooted at their directory.
func PostgresFS() (fs.FS, error) {
	return fs.Sub(postgres, "postgres")
}
