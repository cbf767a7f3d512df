// Package migrations embeds the postgres schema migrations so the binaries
// and tests do not depend on the working directory.
package migrations

import "embed"

// FS holds the NNNNNN_name.{up,down}.sql files
//
//go:embed *.sql
var FS embed.FS
