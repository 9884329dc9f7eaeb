package migrations

import "embed"

// FS exposes the SQL migration files for the migrate CLI.
//
//go:embed *.sql
var FS embed.FS
