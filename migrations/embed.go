package migrations

import "embed"

// FS holds the SQL migrations applied by golang-migrate
//
//go:embed *.sql
var FS embed.FS
