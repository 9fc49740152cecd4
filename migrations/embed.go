package migrations

import "embed"

// FS contains all SQL migrations, embedded so the binary is self-contained.
//
//go:embed *.sql
var FS embed.FS
