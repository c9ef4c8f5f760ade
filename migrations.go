package rewardhub

import "embed"

// MigrationsFS holds the SQL schema migrations applied on startup.
//
//go:embed migrations/*.sql
var MigrationsFS embed.FS
