// Package migrations carries the versioned PostgreSQL schema.
//
// Files follow the golang-migrate naming scheme {version}_{name}.{up|down}.sql
// and are embedded so the migrate binary works without a checkout.
package migrations

import "embed"

// FS holds every migration file in this directory
//
//go:embed *.sql
var FS embed.FS
