// Package migrations embeds the SQL schemas for the local snapshot database
// and the remote ledger.
package migrations

import "embed"

// FS holds sqlite/ (snapshot runner format NNN_name.sql) and ledger/ (goose format)
//
//go:embed sqlite/*.sql ledger/*.sql
var FS embed.FS
