// Package migrations embeds the SQL schema migrations applied by goose when
// the server runs with a Postgres credential store.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
