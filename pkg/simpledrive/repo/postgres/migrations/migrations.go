// Package migrations embeds the goose SQL migrations of the Postgres item
// repository.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
