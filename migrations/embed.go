// Package migrations embeds the relational schema the search service reads.
// Production schemas are owned by the booking services; these files set up
// local and test databases.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
