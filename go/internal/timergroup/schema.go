package timergroup

import "embed"

// Migrations holds the ordered Postgres schema files for timer groups.
//
//go:embed schema/*.sql
var Migrations embed.FS
