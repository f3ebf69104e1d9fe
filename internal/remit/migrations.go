package remit

import "embed"

// Migrations holds the embedded schema migrations for the remit store.
//
//go:embed migrations/*.sql
var Migrations embed.FS

// MigrationsDir is the directory inside Migrations holding the SQL files.
const MigrationsDir = "migrations"
