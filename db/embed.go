// Package db provides embedded database schema files.
package db

import _ "embed"

// PostgresSchema contains the DDL statements for all PostgreSQL tables.
//
//go:embed migrations/001_schema.sql
var PostgresSchema string

// MySQLSchema contains the DDL statements for all MySQL tables, one statement
// per ";"-terminated block.
//
//go:embed mysql/001_schema.sql
var MySQLSchema string
