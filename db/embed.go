// Package db provides the embedded database schema and seed data.
package db

import _ "embed"

// Schema contains the DDL statements for all application tables.
//
//go:embed migrations/001_schema.sql
var Schema string

// Catalog is the default set of stores, products and promotions used by
// seed-db and by the in-memory backend.
//
//go:embed seed/catalog.json
var Catalog []byte
