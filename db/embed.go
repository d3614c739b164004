// Package db embeds the database schema and the demo catalog.
package db

import _ "embed"

// Schema holds the DDL for customers, products, inventory and orders.
//
//go:embed migrations/001_schema.sql
var Schema string

// Catalog is the JSON product list loaded by the seed tool.
//
//go:embed seed/catalog.json
var Catalog []byte
