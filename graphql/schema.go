package graphql

import _ "embed"

// schemaSDL is the read-only monitoring schema. Extensions go through
// _extension(name:, args:) instead of new fields.
//
//go:embed schema.graphqls
var schemaSDL string

// Schema returns the SDL served at /graphql.
func Schema() string { return schemaSDL }
