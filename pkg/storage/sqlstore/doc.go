// Package sqlstore implements storage.Store on database/sql.
//
// Two drivers are supported: "postgres" (lib/pq) for deployments and
// "sqlite3" (mattn/go-sqlite3) for embedded use and tests. Queries are written
// once in the subset of SQL both engines accept: $n placeholders numbered by
// first appearance, RETURNING, ON CONFLICT DO NOTHING, and timestamps bound as
// parameters rather than computed by the database. Only the schema differs
// between dialects.
package sqlstore
