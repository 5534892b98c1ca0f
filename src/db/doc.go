/*
Package db contains the low-level helpers for talking to Postgres: the pgx
connection pool with query tracing, and generic functions that map rows onto Go
types.

Query syntax

Arguments use ordinary pgx placeholders ($1, $2, ...). Slices should be passed as
Postgres arrays and matched with = ANY($1) rather than IN.

To query several columns into a struct, tag its fields with `db:"column_name"`
and use the $columns placeholder:

	type Subscriber struct {
		ID    int    `db:"id"`
		Email string `db:"email"`
	}
	subs, err := db.Query[Subscriber](ctx, conn, `SELECT $columns FROM subscribers`)
	// SELECT id, email FROM subscribers

$columns{s} prefixes each column with a table alias:

	db.Query[Subscriber](ctx, conn, `SELECT $columns{s} FROM subscribers AS s`)
	// SELECT s.id, s.email FROM subscribers AS s

Single values use QueryScalar and QueryOneScalar:

	count, err := db.QueryOneScalar[int64](ctx, conn, `SELECT count(*) FROM subscribers`)

A query may start with a "---- Name" comment line. The name labels the query in
the site_db_query_duration_seconds histogram.
*/
package db
