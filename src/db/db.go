package db

import (
	"context"
	"errors"
	"reflect"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

/*
A general error to be used when no results are found. This is the error returned
by QueryOne and QueryOneScalar, and by other helpers that fetch a single row but
find nothing.
*/
var NotFound = errors.New("not found")

/*
Performs a SQL query and returns a slice of all the result rows. T must be a
struct with `db` tags; see the package docs for the $columns placeholder.

Any statement that returns rows may be used, including INSERT ... RETURNING.
*/
func Query[T any](ctx context.Context, conn ConnOrTx, query string, args ...any) ([]*T, error) {
	rows, err := conn.Query(ctx, compileQuery(query, typeOf[T]()), args...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToAddrOfStructByName[T])
}

// QueryOne is Query, but returns only the first row, or NotFound.
func QueryOne[T any](ctx context.Context, conn ConnOrTx, query string, args ...any) (*T, error) {
	rows, err := conn.Query(ctx, compileQuery(query, typeOf[T]()), args...)
	if err != nil {
		return nil, err
	}
	result, err := pgx.CollectOneRow(rows, pgx.RowToAddrOfStructByName[T])
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, NotFound
	}
	return result, err
}

// QueryScalar returns the single column of every row as plain values.
func QueryScalar[T any](ctx context.Context, conn ConnOrTx, query string, args ...any) ([]T, error) {
	rows, err := conn.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[T])
}

// QueryOneScalar returns the single column of the first row, or NotFound.
func QueryOneScalar[T any](ctx context.Context, conn ConnOrTx, query string, args ...any) (T, error) {
	rows, err := conn.Query(ctx, query, args...)
	if err != nil {
		var zero T
		return zero, err
	}
	result, err := pgx.CollectOneRow(rows, pgx.RowTo[T])
	if errors.Is(err, pgx.ErrNoRows) {
		var zero T
		return zero, NotFound
	}
	return result, err
}

// Tx runs fn in a transaction, committing if fn returns nil and rolling back otherwise.
func Tx(ctx context.Context, conn ConnOrTx, fn func(tx pgx.Tx) error) error {
	tx, err := conn.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

const uniqueViolation = "23505"

func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func typeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

var reColumnsPlaceholder = regexp.MustCompile(`\$columns({(.*?)})?`)

var timeType = reflect.TypeOf(time.Time{})

/*
compileQuery replaces $columns with the `db` tags of destType's fields, in
declaration order. $columns{s} prefixes every column with "s.", for use with a
table alias.
*/
func compileQuery(query string, destType reflect.Type) string {
	match := reColumnsPlaceholder.FindStringSubmatch(query)
	if match == nil {
		return query
	}

	if destType.Kind() != reflect.Struct || destType == timeType {
		panic("$columns can only be used when querying into a struct")
	}

	columns := ColumnNames(destType)
	if prefix := match[2]; prefix != "" {
		for i, c := range columns {
			columns[i] = prefix + "." + c
		}
	}
	return reColumnsPlaceholder.ReplaceAllLiteralString(query, strings.Join(columns, ", "))
}

// ColumnNames lists the `db` tags of a struct type, skipping untagged and "-" fields.
func ColumnNames(destType reflect.Type) []string {
	if destType.Kind() == reflect.Ptr {
		destType = destType.Elem()
	}

	var columns []string
	for _, field := range reflect.VisibleFields(destType) {
		if field.Anonymous || !field.IsExported() {
			continue
		}
		name := field.Tag.Get("db")
		if name == "" || name == "-" {
			continue
		}
		columns = append(columns, name)
	}
	return columns
}
