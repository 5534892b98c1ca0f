/*
Package sitedata is the only code that reads or writes the site's tables. Every
call is a round trip; nothing is cached in process.
*/
package sitedata

import (
	"context"
	"errors"
	"reflect"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/luminagoods/site/src/db"
)

var (
	// ErrSubscriberActive is returned by UpsertSubscriber when the (email, category)
	// pair already has an active row. Nothing was written.
	ErrSubscriberActive = errors.New("subscriber is already active")
)

type Store struct {
	conn db.ConnOrTx
	sb   sq.StatementBuilderType
}

func New(conn db.ConnOrTx) *Store {
	return &Store{
		conn: conn,
		sb:   sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// WithTx runs fn with a Store bound to a single transaction.
func (s *Store) WithTx(ctx context.Context, fn func(tx *Store) error) error {
	return db.Tx(ctx, s.conn, func(tx pgx.Tx) error {
		return fn(New(tx))
	})
}

func columnsOf[T any]() []string {
	return db.ColumnNames(reflect.TypeOf((*T)(nil)).Elem())
}

func queryBuilt[T any](ctx context.Context, conn db.ConnOrTx, q sq.Sqlizer) ([]*T, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, err
	}
	return db.Query[T](ctx, conn, sql, args...)
}
