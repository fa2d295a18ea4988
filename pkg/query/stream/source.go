package stream

import (
	"context"

	"github.com/jmoiron/sqlx"
)

// Conn is the connection a Reader prepares its statement on. The caller owns the
// connection, and it must outlive every Reader opened against it. *sqlx.DB,
// *sqlx.Conn and *sqlx.Tx all satisfy Conn.
//
// Rows must stream from the server as the cursor advances rather than being
// buffered client side. go-sql-driver/mysql and modernc.org/sqlite both behave
// this way.
type Conn interface {
	PreparexContext(ctx context.Context, query string) (*sqlx.Stmt, error)
}

// Row is a result row the cursor is currently positioned at.
type Row interface {
	Scan(dest ...interface{}) error
}

// Source supplies the query a Reader executes and the mapping from each result
// row to a record.
type Source[T any] interface {
	// Query returns the parameterized statement text and its arguments, in
	// placeholder order.
	Query() (string, []interface{})
	// Decode maps the row the cursor is positioned at into a record. Decode must not
	// retain row.
	Decode(row Row) (T, error)
}
