package stream

import (
	"context"

	"github.com/arya-analytics/wayhistory/pkg/errutil"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

type state uint8

const (
	// notStarted means the statement has not been prepared yet.
	notStarted state = iota
	// buffered means the cursor is open and the next record is decoded and waiting.
	buffered
	// exhausted means the cursor reached the end of its rows and has been released.
	exhausted
	// closed means the Reader was closed by the caller or failed.
	closed
)

// Reader adapts a Source into a lazy, forward-only sequence of records. The
// statement is prepared and executed on the first call to HasNext or Next, and rows
// are then decoded one at a time with a single record of lookahead. The statement
// and cursor are released when the rows are exhausted, when decoding or advancing
// fails, or when Close is called, whichever comes first.
//
// A Reader cannot be restarted and is not safe for concurrent use.
type Reader[T any] struct {
	ctx    context.Context
	conn   Conn
	source Source[T]
	logger *zap.Logger

	state state
	stmt  *sqlx.Stmt
	rows  *sqlx.Rows
	next  T
	read  int
	err   error
}

// NewReader returns a Reader that executes source's query against conn. ctx bounds
// the lifetime of the statement and cursor; cancelling it surfaces as an
// ErrQueryExecution from the next call that advances the cursor.
func NewReader[T any](ctx context.Context, conn Conn, source Source[T], opts ...Option) *Reader[T] {
	o := newOptions(opts...)
	return &Reader[T]{ctx: ctx, conn: conn, source: source, logger: o.logger}
}

// HasNext returns true if a record is available from Next. Repeated calls without
// an intervening Next do not advance the cursor. Once HasNext returns an error, the
// Reader is closed and every later call returns the same error.
func (r *Reader[T]) HasNext() (bool, error) {
	if r.state == notStarted {
		r.open()
	}
	return r.state == buffered, r.err
}

// Next returns the next record and buffers the one after it. It returns
// ErrProtocolViolation if no record is available.
func (r *Reader[T]) Next() (T, error) {
	var zero T
	ok, err := r.HasNext()
	if err != nil {
		return zero, err
	}
	if !ok {
		return zero, ErrProtocolViolation
	}
	v := r.next
	r.next = zero
	r.advance()
	return v, nil
}

// Close releases the statement and cursor. Close is a no-op on a Reader that is
// already closed, and a Reader closed before exhaustion never resumes.
func (r *Reader[T]) Close() error {
	if r.state == closed {
		return nil
	}
	var zero T
	r.state = closed
	r.next = zero
	return r.release()
}

// Read returns the number of records decoded so far.
func (r *Reader[T]) Read() int { return r.read }

func (r *Reader[T]) open() {
	query, args := r.source.Query()
	stmt, err := r.conn.PreparexContext(r.ctx, query)
	if err != nil {
		r.fail(newQueryExecutionError(err, "[stream] - unable to prepare streaming statement"))
		return
	}
	r.stmt = stmt
	rows, err := stmt.QueryxContext(r.ctx, args...)
	if err != nil {
		r.fail(newQueryExecutionError(err, "[stream] - unable to create streaming result set"))
		return
	}
	r.rows = rows
	r.logger.Debug("opened streaming result set", zap.Int("args", len(args)))
	r.advance()
}

func (r *Reader[T]) advance() {
	if !r.rows.Next() {
		if err := r.rows.Err(); err != nil {
			r.fail(newQueryExecutionError(err, "[stream] - unable to advance streaming result set"))
			return
		}
		r.state = exhausted
		if err := r.release(); err != nil {
			r.err = newQueryExecutionError(err, "[stream] - unable to release streaming result set")
		}
		return
	}
	v, err := r.source.Decode(r.rows)
	if err != nil {
		r.fail(newRowDecodingError(err))
		return
	}
	r.read++
	r.next = v
	r.state = buffered
}

// fail records err as the Reader's terminal error and releases its resources.
func (r *Reader[T]) fail(err error) {
	var zero T
	r.state = closed
	r.next = zero
	if rErr := r.release(); rErr != nil {
		r.logger.Warn("failed to release streaming result set after error", zap.Error(rErr))
	}
	r.err = err
}

func (r *Reader[T]) release() error {
	if r.rows == nil && r.stmt == nil {
		return nil
	}
	c := errutil.NewCatchSimple(errutil.WithAggregation())
	if r.rows != nil {
		c.Exec(r.rows.Close)
		r.rows = nil
	}
	if r.stmt != nil {
		c.Exec(r.stmt.Close)
		r.stmt = nil
	}
	r.logger.Debug("released streaming result set", zap.Int("read", r.read), zap.Error(c.Error()))
	return c.Error()
}
