package stream

import "github.com/cockroachdb/errors"

var (
	// ErrQueryExecution is returned when the statement backing a Reader cannot be
	// prepared or executed, or when the cursor fails to advance.
	ErrQueryExecution = errors.New("[stream] - query execution failed")
	// ErrRowDecoding is returned when a fetched row cannot be decoded into a record.
	ErrRowDecoding = errors.New("[stream] - row decoding failed")
	// ErrProtocolViolation is returned when Next is called on a Reader that has no
	// record available.
	ErrProtocolViolation = errors.New("[stream] - next called without an available record")
)

func newQueryExecutionError(err error, msg string) error {
	return errors.Mark(errors.Wrap(err, msg), ErrQueryExecution)
}

func newRowDecodingError(err error) error {
	return errors.Mark(errors.Wrap(err, "[stream] - unable to decode row"), ErrRowDecoding)
}
