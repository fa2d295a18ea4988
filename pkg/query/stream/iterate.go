package stream

import (
	"github.com/arya-analytics/wayhistory/pkg/errutil"
)

// Iterator is the lazy sequence protocol implemented by Reader.
type Iterator[T any] interface {
	HasNext() (bool, error)
	Next() (T, error)
	Close() error
}

// ForEach calls f with every record from iter until the records are exhausted or f
// returns an error. iter is always closed before ForEach returns.
func ForEach[T any](iter Iterator[T], f func(T) error) error {
	c := errutil.NewCatchSimple(errutil.WithAggregation())
	c.Exec(func() error {
		for {
			ok, err := iter.HasNext()
			if err != nil || !ok {
				return err
			}
			v, err := iter.Next()
			if err != nil {
				return err
			}
			if err := f(v); err != nil {
				return err
			}
		}
	})
	c.Exec(iter.Close)
	return c.Error()
}

// Collect reads every record from iter into a slice and closes it. Collect loads the
// entire sequence into memory and is meant for small result sets and tests.
func Collect[T any](iter Iterator[T]) ([]T, error) {
	var values []T
	err := ForEach(iter, func(v T) error {
		values = append(values, v)
		return nil
	})
	return values, err
}
