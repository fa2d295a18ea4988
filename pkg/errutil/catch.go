package errutil

import "github.com/cockroachdb/errors"

// CatchSimple runs a sequence of functions that return errors. By default it stops
// executing after the first failure and reports that error. With WithAggregation it
// executes every function and combines all returned errors.
type CatchSimple struct {
	aggregate bool
	errors    []error
}

type CatchOption func(*CatchSimple)

// WithAggregation makes the catch continue past failures and combine their errors.
func WithAggregation() CatchOption {
	return func(c *CatchSimple) { c.aggregate = true }
}

func NewCatchSimple(opts ...CatchOption) *CatchSimple {
	c := &CatchSimple{}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Exec runs f unless a previous call failed and the catch is not aggregating.
func (c *CatchSimple) Exec(f func() error) {
	if !c.aggregate && len(c.errors) > 0 {
		return
	}
	if err := f(); err != nil {
		c.errors = append(c.errors, err)
	}
}

// Error returns the caught error(s), or nil if every function succeeded.
func (c *CatchSimple) Error() error {
	var err error
	for _, e := range c.errors {
		err = errors.CombineErrors(err, e)
	}
	return err
}
