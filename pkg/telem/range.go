package telem

import (
	"fmt"
	"time"
)

// TimeRange is a half-open interval of time: Start is inclusive, End is exclusive.
// A TimeRange is never normalized. A range whose End is not after its Start
// contains no instants.
type TimeRange struct {
	Start time.Time
	End   time.Time
}

// NewTimeRange returns the range [start, end).
func NewTimeRange(start, end time.Time) TimeRange {
	return TimeRange{Start: start, End: end}
}

// IsZero returns true if the range contains no instants.
func (tr TimeRange) IsZero() bool { return !tr.End.After(tr.Start) }

// Valid returns true if Start <= End.
func (tr TimeRange) Valid() bool { return !tr.End.Before(tr.Start) }

// Span returns the duration of the range, which is negative for inverted ranges.
func (tr TimeRange) Span() time.Duration { return tr.End.Sub(tr.Start) }

func (tr TimeRange) String() string {
	return fmt.Sprintf("[%s, %s)", tr.Start.Format(time.RFC3339Nano), tr.End.Format(time.RFC3339Nano))
}
