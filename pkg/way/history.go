package way

import (
	"context"

	"github.com/arya-analytics/wayhistory/pkg/history"
	"github.com/arya-analytics/wayhistory/pkg/query/stream"
	"github.com/arya-analytics/wayhistory/pkg/telem"
	"github.com/cockroachdb/errors"
)

const (
	// SelectSegmentHistory selects, for every way whose latest version inside a time
	// window exists, every segment membership row of exactly that version. The two
	// parameters are the inclusive start and exclusive end of the window. Rows come
	// back in whatever order the store produces them.
	SelectSegmentHistory = "SELECT ws.id AS way_id, ws.segment_id, ws.sequence_id, ws.version" +
		" FROM way_segments ws" +
		" INNER JOIN" +
		" (" +
		"SELECT id, MAX(version) AS version" +
		" FROM ways" +
		" WHERE timestamp >= ? AND timestamp < ?" +
		" GROUP BY id" +
		") w" +
		" ON ws.id = w.id AND ws.version = w.version;"
	// SelectOrderedSegmentHistory is SelectSegmentHistory with rows ordered by way and
	// then by position within the way.
	SelectOrderedSegmentHistory = "SELECT ws.id AS way_id, ws.segment_id, ws.sequence_id, ws.version" +
		" FROM way_segments ws" +
		" INNER JOIN" +
		" (" +
		"SELECT id, MAX(version) AS version" +
		" FROM ways" +
		" WHERE timestamp >= ? AND timestamp < ?" +
		" GROUP BY id" +
		") w" +
		" ON ws.id = w.id AND ws.version = w.version" +
		" ORDER BY ws.id, ws.sequence_id;"
)

// SegmentHistory is a query for the segment lists of ways that changed within a time
// range. For each way, only the most recent version inside the range is returned,
// and the full list of that version's segments is returned rather than a diff
// against the previous version.
//
// Every entry is reported as visible: ways deleted within the range are not
// distinguished from ways that still exist.
type SegmentHistory struct {
	tr      telem.TimeRange
	ordered bool
}

// NewSegmentHistory opens a new query over the range [tr.Start, tr.End). The range is
// used as given; an empty or inverted range matches nothing.
func NewSegmentHistory(tr telem.TimeRange) SegmentHistory {
	return SegmentHistory{tr: tr}
}

// Ordered sets whether rows are ordered by way id and sequence id. Unordered rows
// are the default.
func (s SegmentHistory) Ordered(ordered bool) SegmentHistory {
	s.ordered = ordered
	return s
}

// TimeRange returns the range the query selects versions from.
func (s SegmentHistory) TimeRange() telem.TimeRange { return s.tr }

// Iterate returns a Reader streaming the query's entries from conn. The statement is
// not executed until the first call to HasNext or Next. The caller must Close the
// Reader unless it is drained to exhaustion.
func (s SegmentHistory) Iterate(
	ctx context.Context,
	conn stream.Conn,
	opts ...stream.Option,
) *stream.Reader[history.Entry[Segment]] {
	return stream.NewReader[history.Entry[Segment]](ctx, conn, s, opts...)
}

// Query implements stream.Source. Both bounds are bound in UTC to match stored
// timestamps.
func (s SegmentHistory) Query() (string, []interface{}) {
	q := SelectSegmentHistory
	if s.ordered {
		q = SelectOrderedSegmentHistory
	}
	return q, []interface{}{s.tr.Start.UTC(), s.tr.End.UTC()}
}

// Decode implements stream.Source.
func (s SegmentHistory) Decode(row stream.Row) (history.Entry[Segment], error) {
	var (
		seg     Segment
		version int
	)
	if err := row.Scan(&seg.WayID, &seg.SegmentID, &seg.SequenceID, &version); err != nil {
		return history.Entry[Segment]{}, errors.Wrap(err, "[way] - unable to read way segment fields")
	}
	return history.NewEntry(seg, version), nil
}
