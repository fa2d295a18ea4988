package way

import "github.com/arya-analytics/wayhistory/pkg/history"

// Segment is the membership of a line segment in a way at a particular position.
// (WayID, SequenceID) is unique within one version of a way. The same SegmentID may
// appear in many ways.
type Segment struct {
	WayID      int64
	SegmentID  int64
	SequenceID int
}

// Row is the flat shape of a segment history record, matching the columns of the
// windowed history statement.
type Row struct {
	WayID      int64 `json:"way_id" db:"way_id"`
	SegmentID  int64 `json:"segment_id" db:"segment_id"`
	SequenceID int   `json:"sequence_id" db:"sequence_id"`
	Version    int   `json:"version" db:"version"`
	Visible    bool  `json:"visible" db:"-"`
}

// Entry returns the history entry the row describes.
func (r Row) Entry() history.Entry[Segment] {
	return history.Entry[Segment]{
		Value:   Segment{WayID: r.WayID, SegmentID: r.SegmentID, SequenceID: r.SequenceID},
		Version: r.Version,
		Visible: r.Visible,
	}
}

// RowOf flattens a history entry into a Row.
func RowOf(e history.Entry[Segment]) Row {
	return Row{
		WayID:      e.Value.WayID,
		SegmentID:  e.Value.SegmentID,
		SequenceID: e.Value.SequenceID,
		Version:    e.Version,
		Visible:    e.Visible,
	}
}
