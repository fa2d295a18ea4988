package way_test

import (
	"context"
	"time"

	"github.com/arya-analytics/wayhistory/pkg/history"
	"github.com/arya-analytics/wayhistory/pkg/query/stream"
	"github.com/arya-analytics/wayhistory/pkg/telem"
	"github.com/arya-analytics/wayhistory/pkg/way"
	"github.com/jmoiron/sqlx"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE ways (
	id INTEGER NOT NULL,
	version INTEGER NOT NULL,
	timestamp DATETIME NOT NULL,
	PRIMARY KEY (id, version)
);
CREATE TABLE way_segments (
	id INTEGER NOT NULL,
	segment_id INTEGER NOT NULL,
	sequence_id INTEGER NOT NULL,
	version INTEGER NOT NULL,
	PRIMARY KEY (id, version, sequence_id)
);`

type wayVersion struct {
	id       int64
	version  int
	ts       time.Time
	segments []int64
}

func insertVersion(db *sqlx.DB, v wayVersion) {
	_, err := db.Exec("INSERT INTO ways (id, version, timestamp) VALUES (?, ?, ?)", v.id, v.version, v.ts)
	Expect(err).ToNot(HaveOccurred())
	for seq, seg := range v.segments {
		_, err := db.Exec(
			"INSERT INTO way_segments (id, segment_id, sequence_id, version) VALUES (?, ?, ?, ?)",
			v.id, seg, seq, v.version,
		)
		Expect(err).ToNot(HaveOccurred())
	}
}

func entry(wayID, segmentID int64, seq, version int) history.Entry[way.Segment] {
	return history.NewEntry(way.Segment{WayID: wayID, SegmentID: segmentID, SequenceID: seq}, version)
}

var _ = Describe("SegmentHistory against SQLite", func() {
	var db *sqlx.DB
	BeforeEach(func() {
		var err error
		db, err = sqlx.Open("sqlite", ":memory:")
		Expect(err).ToNot(HaveOccurred())
		// Each connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
		_, err = db.Exec(schema)
		Expect(err).ToNot(HaveOccurred())
		insertVersion(db, wayVersion{id: 5, version: 1, ts: stamp(10), segments: []int64{100, 101}})
		insertVersion(db, wayVersion{id: 5, version: 2, ts: stamp(20), segments: []int64{100, 102}})
		insertVersion(db, wayVersion{id: 6, version: 1, ts: stamp(12), segments: []int64{200, 201, 202}})
		DeferCleanup(func() { Expect(db.Close()).To(Succeed()) })
	})

	collect := func(q way.SegmentHistory) []history.Entry[way.Segment] {
		entries, err := stream.Collect[history.Entry[way.Segment]](q.Iterate(context.Background(), db))
		Expect(err).ToNot(HaveOccurred())
		return entries
	}
	window := func(start, end int) way.SegmentHistory {
		return way.NewSegmentHistory(telem.NewTimeRange(stamp(start), stamp(end)))
	}

	It("Should return only the latest in-window version of a changed way", func() {
		Expect(collect(window(15, 25))).To(ConsistOf(
			entry(5, 100, 0, 2),
			entry(5, 102, 1, 2),
		))
	})

	It("Should ignore a later version that falls outside the window", func() {
		Expect(collect(window(5, 11))).To(ConsistOf(
			entry(5, 100, 0, 1),
			entry(5, 101, 1, 1),
		))
	})

	It("Should return every segment of each changed way exactly once", func() {
		Expect(collect(window(0, 30).Ordered(true))).To(Equal([]history.Entry[way.Segment]{
			entry(5, 100, 0, 2),
			entry(5, 102, 1, 2),
			entry(6, 200, 0, 1),
			entry(6, 201, 1, 1),
			entry(6, 202, 2, 1),
		}))
	})

	It("Should include the start of the window and exclude its end", func() {
		Expect(collect(window(12, 20))).To(ConsistOf(
			entry(6, 200, 0, 1),
			entry(6, 201, 1, 1),
			entry(6, 202, 2, 1),
		))
	})

	It("Should select the same versions for a window expressed in another zone", func() {
		zone := time.FixedZone("UTC+5", 5*60*60)
		q := way.NewSegmentHistory(telem.NewTimeRange(stamp(5).In(zone), stamp(15).In(zone)))
		Expect(collect(q)).To(ConsistOf(
			entry(5, 100, 0, 1),
			entry(5, 101, 1, 1),
			entry(6, 200, 0, 1),
			entry(6, 201, 1, 1),
			entry(6, 202, 2, 1),
		))
	})

	DescribeTable("Empty and inverted windows return nothing",
		func(start, end int) {
			Expect(collect(window(start, end))).To(BeEmpty())
		},
		Entry("empty at a version timestamp", 20, 20),
		Entry("inverted", 25, 15),
		Entry("before any edits", 0, 5),
	)

	It("Should release the cursor when closed early", func() {
		r := window(0, 30).Ordered(true).Iterate(context.Background(), db)
		Expect(r.Next()).To(Equal(entry(5, 100, 0, 2)))
		Expect(r.Next()).To(Equal(entry(5, 102, 1, 2)))
		Expect(r.Close()).To(Succeed())
		Expect(r.HasNext()).To(BeFalse())
		// The single pooled connection is usable again only if the cursor was released.
		var count int
		Expect(db.Get(&count, "SELECT COUNT(*) FROM way_segments")).To(Succeed())
		Expect(count).To(Equal(7))
	})
})
