package storage_test

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/arya-analytics/wayhistory/pkg/storage"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Storage", func() {
	ctx := context.Background()
	Describe("Open", func() {
		It("Should open a connection without a checkpoint store", func() {
			s, err := storage.Open(ctx, storage.Config{Driver: storage.SQLite, Database: ":memory:"})
			Expect(err).ToNot(HaveOccurred())
			Expect(s.DB).ToNot(BeNil())
			Expect(s.Checkpoints).To(BeNil())
			Expect(s.Close()).To(Succeed())
		})
		It("Should open a memory backed checkpoint store", func() {
			s, err := storage.Open(ctx, storage.Config{
				Driver:    storage.SQLite,
				Database:  ":memory:",
				MemBacked: true,
			})
			Expect(err).ToNot(HaveOccurred())
			Expect(s.Checkpoints).ToNot(BeNil())
			Expect(s.Close()).To(Succeed())
		})
		It("Should return an error for an unsupported driver", func() {
			_, err := storage.Open(ctx, storage.Config{Driver: "oracle"})
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("unsupported driver"))
		})
	})

	Describe("DataSourceName", func() {
		It("Should build a MySQL DSN that parses timestamps", func() {
			dsn, err := storage.Config{
				Driver:   storage.MySQL,
				Host:     "localhost:3306",
				Database: "osm",
				User:     "osm",
				Password: "secret",
			}.DataSourceName()
			Expect(err).ToNot(HaveOccurred())
			Expect(dsn).To(HavePrefix("osm:secret@tcp(localhost:3306)/osm"))
			Expect(dsn).To(ContainSubstring("parseTime=true"))
		})
		It("Should prefer an explicit DSN", func() {
			dsn, err := storage.Config{Driver: storage.MySQL, DSN: "raw", Host: "ignored"}.DataSourceName()
			Expect(err).ToNot(HaveOccurred())
			Expect(dsn).To(Equal("raw"))
		})
		It("Should require a path for SQLite", func() {
			_, err := storage.Config{Driver: storage.SQLite}.DataSourceName()
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("Checkpoints", func() {
		var s storage.Storage
		BeforeEach(func() {
			dir, err := os.MkdirTemp("", "wayhistory-storage")
			Expect(err).ToNot(HaveOccurred())
			DeferCleanup(func() { Expect(os.RemoveAll(dir)).To(Succeed()) })
			s, err = storage.Open(ctx, storage.Config{
				Driver:   storage.SQLite,
				Database: ":memory:",
				Dirname:  filepath.Join(dir, "checkpoints"),
			})
			Expect(err).ToNot(HaveOccurred())
			DeferCleanup(func() { Expect(s.Close()).To(Succeed()) })
		})
		It("Should report a missing checkpoint", func() {
			_, ok, err := s.Checkpoints.Get("ways")
			Expect(err).ToNot(HaveOccurred())
			Expect(ok).To(BeFalse())
		})
		It("Should store and retrieve a checkpoint", func() {
			end := time.Date(2022, 6, 1, 12, 0, 25, 500, time.UTC)
			Expect(s.Checkpoints.Set("ways", end)).To(Succeed())
			got, ok, err := s.Checkpoints.Get("ways")
			Expect(err).ToNot(HaveOccurred())
			Expect(ok).To(BeTrue())
			Expect(got).To(BeTemporally("==", end))
		})
		It("Should keep checkpoints for separate streams apart", func() {
			Expect(s.Checkpoints.Set("a", time.Unix(10, 0))).To(Succeed())
			Expect(s.Checkpoints.Set("b", time.Unix(20, 0))).To(Succeed())
			a, _, err := s.Checkpoints.Get("a")
			Expect(err).ToNot(HaveOccurred())
			Expect(a).To(BeTemporally("==", time.Unix(10, 0)))
		})
		It("Should delete a checkpoint", func() {
			Expect(s.Checkpoints.Set("ways", time.Unix(10, 0))).To(Succeed())
			Expect(s.Checkpoints.Delete("ways")).To(Succeed())
			_, ok, err := s.Checkpoints.Get("ways")
			Expect(err).ToNot(HaveOccurred())
			Expect(ok).To(BeFalse())
		})
	})
})
