/*
Copyright © 2022 NAME HERE <EMAIL ADDRESS>

*/
package cmd

import (
	"context"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/arya-analytics/wayhistory/pkg/emit"
	"github.com/arya-analytics/wayhistory/pkg/errutil"
	"github.com/arya-analytics/wayhistory/pkg/history"
	"github.com/arya-analytics/wayhistory/pkg/query/stream"
	"github.com/arya-analytics/wayhistory/pkg/storage"
	"github.com/arya-analytics/wayhistory/pkg/telem"
	"github.com/arya-analytics/wayhistory/pkg/way"
	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// extractCmd represents the extract command
var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Write the way segment lists that changed within a time window",
	Long: `Extract selects, for every way with at least one version whose timestamp falls in
[begin, end), the latest such version and writes each of its segment memberships as a
JSON line:

	{"way_id":5,"segment_id":100,"sequence_id":0,"version":2,"visible":true}

With --resume, begin defaults to the end of the last window extracted for the same
--stream, which is recorded in the checkpoint store after every complete run.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger, err := configureLogging()
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()

		sigC := make(chan os.Signal, 1)
		signal.Notify(sigC, os.Interrupt)
		defer signal.Stop(sigC)

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()
		g, ctx := errgroup.WithContext(ctx)
		done := make(chan struct{})

		// Perform the extraction within a separate goroutine so we can properly
		// handle signal interrupts.
		g.Go(func() error {
			defer close(done)
			return extract(ctx, logger)
		})

		select {
		case <-sigC:
			logger.Info("interrupted, abandoning window")
			cancel()
		case <-done:
		}

		return g.Wait()
	},
}

func init() {
	rootCmd.AddCommand(extractCmd)

	extractCmd.Flags().String("driver", storage.MySQL, "database driver: mysql or sqlite")
	extractCmd.Flags().String("host", "localhost:3306", "address of the database server")
	extractCmd.Flags().String("database", "osm", "database name, or file path for sqlite")
	extractCmd.Flags().String("user", "", "database user")
	extractCmd.Flags().String("password", "", "database password")
	extractCmd.Flags().String("dsn", "", "driver connection string; overrides host, database, user and password")
	extractCmd.Flags().StringP("begin", "b", "", "inclusive start of the window (RFC3339)")
	extractCmd.Flags().StringP("end", "e", "", "exclusive end of the window (RFC3339), defaults to now")
	extractCmd.Flags().Bool("ordered", false, "order records by way id and sequence id")
	extractCmd.Flags().StringP("output", "o", "", "output file, defaults to stdout")
	extractCmd.Flags().String("checkpoint-dir", "", "directory to store window checkpoints in")
	extractCmd.Flags().Bool("checkpoint-mem", false, "keep window checkpoints in memory")
	extractCmd.Flags().String("stream", "ways", "name the checkpoint is stored under")
	extractCmd.Flags().Bool("resume", false, "start the window at the stored checkpoint")
	extractCmd.Flags().Bool("reset", false, "discard the stored checkpoint before extracting")

	if err := viper.BindPFlags(extractCmd.Flags()); err != nil {
		panic(err)
	}
}

func extract(ctx context.Context, logger *zap.Logger) (err error) {
	logger = logger.With(zap.Stringer("run", uuid.New()))

	store, err := storage.Open(ctx, newStorageConfig(logger))
	if err != nil {
		return err
	}
	defer func() {
		err = errors.CombineErrors(err, store.Close())
	}()

	if err := resetCheckpoint(store.Checkpoints, logger); err != nil {
		return err
	}

	tr, err := resolveTimeRange(store.Checkpoints)
	if err != nil {
		return err
	}
	q := way.NewSegmentHistory(tr).Ordered(viper.GetBool("ordered"))

	out, err := openOutput()
	if err != nil {
		return err
	}
	defer func() {
		err = errors.CombineErrors(err, out.abort())
	}()

	emitter := emit.NewNDJSON[way.Row](out, nil)
	read := 0
	if q.TimeRange().IsZero() {
		logger.Info("window is empty, nothing to extract", zap.Stringer("range", q.TimeRange()))
	} else {
		reader := q.Iterate(ctx, store.DB, stream.WithLogger(logger.Named("stream")))
		logger.Info("extracting way segment history",
			zap.Stringer("range", q.TimeRange()),
			zap.Duration("span", q.TimeRange().Span()),
		)
		if err := stream.ForEach[history.Entry[way.Segment]](reader, func(e history.Entry[way.Segment]) error {
			return emitter.Emit(way.RowOf(e))
		}); err != nil {
			return err
		}
		read = reader.Read()
	}
	if err := emitter.Flush(); err != nil {
		return err
	}
	if err := out.commit(); err != nil {
		return err
	}
	logger.Info("extracted way segment history",
		zap.Stringer("range", q.TimeRange()),
		zap.Int("rows", read),
		zap.Int("records", emitter.Emitted()),
	)

	if store.Checkpoints != nil {
		if err := store.Checkpoints.Set(viper.GetString("stream"), q.TimeRange().End); err != nil {
			return errors.Wrap(err, "[extract] - unable to store checkpoint")
		}
	}
	return nil
}

// resetCheckpoint discards the stored checkpoint of the stream when --reset is set.
func resetCheckpoint(checkpoints *storage.Checkpoints, logger *zap.Logger) error {
	if !viper.GetBool("reset") {
		return nil
	}
	if checkpoints == nil {
		return errors.New("[extract] - reset requires --checkpoint-dir or --checkpoint-mem")
	}
	name := viper.GetString("stream")
	if err := checkpoints.Delete(name); err != nil {
		return errors.Wrap(err, "[extract] - unable to reset checkpoint")
	}
	logger.Info("reset checkpoint", zap.String("stream", name))
	return nil
}

func newStorageConfig(logger *zap.Logger) storage.Config {
	return storage.Config{
		Driver:    viper.GetString("driver"),
		DSN:       viper.GetString("dsn"),
		Host:      viper.GetString("host"),
		Database:  viper.GetString("database"),
		User:      viper.GetString("user"),
		Password:  viper.GetString("password"),
		Dirname:   viper.GetString("checkpoint-dir"),
		MemBacked: viper.GetBool("checkpoint-mem"),
		Logger:    logger.Named("storage"),
	}
}

func configureLogging() (*zap.Logger, error) {
	if viper.GetBool("debug") {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// resolveTimeRange builds the window from the begin and end flags. When resuming, a
// stored checkpoint takes precedence over the begin flag.
func resolveTimeRange(checkpoints *storage.Checkpoints) (telem.TimeRange, error) {
	var tr telem.TimeRange

	end, err := parseStamp("end", time.Now().UTC())
	if err != nil {
		return tr, err
	}

	var (
		begin   time.Time
		resumed bool
	)
	if viper.GetBool("resume") {
		if checkpoints == nil {
			return tr, errors.New("[extract] - resume requires --checkpoint-dir or --checkpoint-mem")
		}
		if begin, resumed, err = checkpoints.Get(viper.GetString("stream")); err != nil {
			return tr, err
		}
	}
	if !resumed {
		if viper.GetString("begin") == "" {
			return tr, errors.New("[extract] - a begin time is required when there is no checkpoint to resume from")
		}
		if begin, err = parseStamp("begin", time.Time{}); err != nil {
			return tr, err
		}
	}

	tr = telem.NewTimeRange(begin, end)
	if !tr.Valid() {
		return tr, errors.Newf("[extract] - window end %s is before its begin %s", end, begin)
	}
	return tr, nil
}

func parseStamp(key string, def time.Time) (time.Time, error) {
	v := viper.GetString(key)
	if v == "" {
		return def, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return t, errors.Wrapf(err, "[extract] - invalid %s time", key)
	}
	return t.UTC(), nil
}

// output is where records are written. A file output is staged next to its
// destination and only replaces it on commit, so a failed or interrupted run leaves
// any previous output in place.
type output struct {
	io.Writer
	f    *os.File
	path string
	done bool
}

func openOutput() (*output, error) {
	path := viper.GetString("output")
	if path == "" {
		return &output{Writer: os.Stdout, done: true}, nil
	}
	f, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+"-*")
	if err != nil {
		return nil, errors.Wrap(err, "[extract] - unable to create output file")
	}
	if err := f.Chmod(0o644); err != nil {
		return nil, errors.CombineErrors(
			errors.Wrap(err, "[extract] - unable to create output file"),
			errors.CombineErrors(f.Close(), os.Remove(f.Name())),
		)
	}
	return &output{Writer: f, f: f, path: path}, nil
}

// commit moves the staged file into place.
func (o *output) commit() error {
	if o.done {
		return nil
	}
	o.done = true
	c := errutil.NewCatchSimple()
	c.Exec(o.f.Sync)
	c.Exec(o.f.Close)
	c.Exec(func() error { return os.Rename(o.f.Name(), o.path) })
	if err := c.Error(); err != nil {
		_ = os.Remove(o.f.Name())
		return errors.Wrap(err, "[extract] - unable to write output file")
	}
	return nil
}

// abort discards the staged file unless it was committed.
func (o *output) abort() error {
	if o.done {
		return nil
	}
	o.done = true
	c := errutil.NewCatchSimple(errutil.WithAggregation())
	c.Exec(o.f.Close)
	c.Exec(func() error { return os.Remove(o.f.Name()) })
	return c.Error()
}
