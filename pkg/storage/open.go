package storage

import (
	"context"
	"io"
	"path/filepath"
	"syscall"
	"time"

	"github.com/arya-analytics/wayhistory/pkg/errutil"
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

const (
	// MySQL selects github.com/go-sql-driver/mysql.
	MySQL = "mysql"
	// SQLite selects modernc.org/sqlite. Database is the path of the database file.
	SQLite = "sqlite"
)

type Storage struct {
	// Cfg is the configuration for the storage provided to Open.
	Cfg Config
	// DB is the connection to the history database. Readers borrow it; Storage owns it.
	DB *sqlx.DB
	// Checkpoints stores the end of the last extracted window per stream. Checkpoints
	// is nil when neither Dirname nor MemBacked is set.
	Checkpoints *Checkpoints
	// ReleaseLock is a function that releases the lock on the checkpoint directory.
	ReleaseLock func() error
}

func (s *Storage) Close() error {
	c := errutil.NewCatchSimple(errutil.WithAggregation())
	if s.Checkpoints != nil {
		c.Exec(s.Checkpoints.Close)
	}
	if s.ReleaseLock != nil {
		c.Exec(s.ReleaseLock)
	}
	if s.DB != nil {
		c.Exec(s.DB.Close)
	}
	return c.Error()
}

type Config struct {
	// Driver is the database/sql driver used to connect to the history database.
	// Either MySQL or SQLite.
	Driver string
	// DSN, when set, is passed to the driver verbatim and Host, Database, User and
	// Password are ignored.
	DSN string
	// Host is the address of the database server, e.g. "localhost:3306".
	Host string
	// Database is the database name for MySQL, and the file path for SQLite.
	Database string
	User     string
	Password string
	// Dirname is the directory checkpoints are written to. Dirname shouldn't be used
	// by another process while the extractor is running.
	Dirname string
	// MemBacked keeps checkpoints in memory. They are lost on Close.
	MemBacked bool
	// Logger is the logger used by the storage layer.
	Logger *zap.Logger
}

func (cfg Config) checkpointsEnabled() bool { return cfg.MemBacked || cfg.Dirname != "" }

// DataSourceName returns the connection string for the configured driver.
func (cfg Config) DataSourceName() (string, error) {
	if cfg.DSN != "" {
		return cfg.DSN, nil
	}
	switch cfg.Driver {
	case MySQL:
		mc := mysql.NewConfig()
		mc.Net = "tcp"
		mc.Addr = cfg.Host
		mc.DBName = cfg.Database
		mc.User = cfg.User
		mc.Passwd = cfg.Password
		mc.ParseTime = true
		mc.Loc = time.UTC
		return mc.FormatDSN(), nil
	case SQLite:
		if cfg.Database == "" {
			return "", errors.New("[storage] - sqlite requires a database path")
		}
		return cfg.Database, nil
	}
	return "", errors.Newf("[storage] - unsupported driver %q", cfg.Driver)
}

func Open(ctx context.Context, cfg Config) (Storage, error) {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	s := Storage{Cfg: cfg}

	// Connect to the history database. The connection is verified here so that a
	// bad configuration fails before any reader is opened.
	db, err := openDB(ctx, cfg)
	if err != nil {
		return s, err
	}
	s.DB = db

	if !cfg.checkpointsEnabled() {
		return s, nil
	}

	baseVFS := openBaseFS(cfg)
	if cfg.Dirname != "" {
		if err := baseVFS.MkdirAll(cfg.Dirname, 0755); err != nil {
			return s, errors.CombineErrors(err, s.DB.Close())
		}
	}

	// Acquire the lock on the checkpoint directory. If another extractor is using the
	// same directory we return an error to the caller.
	releaser, err := acquireLock(cfg, baseVFS)
	if err != nil {
		return s, errors.CombineErrors(err, s.DB.Close())
	}
	s.ReleaseLock = releaser.Close

	kv, err := openKV(cfg, baseVFS)
	if err != nil {
		return s, errors.CombineErrors(err, errors.CombineErrors(s.ReleaseLock(), s.DB.Close()))
	}
	s.Checkpoints = &Checkpoints{kv: kv}
	cfg.Logger.Debug("opened checkpoint store", zap.String("dirname", cfg.Dirname), zap.Bool("mem", cfg.MemBacked))
	return s, nil
}

const (
	kvDirname    = "kv"
	lockFileName = "LOCK"
)

func openDB(ctx context.Context, cfg Config) (*sqlx.DB, error) {
	dsn, err := cfg.DataSourceName()
	if err != nil {
		return nil, err
	}
	db, err := sqlx.Open(cfg.Driver, dsn)
	if err != nil {
		return nil, errors.Wrapf(err, "[storage] - unable to open %s connection", cfg.Driver)
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, errors.CombineErrors(
			errors.Wrapf(err, "[storage] - unable to reach %s database", cfg.Driver),
			db.Close(),
		)
	}
	cfg.Logger.Info("connected to history database", zap.String("driver", cfg.Driver), zap.String("database", cfg.Database))
	return db, nil
}

func openBaseFS(cfg Config) vfs.FS {
	if cfg.MemBacked {
		return vfs.NewMem()
	}
	return vfs.Default
}

const (
	lockAlreadyAcquireMsg = `
	The checkpoint directory is locked by another process.

	Is there another extractor using the same directory?
	`
)

func acquireLock(cfg Config, fs vfs.FS) (io.Closer, error) {
	fName := filepath.Join(cfg.Dirname, lockFileName)
	release, err := fs.Lock(fName)
	if err == nil {
		return release, nil
	}
	if errors.Is(err, syscall.EAGAIN) {
		return release, errors.Wrap(err, lockAlreadyAcquireMsg)
	}
	return release, err
}

func openKV(cfg Config, fs vfs.FS) (*pebble.DB, error) {
	dirname := filepath.Join(cfg.Dirname, kvDirname)
	return pebble.Open(dirname, &pebble.Options{FS: fs})
}
