package storage

import (
	"encoding/binary"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/pebble"
)

var checkpointPrefix = []byte("checkpoint/")

// Checkpoints persists, per named stream, the exclusive end of the last window that
// was extracted in full.
type Checkpoints struct {
	kv *pebble.DB
}

func checkpointKey(name string) []byte {
	return append(append([]byte{}, checkpointPrefix...), name...)
}

// Get returns the checkpoint for the stream with the given name. The second return
// value is false if no checkpoint has been stored.
func (c *Checkpoints) Get(name string) (time.Time, bool, error) {
	v, closer, err := c.kv.Get(checkpointKey(name))
	if errors.Is(err, pebble.ErrNotFound) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	defer func() { _ = closer.Close() }()
	if len(v) != 8 {
		return time.Time{}, false, errors.Newf("[storage] - corrupt checkpoint for %q: %d bytes", name, len(v))
	}
	return time.Unix(0, int64(binary.BigEndian.Uint64(v))).UTC(), true, nil
}

// Set stores t as the checkpoint for the stream with the given name.
func (c *Checkpoints) Set(name string, t time.Time) error {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(t.UnixNano()))
	return c.kv.Set(checkpointKey(name), b, pebble.Sync)
}

// Delete removes the checkpoint for the stream with the given name, if any.
func (c *Checkpoints) Delete(name string) error {
	return c.kv.Delete(checkpointKey(name), pebble.Sync)
}

func (c *Checkpoints) Close() error { return c.kv.Close() }
