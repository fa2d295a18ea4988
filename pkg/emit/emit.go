package emit

import (
	"bufio"
	"encoding/json"
	"io"
)

// EncoderFunc converts a value of type T to JSON bytes.
type EncoderFunc[T any] func(T) ([]byte, error)

// NDJSON writes one JSON object per line to an underlying writer. Output is buffered;
// call Flush once the last record has been emitted.
type NDJSON[T any] struct {
	w       *bufio.Writer
	encode  EncoderFunc[T]
	emitted int
}

// NewNDJSON returns an NDJSON emitter writing to w. If encode is nil, it falls back
// to json.Marshal.
func NewNDJSON[T any](w io.Writer, encode EncoderFunc[T]) *NDJSON[T] {
	if encode == nil {
		encode = func(v T) ([]byte, error) { return json.Marshal(v) }
	}
	return &NDJSON[T]{w: bufio.NewWriter(w), encode: encode}
}

// Emit writes a single record followed by a newline.
func (e *NDJSON[T]) Emit(record T) error {
	b, err := e.encode(record)
	if err != nil {
		return err
	}
	if _, err := e.w.Write(b); err != nil {
		return err
	}
	if err := e.w.WriteByte('\n'); err != nil {
		return err
	}
	e.emitted++
	return nil
}

// Emitted returns the number of records written so far.
func (e *NDJSON[T]) Emitted() int { return e.emitted }

// Flush writes any buffered output to the underlying writer.
func (e *NDJSON[T]) Flush() error { return e.w.Flush() }
