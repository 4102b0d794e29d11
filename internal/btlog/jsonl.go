package btlog

import (
	"bufio"
	"context"
	"encoding/json"
	"io"

	"github.com/joeycumines/bte/internal/bt"
)

// JSONL writes one JSON object per transition per line.
type JSONL struct {
	w   io.Writer
	buf *bufio.Writer
	enc *json.Encoder
}

// NewJSONL returns a backend writing to w. If w is an io.Closer it is
// closed with the backend.
func NewJSONL(w io.Writer) *JSONL {
	buf := bufio.NewWriter(w)
	return &JSONL{w: w, buf: buf, enc: json.NewEncoder(buf)}
}

// WriteBatch implements Backend. The batch is flushed to the underlying
// writer before returning.
func (j *JSONL) WriteBatch(_ context.Context, batch []bt.Transition) error {
	for i := range batch {
		if err := j.enc.Encode(&batch[i]); err != nil {
			return err
		}
	}
	return j.buf.Flush()
}

// Close implements Backend.
func (j *JSONL) Close() error {
	err := j.buf.Flush()
	if c, ok := j.w.(io.Closer); ok {
		if cerr := c.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
