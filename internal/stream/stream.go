// Package stream implements the primitive-value binary framing used by the
// fast-terms wire format: unsigned and zigzag varints, length-prefixed
// strings, and single-byte enum tags. Writers and readers must apply the
// primitives in the same order; there is no self-describing structure.
package stream

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/jmfrees/zombodb/pkg/errors"
)

// MaxStringLen caps a decoded string length so a corrupt length prefix
// fails fast instead of attempting a huge allocation.
const MaxStringLen = 1 << 26

// Writer encodes primitive values onto an io.Writer.
type Writer struct {
	w   io.Writer
	buf [binary.MaxVarintLen64]byte
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// WriteUvarint writes v in 7-bit groups, least significant first.
func (w *Writer) WriteUvarint(v uint64) error {
	n := binary.PutUvarint(w.buf[:], v)
	if _, err := w.w.Write(w.buf[:n]); err != nil {
		return fmt.Errorf("write uvarint: %w", err)
	}
	return nil
}

// WriteVarint zigzag-encodes v so small negative values stay short.
func (w *Writer) WriteVarint(v int64) error {
	n := binary.PutVarint(w.buf[:], v)
	if _, err := w.w.Write(w.buf[:n]); err != nil {
		return fmt.Errorf("write varint: %w", err)
	}
	return nil
}

// WriteTag writes a single enum tag byte.
func (w *Writer) WriteTag(tag byte) error {
	w.buf[0] = tag
	if _, err := w.w.Write(w.buf[:1]); err != nil {
		return fmt.Errorf("write tag: %w", err)
	}
	return nil
}

// WriteString writes a uvarint byte length followed by the raw bytes.
func (w *Writer) WriteString(s string) error {
	if err := w.WriteUvarint(uint64(len(s))); err != nil {
		return err
	}
	if _, err := io.WriteString(w.w, s); err != nil {
		return fmt.Errorf("write string: %w", err)
	}
	return nil
}

// WriteBytes writes a uvarint length followed by the raw bytes.
func (w *Writer) WriteBytes(p []byte) error {
	if err := w.WriteUvarint(uint64(len(p))); err != nil {
		return err
	}
	if _, err := w.w.Write(p); err != nil {
		return fmt.Errorf("write bytes: %w", err)
	}
	return nil
}

// Reader decodes primitive values from an io.Reader. All read failures,
// including truncation mid-value, surface as errors.ErrCorruptStream.
type Reader struct {
	r *bufio.Reader
}

func NewReader(r io.Reader) *Reader {
	return &Reader{r: bufio.NewReader(r)}
}

func (r *Reader) ReadUvarint() (uint64, error) {
	v, err := binary.ReadUvarint(r.r)
	if err != nil {
		return 0, errors.Newf(errors.ErrCorruptStream, "reading uvarint: %v", err)
	}
	return v, nil
}

func (r *Reader) ReadVarint() (int64, error) {
	v, err := binary.ReadVarint(r.r)
	if err != nil {
		return 0, errors.Newf(errors.ErrCorruptStream, "reading varint: %v", err)
	}
	return v, nil
}

func (r *Reader) ReadTag() (byte, error) {
	b, err := r.r.ReadByte()
	if err != nil {
		return 0, errors.Newf(errors.ErrCorruptStream, "reading tag: %v", err)
	}
	return b, nil
}

func (r *Reader) ReadString() (string, error) {
	n, err := r.ReadUvarint()
	if err != nil {
		return "", err
	}
	if n > MaxStringLen {
		return "", errors.Newf(errors.ErrCorruptStream, "string length %d exceeds limit", n)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r.r, buf); err != nil {
		return "", errors.Newf(errors.ErrCorruptStream, "reading string body: %v", err)
	}
	return string(buf), nil
}

func (r *Reader) ReadBytes() ([]byte, error) {
	n, err := r.ReadUvarint()
	if err != nil {
		return nil, err
	}
	if n > MaxStringLen {
		return nil, errors.Newf(errors.ErrCorruptStream, "byte block length %d exceeds limit", n)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r.r, buf); err != nil {
		return nil, errors.Newf(errors.ErrCorruptStream, "reading byte block: %v", err)
	}
	return buf, nil
}
