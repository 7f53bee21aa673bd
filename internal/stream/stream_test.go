package stream

import (
	"bytes"
	"errors"
	"testing"

	pkgerrors "github.com/jmfrees/zombodb/pkg/errors"
)

func TestUvarintRoundTrip(t *testing.T) {
	values := []uint64{0, 1, 127, 128, 300, 1 << 20, 1<<63 - 1}
	var buf bytes.Buffer
	w := NewWriter(&buf)
	for _, v := range values {
		if err := w.WriteUvarint(v); err != nil {
			t.Fatalf("WriteUvarint(%d): %v", v, err)
		}
	}
	r := NewReader(&buf)
	for _, want := range values {
		got, err := r.ReadUvarint()
		if err != nil {
			t.Fatalf("ReadUvarint: %v", err)
		}
		if got != want {
			t.Errorf("got %d, want %d", got, want)
		}
	}
}

func TestVarintRoundTrip(t *testing.T) {
	values := []int64{0, -1, 1, -64, 63, -9000000000, 9000000000}
	var buf bytes.Buffer
	w := NewWriter(&buf)
	for _, v := range values {
		if err := w.WriteVarint(v); err != nil {
			t.Fatalf("WriteVarint(%d): %v", v, err)
		}
	}
	r := NewReader(&buf)
	for _, want := range values {
		got, err := r.ReadVarint()
		if err != nil {
			t.Fatalf("ReadVarint: %v", err)
		}
		if got != want {
			t.Errorf("got %d, want %d", got, want)
		}
	}
}

func TestStringRoundTrip(t *testing.T) {
	values := []string{"", "a", "beer", "日本語", string(make([]byte, 1000))}
	var buf bytes.Buffer
	w := NewWriter(&buf)
	for _, v := range values {
		if err := w.WriteString(v); err != nil {
			t.Fatalf("WriteString(%q): %v", v, err)
		}
	}
	r := NewReader(&buf)
	for _, want := range values {
		got, err := r.ReadString()
		if err != nil {
			t.Fatalf("ReadString: %v", err)
		}
		if got != want {
			t.Errorf("got %q, want %q", got, want)
		}
	}
}

func TestTagRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	for tag := byte(0); tag < 4; tag++ {
		if err := w.WriteTag(tag); err != nil {
			t.Fatalf("WriteTag(%d): %v", tag, err)
		}
	}
	r := NewReader(&buf)
	for want := byte(0); want < 4; want++ {
		got, err := r.ReadTag()
		if err != nil {
			t.Fatalf("ReadTag: %v", err)
		}
		if got != want {
			t.Errorf("got %d, want %d", got, want)
		}
	}
}

func TestTruncatedStringIsCorrupt(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	if err := w.WriteString("hello world"); err != nil {
		t.Fatal(err)
	}
	truncated := buf.Bytes()[:buf.Len()-3]
	r := NewReader(bytes.NewReader(truncated))
	if _, err := r.ReadString(); !errors.Is(err, pkgerrors.ErrCorruptStream) {
		t.Fatalf("expected ErrCorruptStream, got %v", err)
	}
}

func TestOversizedLengthIsCorrupt(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	if err := w.WriteUvarint(MaxStringLen + 1); err != nil {
		t.Fatal(err)
	}
	r := NewReader(&buf)
	if _, err := r.ReadString(); !errors.Is(err, pkgerrors.ErrCorruptStream) {
		t.Fatalf("expected ErrCorruptStream, got %v", err)
	}
}

func TestEmptyInputIsCorrupt(t *testing.T) {
	r := NewReader(bytes.NewReader(nil))
	if _, err := r.ReadUvarint(); !errors.Is(err, pkgerrors.ErrCorruptStream) {
		t.Fatalf("expected ErrCorruptStream, got %v", err)
	}
	if _, err := r.ReadTag(); !errors.Is(err, pkgerrors.ErrCorruptStream) {
		t.Fatalf("expected ErrCorruptStream, got %v", err)
	}
}
