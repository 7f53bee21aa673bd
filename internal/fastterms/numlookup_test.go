package fastterms

import (
	"bytes"
	"testing"

	"github.com/jmfrees/zombodb/internal/stream"
)

func drain(t *testing.T, it NumberIterator) []int64 {
	t.Helper()
	var out []int64
	for it.HasNext() {
		out = append(out, it.Next())
	}
	return out
}

func TestLookupDeduplicatesAndSorts(t *testing.T) {
	l := NewNumberArrayLookup([]int64{9, 1, 5, 9, 1})
	if got := l.Size(); got != 3 {
		t.Fatalf("Size() = %d, want 3", got)
	}
	got := drain(t, ConcatNumberIterators(l.Iterators()))
	want := []int64{1, 5, 9}
	if len(got) != len(want) {
		t.Fatalf("iterator yielded %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("iterator yielded %v, want %v", got, want)
		}
	}
}

func TestLookupNegativeValuesStaySorted(t *testing.T) {
	l := NewNumberArrayLookup([]int64{5, -3, 0, -100})
	got := drain(t, ConcatNumberIterators(l.Iterators()))
	want := []int64{-100, -3, 0, 5}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("iterator yielded %v, want %v", got, want)
		}
	}
}

func TestLookupSliceEstimate(t *testing.T) {
	l := NewNumberArrayLookup([]int64{1, 5, 9})
	if got := l.EstimateByteSize(); got != 24 {
		t.Fatalf("EstimateByteSize() = %d, want 24", got)
	}
}

func TestLookupContains(t *testing.T) {
	l := NewNumberArrayLookup([]int64{2, 7})
	for _, v := range []int64{2, 7} {
		if !l.Contains(v) {
			t.Errorf("Contains(%d) = false, want true", v)
		}
	}
	for _, v := range []int64{0, 3, -1} {
		if l.Contains(v) {
			t.Errorf("Contains(%d) = true, want false", v)
		}
	}
}

func TestLookupBitmapArm(t *testing.T) {
	values := make([]int64, 0, bitmapMinSize+100)
	for i := 0; i < bitmapMinSize+100; i++ {
		values = append(values, int64(i*3))
	}
	l := NewNumberArrayLookup(values)
	if l.bitmap == nil {
		t.Fatal("expected bitmap representation for large non-negative set")
	}
	if got := l.Size(); got != len(values) {
		t.Fatalf("Size() = %d, want %d", got, len(values))
	}
	if !l.Contains(3) || l.Contains(4) {
		t.Fatal("bitmap Contains is wrong")
	}
	got := drain(t, ConcatNumberIterators(l.Iterators()))
	for i, v := range got {
		if v != int64(i*3) {
			t.Fatalf("value %d = %d, want %d", i, v, i*3)
		}
	}
}

func TestLookupLargeNegativeSetUsesSlice(t *testing.T) {
	values := make([]int64, 0, bitmapMinSize+10)
	for i := 0; i < bitmapMinSize+10; i++ {
		values = append(values, int64(i)-5)
	}
	l := NewNumberArrayLookup(values)
	if l.bitmap != nil {
		t.Fatal("negative values must not use the bitmap arm")
	}
	got := drain(t, ConcatNumberIterators(l.Iterators()))
	if got[0] != -5 {
		t.Fatalf("first value = %d, want -5", got[0])
	}
}

func TestLookupRoundTrip(t *testing.T) {
	large := make([]int64, 0, bitmapMinSize*2)
	for i := 0; i < bitmapMinSize*2; i++ {
		large = append(large, int64(i*i))
	}
	cases := map[string][]int64{
		"empty":    {},
		"small":    {1, 5, 9},
		"negative": {-9, -1, 0, 12},
		"large":    large,
	}
	for name, values := range cases {
		t.Run(name, func(t *testing.T) {
			orig := NewNumberArrayLookup(values)
			var buf bytes.Buffer
			if err := orig.EncodeTo(stream.NewWriter(&buf)); err != nil {
				t.Fatalf("EncodeTo: %v", err)
			}
			decoded, err := DecodeNumberArrayLookup(stream.NewReader(&buf))
			if err != nil {
				t.Fatalf("DecodeNumberArrayLookup: %v", err)
			}
			if !orig.Equal(decoded) {
				t.Fatal("decoded lookup differs from original")
			}
		})
	}
}

func TestLookupFreshIteratorsPerCall(t *testing.T) {
	l := NewNumberArrayLookup([]int64{1, 2, 3})
	first := ConcatNumberIterators(l.Iterators())
	drain(t, first)
	second := ConcatNumberIterators(l.Iterators())
	if got := drain(t, second); len(got) != 3 {
		t.Fatalf("second iterator yielded %d values, want 3", len(got))
	}
}
