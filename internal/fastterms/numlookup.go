package fastterms

import (
	"bytes"
	"sort"

	"github.com/RoaringBitmap/roaring/v2/roaring64"

	"github.com/jmfrees/zombodb/internal/stream"
	"github.com/jmfrees/zombodb/pkg/errors"
)

// bitmapMinSize is the cardinality at which a non-negative value set moves
// from a sorted slice to a roaring bitmap.
const bitmapMinSize = 4096

const (
	lookupTagSorted byte = 0
	lookupTagBitmap byte = 1
)

// NumberIterator yields a finite ascending sequence of 64-bit values.
type NumberIterator interface {
	HasNext() bool
	Next() int64
}

// NumberArrayLookup is a compact set of 64-bit identifiers produced by one
// shard. Sets of non-negative values at high cardinality are held in a
// roaring bitmap; everything else uses a sorted slice. Negative values never
// enter the bitmap arm because roaring orders them as unsigned, which would
// break ascending iteration.
type NumberArrayLookup struct {
	bitmap *roaring64.Bitmap
	sorted []int64
}

// NewNumberArrayLookup builds a lookup from values, deduplicating and
// choosing the representation by content.
func NewNumberArrayLookup(values []int64) *NumberArrayLookup {
	sorted := make([]int64, len(values))
	copy(sorted, values)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	out := sorted[:0]
	for i, v := range sorted {
		if i == 0 || v != sorted[i-1] {
			out = append(out, v)
		}
	}
	sorted = out

	if len(sorted) >= bitmapMinSize && sorted[0] >= 0 {
		bm := roaring64.New()
		for _, v := range sorted {
			bm.Add(uint64(v))
		}
		return &NumberArrayLookup{bitmap: bm}
	}
	return &NumberArrayLookup{sorted: sorted}
}

// Size returns the number of distinct values held.
func (l *NumberArrayLookup) Size() int {
	if l.bitmap != nil {
		return int(l.bitmap.GetCardinality())
	}
	return len(l.sorted)
}

// EstimateByteSize returns the approximate in-memory or serialized weight of
// the set. It is an estimate used for transport budgeting, not a byte count
// of the wire encoding.
func (l *NumberArrayLookup) EstimateByteSize() int64 {
	if l.bitmap != nil {
		return int64(l.bitmap.GetSerializedSizeInBytes())
	}
	return int64(len(l.sorted)) * 8
}

// Contains reports whether v is in the set.
func (l *NumberArrayLookup) Contains(v int64) bool {
	if l.bitmap != nil {
		return v >= 0 && l.bitmap.Contains(uint64(v))
	}
	i := sort.Search(len(l.sorted), func(i int) bool { return l.sorted[i] >= v })
	return i < len(l.sorted) && l.sorted[i] == v
}

// Iterators returns fresh ascending iterators whose concatenation yields
// every contained value exactly once in ascending order.
func (l *NumberArrayLookup) Iterators() []NumberIterator {
	if l.bitmap != nil {
		return []NumberIterator{&bitmapIterator{it: l.bitmap.Iterator()}}
	}
	return []NumberIterator{&sliceIterator{values: l.sorted}}
}

// Equal reports value equality regardless of representation.
func (l *NumberArrayLookup) Equal(other *NumberArrayLookup) bool {
	if l == nil || other == nil {
		return l == other
	}
	if l.Size() != other.Size() {
		return false
	}
	a := ConcatNumberIterators(l.Iterators())
	b := ConcatNumberIterators(other.Iterators())
	for a.HasNext() {
		if !b.HasNext() || a.Next() != b.Next() {
			return false
		}
	}
	return !b.HasNext()
}

// EncodeTo writes a self-delimited encoding of the lookup.
func (l *NumberArrayLookup) EncodeTo(w *stream.Writer) error {
	if l.bitmap != nil {
		if err := w.WriteTag(lookupTagBitmap); err != nil {
			return err
		}
		var buf bytes.Buffer
		if _, err := l.bitmap.WriteTo(&buf); err != nil {
			return errors.Newf(errors.ErrInternal, "serializing bitmap: %v", err)
		}
		return w.WriteBytes(buf.Bytes())
	}

	if err := w.WriteTag(lookupTagSorted); err != nil {
		return err
	}
	if err := w.WriteUvarint(uint64(len(l.sorted))); err != nil {
		return err
	}
	// First value zigzag, then deltas: the slice is strictly ascending so
	// every delta is a positive uvarint.
	prev := int64(0)
	for i, v := range l.sorted {
		if i == 0 {
			if err := w.WriteVarint(v); err != nil {
				return err
			}
		} else {
			if err := w.WriteUvarint(uint64(v - prev)); err != nil {
				return err
			}
		}
		prev = v
	}
	return nil
}

// DecodeNumberArrayLookup reads one self-delimited lookup encoding.
func DecodeNumberArrayLookup(r *stream.Reader) (*NumberArrayLookup, error) {
	tag, err := r.ReadTag()
	if err != nil {
		return nil, err
	}
	switch tag {
	case lookupTagBitmap:
		data, err := r.ReadBytes()
		if err != nil {
			return nil, err
		}
		bm := roaring64.New()
		if _, err := bm.ReadFrom(bytes.NewReader(data)); err != nil {
			return nil, errors.Newf(errors.ErrCorruptStream, "parsing bitmap: %v", err)
		}
		return &NumberArrayLookup{bitmap: bm}, nil

	case lookupTagSorted:
		count, err := r.ReadUvarint()
		if err != nil {
			return nil, err
		}
		if count > stream.MaxStringLen {
			return nil, errors.Newf(errors.ErrCorruptStream, "lookup count %d exceeds limit", count)
		}
		sorted := make([]int64, 0, count)
		prev := int64(0)
		for i := uint64(0); i < count; i++ {
			var v int64
			if i == 0 {
				v, err = r.ReadVarint()
			} else {
				var delta uint64
				delta, err = r.ReadUvarint()
				v = prev + int64(delta)
			}
			if err != nil {
				return nil, err
			}
			sorted = append(sorted, v)
			prev = v
		}
		return &NumberArrayLookup{sorted: sorted}, nil

	default:
		return nil, errors.Newf(errors.ErrCorruptStream, "unknown lookup tag %d", tag)
	}
}

type sliceIterator struct {
	values []int64
	pos    int
}

func (it *sliceIterator) HasNext() bool { return it.pos < len(it.values) }

func (it *sliceIterator) Next() int64 {
	v := it.values[it.pos]
	it.pos++
	return v
}

type bitmapIterator struct {
	it roaring64.IntIterable64
}

func (it *bitmapIterator) HasNext() bool { return it.it.HasNext() }

func (it *bitmapIterator) Next() int64 { return int64(it.it.Next()) }

type concatIterator struct {
	iters []NumberIterator
}

// ConcatNumberIterators flattens a list of ascending iterators into one
// sequence, consuming them in order.
func ConcatNumberIterators(iters []NumberIterator) NumberIterator {
	return &concatIterator{iters: iters}
}

func (it *concatIterator) HasNext() bool {
	for len(it.iters) > 0 {
		if it.iters[0].HasNext() {
			return true
		}
		it.iters = it.iters[1:]
	}
	return false
}

func (it *concatIterator) Next() int64 {
	for !it.iters[0].HasNext() {
		it.iters = it.iters[1:]
	}
	return it.iters[0].Next()
}
