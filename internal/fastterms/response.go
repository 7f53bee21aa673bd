package fastterms

import (
	"fmt"
	"io"
	"sync"

	"github.com/jmfrees/zombodb/internal/stream"
	"github.com/jmfrees/zombodb/pkg/errors"
)

// ShardData is the payload one shard contributes to a response: a
// NumberArrayLookup for int/long queries or a CompactTermSet for string
// queries. The interface is sealed so the union stays closed.
type ShardData interface {
	shardData()
}

func (*NumberArrayLookup) shardData() {}

func (*CompactTermSet) shardData() {}

// TermsResponse accumulates per-shard fast-terms results into one logical
// result. The DataType selects which payload arm is active: numeric types
// keep one lookup slot per shard ordinal, string queries merge everything
// into a single term set. The shard summary (counts and failures) is held
// by composition and consulted for status and failure escalation.
//
// AddData may be called concurrently for distinct shards. All read
// operations assume mutation has finished; the caller must join its shard
// callbacks before reading.
type TermsResponse struct {
	index     string
	dataType  DataType
	numShards int

	lookups []*NumberArrayLookup
	strings *CompactTermSet

	// mu serializes unions into the shared string set. The lookup slots
	// need no lock: concurrent AddData calls target distinct indices.
	mu sync.Mutex

	summary ShardSummary
}

// NewTermsResponse allocates a response for the given index and shard
// layout. The DataType must be a defined tag.
func NewTermsResponse(index string, numShards, successfulShards, failedShards int, failures []ShardFailure, dataType DataType) (*TermsResponse, error) {
	if !dataType.Valid() {
		return nil, errors.Newf(errors.ErrInvalidDataType, "tag %d", uint8(dataType))
	}
	r := &TermsResponse{
		index:     index,
		dataType:  dataType,
		numShards: numShards,
		summary: ShardSummary{
			Total:      numShards,
			Successful: successfulShards,
			Failed:     failedShards,
			Failures:   failures,
		},
	}
	switch dataType {
	case DataTypeInt, DataTypeLong:
		r.lookups = make([]*NumberArrayLookup, numShards)
	case DataTypeString:
		r.strings = NewCompactTermSet()
	}
	return r, nil
}

// AddData records one shard's payload. For numeric responses the lookup is
// stored at the shard's slot, overwriting any prior value; for string
// responses the terms are unioned into the merged set; for a none response
// the call is a no-op. The shard id must be in [0, numShards).
func (r *TermsResponse) AddData(shardID int, data ShardData) error {
	if shardID < 0 || shardID >= r.numShards {
		return errors.Newf(errors.ErrShardOutOfRange, "shard %d, %d shards", shardID, r.numShards)
	}
	switch r.dataType {
	case DataTypeNone:
		return nil
	case DataTypeInt, DataTypeLong:
		lookup, ok := data.(*NumberArrayLookup)
		if !ok {
			return errors.Newf(errors.ErrInvalidDataType, "shard %d sent %T for %s response", shardID, data, r.dataType)
		}
		r.lookups[shardID] = lookup
		return nil
	case DataTypeString:
		set, ok := data.(*CompactTermSet)
		if !ok {
			return errors.Newf(errors.ErrInvalidDataType, "shard %d sent %T for %s response", shardID, data, r.dataType)
		}
		r.mu.Lock()
		r.strings.AddAll(set)
		r.mu.Unlock()
		return nil
	default:
		return errors.Newf(errors.ErrInternal, "unexpected data type %s", r.dataType)
	}
}

func (r *TermsResponse) Index() string { return r.index }

func (r *TermsResponse) DataType() DataType { return r.dataType }

func (r *TermsResponse) NumShards() int { return r.numShards }

// Summary exposes the broadcast envelope for callers that need raw counts.
func (r *TermsResponse) Summary() ShardSummary { return r.summary }

// ShardFailures returns the ordered list of recorded failures.
func (r *TermsResponse) ShardFailures() []ShardFailure { return r.summary.Failures }

// Status classifies the broadcast outcome.
func (r *TermsResponse) Status() Status { return r.summary.Status() }

// DocCount returns how many values the response holds: the summed lookup
// sizes for numeric responses or the merged set cardinality for strings.
// Unreported shards contribute nothing.
func (r *TermsResponse) DocCount() int {
	switch r.dataType {
	case DataTypeNone:
		return 0
	case DataTypeInt, DataTypeLong:
		total := 0
		for _, l := range r.lookups {
			if l != nil {
				total += l.Size()
			}
		}
		return total
	case DataTypeString:
		return r.strings.Size()
	default:
		panic(fmt.Sprintf("unexpected data type %s", r.dataType))
	}
}

// EstimateByteSize approximates the payload weight: summed lookup estimates
// for numeric responses, summed UTF-16 code-unit lengths for strings. Set
// and slot overhead is not counted.
func (r *TermsResponse) EstimateByteSize() int64 {
	switch r.dataType {
	case DataTypeNone:
		return 0
	case DataTypeInt, DataTypeLong:
		var size int64
		for _, l := range r.lookups {
			if l != nil {
				size += l.EstimateByteSize()
			}
		}
		return size
	case DataTypeString:
		var size int64
		r.strings.Each(func(term string) bool {
			size += int64(utf16Len(term))
			return true
		})
		return size
	default:
		panic(fmt.Sprintf("unexpected data type %s", r.dataType))
	}
}

// NumberLookupIterators returns one fresh ascending iterator per shard
// slot, ordered by shard ordinal. Slots for unreported shards yield an
// empty iterator.
func (r *TermsResponse) NumberLookupIterators() []NumberIterator {
	iterators := make([]NumberIterator, len(r.lookups))
	for i, l := range r.lookups {
		if l == nil {
			iterators[i] = &sliceIterator{}
			continue
		}
		iterators[i] = ConcatNumberIterators(l.Iterators())
	}
	return iterators
}

// Lookups returns the per-shard lookup slots. Valid for numeric responses.
func (r *TermsResponse) Lookups() []*NumberArrayLookup { return r.lookups }

// Strings returns the merged term set. Valid for string responses.
func (r *TermsResponse) Strings() *CompactTermSet { return r.strings }

// SortedStrings returns every term seen across all shards, deduplicated
// and in ascending lexicographic order.
func (r *TermsResponse) SortedStrings() []string {
	return r.strings.SortedSlice()
}

// CheckShardFailures returns nil when every shard succeeded. Otherwise it
// walks the first recorded failure's cause chain to its root and returns
// that root wrapped as a generic shard failure. The intermediate wrapper
// context is discarded in the escalation; ShardFailures retains the full
// chains for logging.
func (r *TermsResponse) CheckShardFailures() error {
	if r.summary.Failed == 0 {
		return nil
	}
	root := r.summary.Failures[0].RootCause()
	return errors.Newf(errors.ErrShardFailure, "%v", root)
}

// Equal reports value equality: index, data type, shard layout, payload
// content, and shard-failure state.
func (r *TermsResponse) Equal(other *TermsResponse) bool {
	if r == nil || other == nil {
		return r == other
	}
	if r.index != other.index || r.dataType != other.dataType || r.numShards != other.numShards {
		return false
	}
	if !r.summary.Equal(other.summary) {
		return false
	}
	switch r.dataType {
	case DataTypeInt, DataTypeLong:
		if len(r.lookups) != len(other.lookups) {
			return false
		}
		// A nil slot and an empty lookup are the same value: unreported
		// shards encode as empty lookups on the wire.
		empty := &NumberArrayLookup{}
		for i := range r.lookups {
			a, b := r.lookups[i], other.lookups[i]
			if a == nil {
				a = empty
			}
			if b == nil {
				b = empty
			}
			if !a.Equal(b) {
				return false
			}
		}
		return true
	case DataTypeString:
		return r.strings.Equal(other.strings)
	default:
		return true
	}
}

// EncodeTo writes the response's full state: summary envelope, index name,
// shard count, data type tag, then the payload arm. Numeric payloads are
// exactly numShards consecutive self-delimited lookups with no count
// prefix; the decoder relies on the shard count read earlier. Unreported
// numeric slots encode as empty lookups.
func (r *TermsResponse) EncodeTo(out io.Writer) error {
	w := stream.NewWriter(out)
	if err := r.summary.encodeTo(w); err != nil {
		return err
	}
	if err := w.WriteString(r.index); err != nil {
		return err
	}
	if err := w.WriteUvarint(uint64(r.numShards)); err != nil {
		return err
	}
	if err := w.WriteTag(byte(r.dataType)); err != nil {
		return err
	}
	switch r.dataType {
	case DataTypeInt, DataTypeLong:
		empty := &NumberArrayLookup{}
		for _, l := range r.lookups {
			if l == nil {
				l = empty
			}
			if err := l.EncodeTo(w); err != nil {
				return err
			}
		}
	case DataTypeString:
		if err := w.WriteUvarint(uint64(r.strings.Size())); err != nil {
			return err
		}
		var encodeErr error
		r.strings.Each(func(term string) bool {
			encodeErr = w.WriteString(term)
			return encodeErr == nil
		})
		if encodeErr != nil {
			return encodeErr
		}
	}
	return nil
}

// maxWireShards bounds the shard count read off the wire. A frame
// claiming more shards than this is corrupt; honoring it would size an
// allocation from attacker-controlled input.
const maxWireShards = 1 << 16

// DecodeTermsResponse reads a response previously written by EncodeTo.
// Malformed or truncated input fails with ErrCorruptStream; no partially
// decoded response is returned.
func DecodeTermsResponse(in io.Reader) (*TermsResponse, error) {
	r := stream.NewReader(in)
	summary, err := decodeShardSummary(r)
	if err != nil {
		return nil, err
	}
	index, err := r.ReadString()
	if err != nil {
		return nil, err
	}
	numShards, err := r.ReadUvarint()
	if err != nil {
		return nil, err
	}
	if numShards > maxWireShards {
		return nil, errors.Newf(errors.ErrCorruptStream, "shard count %d exceeds limit", numShards)
	}
	tag, err := r.ReadTag()
	if err != nil {
		return nil, err
	}
	dataType := DataType(tag)
	if !dataType.Valid() {
		return nil, errors.Newf(errors.ErrCorruptStream, "unknown data type tag %d", tag)
	}
	resp, err := NewTermsResponse(index, int(numShards), summary.Successful, summary.Failed, summary.Failures, dataType)
	if err != nil {
		return nil, err
	}
	resp.summary = summary
	switch dataType {
	case DataTypeInt, DataTypeLong:
		for i := 0; i < int(numShards); i++ {
			lookup, err := DecodeNumberArrayLookup(r)
			if err != nil {
				return nil, err
			}
			resp.lookups[i] = lookup
		}
	case DataTypeString:
		count, err := r.ReadUvarint()
		if err != nil {
			return nil, err
		}
		if count > stream.MaxStringLen {
			return nil, errors.Newf(errors.ErrCorruptStream, "term count %d exceeds limit", count)
		}
		for i := uint64(0); i < count; i++ {
			term, err := r.ReadString()
			if err != nil {
				return nil, err
			}
			resp.strings.Add(term)
		}
	}
	return resp, nil
}
