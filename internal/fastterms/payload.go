package fastterms

import (
	"bytes"

	"github.com/jmfrees/zombodb/internal/stream"
	"github.com/jmfrees/zombodb/pkg/errors"
)

// EncodeShardData serializes a single shard's payload for transport:
// the self-delimited lookup encoding for numeric data, or a counted list
// of terms for string data.
func EncodeShardData(data ShardData) ([]byte, error) {
	var buf bytes.Buffer
	w := stream.NewWriter(&buf)
	switch d := data.(type) {
	case *NumberArrayLookup:
		if err := d.EncodeTo(w); err != nil {
			return nil, err
		}
	case *CompactTermSet:
		if err := w.WriteUvarint(uint64(d.Size())); err != nil {
			return nil, err
		}
		var encodeErr error
		d.Each(func(term string) bool {
			encodeErr = w.WriteString(term)
			return encodeErr == nil
		})
		if encodeErr != nil {
			return nil, encodeErr
		}
	default:
		return nil, errors.Newf(errors.ErrInvalidDataType, "payload %T", data)
	}
	return buf.Bytes(), nil
}

// DecodeShardData parses a shard payload produced by EncodeShardData. The
// data type tells the decoder which shape to expect.
func DecodeShardData(dataType DataType, data []byte) (ShardData, error) {
	r := stream.NewReader(bytes.NewReader(data))
	switch dataType {
	case DataTypeInt, DataTypeLong:
		return DecodeNumberArrayLookup(r)
	case DataTypeString:
		count, err := r.ReadUvarint()
		if err != nil {
			return nil, err
		}
		if count > stream.MaxStringLen {
			return nil, errors.Newf(errors.ErrCorruptStream, "term count %d exceeds limit", count)
		}
		set := NewCompactTermSet()
		for i := uint64(0); i < count; i++ {
			term, err := r.ReadString()
			if err != nil {
				return nil, err
			}
			set.Add(term)
		}
		return set, nil
	default:
		return nil, errors.Newf(errors.ErrInvalidDataType, "cannot decode payload for %s", dataType)
	}
}
