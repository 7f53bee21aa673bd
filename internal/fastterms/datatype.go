// Package fastterms implements the merge side of a fast-terms query: the
// shard-indexed response aggregator, the compact per-shard value containers,
// and the binary wire codec that carries a finished response between
// processes.
package fastterms

// DataType selects which payload arm of a TermsResponse is active. It is
// fixed at construction and its wire ordinals are stable across versions.
type DataType uint8

const (
	DataTypeNone DataType = iota
	DataTypeInt
	DataTypeLong
	DataTypeString
)

func (d DataType) String() string {
	switch d {
	case DataTypeNone:
		return "none"
	case DataTypeInt:
		return "int"
	case DataTypeLong:
		return "long"
	case DataTypeString:
		return "string"
	default:
		return "unknown"
	}
}

// Valid reports whether d is one of the defined tags.
func (d DataType) Valid() bool {
	return d <= DataTypeString
}

// Numeric reports whether the response arm for d holds per-shard number
// lookups rather than a merged term set.
func (d DataType) Numeric() bool {
	return d == DataTypeInt || d == DataTypeLong
}
