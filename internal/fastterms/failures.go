package fastterms

import (
	stderrors "errors"

	"github.com/jmfrees/zombodb/internal/stream"
	"github.com/jmfrees/zombodb/pkg/errors"
)

// Status classifies a broadcast outcome across all shards of an index.
type Status uint8

const (
	// StatusOK means every shard responded.
	StatusOK Status = iota
	// StatusPartial means some shards responded and some failed.
	StatusPartial
	// StatusFailed means no shard responded.
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusPartial:
		return "partial"
	default:
		return "failed"
	}
}

// ShardFailure records one shard's failure, keeping the full cause chain.
type ShardFailure struct {
	Shard int
	Index string
	Err   error
}

// CauseChain returns the messages of the failure's error chain from the
// outermost wrapper down to the root cause.
func (f ShardFailure) CauseChain() []string {
	var chain []string
	for err := f.Err; err != nil; err = stderrors.Unwrap(err) {
		chain = append(chain, err.Error())
	}
	return chain
}

// RootCause returns the innermost error of the chain.
func (f ShardFailure) RootCause() error {
	err := f.Err
	for {
		next := stderrors.Unwrap(err)
		if next == nil {
			return err
		}
		err = next
	}
}

// ShardSummary is the broadcast envelope: shard counts plus the ordered
// failure list. The aggregator embeds one and delegates status math to it.
type ShardSummary struct {
	Total      int
	Successful int
	Failed     int
	Failures   []ShardFailure
}

// Status applies the standard partial-success classification. A summary
// with shards but no successes is failed even when no failure was
// recorded; decoded frames can carry such counts.
func (s ShardSummary) Status() Status {
	switch {
	case s.Total > 0 && s.Successful == 0:
		return StatusFailed
	case s.Failed == 0:
		return StatusOK
	case s.Successful > 0:
		return StatusPartial
	default:
		return StatusFailed
	}
}

func (s ShardSummary) encodeTo(w *stream.Writer) error {
	if err := w.WriteUvarint(uint64(s.Total)); err != nil {
		return err
	}
	if err := w.WriteUvarint(uint64(s.Successful)); err != nil {
		return err
	}
	if err := w.WriteUvarint(uint64(s.Failed)); err != nil {
		return err
	}
	if err := w.WriteUvarint(uint64(len(s.Failures))); err != nil {
		return err
	}
	for _, f := range s.Failures {
		if err := w.WriteUvarint(uint64(f.Shard)); err != nil {
			return err
		}
		if err := w.WriteString(f.Index); err != nil {
			return err
		}
		chain := f.CauseChain()
		if err := w.WriteUvarint(uint64(len(chain))); err != nil {
			return err
		}
		for _, msg := range chain {
			if err := w.WriteString(msg); err != nil {
				return err
			}
		}
	}
	return nil
}

func decodeShardSummary(r *stream.Reader) (ShardSummary, error) {
	var s ShardSummary
	total, err := r.ReadUvarint()
	if err != nil {
		return s, err
	}
	successful, err := r.ReadUvarint()
	if err != nil {
		return s, err
	}
	failed, err := r.ReadUvarint()
	if err != nil {
		return s, err
	}
	count, err := r.ReadUvarint()
	if err != nil {
		return s, err
	}
	if count > total {
		return s, errors.Newf(errors.ErrCorruptStream, "failure count %d exceeds shard total %d", count, total)
	}
	s.Total = int(total)
	s.Successful = int(successful)
	s.Failed = int(failed)
	for i := uint64(0); i < count; i++ {
		shard, err := r.ReadUvarint()
		if err != nil {
			return s, err
		}
		index, err := r.ReadString()
		if err != nil {
			return s, err
		}
		chainLen, err := r.ReadUvarint()
		if err != nil {
			return s, err
		}
		if chainLen > 1024 {
			return s, errors.Newf(errors.ErrCorruptStream, "cause chain length %d exceeds limit", chainLen)
		}
		chain := make([]string, 0, chainLen)
		for j := uint64(0); j < chainLen; j++ {
			msg, err := r.ReadString()
			if err != nil {
				return s, err
			}
			chain = append(chain, msg)
		}
		s.Failures = append(s.Failures, ShardFailure{
			Shard: int(shard),
			Index: index,
			Err:   chainError(chain),
		})
	}
	return s, nil
}

// Equal compares counts and failure chains by message.
func (s ShardSummary) Equal(other ShardSummary) bool {
	if s.Total != other.Total || s.Successful != other.Successful || s.Failed != other.Failed {
		return false
	}
	if len(s.Failures) != len(other.Failures) {
		return false
	}
	for i, f := range s.Failures {
		o := other.Failures[i]
		if f.Shard != o.Shard || f.Index != o.Index {
			return false
		}
		fc, oc := f.CauseChain(), o.CauseChain()
		if len(fc) != len(oc) {
			return false
		}
		for j := range fc {
			if fc[j] != oc[j] {
				return false
			}
		}
	}
	return true
}

// wrappedError reconstructs a decoded cause link so errors.Unwrap walks the
// chain exactly as it did on the encoding side.
type wrappedError struct {
	msg   string
	cause error
}

func (e *wrappedError) Error() string { return e.msg }

func (e *wrappedError) Unwrap() error { return e.cause }

// chainError rebuilds an error chain from outermost to innermost messages.
func chainError(chain []string) error {
	if len(chain) == 0 {
		return nil
	}
	err := stderrors.New(chain[len(chain)-1])
	for i := len(chain) - 2; i >= 0; i-- {
		err = &wrappedError{msg: chain[i], cause: err}
	}
	return err
}
