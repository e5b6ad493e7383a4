package forkchoice

import "math/big"

// Status is the validation state a client reported for a block.
type Status int

const (
	// StatusValid marks a block whose execution payload was fully validated.
	StatusValid Status = iota
	// StatusOptimistic marks a block imported optimistically, before its
	// execution payload was validated.
	StatusOptimistic
	// StatusInvalid marks a block whose execution payload failed validation.
	StatusInvalid
)

// String returns the canonical upper-case name of the status.
func (s Status) String() string {
	switch s {
	case StatusValid:
		return "VALID"
	case StatusOptimistic:
		return "OPTIMISTIC"
	case StatusInvalid:
		return "INVALID"
	default:
		return "UNKNOWN"
	}
}

// Record is one fork-choice block record in canonical form, independent of
// which client produced it. Records are the input to [Build].
//
// Weight is the attestation weight the client reported for the block. Client
// fork-choice stores report the weight of the entire subtree rooted at a
// block, not the block alone; the per-block share is recovered during weight
// propagation. Weights are decimal strings on the wire and can exceed 64
// bits, so they are carried as big integers throughout.
type Record struct {
	// ID is the block root, unique within one snapshot.
	ID string
	// ParentID is the parent block root. It may not resolve within the
	// snapshot; such records become tree roots.
	ParentID string
	// Slot the block was proposed in.
	Slot uint64
	// Weight is the reported attestation weight of the subtree rooted here.
	Weight *big.Int
	// Status is the reported (or inferred) validation state.
	Status Status
	// PostMerge reports whether the block carries a non-empty execution
	// payload, i.e. it sits at or after the proof-of-stake transition.
	PostMerge bool
}
