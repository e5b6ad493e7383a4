package source

import (
	"encoding/json"
	"fmt"

	"github.com/tbenr/protovis/pkg/forkchoice"
)

// lighthouseRecord is one node from Lighthouse's fork-choice dump.
// Lighthouse has no explicit validity field: a block is either optimistic or
// it has been validated, so status is inferred from the boolean flag and
// INVALID is never representable in this format.
type lighthouseRecord struct {
	Slot                slotValue   `json:"slot"`
	Root                string      `json:"root"`
	ParentRoot          string      `json:"parent_root"`
	Weight              weightValue `json:"weight"`
	ExecutionOptimistic bool        `json:"execution_optimistic"`
	ExecutionBlockHash  string      `json:"execution_block_hash"`
}

type lighthouseAdapter struct{}

func (lighthouseAdapter) Format() Format { return FormatLighthouse }

func (lighthouseAdapter) RecordsField() string { return "fork_choice_nodes" }

func (lighthouseAdapter) Normalize(raw json.RawMessage) (forkchoice.Record, bool, error) {
	var r lighthouseRecord
	if err := json.Unmarshal(raw, &r); err != nil {
		return forkchoice.Record{}, false, err
	}
	if r.Root == "" {
		return forkchoice.Record{}, false, fmt.Errorf("missing root")
	}

	status := forkchoice.StatusValid
	if r.ExecutionOptimistic {
		status = forkchoice.StatusOptimistic
	}

	return forkchoice.Record{
		ID:        r.Root,
		ParentID:  r.ParentRoot,
		Slot:      uint64(r.Slot),
		Weight:    r.Weight.value(),
		Status:    status,
		PostMerge: postMerge(r.ExecutionBlockHash),
	}, true, nil
}
