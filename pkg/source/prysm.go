package source

import (
	"encoding/json"
	"fmt"

	"github.com/tbenr/protovis/pkg/forkchoice"
)

// prysmRecord is one node from Prysm's protoarray debug response. Prysm
// reports the subtree weight under "balance" and only a boolean optimistic
// flag, so INVALID is never representable in this format. Nodes the store
// tracks but has not slotted yet carry the far-future slot sentinel.
type prysmRecord struct {
	Slot        slotValue   `json:"slot"`
	Root        string      `json:"root"`
	Parent      string      `json:"parent"`
	Balance     weightValue `json:"balance"`
	Optimistic  bool        `json:"optimistic"`
	PayloadHash string      `json:"payloadHash"`
}

type prysmAdapter struct{}

func (prysmAdapter) Format() Format { return FormatPrysm }

func (prysmAdapter) RecordsField() string { return "nodes" }

func (prysmAdapter) Normalize(raw json.RawMessage) (forkchoice.Record, bool, error) {
	var r prysmRecord
	if err := json.Unmarshal(raw, &r); err != nil {
		return forkchoice.Record{}, false, err
	}
	if r.Slot == farFutureSlot {
		return forkchoice.Record{}, false, nil
	}
	if r.Root == "" {
		return forkchoice.Record{}, false, fmt.Errorf("missing root")
	}

	status := forkchoice.StatusValid
	if r.Optimistic {
		status = forkchoice.StatusOptimistic
	}

	return forkchoice.Record{
		ID:        r.Root,
		ParentID:  r.Parent,
		Slot:      uint64(r.Slot),
		Weight:    r.Balance.value(),
		Status:    status,
		PostMerge: postMerge(r.PayloadHash),
	}, true, nil
}
