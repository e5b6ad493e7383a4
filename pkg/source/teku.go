package source

import (
	"encoding/json"
	"fmt"

	"github.com/tbenr/protovis/pkg/forkchoice"
)

// tekuRecord is one node from Teku's protoarray snapshot. Teku reports
// validation state explicitly and encodes numbers as decimal strings.
type tekuRecord struct {
	Slot               slotValue   `json:"slot"`
	BlockRoot          string      `json:"blockRoot"`
	ParentRoot         string      `json:"parentRoot"`
	Weight             weightValue `json:"weight"`
	Validation         string      `json:"validationStatus"`
	ExecutionBlockHash string      `json:"executionBlockHash"`
}

type tekuAdapter struct{}

func (tekuAdapter) Format() Format { return FormatTeku }

func (tekuAdapter) RecordsField() string { return "protoArray" }

// Normalize converts one Teku record. Records still pending slot assignment
// carry the far-future slot sentinel and are dropped.
func (tekuAdapter) Normalize(raw json.RawMessage) (forkchoice.Record, bool, error) {
	var r tekuRecord
	if err := json.Unmarshal(raw, &r); err != nil {
		return forkchoice.Record{}, false, err
	}
	if r.Slot == farFutureSlot {
		return forkchoice.Record{}, false, nil
	}
	if r.BlockRoot == "" {
		return forkchoice.Record{}, false, fmt.Errorf("missing blockRoot")
	}

	status, err := parseValidation(r.Validation)
	if err != nil {
		return forkchoice.Record{}, false, err
	}

	return forkchoice.Record{
		ID:        r.BlockRoot,
		ParentID:  r.ParentRoot,
		Slot:      uint64(r.Slot),
		Weight:    r.Weight.value(),
		Status:    status,
		PostMerge: postMerge(r.ExecutionBlockHash),
	}, true, nil
}

func parseValidation(s string) (forkchoice.Status, error) {
	switch s {
	case "VALID":
		return forkchoice.StatusValid, nil
	case "INVALID":
		return forkchoice.StatusInvalid, nil
	case "OPTIMISTIC", "NOT_VALIDATED":
		return forkchoice.StatusOptimistic, nil
	default:
		return 0, fmt.Errorf("unknown validationStatus %q", s)
	}
}
