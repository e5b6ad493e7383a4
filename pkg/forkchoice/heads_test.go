package forkchoice

import (
	"math/big"
	"testing"
)

func TestSelectHeadsOrdering(t *testing.T) {
	// The worked example: A is root with zero exclusive weight, B and C are
	// heads ordered by cumulative weight.
	records := []Record{
		rec("A", "", 10, 100),
		rec("B", "A", 11, 40),
		rec("C", "A", 12, 60),
	}
	tr, err := Reconstruct(records, false)
	if err != nil {
		t.Fatalf("Reconstruct: %v", err)
	}

	heads := tr.Heads()
	if got := headIDs(heads); len(got) != 2 || got[0] != "C" || got[1] != "B" {
		t.Fatalf("heads = %v, want [C B]", got)
	}
	if heads[0].Cumulative.Cmp(big.NewInt(60)) != 0 || heads[1].Cumulative.Cmp(big.NewInt(40)) != 0 {
		t.Errorf("cumulatives = %s, %s, want 60, 40", heads[0].Cumulative, heads[1].Cumulative)
	}

	a, _ := tr.Node("A")
	if a.Exclusive.Sign() != 0 {
		t.Errorf("exclusive(A) = %s, want 0", a.Exclusive)
	}
	if a.Head {
		t.Error("A has children and must not be a head")
	}
}

func TestSelectHeadsStableTie(t *testing.T) {
	// Equal cumulative weights keep record input order.
	records := []Record{
		rec("a", "", 10, 90),
		rec("x", "a", 11, 30),
		rec("y", "a", 11, 30),
		rec("z", "a", 11, 30),
	}
	tr, err := Reconstruct(records, false)
	if err != nil {
		t.Fatalf("Reconstruct: %v", err)
	}

	if got := headIDs(tr.Heads()); got[0] != "x" || got[1] != "y" || got[2] != "z" {
		t.Errorf("heads = %v, want input order [x y z]", got)
	}
}

func TestSelectHeadsSingleChain(t *testing.T) {
	tests := []struct {
		name     string
		records  []Record
		wantHead string
		rootIs   bool // whether the root itself is the sole head
	}{
		{
			name:     "LoneRoot",
			records:  []Record{rec("a", "", 10, 5)},
			wantHead: "a",
			rootIs:   true,
		},
		{
			name: "Chain",
			records: []Record{
				rec("a", "", 10, 5),
				rec("b", "a", 11, 5),
			},
			wantHead: "b",
			rootIs:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr, err := Reconstruct(tt.records, false)
			if err != nil {
				t.Fatalf("Reconstruct: %v", err)
			}
			heads := tr.Heads()
			if len(heads) != 1 || heads[0].ID != tt.wantHead {
				t.Fatalf("heads = %v, want [%s]", headIDs(heads), tt.wantHead)
			}
			root, _ := tr.Node("a")
			if root.Head != tt.rootIs {
				t.Errorf("root head flag = %v, want %v", root.Head, tt.rootIs)
			}
		})
	}
}

func TestSelectHeadsMultipleRoots(t *testing.T) {
	records := []Record{
		rec("a", "", 10, 20),
		rec("b", "a", 11, 20),
		rec("x", "gone", 30, 50),
		rec("y", "x", 31, 50),
	}
	tr, err := Reconstruct(records, false)
	if err != nil {
		t.Fatalf("Reconstruct: %v", err)
	}

	// Heads from both trees are ranked together by cumulative weight.
	if got := headIDs(tr.Heads()); len(got) != 2 || got[0] != "y" || got[1] != "b" {
		t.Errorf("heads = %v, want [y b]", got)
	}
}
