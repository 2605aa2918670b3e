package library

import (
	"fmt"
	"testing"
)

func TestMembershipIndex_Basic(t *testing.T) {
	index := newMembershipIndex(100, 0.001)

	if index.Has("t1") {
		t.Error("empty index should not report membership")
	}

	index.Add("t1")
	index.Add("t1")
	if !index.Has("t1") || index.Size() != 1 {
		t.Errorf("after duplicate add: has=%v size=%d", index.Has("t1"), index.Size())
	}

	index.Remove("t1")
	if index.Has("t1") {
		t.Error("removed id should not report membership despite bloom residue")
	}

	index.Remove("t1")
	if index.Size() != 0 {
		t.Errorf("size after double remove = %d", index.Size())
	}
}

func TestMembershipIndex_Reset(t *testing.T) {
	index := newMembershipIndex(100, 0.001)
	for i := 0; i < 20; i++ {
		index.Add(fmt.Sprintf("t%d", i))
	}

	index.Reset()

	if index.Size() != 0 {
		t.Errorf("size after reset = %d", index.Size())
	}
	for i := 0; i < 20; i++ {
		if index.Has(fmt.Sprintf("t%d", i)) {
			t.Fatalf("t%d still reported after reset", i)
		}
	}
}
