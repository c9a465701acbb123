package core

import (
	"testing"
	"time"
)

func TestHostStatusReachableIsORofLinks(t *testing.T) {
	h := newHost(1, false, false)
	idxA, _ := h.AddLink(baseLinkConfig())
	idxB, _ := h.AddLink(baseLinkConfig())

	if h.Status().Reachable {
		t.Fatalf("expected unreachable with no connected links")
	}

	now := time.Now()
	linkA := h.Link(idxA)
	linkA.Enable(now)
	if h.Status().Reachable {
		t.Fatalf("expected unreachable while only PROBING")
	}

	linkA.RecordPong(10*time.Millisecond, now)
	if !h.Status().Reachable {
		t.Fatalf("expected reachable once one link is CONNECTED")
	}

	linkB := h.Link(idxB)
	linkB.Enable(now)
	linkB.RecordPong(10*time.Millisecond, now)
	if !h.Status().Reachable {
		t.Fatalf("expected reachable with two connected links")
	}

	h.RemoveLink(idxA)
	h.RemoveLink(idxB)
	if h.Status().Reachable {
		t.Fatalf("expected unreachable once every link is removed")
	}
}

func TestHostDataMTUIsMinimumOverEnabledLinks(t *testing.T) {
	h := newHost(1, false, false)
	_, linkA := h.AddLink(baseLinkConfig())
	_, linkB := h.AddLink(baseLinkConfig())

	if h.dataMTU() != 0 {
		t.Fatalf("expected dataMTU 0 with no samples")
	}

	now := time.Now()
	linkA.Enable(now)
	linkA.ObservePMTU(1500)
	if h.dataMTU() != 1500 {
		t.Fatalf("expected dataMTU 1500 from the single enabled link, got %d", h.dataMTU())
	}

	linkB.Enable(now)
	linkB.ObservePMTU(1200)
	if h.dataMTU() != 1200 {
		t.Fatalf("expected dataMTU to track the minimum across enabled links, got %d", h.dataMTU())
	}

	linkB.Disable()
	if h.dataMTU() != 1500 {
		t.Fatalf("expected dataMTU to revert to 1500 once the smaller link is disabled, got %d", h.dataMTU())
	}
}

func TestHostLinkListAndRemove(t *testing.T) {
	h := newHost(2, true, false)
	idx, _ := h.AddLink(baseLinkConfig())
	if got := h.LinkList(); len(got) != 1 || got[0] != idx {
		t.Fatalf("expected LinkList to contain the added link, got %v", got)
	}
	h.RemoveLink(idx)
	if got := h.LinkList(); len(got) != 0 {
		t.Fatalf("expected empty LinkList after removal, got %v", got)
	}
	if h.Link(idx) != nil {
		t.Fatalf("expected Link(idx) to return nil after removal")
	}
}
