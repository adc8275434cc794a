package watcher

import (
	"testing"
	"time"
)

func TestDebouncerCoalescesSamePath(t *testing.T) {
	debouncer := newDebouncer(100 * time.Millisecond)
	start := time.Now()

	debouncer.observe("a", RawEvent{Path: "/w/clip.mp4", Kind: KindCreated, DirKnown: true}, start)
	debouncer.observe("a", RawEvent{Path: "/w/clip.mp4", Kind: KindCreated, DirKnown: true}, start.Add(20*time.Millisecond))
	debouncer.observe("a", RawEvent{Path: "/w/clip.mp4", Kind: KindCreated, DirKnown: true}, start.Add(40*time.Millisecond))

	if debouncer.pending() != 1 {
		t.Fatalf("expected 1 pending entry, got %d", debouncer.pending())
	}

	settled := debouncer.settle(start.Add(140 * time.Millisecond))
	if len(settled) != 1 {
		t.Fatalf("expected 1 settled entry, got %d", len(settled))
	}
	if settled[0].path != "/w/clip.mp4" || settled[0].kind != KindCreated {
		t.Fatalf("unexpected settlement: %+v", settled[0])
	}
}

func TestDebouncerRefreshDelaysSettlement(t *testing.T) {
	debouncer := newDebouncer(100 * time.Millisecond)
	start := time.Now()

	debouncer.observe("a", RawEvent{Path: "/w/clip.mp4", Kind: KindCreated}, start)
	debouncer.observe("a", RawEvent{Path: "/w/clip.mp4", Kind: KindCreated}, start.Add(80*time.Millisecond))

	if settled := debouncer.settle(start.Add(120 * time.Millisecond)); len(settled) != 0 {
		t.Fatalf("expected no settlement before quiet period, got %d", len(settled))
	}
	if settled := debouncer.settle(start.Add(200 * time.Millisecond)); len(settled) != 1 {
		t.Fatalf("expected settlement after quiet period, got %d", len(settled))
	}
}

func TestDebouncerLastObservedKindWins(t *testing.T) {
	debouncer := newDebouncer(100 * time.Millisecond)
	start := time.Now()

	debouncer.observe("a", RawEvent{Path: "/w/clip.mp4", Kind: KindRemoved}, start)
	debouncer.observe("a", RawEvent{Path: "/w/clip.mp4", Kind: KindCreated, DirKnown: true}, start.Add(10*time.Millisecond))

	settled := debouncer.settle(start.Add(200 * time.Millisecond))
	if len(settled) != 1 {
		t.Fatalf("expected 1 settled entry, got %d", len(settled))
	}
	if settled[0].kind != KindCreated {
		t.Fatalf("expected latest kind to win, got %v", settled[0].kind)
	}
}

func TestDebouncerSortsParentsFirst(t *testing.T) {
	debouncer := newDebouncer(50 * time.Millisecond)
	start := time.Now()

	debouncer.observe("a", RawEvent{Path: "/w/sub/a.mov", Kind: KindCreated, DirKnown: true}, start)
	debouncer.observe("a", RawEvent{Path: "/w/sub", Kind: KindCreated, IsDir: true, DirKnown: true}, start)

	settled := debouncer.settle(start.Add(100 * time.Millisecond))
	if len(settled) != 2 {
		t.Fatalf("expected 2 settled entries, got %d", len(settled))
	}
	if settled[0].path != "/w/sub" || settled[1].path != "/w/sub/a.mov" {
		t.Fatalf("expected parent before child, got %q then %q", settled[0].path, settled[1].path)
	}
}

func TestDebouncerKeysPerWatch(t *testing.T) {
	debouncer := newDebouncer(50 * time.Millisecond)
	start := time.Now()

	debouncer.observe("a", RawEvent{Path: "/w/sub/a.mov", Kind: KindCreated}, start)
	debouncer.observe("b", RawEvent{Path: "/w/sub/a.mov", Kind: KindCreated}, start)

	if debouncer.pending() != 2 {
		t.Fatalf("expected independent entries per watch id, got %d", debouncer.pending())
	}
}

func TestDebouncerCancelDropsOnlyTargetWatch(t *testing.T) {
	debouncer := newDebouncer(50 * time.Millisecond)
	start := time.Now()

	debouncer.observe("a", RawEvent{Path: "/w/one.mp4", Kind: KindCreated}, start)
	debouncer.observe("a", RawEvent{Path: "/w/two.mp4", Kind: KindCreated}, start)
	debouncer.observe("b", RawEvent{Path: "/x/three.mp4", Kind: KindCreated}, start)

	if dropped := debouncer.cancel("a"); dropped != 2 {
		t.Fatalf("expected 2 dropped, got %d", dropped)
	}

	settled := debouncer.settle(start.Add(100 * time.Millisecond))
	if len(settled) != 1 || settled[0].watchID != "b" {
		t.Fatalf("expected only watch b to settle, got %+v", settled)
	}
}
