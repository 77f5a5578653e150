package store

import (
	"bytes"
	"testing"
)

func TestLayerReadYourWrites(t *testing.T) {
	s, err := Open(MemKV())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	overlay := s.NewBlockOverlay()
	overlay.Put([]byte("a"), []byte("1"))

	delta := overlay.BeginTransaction()
	if v, err := delta.Get([]byte("a")); err != nil || !bytes.Equal(v, []byte("1")) {
		t.Fatalf("expected read-through to overlay write, got %q err=%v", v, err)
	}
	delta.Put([]byte("a"), []byte("2"))
	if v, _ := delta.Get([]byte("a")); !bytes.Equal(v, []byte("2")) {
		t.Fatalf("expected read-your-own-write, got %q", v)
	}
	// overlay is untouched until merge.
	if v, _ := overlay.Get([]byte("a")); !bytes.Equal(v, []byte("1")) {
		t.Fatalf("overlay mutated before commit_transaction: %q", v)
	}

	overlay.CommitTransaction(delta)
	if v, _ := overlay.Get([]byte("a")); !bytes.Equal(v, []byte("2")) {
		t.Fatalf("expected overlay to see merged write, got %q", v)
	}
}

func TestDeltaDiscardHasNoEffect(t *testing.T) {
	s, err := Open(MemKV())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	overlay := s.NewBlockOverlay()
	overlay.Put([]byte("k"), []byte("v"))

	delta := overlay.BeginTransaction()
	delta.Put([]byte("k"), []byte("overwritten"))
	delta.Delete([]byte("other"))
	DiscardTransaction(delta)

	if v, _ := overlay.Get([]byte("k")); !bytes.Equal(v, []byte("v")) {
		t.Fatalf("discarded delta leaked into overlay: %q", v)
	}
}

func TestCommitPersistsAndAdvancesVersion(t *testing.T) {
	s, err := Open(MemKV())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if s.Version() != 0 {
		t.Fatalf("expected fresh store at version 0, got %d", s.Version())
	}

	overlay := s.NewBlockOverlay()
	overlay.Put([]byte("staking/validator/abc"), []byte("data"))
	v1, root1, err := s.Commit(overlay)
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if v1 != 1 {
		t.Fatalf("expected version 1, got %d", v1)
	}
	if len(root1) == 0 {
		t.Fatalf("expected non-empty root")
	}

	snap := s.NewSnapshot()
	got, err := snap.Get([]byte("staking/validator/abc"))
	if err != nil || !bytes.Equal(got, []byte("data")) {
		t.Fatalf("expected persisted read, got %q err=%v", got, err)
	}

	// Committing an identical no-op overlay should reproduce the same root.
	overlay2 := s.NewBlockOverlay()
	_, root2, err := s.Commit(overlay2)
	if err != nil {
		t.Fatalf("commit2: %v", err)
	}
	if !bytes.Equal(root1, root2) {
		t.Fatalf("root changed on a no-op commit: %x != %x", root1, root2)
	}
}

func TestEmptyStoreHasDeterministicRoot(t *testing.T) {
	s1, _ := Open(MemKV())
	s2, _ := Open(MemKV())
	r1, err := s1.recomputeRoot()
	if err != nil {
		t.Fatalf("recomputeRoot: %v", err)
	}
	r2, _ := s2.recomputeRoot()
	if !bytes.Equal(r1, r2) {
		t.Fatalf("two empty stores produced different roots")
	}
}

func TestObjectStoreClearedAcrossOverlay(t *testing.T) {
	s, _ := Open(MemKV())
	overlay := s.NewBlockOverlay()
	overlay.ObjectPut("swap/flow/penumbra-usdc", []byte("42"))
	if v, ok, _ := overlay.ObjectGet("swap/flow/penumbra-usdc"); !ok || !bytes.Equal(v, []byte("42")) {
		t.Fatalf("expected object store hit")
	}

	// A fresh block overlay (new block) never sees the prior block's
	// ephemeral objects.
	fresh := s.NewBlockOverlay()
	if _, ok, _ := fresh.ObjectGet("swap/flow/penumbra-usdc"); ok {
		t.Fatalf("ephemeral object store leaked across block boundary")
	}
}
