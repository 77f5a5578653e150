package tct

import "testing"

func commitmentFromString(s string) Commitment {
	return feFromLabel("test-commitment:" + s)
}

func TestInsertAssignsSequentialPositions(t *testing.T) {
	tree := New()
	p0, err := tree.Insert(Keep, commitmentFromString("a"))
	if err != nil {
		t.Fatalf("insert a: %v", err)
	}
	p1, err := tree.Insert(Keep, commitmentFromString("b"))
	if err != nil {
		t.Fatalf("insert b: %v", err)
	}
	if p0.Epoch() != 0 || p0.Block() != 0 || p0.Commitment() != 0 {
		t.Fatalf("unexpected first position: %s", p0)
	}
	if p1.Commitment() != 1 {
		t.Fatalf("expected second commitment index 1, got %s", p1)
	}
}

func TestForgetDoesNotChangeRoot(t *testing.T) {
	tree := New()
	before := tree.Root()

	c := commitmentFromString("x")
	if _, err := tree.Insert(Keep, c); err != nil {
		t.Fatalf("insert: %v", err)
	}
	afterInsert := tree.Root()
	if afterInsert == before {
		t.Fatalf("root did not change after insert")
	}

	tree.Forget(c)
	afterForget := tree.Root()
	if afterForget != afterInsert {
		t.Fatalf("forgetting changed the root: %v != %v", afterForget, afterInsert)
	}
	if _, err := tree.Witness(c); err != ErrNotFound {
		t.Fatalf("expected forgotten commitment to be unwitnessable, got %v", err)
	}
}

func TestEndBlockAndEndEpochDoNotChangeRoot(t *testing.T) {
	tree := New()
	if _, err := tree.Insert(Keep, commitmentFromString("a")); err != nil {
		t.Fatalf("insert: %v", err)
	}
	before := tree.Root()

	if err := tree.EndBlock(); err != nil {
		t.Fatalf("end block: %v", err)
	}
	afterBlock := tree.Root()
	if afterBlock != before {
		t.Fatalf("end_block changed the root")
	}

	if err := tree.EndEpoch(); err != nil {
		t.Fatalf("end epoch: %v", err)
	}
	afterEpoch := tree.Root()
	if afterEpoch != before {
		t.Fatalf("end_epoch changed the root")
	}
}

func TestWitnessSurvivesBlockAndEpochBoundary(t *testing.T) {
	tree := New()
	c := commitmentFromString("kept-across-boundaries")
	pos, err := tree.Insert(Keep, c)
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	if err := tree.EndBlock(); err != nil {
		t.Fatalf("end block: %v", err)
	}
	if err := tree.EndEpoch(); err != nil {
		t.Fatalf("end epoch: %v", err)
	}
	// Insert something new in the fresh epoch so the tree has moved on.
	if _, err := tree.Insert(Forget, commitmentFromString("later")); err != nil {
		t.Fatalf("insert later: %v", err)
	}

	path, err := tree.Witness(c)
	if err != nil {
		t.Fatalf("witness after boundaries: %v", err)
	}
	if path.Position != pos {
		t.Fatalf("path position mismatch: got %s want %s", path.Position, pos)
	}
	if !Verify(tree.Root(), c, path) {
		t.Fatalf("auth path failed to verify against current root")
	}
}

func TestAuthPathVerifiesAgainstRoot(t *testing.T) {
	tree := New()
	var last Commitment
	for i := 0; i < 7; i++ {
		c := commitmentFromString(string(rune('a' + i)))
		if _, err := tree.Insert(Keep, c); err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
		last = c
	}

	path, err := tree.Witness(last)
	if err != nil {
		t.Fatalf("witness: %v", err)
	}
	if !Verify(tree.Root(), last, path) {
		t.Fatalf("auth path did not verify")
	}

	wrong := commitmentFromString("not-inserted")
	if Verify(tree.Root(), wrong, path) {
		t.Fatalf("auth path verified for a commitment it was not built for")
	}
}

func TestDuplicateInsertMovesWitnessLastWriteWins(t *testing.T) {
	tree := New()
	c := commitmentFromString("dup")
	first, _ := tree.Insert(Keep, c)
	second, err := tree.Insert(Keep, c)
	if err != nil {
		t.Fatalf("second insert: %v", err)
	}
	got, ok := tree.Position(c)
	if !ok {
		t.Fatalf("expected commitment to be witnessed")
	}
	if got != second {
		t.Fatalf("expected witness to track most recent position %s, got %s (first was %s)", second, got, first)
	}
}

func TestApplyCompactBlockAdvancesRootIdentically(t *testing.T) {
	a := New()
	b := New()

	commitments := []Commitment{
		commitmentFromString("1"),
		commitmentFromString("2"),
		commitmentFromString("3"),
	}
	for _, c := range commitments {
		if _, err := a.Insert(Forget, c); err != nil {
			t.Fatalf("direct insert: %v", err)
		}
	}
	if err := a.EndBlock(); err != nil {
		t.Fatalf("end block: %v", err)
	}

	if err := b.Apply(Block{Commitments: commitments}); err != nil {
		t.Fatalf("apply: %v", err)
	}

	if a.Root() != b.Root() {
		t.Fatalf("replayed compact block produced a different root")
	}
}

func TestEmptyTreeIsDeterministic(t *testing.T) {
	a := New()
	b := New()
	if a.Root() != b.Root() {
		t.Fatalf("two empty trees produced different roots")
	}
}

// TestSerializeDeserializeRoundTrip mirrors
// original_source/tct-property-test/tests/serialize.rs: a tree is built up
// across several blocks and epochs, serialized incrementally partway
// through (watermarked by Forgotten), serialized again at the end, and the
// two chunks replayed in order against a fresh tree. The replay must
// reproduce the live tree's exact root, and a non-incremental from-genesis
// serialization of the live tree must reproduce it too.
func TestSerializeDeserializeRoundTrip(t *testing.T) {
	live := New()

	insert := func(label string, policy WitnessPolicy) {
		if _, err := live.Insert(policy, commitmentFromString(label)); err != nil {
			t.Fatalf("insert %s: %v", label, err)
		}
	}

	insert("a", Keep)
	insert("b", Forget)
	insert("c", Keep)
	if err := live.EndBlock(); err != nil {
		t.Fatalf("end block: %v", err)
	}

	// First incremental checkpoint: everything recorded so far.
	checkpoint := live.Forgotten()
	first := live.Serialize(0)

	live.Forget(commitmentFromString("a"))
	insert("d", Keep)
	if err := live.EndBlock(); err != nil {
		t.Fatalf("end block 2: %v", err)
	}
	if err := live.EndEpoch(); err != nil {
		t.Fatalf("end epoch: %v", err)
	}
	insert("e", Forget)

	// Second incremental checkpoint: only what changed since the first.
	second := live.Serialize(checkpoint)

	replay := New()
	if err := replay.Deserialize(first); err != nil {
		t.Fatalf("deserialize first chunk: %v", err)
	}
	if err := replay.Deserialize(second); err != nil {
		t.Fatalf("deserialize second chunk: %v", err)
	}
	if replay.Root() != live.Root() {
		t.Fatalf("incremental replay root mismatch: got %v want %v", replay.Root(), live.Root())
	}
	if replay.Len() != live.Len() {
		t.Fatalf("incremental replay witness count mismatch: got %d want %d", replay.Len(), live.Len())
	}

	fromScratch := New()
	whole := live.Serialize(0)
	if err := fromScratch.Deserialize(whole); err != nil {
		t.Fatalf("deserialize full state: %v", err)
	}
	if fromScratch.Root() != live.Root() {
		t.Fatalf("full replay root mismatch: got %v want %v", fromScratch.Root(), live.Root())
	}

	// A from-genesis serialization and the concatenation of the two
	// incremental chunks must cover the same op sequence.
	if len(whole.Ops) != len(first.Ops)+len(second.Ops) {
		t.Fatalf("incremental chunks do not cover the same ops as a full serialize: got %d+%d, want %d",
			len(first.Ops), len(second.Ops), len(whole.Ops))
	}
}
