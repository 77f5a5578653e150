package tct

// Block is the subset of a block's tree activity a compact block needs to
// carry to light clients: every commitment appended during the block, in
// insertion order, plus whether the epoch closed with it.
type Block struct {
	Commitments []Commitment
	EpochEnded  bool
}

// Apply replays a Block's commitments against the tree with Forget
// semantics (a light client scanning compact blocks has no use for full
// witness retention of everything it is not its own), then closes the
// block and, if EpochEnded is set, the epoch.
func (t *Tree) Apply(b Block) error {
	for _, c := range b.Commitments {
		if _, err := t.Insert(Forget, c); err != nil {
			return err
		}
	}
	if err := t.EndBlock(); err != nil {
		return err
	}
	if b.EpochEnded {
		if err := t.EndEpoch(); err != nil {
			return err
		}
	}
	return nil
}

// MarshalHash encodes a field element as big-endian bytes, the wire
// representation used wherever a Hash crosses a serialization boundary
// (compact blocks, auth paths sent to light clients).
func MarshalHash(h Hash) []byte {
	b := h.Bytes()
	return b[:]
}

// UnmarshalHash decodes a big-endian field element, reducing modulo the
// field as fr.Element.SetBytes does for any oversized input.
func UnmarshalHash(b []byte) Hash {
	var h Hash
	h.SetBytes(b)
	return h
}

// opKind identifies which of the tree's four mutating operations a treeOp
// recorded.
type opKind uint8

const (
	opInsert opKind = iota
	opForget
	opEndBlock
	opEndEpoch
)

// treeOp is one entry in Tree.ops: enough to replay the mutation it
// recorded exactly, via the same Insert/Forget/EndBlock/EndEpoch methods
// that produced it in the first place.
type treeOp struct {
	kind       opKind
	commitment Commitment
	keep       bool
}

// Forgotten is a watermark over every structural mutation (Insert, Forget,
// EndBlock, EndEpoch) the tree has ever recorded. A caller holding the
// Forgotten value returned alongside its previous Serialize call can ask
// for exactly the ops recorded since — the "last-forgotten epoch counter"
// spec.md calls for — instead of the whole tree's history.
type Forgotten uint64

// Forgotten reports the tree's current watermark: the number of mutating
// operations it has ever recorded.
func (t *Tree) Forgotten() Forgotten {
	return Forgotten(len(t.ops))
}

// OpKind identifies which tree mutation a serialized Op replays.
type OpKind uint8

const (
	OpInsert OpKind = iota
	OpForget
	OpEndBlock
	OpEndEpoch
)

// Op is the wire form of a treeOp: a single Insert, Forget, EndBlock, or
// EndEpoch call, replayable independent of this tree's in-memory layout.
type Op struct {
	Kind       OpKind
	Commitment Commitment
	Policy     WitnessPolicy
}

// State is a (possibly incremental) serialization of tree structure:
// everything added or changed since From, replayable against a tree
// already caught up to From to reproduce this tree's exact state,
// verified by Root() equality. Serialize(0) produces a full, from-genesis
// serialization.
type State struct {
	From Forgotten
	Ops  []Op
}

// Serialize returns the ops recorded since from: the nodes/commitments
// added and the witness-state changes (Forget calls) made since the prior
// serialization at that watermark. Deserializing the result against a tree
// already caught up to from reproduces this tree's exact state.
func (t *Tree) Serialize(from Forgotten) State {
	start := int(from)
	if start < 0 {
		start = 0
	}
	if start > len(t.ops) {
		start = len(t.ops)
	}
	tail := t.ops[start:]
	ops := make([]Op, len(tail))
	for i, op := range tail {
		kind := OpInsert
		switch op.kind {
		case opForget:
			kind = OpForget
		case opEndBlock:
			kind = OpEndBlock
		case opEndEpoch:
			kind = OpEndEpoch
		}
		policy := Forget
		if op.keep {
			policy = Keep
		}
		ops[i] = Op{Kind: kind, Commitment: op.commitment, Policy: policy}
	}
	return State{From: Forgotten(start), Ops: ops}
}

// Deserialize replays a State's ops against t in order, reproducing
// whatever tree state produced them. Applied to a freshly New() tree it
// reconstructs the whole tree from genesis; applied to a tree already
// caught up to state.From it applies only the incremental delta.
func (t *Tree) Deserialize(state State) error {
	for _, op := range state.Ops {
		switch op.Kind {
		case OpInsert:
			if _, err := t.Insert(op.Policy, op.Commitment); err != nil {
				return err
			}
		case OpForget:
			t.Forget(op.Commitment)
		case OpEndBlock:
			if err := t.EndBlock(); err != nil {
				return err
			}
		case OpEndEpoch:
			if err := t.EndEpoch(); err != nil {
				return err
			}
		}
	}
	return nil
}
