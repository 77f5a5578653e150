package tct

import "sync"

// emptySubtree[h] is the root of a fully-absent subtree of height h (0..8):
// emptySubtree[0] is the sentinel leaf value, emptySubtree[h] is
// nodeHash(h, [emptySubtree[h-1]]*4). Every tier's fold uses these as
// padding for slots beyond the current frontier. A tier holding no
// commitments reports emptySubtree[0] as its root (see asTierLeaf), the
// same value the padding puts in an unused slot, which is what makes
// end_block/end_epoch pure bookkeeping: closing a tier and opening a fresh,
// genuinely empty one in its place reproduces exactly the same root the
// padding would have contributed, so the overall root never moves just
// because a tier boundary was crossed.
var (
	emptySubtree   [tierHeight + 1]Hash
	emptySubtreeMu sync.Once
)

// absentLeaf is the fixed value standing in for a commitment slot nothing
// has been inserted into yet.
func absentLeaf() Hash {
	return feFromLabel(domainEmpty)
}

func initEmptySubtrees() {
	emptySubtree[0] = absentLeaf()
	for h := 1; h <= tierHeight; h++ {
		var children [4]Hash
		for i := range children {
			children[i] = emptySubtree[h-1]
		}
		emptySubtree[h] = nodeHash(h, children)
	}
}

// quadFold computes the root of a height-h quad tree whose leaves are
// pre-hashed values (already leafHash'd commitments for an item tier, or
// child-tier roots for a block/epoch tier). Quadrants entirely beyond
// len(leaves) are resolved to the precomputed empty-subtree constant
// without recursing, so the cost of a fold is proportional to the number of
// real leaves times the tier height, not to 4^height.
func quadFold(leaves []Hash, h int) Hash {
	emptySubtreeMu.Do(initEmptySubtrees)

	if h == 0 {
		if len(leaves) > 0 {
			return leaves[0]
		}
		return emptySubtree[0]
	}
	if len(leaves) == 0 {
		return emptySubtree[h]
	}

	quadSize := 1 << (2 * (h - 1))
	var children [4]Hash
	for i := 0; i < 4; i++ {
		lo := i * quadSize
		if lo >= len(leaves) {
			children[i] = emptySubtree[h-1]
			continue
		}
		hi := lo + quadSize
		if hi > len(leaves) {
			hi = len(leaves)
		}
		children[i] = quadFold(leaves[lo:hi], h-1)
	}
	return nodeHash(h, children)
}

// itemTier is the bottom tier: raw commitments within a single block.
type itemTier struct {
	leaves []Hash
	kept   []bool
	ended  bool
}

func newItemTier() *itemTier {
	return &itemTier{}
}

// insert appends a commitment and returns its index within this tier, or
// an error if the tier is closed or already at capacity.
func (t *itemTier) insert(c Commitment, keep bool) (uint16, error) {
	if t.ended {
		return 0, ErrTierEnded
	}
	if len(t.leaves) >= tierCapacity {
		return 0, ErrTierFull
	}
	idx := uint16(len(t.leaves))
	t.leaves = append(t.leaves, leafHash(c))
	t.kept = append(t.kept, keep)
	return idx, nil
}

func (t *itemTier) forget(idx uint16) {
	if int(idx) < len(t.kept) {
		t.kept[idx] = false
	}
}

func (t *itemTier) root() Hash {
	return asTierLeaf(quadFold(t.leaves, tierHeight))
}

// asTierLeaf maps the root of a tier holding no commitments to the
// absent-leaf value, so an empty child tier fills its parent's slot exactly
// as padding does.
func asTierLeaf(h Hash) Hash {
	if h == emptySubtree[tierHeight] {
		return emptySubtree[0]
	}
	return h
}

// end closes the tier against further inserts. Root is unaffected: it was
// already computed purely from leaves, independent of ended.
func (t *itemTier) end() { t.ended = true }

// blockTier is the middle tier: closed item tiers within a single epoch,
// plus the currently open block. Closed item tiers are retained in full
// (not collapsed to just their root) so a commitment inserted with Keep
// stays witnessable after its block closes — only Forget, never a tier
// boundary, may drop the ability to produce a path for it.
type blockTier struct {
	blockRoots []Hash
	closed     []*itemTier
	current    *itemTier
	ended      bool
}

func newBlockTier() *blockTier {
	return &blockTier{current: newItemTier()}
}

func (t *blockTier) root() Hash {
	leaves := make([]Hash, 0, len(t.blockRoots)+1)
	leaves = append(leaves, t.blockRoots...)
	leaves = append(leaves, t.current.root())
	return asTierLeaf(quadFold(leaves, tierHeight))
}

// endBlock closes the currently open item tier, appends its root to the
// closed list, and opens a fresh empty item tier in its place.
func (t *blockTier) endBlock() error {
	if t.ended {
		return ErrTierEnded
	}
	if len(t.blockRoots) >= tierCapacity {
		return ErrTierFull
	}
	t.current.end()
	t.blockRoots = append(t.blockRoots, t.current.root())
	t.closed = append(t.closed, t.current)
	t.current = newItemTier()
	return nil
}

func (t *blockTier) end() { t.ended = true }

// itemTierAt returns the item tier at the given block index, whether
// closed or (for the current block index) still open.
func (t *blockTier) itemTierAt(blockIdx uint16) *itemTier {
	if int(blockIdx) < len(t.closed) {
		return t.closed[blockIdx]
	}
	return t.current
}
