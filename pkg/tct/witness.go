package tct

// AuthPath is an inclusion proof for one commitment: 24 levels (8 per
// tier, item then block then epoch), each level naming the 3 sibling
// hashes of the node containing the witnessed leaf and which of the 4
// quadrants (0-3) it occupies.
type AuthPath struct {
	Position Position
	Levels   [3 * tierHeight]AuthLevel
}

type AuthLevel struct {
	Siblings [3]Hash
	Index    uint8 // 0..3, which child the witnessed value is
}

// Witness builds the authentication path for a currently-witnessed
// commitment. It returns ErrNotFound if the commitment was never inserted
// with Keep, or was later Forgotten.
func (t *Tree) Witness(c Commitment) (AuthPath, error) {
	pos, ok := t.witnesses[c]
	if !ok {
		return AuthPath{}, ErrNotFound
	}

	path := AuthPath{Position: pos}

	bt := t.blockTierAt(pos.Epoch())
	it := bt.itemTierAt(pos.Block())

	epochLeaves := make([]Hash, 0, len(t.epochRoots)+1)
	epochLeaves = append(epochLeaves, t.epochRoots...)
	epochLeaves = append(epochLeaves, t.current.root())

	blockLeaves := make([]Hash, 0, len(bt.blockRoots)+1)
	blockLeaves = append(blockLeaves, bt.blockRoots...)
	blockLeaves = append(blockLeaves, bt.current.root())

	itemLeaves := it.leaves

	offset := 0
	fillLevels(path.Levels[offset:offset+tierHeight], itemLeaves, uint32(pos.Commitment()))
	offset += tierHeight
	fillLevels(path.Levels[offset:offset+tierHeight], blockLeaves, uint32(pos.Block()))
	offset += tierHeight
	fillLevels(path.Levels[offset:offset+tierHeight], epochLeaves, uint32(pos.Epoch()))

	return path, nil
}

// fillLevels walks a single tier's quad tree from the leaves up, recording
// the 3 siblings and quadrant index at each of the tier's 8 levels for the
// leaf at the given index. dst[0] is the level closest to the leaves,
// dst[len(dst)-1] the level closest to the tier root.
func fillLevels(dst []AuthLevel, leaves []Hash, leafIndex uint32) {
	emptySubtreeMu.Do(initEmptySubtrees)
	h := len(dst)

	for level := 0; level < h; level++ {
		quadSize := 1 << (2 * level)
		groupSize := quadSize * 4
		groupStart := int(leafIndex) / groupSize * groupSize
		quadrant := (int(leafIndex) / quadSize) % 4

		var siblings [3]Hash
		si := 0
		for q := 0; q < 4; q++ {
			if q == quadrant {
				continue
			}
			lo := groupStart + q*quadSize
			siblings[si] = subtreeRootAt(leaves, lo, quadSize, level)
			si++
		}
		dst[level] = AuthLevel{Siblings: siblings, Index: uint8(quadrant)}
	}
}

// subtreeRootAt computes the root of the height-`level` subtree of `leaves`
// starting at index `lo`, treating indices beyond len(leaves) as absent.
func subtreeRootAt(leaves []Hash, lo, size, level int) Hash {
	if lo >= len(leaves) {
		return emptySubtree[level]
	}
	hi := lo + size
	if hi > len(leaves) {
		hi = len(leaves)
	}
	return quadFold(leaves[lo:hi], level)
}

// Verify recomputes a root from an authentication path and a candidate
// commitment, for callers (e.g. a light client) that hold only the root and
// the path, not the live tree.
func Verify(root Hash, c Commitment, path AuthPath) bool {
	cur := leafHash(c)
	for level := 0; level < len(path.Levels); level++ {
		lvl := path.Levels[level]
		var children [4]Hash
		si := 0
		for q := 0; q < 4; q++ {
			if uint8(q) == lvl.Index {
				children[q] = cur
				continue
			}
			children[q] = lvl.Siblings[si]
			si++
		}
		height := level%tierHeight + 1
		cur = nodeHash(height, children)
	}
	return cur == root
}
