package action

import "math/big"

// nativeAsset names the chain's staking and fee token within multi-asset
// APIs (dao.Deposit, dao.Spend, dex pairs) that take an asset string rather
// than assuming a single implicit asset the way the Spend/Output balance
// model does.
const nativeAsset = "unative"

func newBigFromUint64(v uint64) *big.Int {
	return new(big.Int).SetUint64(v)
}

func negate(v *big.Int) *big.Int {
	return new(big.Int).Neg(v)
}
