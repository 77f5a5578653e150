// Package stake implements the staking/epoch/rate engine: validator
// records, per-epoch rate data, delegation/undelegation accounting, and
// epoch-boundary reconciliation. All consensus-critical arithmetic uses
// math/big.Int with explicit truncating (floor) division, per spec.md §9's
// "numeric discipline" (no floating point, 128-bit-class integers); no
// big-integer library beyond the standard one appears anywhere in the
// retrieval pack for this kind of bounded fixed-point math.
package stake

import (
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"sort"

	"github.com/shieldnet/core/pkg/apperrors"
	"github.com/shieldnet/core/pkg/component"
	"github.com/shieldnet/core/pkg/store"
)

// Scale is the implicit fixed-point denominator (10^8) every rate and
// exchange-rate value is expressed against.
var Scale = big.NewInt(100_000_000)

// bpsToScaleFactor converts a basis-point commission into Scale units: a
// 10000bps (100%) commission removes the full reward.
var bpsToScaleFactor = big.NewInt(10_000)

type ValidatorState string

const (
	Defined    ValidatorState = "Defined"
	Inactive   ValidatorState = "Inactive"
	Active     ValidatorState = "Active"
	Jailed     ValidatorState = "Jailed"
	Tombstoned ValidatorState = "Tombstoned"
	Disabled   ValidatorState = "Disabled"
)

type FundingStream struct {
	Address string `json:"address"`
	RateBps uint64 `json:"rate_bps"`
}

type Validator struct {
	Identity       string          `json:"identity"`
	ConsensusKey   []byte          `json:"consensus_key"`
	FundingStreams []FundingStream `json:"funding_streams"`
	SequenceNumber uint64          `json:"sequence_number"`
	Name           string          `json:"name"`
	Website        string          `json:"website"`
	State          ValidatorState  `json:"state"`
	TotalDelegation *big.Int       `json:"total_delegation"`
}

// CommissionBps sums a validator's funding-stream rates; spec.md invariant:
// the sum must never exceed 10000 basis points.
func (v *Validator) CommissionBps() uint64 {
	var total uint64
	for _, fs := range v.FundingStreams {
		total += fs.RateBps
	}
	return total
}

type RateData struct {
	Epoch        uint64   `json:"epoch"`
	RewardRate   *big.Int `json:"reward_rate"`
	ExchangeRate *big.Int `json:"exchange_rate"`
	VotingPower  *big.Int `json:"voting_power"`
}

// UnbondingTokens is a staged undelegation maturing at FromEpoch +
// unbonding_epochs, claimable via UndelegateClaim thereafter.
type UnbondingTokens struct {
	Validator string   `json:"validator"`
	FromEpoch uint64   `json:"from_epoch"`
	Amount    *big.Int `json:"amount"`
	Claimed   bool     `json:"claimed"`
	Owner     string   `json:"owner"`
}

func validatorKey(identity string) []byte {
	return []byte("staking/validator/" + identity)
}

func rateKey(identity string, epoch uint64) []byte {
	return []byte(fmt.Sprintf("staking/rate/%s/%d", identity, epoch))
}

func baseRateKey(epoch uint64) []byte {
	return []byte(fmt.Sprintf("staking/base_rate/%d", epoch))
}

func unbondingKey(owner string, seq uint64) []byte {
	return []byte(fmt.Sprintf("staking/unbonding/%s/%d", owner, seq))
}

// Component has no in-memory state; all reads/writes go through the
// store so parameter/validator-set changes are visible deterministically
// from the snapshot, never cached.
type Component struct{}

func New() *Component { return &Component{} }

func (c *Component) InitChain(delta *store.Layer, validators []Validator, baseReward *big.Int, req component.InitChainRequest) error {
	for i := range validators {
		validators[i].State = Active
		if validators[i].TotalDelegation == nil {
			validators[i].TotalDelegation = big.NewInt(0)
		}
		if err := PutValidator(delta, &validators[i]); err != nil {
			return err
		}
		if err := AddToIndex(delta, validators[i].Identity); err != nil {
			return err
		}
		rd := RateData{Epoch: 0, RewardRate: big.NewInt(0), ExchangeRate: new(big.Int).Set(Scale), VotingPower: new(big.Int).Set(validators[i].TotalDelegation)}
		if err := PutRate(delta, validators[i].Identity, rd); err != nil {
			return err
		}
	}
	return PutBaseRate(delta, 0, baseReward, new(big.Int).Set(Scale))
}

func (c *Component) BeginBlock(delta *store.Layer, req component.BeginBlockRequest) error { return nil }

func (c *Component) EndBlock(delta *store.Layer, req component.EndBlockRequest) error { return nil }

func GetValidator(r store.Reader, identity string) (*Validator, error) {
	b, err := r.Get(validatorKey(identity))
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, apperrors.Tx(apperrors.ErrUnknownValidator, identity)
	}
	var v Validator
	if err := json.Unmarshal(b, &v); err != nil {
		return nil, apperrors.Block(apperrors.ErrStorageCorruption, err.Error())
	}
	return &v, nil
}

func PutValidator(delta *store.Layer, v *Validator) error {
	if v.CommissionBps() > 10000 {
		return apperrors.Block(apperrors.ErrInvariantViolation, fmt.Sprintf("validator %s commission exceeds 10000bps", v.Identity))
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	delta.Put(validatorKey(v.Identity), b)
	return nil
}

func GetRate(r store.Reader, identity string, epoch uint64) (RateData, error) {
	b, err := r.Get(rateKey(identity, epoch))
	if err != nil {
		return RateData{}, err
	}
	if b == nil {
		return RateData{}, apperrors.Tx(apperrors.ErrUnknownValidator, fmt.Sprintf("no rate data for %s at epoch %d", identity, epoch))
	}
	var rd RateData
	if err := json.Unmarshal(b, &rd); err != nil {
		return RateData{}, apperrors.Block(apperrors.ErrStorageCorruption, err.Error())
	}
	return rd, nil
}

func PutRate(delta *store.Layer, identity string, rd RateData) error {
	b, err := json.Marshal(rd)
	if err != nil {
		return err
	}
	delta.Put(rateKey(identity, rd.Epoch), b)
	return nil
}

type baseRateRecord struct {
	RewardRate   *big.Int `json:"reward_rate"`
	ExchangeRate *big.Int `json:"exchange_rate"`
}

func GetBaseRate(r store.Reader, epoch uint64) (reward, exchange *big.Int, err error) {
	b, err := r.Get(baseRateKey(epoch))
	if err != nil {
		return nil, nil, err
	}
	if b == nil {
		return nil, nil, fmt.Errorf("no base rate data for epoch %d", epoch)
	}
	var rec baseRateRecord
	if err := json.Unmarshal(b, &rec); err != nil {
		return nil, nil, apperrors.Block(apperrors.ErrStorageCorruption, err.Error())
	}
	return rec.RewardRate, rec.ExchangeRate, nil
}

func PutBaseRate(delta *store.Layer, epoch uint64, reward, exchange *big.Int) error {
	b, err := json.Marshal(baseRateRecord{RewardRate: reward, ExchangeRate: exchange})
	if err != nil {
		return err
	}
	delta.Put(baseRateKey(epoch), b)
	return nil
}

func PutUnbonding(delta *store.Layer, owner string, seq uint64, u UnbondingTokens) error {
	b, err := json.Marshal(u)
	if err != nil {
		return err
	}
	delta.Put(unbondingKey(owner, seq), b)
	return nil
}

func GetUnbonding(r store.Reader, owner string, seq uint64) (UnbondingTokens, error) {
	b, err := r.Get(unbondingKey(owner, seq))
	if err != nil {
		return UnbondingTokens{}, err
	}
	if b == nil {
		return UnbondingTokens{}, apperrors.Tx(apperrors.ErrConsensusRuleViolation, "unknown unbonding record")
	}
	var u UnbondingTokens
	if err := json.Unmarshal(b, &u); err != nil {
		return UnbondingTokens{}, apperrors.Block(apperrors.ErrStorageCorruption, err.Error())
	}
	return u, nil
}

// ValidatorUpdate pairs a validator's consensus key with its freshly
// recomputed ABCI voting power: the shape FinalizeBlock hands back to
// CometBFT so slashing, jailing, and active-set churn actually reach the
// consensus engine instead of staying frozen at genesis's flat power.
type ValidatorUpdate struct {
	ConsensusKey []byte
	Power        int64
}

// CometPower converts a validator's epoch-recomputed voting power into the
// int64 CometBFT's ValidatorUpdate.Power expects. A non-Active validator
// always reports power 0, the ABCI signal to drop it from the active set;
// an Active validator's power is never allowed to round down to 0, since
// that would remove it by accident rather than by falling out of the
// active set.
func CometPower(v *Validator, rd RateData) int64 {
	if v.State != Active {
		return 0
	}
	if !rd.VotingPower.IsInt64() {
		return math.MaxInt64
	}
	p := rd.VotingPower.Int64()
	if p <= 0 {
		return 1
	}
	return p
}

// PowerUpdates reads every indexed validator's rate data as of epoch and
// returns the ABCI power update for each, ready to fold into
// ResponseFinalizeBlock.ValidatorUpdates after EndEpoch has run.
func PowerUpdates(r store.Reader, epoch uint64) ([]ValidatorUpdate, error) {
	identities, err := ListIndex(r)
	if err != nil {
		return nil, err
	}
	updates := make([]ValidatorUpdate, 0, len(identities))
	for _, id := range identities {
		v, err := GetValidator(r, id)
		if err != nil {
			return nil, err
		}
		rd, err := GetRate(r, id, epoch)
		if err != nil {
			return nil, err
		}
		updates = append(updates, ValidatorUpdate{ConsensusKey: v.ConsensusKey, Power: CometPower(v, rd)})
	}
	return updates, nil
}

// ActiveSet ranks validators by TotalDelegation (descending, stable
// tie-break by identity key) and returns the top activeValidatorLimit
// identities, per spec.md §4.5's Inactive<->Active transition rule.
func ActiveSet(validators []Validator, activeValidatorLimit int) []string {
	ranked := make([]Validator, len(validators))
	copy(ranked, validators)
	sort.SliceStable(ranked, func(i, j int) bool {
		ci := ranked[i].TotalDelegation.Cmp(ranked[j].TotalDelegation)
		if ci != 0 {
			return ci > 0
		}
		return ranked[i].Identity < ranked[j].Identity
	})
	if activeValidatorLimit > len(ranked) {
		activeValidatorLimit = len(ranked)
	}
	out := make([]string, 0, activeValidatorLimit)
	for i := 0; i < activeValidatorLimit; i++ {
		out = append(out, ranked[i].Identity)
	}
	return out
}
