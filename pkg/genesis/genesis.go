// Package genesis decodes the genesis document a new chain is bootstrapped
// from: chain parameters, the initial validator set, and the DAO's initial
// treasury. It is consumed exactly once, by InitChain, before the first
// block is ever processed.
package genesis

import (
	"fmt"
	"math/big"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/shieldnet/core/pkg/commitment"
	"github.com/shieldnet/core/pkg/component/chain"
	"github.com/shieldnet/core/pkg/component/stake"
)

// ValidatorAllocation is one genesis validator and its initial delegation.
type ValidatorAllocation struct {
	Identity        string                `yaml:"identity"`
	ConsensusKey    []byte                `yaml:"consensus_key"`
	Name            string                `yaml:"name"`
	Website         string                `yaml:"website"`
	FundingStreams  []stake.FundingStream `yaml:"funding_streams"`
	TotalDelegation string                `yaml:"total_delegation"`
}

// DAOAllocation seeds the DAO's initial balance of one asset.
type DAOAllocation struct {
	Asset  string `yaml:"asset"`
	Amount string `yaml:"amount"`
}

// Doc is the full genesis document, decoded from YAML.
type Doc struct {
	ChainID       string                 `yaml:"chain_id"`
	GenesisTime   time.Time              `yaml:"genesis_time"`
	Params        chain.Params           `yaml:"params"`
	BaseRewardBps uint64                 `yaml:"base_reward_bps"`
	BaseFee       uint64                 `yaml:"base_fee"`
	Validators    []ValidatorAllocation  `yaml:"validators"`
	DAOAllocations []DAOAllocation       `yaml:"dao_allocations"`
}

// Load reads and decodes a genesis document from path.
func Load(path string) (*Doc, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading genesis file: %w", err)
	}
	var doc Doc
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("parsing genesis file: %w", err)
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return &doc, nil
}

// Validate checks the document is well-formed enough to bootstrap a chain.
// Deeper consistency (e.g. a validator's commission summing correctly) is
// enforced by the stake component itself when InitChain applies it.
func (d *Doc) Validate() error {
	if d.ChainID == "" {
		return fmt.Errorf("genesis: chain_id must not be empty")
	}
	if d.Params.EpochDuration == 0 {
		return fmt.Errorf("genesis: params.epoch_duration must be nonzero")
	}
	if len(d.Validators) == 0 {
		return fmt.Errorf("genesis: at least one validator is required")
	}
	seen := map[string]bool{}
	for _, v := range d.Validators {
		if v.Identity == "" {
			return fmt.Errorf("genesis: validator missing identity")
		}
		if seen[v.Identity] {
			return fmt.Errorf("genesis: duplicate validator identity %s", v.Identity)
		}
		seen[v.Identity] = true
	}
	return nil
}

// StakeValidators converts the genesis allocations into the stake
// component's Validator type, parsing each delegation amount.
func (d *Doc) StakeValidators() ([]stake.Validator, error) {
	out := make([]stake.Validator, 0, len(d.Validators))
	for _, v := range d.Validators {
		total, ok := new(big.Int).SetString(v.TotalDelegation, 10)
		if !ok {
			if v.TotalDelegation != "" {
				return nil, fmt.Errorf("genesis: validator %s has malformed total_delegation %q", v.Identity, v.TotalDelegation)
			}
			total = big.NewInt(0)
		}
		out = append(out, stake.Validator{
			Identity:        v.Identity,
			ConsensusKey:    v.ConsensusKey,
			FundingStreams:  v.FundingStreams,
			Name:            v.Name,
			Website:         v.Website,
			TotalDelegation: total,
		})
	}
	return out, nil
}

// BaseReward returns the genesis base reward rate as a stake-scale big.Int
// (basis points converted into the component's fixed-point Scale).
func (d *Doc) BaseReward() *big.Int {
	r := new(big.Int).SetUint64(d.BaseRewardBps)
	r.Mul(r, stake.Scale)
	return r.Div(r, big.NewInt(10_000))
}

// DAOBalances parses the genesis DAO allocations into an asset->amount map
// for the caller to apply via dao.Deposit. A later allocation for the same
// asset replaces an earlier one, and the map keeps no document order.
func (d *Doc) DAOBalances() (map[string]*big.Int, error) {
	out := make(map[string]*big.Int, len(d.DAOAllocations))
	for _, a := range d.DAOAllocations {
		amt, ok := new(big.Int).SetString(a.Amount, 10)
		if !ok {
			return nil, fmt.Errorf("genesis: dao allocation for %s has malformed amount %q", a.Asset, a.Amount)
		}
		out[a.Asset] = amt
	}
	return out, nil
}

// Hash returns a stable content-addressed identifier for the genesis
// document, which two nodes can compare to confirm they bootstrapped from
// the same genesis without diffing the whole file. The node itself neither
// records nor compares it.
func (d *Doc) Hash() (string, error) {
	return commitment.HashCanonical(d)
}
