// Package fee owns the "fee/" keyspace: the chain's fee schedule and a
// per-block accumulator of collected fees, flushed to the DAO at
// end_block. Gas-weighted fee computation is kept as a simple linear
// multiplier, since the full gas-metering VM is out of scope
// (original_source/crates/core/component/fee/src/component.rs, gas.rs).
package fee

import (
	"encoding/binary"

	"github.com/shieldnet/core/pkg/component"
	"github.com/shieldnet/core/pkg/store"
)

const (
	keySchedule    = "fee/schedule/base_fee"
	keyAccumulator = "fee/block_accumulator"
)

// Component has no in-memory state of its own.
type Component struct{}

func New() *Component { return &Component{} }

func (c *Component) InitChain(delta *store.Layer, baseFee uint64, req component.InitChainRequest) error {
	delta.Put([]byte(keySchedule), encodeUint64(baseFee))
	return nil
}

func (c *Component) BeginBlock(delta *store.Layer, req component.BeginBlockRequest) error {
	delta.Put([]byte(keyAccumulator), encodeUint64(0))
	return nil
}

// Collect adds a transaction's declared fee to this block's accumulator.
// Called from the orchestrator after a transaction's delta merges
// successfully (fees from rejected transactions are never collected).
func Collect(delta *store.Layer, amount uint64) error {
	cur, err := readAccumulator(delta)
	if err != nil {
		return err
	}
	delta.Put([]byte(keyAccumulator), encodeUint64(cur+amount))
	return nil
}

// FlushToDAO reads the block's accumulated fees for the orchestrator to
// hand off to the DAO component at end_block, and resets the accumulator.
func FlushToDAO(delta *store.Layer) (uint64, error) {
	cur, err := readAccumulator(delta)
	if err != nil {
		return 0, err
	}
	delta.Put([]byte(keyAccumulator), encodeUint64(0))
	return cur, nil
}

// BaseFee reads the chain's configured base fee.
func BaseFee(r store.Reader) (uint64, error) {
	b, err := r.Get([]byte(keySchedule))
	if err != nil || len(b) != 8 {
		return 0, err
	}
	return binary.BigEndian.Uint64(b), nil
}

func readAccumulator(r store.Reader) (uint64, error) {
	b, err := r.Get([]byte(keyAccumulator))
	if err != nil || len(b) != 8 {
		return 0, err
	}
	return binary.BigEndian.Uint64(b), nil
}

func encodeUint64(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}
