// Package store implements the layered state substrate: a persistent
// authenticated key-value tree for the verifiable namespace, a parallel
// persistent namespace outside the commitment, and copy-on-write overlays
// and per-transaction deltas stacked on top for block and transaction
// execution.
package store

// KV is the minimal persistence contract the substrate needs from its
// backing engine. It is intentionally narrow (get/set/delete/iterate) so
// that any ordered key-value engine can serve as the backing store, the
// same role cometbft-db's dbm.DB plays for the teacher's LedgerStore.
type KV interface {
	Get(key []byte) ([]byte, error)
	Has(key []byte) (bool, error)
	Set(key, value []byte) error
	Delete(key []byte) error
	// Iterator returns an ascending iterator over [start, end). A nil end
	// means "through the end of the keyspace"; it is not bounded to keys
	// sharing start as a prefix.
	Iterator(start, end []byte) (Iterator, error)
	Close() error
}

// Iterator walks a KV's keyspace in ascending key order.
type Iterator interface {
	Valid() bool
	Next()
	Key() []byte
	Value() []byte
	Close() error
}
