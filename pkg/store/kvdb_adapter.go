package store

import (
	dbm "github.com/cometbft/cometbft-db"
)

// KVDBAdapter wraps a cometbft-db dbm.DB and exposes the substrate's KV
// contract. Grounded on the teacher's pkg/kvdb.KVAdapter, which performs the
// identical wrapping for its LedgerStore.
type KVDBAdapter struct {
	db dbm.DB
}

// NewKVDBAdapter constructs a KVDBAdapter over an open cometbft-db database.
func NewKVDBAdapter(db dbm.DB) *KVDBAdapter {
	return &KVDBAdapter{db: db}
}

func (a *KVDBAdapter) Get(key []byte) ([]byte, error) {
	return a.db.Get(key)
}

func (a *KVDBAdapter) Has(key []byte) (bool, error) {
	return a.db.Has(key)
}

// Set performs a durable synchronous write. The substrate's commit path is
// the chain's single point of durability, so every write must survive a
// crash immediately after it returns, exactly as the teacher's adapter uses
// SetSync rather than the async Set.
func (a *KVDBAdapter) Set(key, value []byte) error {
	return a.db.SetSync(key, value)
}

func (a *KVDBAdapter) Delete(key []byte) error {
	return a.db.DeleteSync(key)
}

func (a *KVDBAdapter) Close() error {
	return a.db.Close()
}

func (a *KVDBAdapter) Iterator(start, end []byte) (Iterator, error) {
	it, err := a.db.Iterator(start, end)
	if err != nil {
		return nil, err
	}
	return &dbIterator{it: it}, nil
}

type dbIterator struct {
	it dbm.Iterator
}

func (i *dbIterator) Valid() bool     { return i.it.Valid() }
func (i *dbIterator) Next()           { i.it.Next() }
func (i *dbIterator) Key() []byte     { return i.it.Key() }
func (i *dbIterator) Value() []byte   { return i.it.Value() }
func (i *dbIterator) Close() error    { return i.it.Close() }

// MemKV is a process-local, non-persistent KV backed by cometbft-db's
// memdb engine. Used for tests and for ephemeral standalone tooling.
func MemKV() KV {
	return NewKVDBAdapter(dbm.NewMemDB())
}
