// Package storage persists every piece of proxy-owned exchange state
// (balances, the order arena, token listings, pause flag, order id
// counter) in a Pebble database. Upgrading the logic implementation
// never touches this layer, which is what keeps state intact across
// upgrades.
package storage

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cockroachdb/pebble"
	"github.com/ethereum/go-ethereum/common"

	"github.com/hyosong/custodex/pkg/dex/book"
	"github.com/hyosong/custodex/pkg/dex/token"
)

// Store wraps the Pebble database. Callers serialize access; the store
// itself holds no locks.
type Store struct {
	db *pebble.DB
}

// BalanceRecord is one (account, ticker) -> amount row.
type BalanceRecord struct {
	Account common.Address
	Ticker  token.Ticker
	Amount  uint64
}

// Open opens (or creates) the store at path.
func Open(path string) (*Store, error) {
	opts := &pebble.Options{
		Cache:        pebble.NewCache(64 << 20),
		MemTableSize: 32 << 20,
	}
	db, err := pebble.Open(path, opts)
	if err != nil {
		return nil, fmt.Errorf("open pebble db at %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// SetBalance persists one ledger balance.
func (s *Store) SetBalance(addr common.Address, ticker token.Ticker, amount uint64) error {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], amount)
	if err := s.db.Set(balanceKey(addr, ticker), buf[:], pebble.Sync); err != nil {
		return fmt.Errorf("set balance %s/%s: %w", addr.Hex(), ticker, err)
	}
	return nil
}

// LoadBalances returns every persisted balance row.
func (s *Store) LoadBalances() ([]BalanceRecord, error) {
	prefix := []byte(prefixBalance)
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var out []BalanceRecord
	for iter.First(); iter.Valid(); iter.Next() {
		rec, err := parseBalanceKey(iter.Key())
		if err != nil {
			continue // skip malformed rows
		}
		if len(iter.Value()) != 8 {
			continue
		}
		rec.Amount = binary.BigEndian.Uint64(iter.Value())
		out = append(out, rec)
	}
	return out, nil
}

func parseBalanceKey(key []byte) (BalanceRecord, error) {
	rest := strings.TrimPrefix(string(key), prefixBalance)
	parts := strings.SplitN(rest, ":", 2)
	if len(parts) != 2 || !common.IsHexAddress(parts[0]) {
		return BalanceRecord{}, fmt.Errorf("malformed balance key %q", key)
	}
	return BalanceRecord{
		Account: common.HexToAddress(parts[0]),
		Ticker:  token.Ticker(parts[1]),
	}, nil
}

// SaveOrder persists an order (insert or fill update).
func (s *Store) SaveOrder(o *book.Order) error {
	data, err := json.Marshal(o)
	if err != nil {
		return fmt.Errorf("marshal order %d: %w", o.ID, err)
	}
	if err := s.db.Set(orderKey(o.ID), data, pebble.Sync); err != nil {
		return fmt.Errorf("save order %d: %w", o.ID, err)
	}
	return nil
}

// LoadOrders returns the whole order arena in id (submission) order.
func (s *Store) LoadOrders() ([]*book.Order, error) {
	prefix := []byte(prefixOrder)
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var out []*book.Order
	for iter.First(); iter.Valid(); iter.Next() {
		var o book.Order
		if err := json.Unmarshal(iter.Value(), &o); err != nil {
			continue
		}
		out = append(out, &o)
	}
	return out, nil
}

// SaveToken appends a token listing at the given registration sequence.
func (s *Store) SaveToken(seq int, l token.Listing) error {
	data, err := json.Marshal(l)
	if err != nil {
		return fmt.Errorf("marshal token %s: %w", l.Ticker, err)
	}
	if err := s.db.Set(tokenKey(seq), data, pebble.Sync); err != nil {
		return fmt.Errorf("save token %s: %w", l.Ticker, err)
	}
	return nil
}

// LoadTokens returns persisted token listings in registration order.
func (s *Store) LoadTokens() ([]token.Listing, error) {
	prefix := []byte(prefixToken)
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var out []token.Listing
	for iter.First(); iter.Valid(); iter.Next() {
		var l token.Listing
		if err := json.Unmarshal(iter.Value(), &l); err != nil {
			continue
		}
		out = append(out, l)
	}
	return out, nil
}

// SetPaused persists the circuit-breaker flag.
func (s *Store) SetPaused(paused bool) error {
	v := []byte{0}
	if paused {
		v[0] = 1
	}
	return s.db.Set([]byte(keyPaused), v, pebble.Sync)
}

// Paused loads the circuit-breaker flag (false when unset).
func (s *Store) Paused() (bool, error) {
	v, closer, err := s.db.Get([]byte(keyPaused))
	if err == pebble.ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	defer closer.Close()
	return len(v) == 1 && v[0] == 1, nil
}

// SetNextOrderID persists the order id counter.
func (s *Store) SetNextOrderID(id uint64) error {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], id)
	return s.db.Set([]byte(keyNextOrder), buf[:], pebble.Sync)
}

// NextOrderID loads the order id counter (1 when unset).
func (s *Store) NextOrderID() (uint64, error) {
	v, closer, err := s.db.Get([]byte(keyNextOrder))
	if err == pebble.ErrNotFound {
		return 1, nil
	}
	if err != nil {
		return 0, err
	}
	defer closer.Close()
	if len(v) != 8 {
		return 0, fmt.Errorf("malformed next order id value")
	}
	return binary.BigEndian.Uint64(v), nil
}

// Batch groups balance, order, and counter writes into one atomic
// commit. Market-order settlement writes everything it touched through
// a single batch so a crash can never persist half a walk.
type Batch struct {
	batch *pebble.Batch
}

// NewBatch starts an atomic write batch.
func (s *Store) NewBatch() *Batch {
	return &Batch{batch: s.db.NewBatch()}
}

// SetBalance stages a balance write.
func (b *Batch) SetBalance(addr common.Address, ticker token.Ticker, amount uint64) error {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], amount)
	return b.batch.Set(balanceKey(addr, ticker), buf[:], nil)
}

// SaveOrder stages an order write.
func (b *Batch) SaveOrder(o *book.Order) error {
	data, err := json.Marshal(o)
	if err != nil {
		return err
	}
	return b.batch.Set(orderKey(o.ID), data, nil)
}

// SetNextOrderID stages the counter write.
func (b *Batch) SetNextOrderID(id uint64) error {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], id)
	return b.batch.Set([]byte(keyNextOrder), buf[:], nil)
}

// Commit writes the batch atomically.
func (b *Batch) Commit() error {
	return b.batch.Commit(pebble.Sync)
}

// Close discards the batch without committing.
func (b *Batch) Close() error {
	return b.batch.Close()
}
