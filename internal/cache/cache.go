// Package cache stores extracted feature rows keyed by model fingerprint
// and audio content.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/vmihailenco/msgpack/v5"
)

const keyPrefix = "features/"

// Store is a badger-backed feature cache. It is safe for concurrent use.
type Store struct {
	db  *badger.DB
	ttl time.Duration
}

// Options configures Open.
type Options struct {
	// Dir is the badger directory. Empty keeps everything in memory.
	Dir string
	// TTL expires entries; zero keeps them forever.
	TTL time.Duration
}

// Entry is the cached form of an extraction.
type Entry struct {
	Rows       [][]float32 `msgpack:"rows"`
	Segments   int         `msgpack:"segments"`
	SampleRate int         `msgpack:"sample_rate"`
	Channels   int         `msgpack:"channels"`
}

// Open opens or creates the store.
func Open(opts Options) (*Store, error) {
	bopts := badger.DefaultOptions(opts.Dir).WithLogger(nil)
	if opts.Dir == "" {
		bopts = bopts.WithInMemory(true)
	}
	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("failed to open feature cache: %w", err)
	}
	return &Store{db: db, ttl: opts.TTL}, nil
}

// Key hashes the model fingerprint together with the audio bytes.
func Key(fingerprint string, content io.Reader) (string, error) {
	h := sha256.New()
	h.Write([]byte(fingerprint))
	h.Write([]byte{0})
	if _, err := io.Copy(h, content); err != nil {
		return "", fmt.Errorf("failed to hash audio: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Get returns the entry for key. ok is false on a miss.
func (s *Store) Get(key string) (entry *Entry, ok bool, err error) {
	err = s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(keyPrefix + key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			var e Entry
			if err := msgpack.Unmarshal(val, &e); err != nil {
				return fmt.Errorf("decode cached features: %w", err)
			}
			entry, ok = &e, true
			return nil
		})
	})
	if err != nil {
		return nil, false, fmt.Errorf("cache get %s: %w", key, err)
	}
	return entry, ok, nil
}

// Put stores entry under key, replacing any previous value.
func (s *Store) Put(key string, entry *Entry) error {
	val, err := msgpack.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode features: %w", err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry([]byte(keyPrefix+key), val)
		if s.ttl > 0 {
			e = e.WithTTL(s.ttl)
		}
		return txn.SetEntry(e)
	})
}

// Delete removes key. Missing keys are not an error.
func (s *Store) Delete(key string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(keyPrefix + key))
	})
}

func (s *Store) Close() error {
	return s.db.Close()
}
