// Package storage provides the append-only signal and training logs backed by
// BoltDB. Rows are keyed by a monotonic sequence number so append order doubles
// as time order, and readers can take a bounded tail window while the scanner
// keeps appending.
package storage

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"pumpwatch/internal/features"
	"pumpwatch/internal/score"

	"go.etcd.io/bbolt"
)

const (
	signalsBucket  = "signals"
	trainingBucket = "training"
)

// Signal is one emitted alert, immutable once appended.
type Signal struct {
	Token        string         `json:"token"`
	Chain        string         `json:"chain"`
	Price        string         `json:"price"`
	Score        int            `json:"score"`
	Probability  int            `json:"probability"`
	Momentum     score.Momentum `json:"momentum"`
	LiquidityUSD float64        `json:"liquidityUsd"`
	Volume24h    float64        `json:"volume24h"`
	URL          string         `json:"url,omitempty"`
	Timestamp    time.Time      `json:"timestamp"`
}

// TrainingRow is one labeled feature vector. The column set must stay stable
// across appends; it mirrors features.Vector plus the label.
type TrainingRow struct {
	features.Vector
	Pumped int `json:"pumped"`
}

// Store wraps the BoltDB database holding both logs.
type Store struct {
	db *bbolt.DB
}

// New opens (or creates) the database under dataPath and ensures both buckets
// exist.
func New(dataPath string) (*Store, error) {
	dbPath := filepath.Join(dataPath, "pumpwatch.db")

	db, err := bbolt.Open(dbPath, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(signalsBucket)); err != nil {
			return fmt.Errorf("create signals bucket: %w", err)
		}
		if _, err := tx.CreateBucketIfNotExists([]byte(trainingBucket)); err != nil {
			return fmt.Errorf("create training bucket: %w", err)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// AppendSignal appends one signal row. The write is committed before return,
// so a shutdown after this call never loses the row.
func (s *Store) AppendSignal(sig Signal) error {
	return s.append(signalsBucket, sig)
}

// AppendTraining appends one labeled training row.
func (s *Store) AppendTraining(row TrainingRow) error {
	return s.append(trainingBucket, row)
}

func (s *Store) append(bucket string, v any) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucket))

		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("marshal %s row: %w", bucket, err)
		}

		seq, err := b.NextSequence()
		if err != nil {
			return fmt.Errorf("next sequence: %w", err)
		}
		return b.Put(seqKey(seq), data)
	})
}

// RecentSignals returns up to n signals, newest first. Concurrent appends
// during the read are benign: the cursor walks a snapshot of the tail.
func (s *Store) RecentSignals(n int) ([]Signal, error) {
	var signals []Signal

	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(signalsBucket)).Cursor()
		for k, v := c.Last(); k != nil && len(signals) < n; k, v = c.Prev() {
			var sig Signal
			if err := json.Unmarshal(v, &sig); err != nil {
				continue // skip malformed rows
			}
			signals = append(signals, sig)
		}
		return nil
	})

	return signals, err
}

// TrainingRows returns every training row in append order. Malformed rows are
// skipped rather than failing the read.
func (s *Store) TrainingRows() ([]TrainingRow, error) {
	var rows []TrainingRow

	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(trainingBucket)).ForEach(func(_, v []byte) error {
			var row TrainingRow
			if err := json.Unmarshal(v, &row); err != nil {
				return nil
			}
			rows = append(rows, row)
			return nil
		})
	})

	return rows, err
}

// TrainingCount returns the number of training rows without decoding them.
func (s *Store) TrainingCount() (int, error) {
	count := 0
	err := s.db.View(func(tx *bbolt.Tx) error {
		count = tx.Bucket([]byte(trainingBucket)).Stats().KeyN
		return nil
	})
	return count, err
}

func seqKey(seq uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, seq)
	return key
}
