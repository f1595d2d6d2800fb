// Package history persists the outcome of previous monitoring runs.
//
// The store remembers each check's last result so the monitor can tell a
// fresh failure from an ongoing one and only page on state transitions.
package history

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

const bucketName = "checks"

// Store provides persistent per-check state using BoltDB.
// BoltDB's built-in file locking prevents concurrent monitor instances from
// clobbering each other's state.
type Store struct {
	db      *bolt.DB
	enabled bool
}

// CheckState is the recorded outcome of one check from one run.
type CheckState struct {
	OK        bool
	TotalSize int64
	RunTime   time.Time
}

// Open opens (or creates) the state database at path.
// Returns a disabled store if path is empty; all methods become no-ops.
func Open(path string) (*Store, error) {
	if path == "" {
		return &Store{enabled: false}, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create history dir: %w", err)
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open history (locked by another instance?): %w", err)
	}

	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		return err
	}); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db, enabled: true}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

const recordVersion byte = 1 // Increment when the record format changes

// encodeState builds the binary record for a CheckState.
// Record = ver(1) + ok(1) + totalSize(8) + runTime(8)
func encodeState(st CheckState) []byte {
	buf := new(bytes.Buffer)
	buf.WriteByte(recordVersion)
	if st.OK {
		buf.WriteByte(1)
	} else {
		buf.WriteByte(0)
	}
	_ = binary.Write(buf, binary.BigEndian, st.TotalSize)
	_ = binary.Write(buf, binary.BigEndian, st.RunTime.UnixNano())
	return buf.Bytes()
}

// decodeState parses a binary record. Records with an unknown version are
// treated as absent: any change to the format invalidates old state.
func decodeState(data []byte) (CheckState, bool) {
	if len(data) != 18 || data[0] != recordVersion {
		return CheckState{}, false
	}
	st := CheckState{OK: data[1] == 1}
	st.TotalSize = int64(binary.BigEndian.Uint64(data[2:10]))
	st.RunTime = time.Unix(0, int64(binary.BigEndian.Uint64(data[10:18])))
	return st, true
}

// Last returns the recorded state for a check name.
// The second return value is false when no usable record exists.
func (s *Store) Last(name string) (CheckState, bool, error) {
	if !s.enabled {
		return CheckState{}, false, nil
	}

	var (
		st    CheckState
		found bool
	)
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		if b == nil {
			return nil
		}
		if data := b.Get([]byte(name)); data != nil {
			st, found = decodeState(data)
		}
		return nil
	})
	if err != nil {
		return CheckState{}, false, fmt.Errorf("history lookup %q: %w", name, err)
	}
	return st, found, nil
}

// Record stores the state for a check name, replacing any previous record.
func (s *Store) Record(name string, st CheckState) error {
	if !s.enabled {
		return nil
	}

	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketName)).Put([]byte(name), encodeState(st))
	})
	if err != nil {
		return fmt.Errorf("history record %q: %w", name, err)
	}
	return nil
}
