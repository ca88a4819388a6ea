package server

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/boltdb/bolt"
)

const (
	// Bucket names
	BSESSIONS string = "SESSIONS"
)

// Record is a stored session. Script is gzip compressed and the secret is
// kept only as a bcrypt hash.
type Record struct {
	ID         string    `json:"id"`
	Script     []byte    `json:"script"`
	Timing     string    `json:"timing"`
	Cols       uint      `json:"cols"`
	Lines      uint      `json:"lines"`
	SecretHash []byte    `json:"secret_hash"`
	CreatedAt  time.Time `json:"created_at"`
}

type DB struct {
	*bolt.DB
}

func SetupDB(path string) (*DB, error) {
	bdb, err := bolt.Open(fmt.Sprintf("%s.boltdb", path), 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("could not open db, %v", err)
	}

	err = bdb.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(BSESSIONS))
		if err != nil {
			return fmt.Errorf("could not create root bucket: %v", err)
		}
		return nil
	})
	if err != nil {
		bdb.Close()
		return nil, fmt.Errorf("could not set up buckets, %v", err)
	}

	return &DB{bdb}, nil
}

/*
DB
- SESSIONS
  - ID: RECORD
  - ID: RECORD
*/
func (db *DB) AddSession(rec Record) error {
	buf, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket([]byte(BSESSIONS)).Put([]byte(rec.ID), buf); err != nil {
			return fmt.Errorf("Failed to put: %v", err)
		}
		return nil
	})
}

func (db *DB) GetSession(id string) (Record, bool, error) {
	var rec Record
	var found bool
	err := db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket([]byte(BSESSIONS)).Get([]byte(id))
		if v == nil {
			return nil
		}
		found = true
		return json.Unmarshal(v, &rec)
	})
	return rec, found, err
}

func (db *DB) DeleteSession(id string) error {
	return db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(BSESSIONS)).Delete([]byte(id))
	})
}

func (db *DB) CountSessions() (int, error) {
	var n int
	err := db.View(func(tx *bolt.Tx) error {
		n = tx.Bucket([]byte(BSESSIONS)).Stats().KeyN
		return nil
	})
	return n, err
}
