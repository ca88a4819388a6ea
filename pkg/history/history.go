package history

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/boltdb/bolt"
)

const (
	// Bucket names
	BUPLOADS string = "UPLOADS"
)

// Entry is one upload made from this machine.
type Entry struct {
	URL        string    `json:"url"`
	Cols       uint      `json:"cols"`
	Lines      uint      `json:"lines"`
	Backend    string    `json:"backend"`
	UploadedAt time.Time `json:"uploaded_at"`
}

type DB struct {
	*bolt.DB
}

/*
DB
- UPLOADS
  - URL: ENTRY
  - URL: ENTRY
*/
func Open(path string) (*DB, error) {
	bdb, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("could not open history, %w", err)
	}

	err = bdb.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(BUPLOADS))
		if err != nil {
			return fmt.Errorf("could not create uploads bucket: %w", err)
		}
		return nil
	})
	if err != nil {
		bdb.Close()
		return nil, err
	}

	return &DB{bdb}, nil
}

func (db *DB) Add(e Entry) error {
	if e.URL == "" {
		return fmt.Errorf("history entry without url")
	}
	buf, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(BUPLOADS)).Put([]byte(e.URL), buf)
	})
}

// Get reports whether url was uploaded from here.
func (db *DB) Get(url string) (Entry, bool, error) {
	var e Entry
	var found bool
	err := db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket([]byte(BUPLOADS)).Get([]byte(url))
		if v == nil {
			return nil
		}
		found = true
		return json.Unmarshal(v, &e)
	})
	return e, found, err
}

// List returns every entry, newest first.
func (db *DB) List() ([]Entry, error) {
	var entries []Entry
	err := db.View(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(BUPLOADS)).ForEach(func(k, v []byte) error {
			var e Entry
			if err := json.Unmarshal(v, &e); err != nil {
				return fmt.Errorf("decoding %s: %w", k, err)
			}
			entries = append(entries, e)
			return nil
		})
	})
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].UploadedAt.After(entries[j].UploadedAt)
	})
	return entries, err
}

// Remove drops url. Removing something unknown is not an error.
func (db *DB) Remove(url string) error {
	return db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(BUPLOADS)).Delete([]byte(url))
	})
}
