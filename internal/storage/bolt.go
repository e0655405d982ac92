package storage

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"go.etcd.io/bbolt"

	"wandbridge/internal/wand"
)

const (
	// dataBucket stores sectioned key/value data
	dataBucket = "_data"

	// wandsBucket stores the identity of every wand the bridge has paired
	wandsBucket = "_wands"
)

// BoltStorage is a bbolt implementation of the Storage interface
type BoltStorage struct {
	db *bbolt.DB
}

// NewBoltStorage creates a new BoltStorage instance
// The database file will be created if it doesn't exist
func NewBoltStorage(path string) (*BoltStorage, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{
		Timeout: 1 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt database: %w", err)
	}

	// Create the main buckets if they don't exist
	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(dataBucket)); err != nil {
			return fmt.Errorf("failed to create data bucket: %w", err)
		}
		if _, err := tx.CreateBucketIfNotExists([]byte(wandsBucket)); err != nil {
			return fmt.Errorf("failed to create wands bucket: %w", err)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStorage{db: db}, nil
}

// Sectioned Key/Value Methods

// Get retrieves data for a section by key
func (s *BoltStorage) Get(section, key string) ([]byte, error) {
	var value []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(dataBucket))
		if bucket == nil {
			return fmt.Errorf("data bucket not found")
		}

		sectionBucket := bucket.Bucket([]byte(section))
		if sectionBucket == nil {
			return ErrNotFound
		}

		data := sectionBucket.Get([]byte(key))
		if data == nil {
			return ErrNotFound
		}

		value = make([]byte, len(data))
		copy(value, data)
		return nil
	})

	return value, err
}

// GetString retrieves string data for a section by key
func (s *BoltStorage) GetString(section, key string) (string, error) {
	data, err := s.Get(section, key)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// GetInt retrieves int data for a section by key
func (s *BoltStorage) GetInt(section, key string) (int, error) {
	data, err := s.Get(section, key)
	if err != nil {
		return 0, err
	}

	value, err := strconv.Atoi(string(data))
	if err != nil {
		return 0, fmt.Errorf("failed to parse int: %w", err)
	}

	return value, nil
}

// GetBool retrieves bool data for a section by key
func (s *BoltStorage) GetBool(section, key string) (bool, error) {
	data, err := s.Get(section, key)
	if err != nil {
		return false, err
	}

	value, err := strconv.ParseBool(string(data))
	if err != nil {
		return false, fmt.Errorf("failed to parse bool: %w", err)
	}

	return value, nil
}

// GetJSON retrieves and unmarshals JSON data for a section by key
func (s *BoltStorage) GetJSON(section, key string, v interface{}) error {
	data, err := s.Get(section, key)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to unmarshal JSON: %w", err)
	}

	return nil
}

// Set stores data for a section by key
func (s *BoltStorage) Set(section, key string, value []byte) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(dataBucket))
		if bucket == nil {
			return fmt.Errorf("data bucket not found")
		}

		// Create section bucket if it doesn't exist
		sectionBucket, err := bucket.CreateBucketIfNotExists([]byte(section))
		if err != nil {
			return fmt.Errorf("failed to create section bucket: %w", err)
		}

		return sectionBucket.Put([]byte(key), value)
	})
}

// SetString stores string data for a section by key
func (s *BoltStorage) SetString(section, key string, value string) error {
	return s.Set(section, key, []byte(value))
}

// SetInt stores int data for a section by key
func (s *BoltStorage) SetInt(section, key string, value int) error {
	return s.Set(section, key, []byte(strconv.Itoa(value)))
}

// SetBool stores bool data for a section by key
func (s *BoltStorage) SetBool(section, key string, value bool) error {
	return s.Set(section, key, []byte(strconv.FormatBool(value)))
}

// SetJSON marshals and stores JSON data for a section by key
func (s *BoltStorage) SetJSON(section, key string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	return s.Set(section, key, data)
}

// Delete removes data for a section by key
func (s *BoltStorage) Delete(section, key string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(dataBucket))
		if bucket == nil {
			return fmt.Errorf("data bucket not found")
		}

		sectionBucket := bucket.Bucket([]byte(section))
		if sectionBucket == nil {
			return ErrNotFound
		}

		return sectionBucket.Delete([]byte(key))
	})
}

// List returns all keys and values for a section
func (s *BoltStorage) List(section string) (map[string][]byte, error) {
	result := make(map[string][]byte)
	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(dataBucket))
		if bucket == nil {
			return fmt.Errorf("data bucket not found")
		}

		sectionBucket := bucket.Bucket([]byte(section))
		if sectionBucket == nil {
			// Section has no data yet - return empty map
			return nil
		}

		return sectionBucket.ForEach(func(k, v []byte) error {
			value := make([]byte, len(v))
			copy(value, v)
			result[string(k)] = value
			return nil
		})
	})

	return result, err
}

// DeleteAll removes all data for a section
func (s *BoltStorage) DeleteAll(section string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(dataBucket))
		if bucket == nil {
			return fmt.Errorf("data bucket not found")
		}

		return bucket.DeleteBucket([]byte(section))
	})
}

// Known Wand Methods

// SaveWand stores the identity of a wand, keyed by its identifier
func (s *BoltStorage) SaveWand(info wand.Info) error {
	id := info.Identifier()
	if id == "" {
		return fmt.Errorf("wand has no identifier")
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(wandsBucket))
		if bucket == nil {
			return fmt.Errorf("wands bucket not found")
		}

		data, err := json.Marshal(info)
		if err != nil {
			return fmt.Errorf("failed to marshal wand info: %w", err)
		}

		return bucket.Put([]byte(id), data)
	})
}

// GetWand returns the stored identity of a wand
func (s *BoltStorage) GetWand(identifier string) (wand.Info, error) {
	var info wand.Info
	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(wandsBucket))
		if bucket == nil {
			return fmt.Errorf("wands bucket not found")
		}

		data := bucket.Get([]byte(identifier))
		if data == nil {
			return ErrWandNotFound
		}

		if err := json.Unmarshal(data, &info); err != nil {
			return fmt.Errorf("failed to unmarshal wand info: %w", err)
		}

		return nil
	})

	return info, err
}

// ListWands returns all known wands
func (s *BoltStorage) ListWands() ([]wand.Info, error) {
	var wands []wand.Info
	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(wandsBucket))
		if bucket == nil {
			return fmt.Errorf("wands bucket not found")
		}

		return bucket.ForEach(func(k, v []byte) error {
			var info wand.Info
			if err := json.Unmarshal(v, &info); err != nil {
				return nil // Skip corrupted entries
			}
			wands = append(wands, info)
			return nil
		})
	})

	return wands, err
}

// DeleteWand forgets a wand
func (s *BoltStorage) DeleteWand(identifier string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(wandsBucket))
		if bucket == nil {
			return fmt.Errorf("wands bucket not found")
		}

		return bucket.Delete([]byte(identifier))
	})
}

// Close closes the storage
func (s *BoltStorage) Close() error {
	return s.db.Close()
}
