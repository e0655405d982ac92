// Package storage persists bridge state that must survive restarts:
// small sectioned key/value data and the identity of known wands.
package storage

import (
	"errors"

	"wandbridge/internal/wand"
)

var (
	// ErrNotFound is returned when a key is not found
	ErrNotFound = errors.New("key not found")

	// ErrWandNotFound is returned when a wand is not found
	ErrWandNotFound = errors.New("wand not found")
)

// Storage is the interface for bridge state persistence
type Storage interface {
	// Sectioned Key/Value Methods

	// Get retrieves data for a section by key
	// Returns ErrNotFound if the key doesn't exist
	Get(section, key string) ([]byte, error)

	// GetString retrieves string data for a section by key
	GetString(section, key string) (string, error)

	// GetInt retrieves int data for a section by key
	GetInt(section, key string) (int, error)

	// GetBool retrieves bool data for a section by key
	GetBool(section, key string) (bool, error)

	// GetJSON retrieves and unmarshals JSON data for a section by key
	GetJSON(section, key string, v interface{}) error

	// Set stores data for a section by key
	Set(section, key string, value []byte) error

	// SetString stores string data for a section by key
	SetString(section, key string, value string) error

	// SetInt stores int data for a section by key
	SetInt(section, key string, value int) error

	// SetBool stores bool data for a section by key
	SetBool(section, key string, value bool) error

	// SetJSON marshals and stores JSON data for a section by key
	SetJSON(section, key string, v interface{}) error

	// Delete removes data for a section by key
	Delete(section, key string) error

	// List returns all keys and values for a section
	List(section string) (map[string][]byte, error)

	// DeleteAll removes all data for a section
	DeleteAll(section string) error

	// Known Wand Methods

	// SaveWand stores the identity of a wand, keyed by its identifier
	SaveWand(info wand.Info) error

	// GetWand returns the stored identity of a wand
	// Returns ErrWandNotFound if the wand is unknown
	GetWand(identifier string) (wand.Info, error)

	// ListWands returns all known wands
	ListWands() ([]wand.Info, error)

	// DeleteWand forgets a wand
	DeleteWand(identifier string) error

	// Lifecycle Methods

	// Close closes the storage
	Close() error
}
