package index

import (
	"fmt"
	"sync"

	"github.com/hupe1980/sentvec/persistence"
)

// Constructor creates an empty index.
type Constructor func(opts Options) (Index, error)

// Loader reconstructs an index from its serialized body.
type Loader func(r *persistence.Reader) (Index, error)

type registration struct {
	ctor   Constructor
	loader Loader
}

var (
	registryMu sync.RWMutex
	registry   = map[Kind]registration{}
)

// Register makes an index kind available to New and Decode.
//
// Index implementations should typically call this from an init() function.
func Register(kind Kind, ctor Constructor, loader Loader) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[kind] = registration{ctor: ctor, loader: loader}
}

func lookup(kind Kind) (registration, error) {
	registryMu.RLock()
	reg, ok := registry[kind]
	registryMu.RUnlock()
	if !ok {
		return registration{}, fmt.Errorf("%w: %v", ErrUnknownKind, kind)
	}
	return reg, nil
}

// New creates an empty index of the given kind.
func New(kind Kind, opts Options) (Index, error) {
	reg, err := lookup(kind)
	if err != nil {
		return nil, err
	}
	return reg.ctor(opts)
}
