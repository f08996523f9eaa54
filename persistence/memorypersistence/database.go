package memorypersistence

import (
	"sync"

	"github.com/outreachkit/engage/persistence"
)

// instanceKey is the primary identity of a persisted instance.
type instanceKey struct {
	ptype string
	key   string
}

// database is the in-memory storage for one application.
//
// It survives the closure of the data-store that created it, so that
// re-opening the provider yields the same data, mirroring the behavior of the
// durable providers.
type database struct {
	mutex sync.RWMutex
	open  bool

	instances map[instanceKey]persistence.ProcessInstance
	byID      map[string]instanceKey
}

func newDatabase() *database {
	return &database{
		instances: map[instanceKey]persistence.ProcessInstance{},
		byID:      map[string]instanceKey{},
	}
}

// TryOpen attempts to mark the database as open for exclusive use.
func (db *database) TryOpen() bool {
	db.mutex.Lock()
	defer db.mutex.Unlock()

	if db.open {
		return false
	}

	db.open = true

	return true
}

// Close releases the database for re-use.
func (db *database) Close() {
	db.mutex.Lock()
	defer db.mutex.Unlock()

	db.open = false
}
