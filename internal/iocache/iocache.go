// Package iocache persists backend responses and locally computed score runs.
package iocache

import (
	"sync"

	"github.com/tallyhq/tally/internal/contract"
)

// CacheStoreManager manages the response cache and the snapshot store.
type CacheStoreManager struct {
	sync.RWMutex // Protects the store pointers during initialization
	responses    contract.CacheStore
	snapshots    contract.SnapshotStore
}

var _ contract.CacheManager = &CacheStoreManager{} // Compile-time check

// NewCacheStoreManager returns a manager over already opened stores.
func NewCacheStoreManager(responses contract.CacheStore, snapshots contract.SnapshotStore) *CacheStoreManager {
	return &CacheStoreManager{responses: responses, snapshots: snapshots}
}

// GetResponseStore returns the response CacheStore.
func (mgr *CacheStoreManager) GetResponseStore() contract.CacheStore {
	mgr.RLock()
	defer mgr.RUnlock()
	return mgr.responses
}

// GetSnapshotStore returns the SnapshotStore.
func (mgr *CacheStoreManager) GetSnapshotStore() contract.SnapshotStore {
	mgr.RLock()
	defer mgr.RUnlock()
	return mgr.snapshots
}
