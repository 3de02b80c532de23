package iocache

import (
	"github.com/stretchr/testify/mock"
	"github.com/tallyhq/tally/internal/contract"
	"github.com/tallyhq/tally/schema"
)

// MockCacheManager is a mock implementation of CacheManager for testing.
type MockCacheManager struct {
	mock.Mock
}

var _ contract.CacheManager = &MockCacheManager{} // Compile-time check

// GetResponseStore implements the CacheManager interface.
func (m *MockCacheManager) GetResponseStore() contract.CacheStore {
	ret := m.Called()
	store, _ := ret.Get(0).(contract.CacheStore)
	return store
}

// GetSnapshotStore implements the CacheManager interface.
func (m *MockCacheManager) GetSnapshotStore() contract.SnapshotStore {
	ret := m.Called()
	store, _ := ret.Get(0).(contract.SnapshotStore)
	return store
}

// MockCacheStore is a mock implementation of CacheStore for testing.
type MockCacheStore struct {
	mock.Mock
}

var _ contract.CacheStore = &MockCacheStore{} // Compile-time check

// Get implements the CacheStore interface.
func (m *MockCacheStore) Get(key string) ([]byte, int, int64, error) {
	args := m.Called(key)
	data, _ := args.Get(0).([]byte)
	return data, args.Int(1), args.Get(2).(int64), args.Error(3)
}

// Set implements the CacheStore interface.
func (m *MockCacheStore) Set(key string, data []byte, version int, ts int64) error {
	args := m.Called(key, data, version, ts)
	return args.Error(0)
}

// GetStatus implements the CacheStore interface.
func (m *MockCacheStore) GetStatus() (schema.CacheStatus, error) {
	args := m.Called()
	return args.Get(0).(schema.CacheStatus), args.Error(1)
}

// Close implements the CacheStore interface.
func (m *MockCacheStore) Close() error {
	args := m.Called()
	return args.Error(0)
}

// MockSnapshotStore is a mock implementation of SnapshotStore for testing.
type MockSnapshotStore struct {
	mock.Mock
}

var _ contract.SnapshotStore = &MockSnapshotStore{} // Compile-time check

// SaveSnapshot implements the SnapshotStore interface.
func (m *MockSnapshotStore) SaveSnapshot(rec schema.SnapshotRecord) error {
	args := m.Called(rec)
	return args.Error(0)
}

// SaveScores implements the SnapshotStore interface.
func (m *MockSnapshotStore) SaveScores(pt schema.PeriodType, key schema.PeriodKey, records []schema.ScoreRecord) error {
	args := m.Called(pt, key, records)
	return args.Error(0)
}

// GetSnapshot implements the SnapshotStore interface.
func (m *MockSnapshotStore) GetSnapshot(pt schema.PeriodType, key schema.PeriodKey) (schema.SnapshotRecord, error) {
	args := m.Called(pt, key)
	return args.Get(0).(schema.SnapshotRecord), args.Error(1)
}

// ListSnapshots implements the SnapshotStore interface.
func (m *MockSnapshotStore) ListSnapshots() ([]schema.SnapshotRecord, error) {
	args := m.Called()
	recs, _ := args.Get(0).([]schema.SnapshotRecord)
	return recs, args.Error(1)
}

// ListScores implements the SnapshotStore interface.
func (m *MockSnapshotStore) ListScores() ([]schema.ScoreRecord, error) {
	args := m.Called()
	recs, _ := args.Get(0).([]schema.ScoreRecord)
	return recs, args.Error(1)
}

// GetStatus implements the SnapshotStore interface.
func (m *MockSnapshotStore) GetStatus() (schema.SnapshotStatus, error) {
	args := m.Called()
	return args.Get(0).(schema.SnapshotStatus), args.Error(1)
}

// Close implements the SnapshotStore interface.
func (m *MockSnapshotStore) Close() error {
	args := m.Called()
	return args.Error(0)
}
