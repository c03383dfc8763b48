package tests

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"courier/internal/domain"
	"courier/internal/redis"
	"courier/internal/repository"
)

// ──────────────────────────────────────────────
// MOCK COURIER REPOSITORY
// ──────────────────────────────────────────────

// MockCourierRepository is a mock implementation of CourierRepository.
type MockCourierRepository struct {
	mu       sync.RWMutex
	couriers map[string]*domain.Courier

	// Counters for verification
	CreateCallCount          int32
	SetAvailabilityCallCount int32

	// Error injection
	CreateError          error
	SetAvailabilityError error
}

// NewMockCourierRepository creates a new mock courier repository.
func NewMockCourierRepository() *MockCourierRepository {
	return &MockCourierRepository{
		couriers: make(map[string]*domain.Courier),
	}
}

// AddCourier adds a courier to the mock repository.
func (m *MockCourierRepository) AddCourier(courier *domain.Courier) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.couriers[courier.ID] = courier
}

func (m *MockCourierRepository) Create(ctx context.Context, courier *domain.Courier) error {
	atomic.AddInt32(&m.CreateCallCount, 1)
	if m.CreateError != nil {
		return m.CreateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.couriers[courier.ID] = courier
	return nil
}

func (m *MockCourierRepository) GetByID(ctx context.Context, id string) (*domain.Courier, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	courier, ok := m.couriers[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	// Return a copy to avoid mutation issues.
	copy := *courier
	return &copy, nil
}

func (m *MockCourierRepository) GetByPhone(ctx context.Context, phone string) (*domain.Courier, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, c := range m.couriers {
		if c.Phone == phone {
			copy := *c
			return &copy, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *MockCourierRepository) GetAll(ctx context.Context) ([]*domain.Courier, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]*domain.Courier, 0, len(m.couriers))
	for _, c := range m.couriers {
		copy := *c
		result = append(result, &copy)
	}
	return result, nil
}

func (m *MockCourierRepository) GetAvailable(ctx context.Context) ([]*domain.Courier, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]*domain.Courier, 0, len(m.couriers))
	for _, c := range m.couriers {
		if c.CanDeliver() {
			copy := *c
			result = append(result, &copy)
		}
	}
	// The real store orders by ID ascending.
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (m *MockCourierRepository) SetAvailability(ctx context.Context, id string, available bool) error {
	atomic.AddInt32(&m.SetAvailabilityCallCount, 1)
	if m.SetAvailabilityError != nil {
		return m.SetAvailabilityError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	courier, ok := m.couriers[id]
	if !ok {
		return repository.ErrNotFound
	}
	courier.Available = available
	return nil
}

// GetCourier returns courier for test assertions.
func (m *MockCourierRepository) GetCourier(id string) *domain.Courier {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.couriers[id]
}

// ──────────────────────────────────────────────
// MOCK DELIVERY REPOSITORY
// ──────────────────────────────────────────────

// MockDeliveryRepository is a mock implementation of DeliveryRepository.
type MockDeliveryRepository struct {
	mu         sync.RWMutex
	deliveries map[string]*domain.Delivery

	// Counters for verification
	CreateCallCount int32
	UpdateCallCount int32
	BindCallCount   int32

	// Error injection
	CreateError error
	UpdateError error
	BindError   error

	// UpdateIfStatusHook runs before the compare-and-set check, outside
	// the mock's lock, so tests can interleave a concurrent writer
	// between a service's read and its conditional write.
	UpdateIfStatusHook func()
}

// NewMockDeliveryRepository creates a new mock delivery repository.
func NewMockDeliveryRepository() *MockDeliveryRepository {
	return &MockDeliveryRepository{
		deliveries: make(map[string]*domain.Delivery),
	}
}

// AddDelivery adds a delivery to the mock repository.
func (m *MockDeliveryRepository) AddDelivery(delivery *domain.Delivery) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deliveries[delivery.ID] = delivery
}

func (m *MockDeliveryRepository) Create(ctx context.Context, delivery *domain.Delivery) error {
	atomic.AddInt32(&m.CreateCallCount, 1)
	if m.CreateError != nil {
		return m.CreateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deliveries[delivery.ID] = delivery
	return nil
}

func (m *MockDeliveryRepository) GetByID(ctx context.Context, id string) (*domain.Delivery, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	delivery, ok := m.deliveries[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	// Return a copy to avoid mutation issues.
	copy := *delivery
	return &copy, nil
}

func (m *MockDeliveryRepository) GetAll(ctx context.Context) ([]*domain.Delivery, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]*domain.Delivery, 0, len(m.deliveries))
	for _, d := range m.deliveries {
		copy := *d
		result = append(result, &copy)
	}
	return result, nil
}

func (m *MockDeliveryRepository) GetPendingUnassigned(ctx context.Context) ([]*domain.Delivery, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]*domain.Delivery, 0)
	for _, d := range m.deliveries {
		if d.Status == domain.DeliveryStatusPending && d.CourierID == "" {
			copy := *d
			result = append(result, &copy)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result, nil
}

func (m *MockDeliveryRepository) Update(ctx context.Context, delivery *domain.Delivery) error {
	atomic.AddInt32(&m.UpdateCallCount, 1)
	if m.UpdateError != nil {
		return m.UpdateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.deliveries[delivery.ID]; !ok {
		return repository.ErrNotFound
	}
	copy := *delivery
	m.deliveries[delivery.ID] = &copy
	return nil
}

// UpdateIfStatus mirrors the compare-and-set UPDATE of the real store: the
// write succeeds only while the stored status still equals expected.
func (m *MockDeliveryRepository) UpdateIfStatus(ctx context.Context, delivery *domain.Delivery, expected domain.DeliveryStatus) error {
	atomic.AddInt32(&m.UpdateCallCount, 1)
	if m.UpdateError != nil {
		return m.UpdateError
	}
	if m.UpdateIfStatusHook != nil {
		m.UpdateIfStatusHook()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.deliveries[delivery.ID]
	if !ok {
		return repository.ErrNotFound
	}
	if current.Status != expected {
		return repository.ErrConflict
	}
	copy := *delivery
	m.deliveries[delivery.ID] = &copy
	return nil
}

// Bind mirrors the conditional UPDATE of the real store: the write succeeds
// only while the delivery is still PENDING with no courier bound.
func (m *MockDeliveryRepository) Bind(ctx context.Context, deliveryID, courierID string, assignedAt time.Time) error {
	atomic.AddInt32(&m.BindCallCount, 1)
	if m.BindError != nil {
		return m.BindError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delivery, ok := m.deliveries[deliveryID]
	if !ok {
		return repository.ErrNotFound
	}
	if delivery.Status != domain.DeliveryStatusPending || delivery.CourierID != "" {
		return repository.ErrConflict
	}
	delivery.Status = domain.DeliveryStatusApproved
	delivery.CourierID = courierID
	delivery.AssignedAt = assignedAt
	return nil
}

// GetDelivery returns the delivery by ID (for test assertions).
func (m *MockDeliveryRepository) GetDelivery(id string) *domain.Delivery {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.deliveries[id]
}

// CountDeliveries returns the number of deliveries.
func (m *MockDeliveryRepository) CountDeliveries() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.deliveries)
}

// ──────────────────────────────────────────────
// MOCK MISSION REPOSITORY
// ──────────────────────────────────────────────

// MockMissionRepository is a mock implementation of MissionRepository.
type MockMissionRepository struct {
	mu       sync.RWMutex
	missions map[string]*domain.Mission

	// Counters
	CreateCallCount int32
	UpdateCallCount int32

	// Error injection
	CreateError error
	UpdateError error
}

// NewMockMissionRepository creates a new mock mission repository.
func NewMockMissionRepository() *MockMissionRepository {
	return &MockMissionRepository{
		missions: make(map[string]*domain.Mission),
	}
}

// AddMission adds a mission to the mock repository.
func (m *MockMissionRepository) AddMission(mission *domain.Mission) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.missions[mission.ID] = mission
}

func (m *MockMissionRepository) Create(ctx context.Context, mission *domain.Mission) error {
	atomic.AddInt32(&m.CreateCallCount, 1)
	if m.CreateError != nil {
		return m.CreateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.missions[mission.ID] = mission
	return nil
}

func (m *MockMissionRepository) GetByID(ctx context.Context, id string) (*domain.Mission, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	mission, ok := m.missions[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copy := *mission
	return &copy, nil
}

func (m *MockMissionRepository) GetAll(ctx context.Context) ([]*domain.Mission, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]*domain.Mission, 0, len(m.missions))
	for _, ms := range m.missions {
		copy := *ms
		result = append(result, &copy)
	}
	return result, nil
}

func (m *MockMissionRepository) Update(ctx context.Context, mission *domain.Mission) error {
	atomic.AddInt32(&m.UpdateCallCount, 1)
	if m.UpdateError != nil {
		return m.UpdateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.missions[mission.ID]; !ok {
		return repository.ErrNotFound
	}
	copy := *mission
	m.missions[mission.ID] = &copy
	return nil
}

func (m *MockMissionRepository) GetActiveByDeliveryID(ctx context.Context, deliveryID string) (*domain.Mission, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, ms := range m.missions {
		if ms.DeliveryID == deliveryID && !ms.Status.IsTerminal() {
			copy := *ms
			return &copy, nil
		}
	}
	return nil, nil // No active mission
}

// GetMission returns mission for assertions.
func (m *MockMissionRepository) GetMission(id string) *domain.Mission {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.missions[id]
}

// CountMissions returns the number of missions.
func (m *MockMissionRepository) CountMissions() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.missions)
}

// ──────────────────────────────────────────────
// MOCK LOCATION STORE
// ──────────────────────────────────────────────

// MockLocationStore is a mock implementation of LocationStoreInterface.
type MockLocationStore struct {
	mu        sync.RWMutex
	locations map[string]redis.CourierLocation

	// Counters
	UpdateLocationCallCount int32

	// Error injection
	UpdateLocationError error
	LastKnownError      error
}

// NewMockLocationStore creates a new mock location store.
func NewMockLocationStore() *MockLocationStore {
	return &MockLocationStore{
		locations: make(map[string]redis.CourierLocation),
	}
}

// SetLocation sets a courier location (for test setup).
func (m *MockLocationStore) SetLocation(courierID string, lat, lng float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.locations[courierID] = redis.CourierLocation{
		CourierID: courierID,
		Lat:       lat,
		Lng:       lng,
		UpdatedAt: time.Now(),
	}
}

func (m *MockLocationStore) UpdateLocation(ctx context.Context, courierID string, lat, lng float64) error {
	atomic.AddInt32(&m.UpdateLocationCallCount, 1)
	if m.UpdateLocationError != nil {
		return m.UpdateLocationError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.locations[courierID] = redis.CourierLocation{
		CourierID: courierID,
		Lat:       lat,
		Lng:       lng,
		UpdatedAt: time.Now(),
	}
	return nil
}

func (m *MockLocationStore) LastKnown(ctx context.Context, courierID string) (*redis.CourierLocation, error) {
	if m.LastKnownError != nil {
		return nil, m.LastKnownError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	loc, ok := m.locations[courierID]
	if !ok {
		return nil, nil // No location record.
	}
	copy := loc
	return &copy, nil
}

func (m *MockLocationStore) RemoveLocation(ctx context.Context, courierID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.locations, courierID)
	return nil
}

// HasLocation checks if a courier location exists.
func (m *MockLocationStore) HasLocation(courierID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.locations[courierID]
	return ok
}

// ──────────────────────────────────────────────
// MOCK LOCK STORE
// ──────────────────────────────────────────────

// MockLockStore is a mock implementation of LockStoreInterface.
type MockLockStore struct {
	mu    sync.Mutex
	locks map[string]time.Time

	// Counters
	AcquireCallCount int32
	ReleaseCallCount int32

	// Error injection
	AcquireError error

	// Force lock failure
	ForceAcquireFailure bool
}

// NewMockLockStore creates a new mock lock store.
func NewMockLockStore() *MockLockStore {
	return &MockLockStore{
		locks: make(map[string]time.Time),
	}
}

func (m *MockLockStore) acquire(key string, ttl time.Duration) (bool, error) {
	atomic.AddInt32(&m.AcquireCallCount, 1)
	if m.AcquireError != nil {
		return false, m.AcquireError
	}
	if m.ForceAcquireFailure {
		return false, nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if expiry, exists := m.locks[key]; exists {
		if time.Now().Before(expiry) {
			return false, nil // Lock still held.
		}
	}

	m.locks[key] = time.Now().Add(ttl)
	return true, nil
}

func (m *MockLockStore) release(key string) error {
	atomic.AddInt32(&m.ReleaseCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.locks, key)
	return nil
}

func (m *MockLockStore) AcquireCourierLock(ctx context.Context, courierID string, ttl time.Duration) (bool, error) {
	return m.acquire("lock:courier:"+courierID, ttl)
}

func (m *MockLockStore) ReleaseCourierLock(ctx context.Context, courierID string) error {
	return m.release("lock:courier:" + courierID)
}

func (m *MockLockStore) AcquireDeliveryLock(ctx context.Context, deliveryID string, ttl time.Duration) (bool, error) {
	return m.acquire("lock:delivery:"+deliveryID, ttl)
}

func (m *MockLockStore) ReleaseDeliveryLock(ctx context.Context, deliveryID string) error {
	return m.release("lock:delivery:" + deliveryID)
}

// IsCourierLocked checks if a courier is locked (for test assertions).
func (m *MockLockStore) IsCourierLocked(courierID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	expiry, exists := m.locks["lock:courier:"+courierID]
	return exists && time.Now().Before(expiry)
}

// ClearLocks clears all locks (for test cleanup).
func (m *MockLockStore) ClearLocks() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.locks = make(map[string]time.Time)
}

// ──────────────────────────────────────────────
// HELPER ERRORS
// ──────────────────────────────────────────────

var (
	ErrMockDBConstraint = errors.New("mock: unique constraint violation")
	ErrMockTimeout      = errors.New("mock: operation timeout")
)
