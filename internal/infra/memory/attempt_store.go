package memory

import (
	"context"
	"fmt"
	"strconv"
	"sync"
)

// AttemptStore keeps one device's timer and replay records in process memory.
type AttemptStore struct {
	mu   sync.Mutex
	data map[string]string
}

func NewAttemptStore() *AttemptStore {
	return &AttemptStore{data: make(map[string]string)}
}

func (s *AttemptStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data[key]
	return v, ok, nil
}

func (s *AttemptStore) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	s.data[key] = value
	s.mu.Unlock()
	return nil
}

func (s *AttemptStore) SetIfAbsent(_ context.Context, key, value string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data[key]; ok {
		return false, nil
	}
	s.data[key] = value
	return true, nil
}

func (s *AttemptStore) Incr(_ context.Context, key string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	if raw, ok := s.data[key]; ok {
		v, err := strconv.Atoi(raw)
		if err != nil {
			return 0, fmt.Errorf("incr %s: value is not an integer", key)
		}
		n = v
	}
	n++
	s.data[key] = strconv.Itoa(n)
	return n, nil
}

func (s *AttemptStore) Clear(_ context.Context) error {
	s.mu.Lock()
	s.data = make(map[string]string)
	s.mu.Unlock()
	return nil
}

// DeviceStores hands out one AttemptStore per device ID, so a reconnect from
// the same device finds its records again.
type DeviceStores struct {
	mu     sync.Mutex
	stores map[string]*AttemptStore
}

func NewDeviceStores() *DeviceStores {
	return &DeviceStores{stores: make(map[string]*AttemptStore)}
}

func (d *DeviceStores) ForDevice(deviceID string) *AttemptStore {
	d.mu.Lock()
	defer d.mu.Unlock()
	if s, ok := d.stores[deviceID]; ok {
		return s
	}
	s := NewAttemptStore()
	d.stores[deviceID] = s
	return s
}
