// Package storage provides key/value persistence for agents and tenant
// prompts. Records are scoped by organization id; an empty org id addresses
// the legacy/global scope that predates multi-tenancy. Loads with an org id
// fall back to the legacy record on a miss; saves and deletes touch exactly
// the scope they name.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
)

var ErrNotFound = errors.New("not found")

// Backend is the persistence capability shared by the agent and tenant
// prompt managers. Writes are per-key last-writer-wins; there are no
// retries and no transactions spanning multiple keys.
type Backend interface {
	Save(ctx context.Context, key string, data map[string]any, orgID string) error
	Load(ctx context.Context, key string, orgID string) (map[string]any, error)
	Delete(ctx context.Context, key string, orgID string) error
}

// Memory is an in-process Backend. Payloads are stored as marshaled JSON so
// callers never alias stored state.
type Memory struct {
	mu    sync.RWMutex
	store map[string][]byte
}

func NewMemory() *Memory {
	return &Memory{store: map[string][]byte{}}
}

func scopedKey(key, orgID string) string {
	if orgID == "" {
		return key
	}
	return orgID + ":" + key
}

func (m *Memory) Save(ctx context.Context, key string, data map[string]any, orgID string) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal record %s: %w", key, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.store[scopedKey(key, orgID)] = payload
	return nil
}

func (m *Memory) Load(ctx context.Context, key string, orgID string) (map[string]any, error) {
	m.mu.RLock()
	payload, ok := m.store[scopedKey(key, orgID)]
	if !ok && orgID != "" {
		// Fallback to the legacy/global record.
		payload, ok = m.store[key]
	}
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	var data map[string]any
	if err := json.Unmarshal(payload, &data); err != nil {
		return nil, fmt.Errorf("unmarshal record %s: %w", key, err)
	}
	return data, nil
}

func (m *Memory) Delete(ctx context.Context, key string, orgID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	sk := scopedKey(key, orgID)
	if _, ok := m.store[sk]; !ok {
		return ErrNotFound
	}
	delete(m.store, sk)
	return nil
}
