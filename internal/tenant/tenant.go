// Package tenant provides CRUD over prompt templates scoped by organization,
// mirrored to a storage.Backend and versioned on update.
package tenant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"promptbed/internal/agent"
	"promptbed/internal/storage"
)

var ErrNotFound = errors.New("prompt not found")

// Prompt is a tenant-scoped prompt template. ID is the identity within the
// organization; Version starts at 1 and increments by exactly 1 per update.
type Prompt struct {
	ID      string   `json:"prompt_id"`
	OrgID   string   `json:"org_id"`
	OrgName string   `json:"org_name"`
	Title   string   `json:"title"`
	Content string   `json:"content"`
	Version int      `json:"version"`
	Tags    []string `json:"tags"`
}

func (p Prompt) toMap() (map[string]any, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal tenant prompt: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	return m, nil
}

func promptFromMap(m map[string]any) (Prompt, error) {
	b, err := json.Marshal(m)
	if err != nil {
		return Prompt{}, err
	}
	var p Prompt
	if err := json.Unmarshal(b, &p); err != nil {
		return Prompt{}, fmt.Errorf("unmarshal tenant prompt: %w", err)
	}
	if p.Tags == nil {
		p.Tags = []string{}
	}
	return p, nil
}

type key struct {
	orgID    string
	promptID string
}

// Manager keeps tenant prompts in memory and mirrors them to the backend.
// There is no partial-write rollback: a failed mirror can leave memory and
// backend out of sync until the next successful save.
type Manager struct {
	storage storage.Backend
	prompts map[key]Prompt
}

func NewManager(backend storage.Backend) *Manager {
	return &Manager{
		storage: backend,
		prompts: map[key]Prompt{},
	}
}

// Create builds a prompt at version 1 and stores it. Create is an upsert;
// an existing prompt with the same id is replaced.
func (m *Manager) Create(ctx context.Context, promptID, orgID, orgName, title, content string, tags []string) (Prompt, error) {
	if tags == nil {
		tags = []string{}
	}
	p := Prompt{
		ID:      promptID,
		OrgID:   orgID,
		OrgName: orgName,
		Title:   title,
		Content: content,
		Version: 1,
		Tags:    tags,
	}
	m.prompts[key{orgID, promptID}] = p
	if err := m.savePrompt(ctx, p); err != nil {
		return Prompt{}, err
	}
	return p, nil
}

// Get looks up memory first and falls back to the backend on a miss. Backend
// hits are not cached back into memory.
func (m *Manager) Get(ctx context.Context, promptID, orgID string) (Prompt, error) {
	if p, ok := m.prompts[key{orgID, promptID}]; ok {
		return p, nil
	}
	data, err := m.storage.Load(ctx, promptID, orgID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return Prompt{}, fmt.Errorf("%w: %s", ErrNotFound, promptID)
		}
		return Prompt{}, err
	}
	return promptFromMap(data)
}

// ListForOrg returns the prompts held in memory for the organization. It is
// a memory-only view: records that exist only in the backend are not listed.
func (m *Manager) ListForOrg(orgID string) []Prompt {
	var res []Prompt
	for k, p := range m.prompts {
		if k.orgID == orgID {
			res = append(res, p)
		}
	}
	return res
}

// Update carries the fields to overwrite; nil fields are left unchanged.
type Update struct {
	OrgName *string
	Title   *string
	Content *string
	Tags    []string
}

// UpdatePrompt overwrites only the supplied fields, increments the version
// by 1 and persists. A missing prompt reports ErrNotFound without creating a
// record.
func (m *Manager) UpdatePrompt(ctx context.Context, promptID, orgID string, upd Update) (Prompt, error) {
	p, err := m.Get(ctx, promptID, orgID)
	if err != nil {
		return Prompt{}, err
	}
	if upd.OrgName != nil {
		p.OrgName = *upd.OrgName
	}
	if upd.Title != nil {
		p.Title = *upd.Title
	}
	if upd.Content != nil {
		p.Content = *upd.Content
	}
	if upd.Tags != nil {
		p.Tags = upd.Tags
	}
	p.Version++
	m.prompts[key{orgID, promptID}] = p
	if err := m.savePrompt(ctx, p); err != nil {
		return Prompt{}, err
	}
	return p, nil
}

// Delete removes the prompt from the backend and purges memory. The backend
// result is reported regardless of whether memory held the entry.
func (m *Manager) Delete(ctx context.Context, promptID, orgID string) error {
	err := m.storage.Delete(ctx, promptID, orgID)
	delete(m.prompts, key{orgID, promptID})
	return err
}

// Test fetches the prompt and runs its content through the agent.
func (m *Manager) Test(ctx context.Context, promptID, orgID string, ag *agent.Agent) (string, error) {
	p, err := m.Get(ctx, promptID, orgID)
	if err != nil {
		return "", err
	}
	return ag.Run(ctx, p.Content)
}

func (m *Manager) savePrompt(ctx context.Context, p Prompt) error {
	data, err := p.toMap()
	if err != nil {
		return err
	}
	return m.storage.Save(ctx, p.ID, data, p.OrgID)
}
