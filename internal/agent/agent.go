// Package agent owns a single agent's lifecycle state and persists it
// through a storage.Backend after every transition.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"promptbed/internal/storage"
)

type Status string

const (
	StatusIdle      Status = "idle"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// State is the persisted agent state. After Run, exactly one of Results and
// Error is populated.
type State struct {
	AgentID string         `json:"agent_id"`
	OrgID   string         `json:"org_id,omitempty"`
	OrgName string         `json:"org_name,omitempty"`
	Status  Status         `json:"status"`
	Config  map[string]any `json:"config"`
	Results map[string]any `json:"results,omitempty"`
	Error   string         `json:"error,omitempty"`
}

// ToMap converts the state to a storage payload.
func (s State) ToMap() (map[string]any, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("marshal agent state: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// StateFromMap rebuilds a State from a storage payload. Records written
// before multi-tenancy lack org fields; they unmarshal to empty strings and
// callers backfill them.
func StateFromMap(m map[string]any) (State, error) {
	b, err := json.Marshal(m)
	if err != nil {
		return State{}, err
	}
	var s State
	if err := json.Unmarshal(b, &s); err != nil {
		return State{}, fmt.Errorf("unmarshal agent state: %w", err)
	}
	if s.Config == nil {
		s.Config = map[string]any{}
	}
	return s, nil
}

// ProcessFunc executes a prompt and returns the agent response.
type ProcessFunc func(ctx context.Context, orgName, prompt string) (string, error)

func defaultProcess(ctx context.Context, orgName, prompt string) (string, error) {
	return fmt.Sprintf("[%s] Processed: %s", orgName, prompt), nil
}

// Agent runs prompt experiments for one tenant. The persistence key is
// always the agent id; org scoping is the backend's concern.
type Agent struct {
	ID      string
	OrgID   string
	OrgName string

	storage storage.Backend
	process ProcessFunc
	state   State
}

// Option configures an Agent.
type Option func(*Agent)

// WithStorage sets the backend; the default is an in-memory backend.
func WithStorage(b storage.Backend) Option {
	return func(a *Agent) { a.storage = b }
}

// WithProcess overrides the prompt execution step.
func WithProcess(fn ProcessFunc) Option {
	return func(a *Agent) { a.process = fn }
}

func New(agentID, orgID, orgName string, opts ...Option) *Agent {
	a := &Agent{
		ID:      agentID,
		OrgID:   orgID,
		OrgName: orgName,
		storage: storage.NewMemory(),
		process: defaultProcess,
		state: State{
			AgentID: agentID,
			OrgID:   orgID,
			OrgName: orgName,
			Status:  StatusIdle,
			Config:  map[string]any{},
		},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Configure replaces the config mapping wholesale and persists. Status does
// not change.
func (a *Agent) Configure(ctx context.Context, config map[string]any) error {
	if config == nil {
		config = map[string]any{}
	}
	a.state.Config = config
	return a.saveState(ctx)
}

// Run executes the prompt. The state moves idle -> running -> completed or
// failed; a final persist runs on every exit path. On failure the error is
// returned after the state is marked failed and persisted.
func (a *Agent) Run(ctx context.Context, prompt string) (result string, err error) {
	a.state.Status = StatusRunning
	a.state.Results = nil
	a.state.Error = ""
	if saveErr := a.saveState(ctx); saveErr != nil {
		return "", saveErr
	}
	defer func() {
		if saveErr := a.saveState(ctx); saveErr != nil && err == nil {
			err = saveErr
		}
	}()

	result, err = a.process(ctx, a.OrgName, prompt)
	if err != nil {
		a.state.Error = err.Error()
		a.state.Status = StatusFailed
		return "", err
	}
	a.state.Results = map[string]any{"response": result}
	a.state.Status = StatusCompleted
	return result, nil
}

// State returns the current agent state.
func (a *Agent) State() State {
	return a.state
}

// LoadState restores persisted state: org-scoped load first, then the legacy
// record. Loaded org fields win unless absent, in which case the agent's
// current values fill the gap. Reports whether a state was found.
func (a *Agent) LoadState(ctx context.Context) (bool, error) {
	data, err := a.storage.Load(ctx, a.ID, a.OrgID)
	if err != nil && a.OrgID != "" && errors.Is(err, storage.ErrNotFound) {
		data, err = a.storage.Load(ctx, a.ID, "")
	}
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	loaded, err := StateFromMap(data)
	if err != nil {
		return false, err
	}
	if loaded.OrgID == "" {
		loaded.OrgID = a.OrgID
	}
	if loaded.OrgName == "" {
		loaded.OrgName = a.OrgName
	}
	a.state = loaded
	return true, nil
}

func (a *Agent) saveState(ctx context.Context) error {
	data, err := a.state.ToMap()
	if err != nil {
		return err
	}
	return a.storage.Save(ctx, a.ID, data, a.OrgID)
}
