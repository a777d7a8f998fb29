// Package app is the composition root: it opens the database, runs
// migrations, and wires the storage backend, prompt registry, tenant manager
// and agent together. Nothing here is a package-level singleton; callers own
// the App they open.
package app

import (
	"database/sql"

	"promptbed/internal/agent"
	"promptbed/internal/config"
	"promptbed/internal/db"
	"promptbed/internal/events"
	"promptbed/internal/migrate"
	"promptbed/internal/prompt"
	"promptbed/internal/storage"
	"promptbed/internal/tenant"
)

type App struct {
	DB      *sql.DB
	Backend storage.Backend
	Events  events.Writer
	Config  *config.Config
	Prompts *prompt.Registry
	Tenants *tenant.Manager
}

// Options control how the App is assembled.
type Options struct {
	Workspace string
	// InMemory selects the ephemeral backend instead of sqlite.
	InMemory bool
	// Org flags override the workspace config.
	OrgID   string
	OrgName string
	AgentID string
}

// Open assembles an App from the workspace. Config is optional; defaults are
// used when promptbed.yml is absent.
func Open(opts Options) (*App, error) {
	cfg, err := config.LoadOptional(opts.Workspace)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		cfg = config.Default()
	}
	if opts.OrgID != "" {
		cfg.Org.ID = opts.OrgID
	}
	if opts.OrgName != "" {
		cfg.Org.Name = opts.OrgName
	}
	if opts.AgentID != "" {
		cfg.Agent.ID = opts.AgentID
	}

	a := &App{Config: cfg, Prompts: prompt.NewRegistry()}
	if opts.InMemory {
		a.Backend = storage.NewMemory()
	} else {
		conn, err := db.Open(db.Config{Workspace: opts.Workspace})
		if err != nil {
			return nil, err
		}
		if err := migrate.Migrate(conn); err != nil {
			conn.Close()
			return nil, err
		}
		a.DB = conn
		a.Backend = storage.NewSQLite(conn)
		a.Events = events.Writer{DB: conn}
	}
	a.Tenants = tenant.NewManager(a.Backend)
	if cfg.Prompts.Seed {
		if err := prompt.Seed(a.Prompts); err != nil {
			a.Close()
			return nil, err
		}
	}
	return a, nil
}

// Agent builds the workspace agent backed by the App's storage.
func (a *App) Agent() *agent.Agent {
	return agent.New(a.Config.Agent.ID, a.Config.Org.ID, a.Config.Org.Name, agent.WithStorage(a.Backend))
}

func (a *App) Close() error {
	if a.DB != nil {
		return a.DB.Close()
	}
	return nil
}
