package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"github.com/agentsafe/agentsafe/internal/approvals"
	"github.com/agentsafe/agentsafe/internal/audit"
	"github.com/agentsafe/agentsafe/internal/backend"
	"github.com/agentsafe/agentsafe/internal/config"
	"github.com/agentsafe/agentsafe/internal/grants"
	"github.com/agentsafe/agentsafe/internal/policy"
	"github.com/agentsafe/agentsafe/internal/store/pgaudit"
)

// env holds everything a command needs after loading config: the policy,
// the decision backend it implies, and the event-sourced stores, all
// rooted under the configured workspace.
type env struct {
	cfg       *config.Config
	policy    *policy.Policy
	backend   backend.Backend
	grants    *grants.Store
	approvals *approvals.Store
	ledger    *audit.Ledger

	// auditMirror is non-nil only when AGENTSAFE_DATABASE_URL (or the
	// discrete database.* config fields) is set. It is a query
	// accelerator, never the source of truth (spec §11): its absence
	// never blocks an ALLOW/BLOCK decision.
	auditMirror *pgaudit.DB
}

// writeAudit appends event to the JSONL ledger (authoritative) and, when
// an audit mirror is configured, best-effort mirrors it into Postgres
// without blocking on the result.
func (e *env) writeAudit(event audit.Event) error {
	err := e.ledger.Write(event)
	if e.auditMirror != nil {
		e.auditMirror.InsertAsync(context.Background(), event)
	}
	return err
}

func loadEnv(configPath string) (*env, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	pol, err := policy.Load(cfg.Policy.Path)
	if err != nil {
		return nil, fmt.Errorf("loading policy: %w", err)
	}

	var be backend.Backend
	switch cfg.Policy.Backend {
	case "remote":
		be = backend.NewRemote(cfg.OPA.URL, cfg.OPA.DecisionPath, pol)
	default:
		be = backend.NewLocal(pol)
	}

	ws := cfg.Policy.Workspace
	grantStore, err := grants.Open(filepath.Join(ws, "grants.jsonl"))
	if err != nil {
		return nil, fmt.Errorf("opening grant store: %w", err)
	}
	approvalStore, err := approvals.Open(filepath.Join(ws, "approval_requests.jsonl"))
	if err != nil {
		return nil, fmt.Errorf("opening approval store: %w", err)
	}
	ledger, err := audit.Open(filepath.Join(ws, "ledger.jsonl"))
	if err != nil {
		return nil, fmt.Errorf("opening audit ledger: %w", err)
	}

	var mirror *pgaudit.DB
	if cfg.Database.URL != "" || cfg.Database.Host != "" && cfg.Database.User != "" {
		mirror, err = pgaudit.New(context.Background(), pgaudit.Config{
			URL:      cfg.Database.URL,
			Host:     cfg.Database.Host,
			Port:     cfg.Database.Port,
			User:     cfg.Database.User,
			Password: cfg.Database.Password,
			Database: cfg.Database.Database,
			SSLMode:  cfg.Database.SSLMode,
			MaxConns: int32(cfg.Database.MaxConns),
		})
		if err != nil {
			log.Warn().Err(err).Msg("audit mirror unavailable, continuing with JSONL ledger only")
			mirror = nil
		}
	}

	return &env{
		cfg:         cfg,
		policy:      pol,
		backend:     be,
		grants:      grantStore,
		approvals:   approvalStore,
		ledger:      ledger,
		auditMirror: mirror,
	}, nil
}
