package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/agentsafe/agentsafe/internal/api"
	"github.com/agentsafe/agentsafe/internal/proxy"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the reverse-proxy decision pipeline and admin API",
		RunE:  runServe,
	}
	cmd.Flags().StringP("port", "p", "", "Port to listen on, overrides config")
	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	configureLogging(debugFlag(cmd))

	e, err := loadEnv(configPathFlag(cmd))
	if err != nil {
		return fmt.Errorf("loading environment: %w", err)
	}

	handler, err := proxy.NewHandler(
		e.backend,
		e.grants,
		e.ledger,
		e.cfg.Policy.Workspace,
		e.cfg.Proxy.UpstreamURL,
		e.cfg.Proxy.ActorHeader,
		e.cfg.Proxy.Adapter,
		e.cfg.Proxy.ToolPathRegex,
		20*time.Second,
	)
	if err != nil {
		return fmt.Errorf("building proxy handler: %w", err)
	}
	if e.auditMirror != nil {
		handler.AuditMirror = e.auditMirror
	}

	adminRouter := api.NewRouter(api.Deps{
		Ledger:        e.ledger,
		GrantStore:    e.grants,
		ApprovalStore: e.approvals,
		AuditMirror:   e.auditMirror,
	})

	mux := http.NewServeMux()
	mux.Handle("/health", adminRouter)
	mux.Handle("/ready", adminRouter)
	mux.Handle("/api/v1/", adminRouter)
	mux.Handle("/", handler)

	port := e.cfg.Server.Port
	if p, _ := cmd.Flags().GetString("port"); p != "" {
		port = p
	}

	srv := &http.Server{
		Addr:         e.cfg.Server.Host + ":" + port,
		Handler:      mux,
		ReadTimeout:  time.Duration(e.cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(e.cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	log.Info().
		Str("version", version).
		Str("addr", srv.Addr).
		Str("upstream", e.cfg.Proxy.UpstreamURL).
		Str("policy_backend", e.cfg.Policy.Backend).
		Msg("starting agentsafe proxy")

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(e.cfg.Server.ShutdownTimeout)*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("server shutdown error")
		}
	}()

	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}

	log.Info().Msg("server stopped")
	return nil
}
