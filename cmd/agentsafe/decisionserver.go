package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/agentsafe/agentsafe/internal/api"
	"github.com/agentsafe/agentsafe/internal/opaengine"
)

// newDecisionServerCmd runs the in-process rego evaluator behind the
// remote-backend HTTP contract (spec §4.9): a real, runnable counterpart
// to the Remote backend's client, instead of only existing as a client.
func newDecisionServerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "decision-server",
		Short: "Serve the rego reference decision backend over HTTP",
		RunE:  runDecisionServer,
	}
	cmd.Flags().StringP("port", "p", "8181", "Port to listen on")
	return cmd
}

func runDecisionServer(cmd *cobra.Command, args []string) error {
	configureLogging(debugFlag(cmd))

	engine, err := opaengine.New(context.Background())
	if err != nil {
		return fmt.Errorf("initializing decision engine: %w", err)
	}

	router := api.NewRouter(api.Deps{Decision: engine})

	port, _ := cmd.Flags().GetString("port")
	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	log.Info().Str("addr", srv.Addr).Msg("starting agentsafe decision-server")
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}
