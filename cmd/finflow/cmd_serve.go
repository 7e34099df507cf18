package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	mongodriver "go.mongodb.org/mongo-driver/v2/mongo"
	mongooptions "go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/finflow-ai/finflow/providers/observability"
	"github.com/finflow-ai/finflow/providers/observability/slogobs"
	"github.com/finflow-ai/finflow/providers/toolbox"
	"github.com/finflow-ai/finflow/report"
	"github.com/finflow-ai/finflow/report/inmem"
	reportmongo "github.com/finflow-ai/finflow/report/mongo"
	"github.com/finflow-ai/finflow/server"
	"github.com/finflow-ai/finflow/workflow/graph"
	"github.com/finflow-ai/finflow/workflow/nodes"
)

var serveFlags struct {
	addr           string
	mongoURI       string
	mongoDB        string
	toolsConfig    string
	enforceCredits bool
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Starts the run-initiation and streaming endpoints:

  POST /api/runs               start a research run
  GET  /api/runs/{id}/stream   follow a run over SSE

Reports persist to MongoDB when --mongo-uri is set, in memory
otherwise. --tools-config points at a JSON file mapping agent names to
their MCP tool servers.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveFlags.addr, "addr", ":8080", "listen address")
	serveCmd.Flags().StringVar(&serveFlags.mongoURI, "mongo-uri", "", "MongoDB connection URI (in-memory store when empty)")
	serveCmd.Flags().StringVar(&serveFlags.mongoDB, "mongo-db", "finflow", "MongoDB database name")
	serveCmd.Flags().StringVar(&serveFlags.toolsConfig, "tools-config", "", "path to the MCP tool servers JSON file")
	serveCmd.Flags().BoolVar(&serveFlags.enforceCredits, "enforce-credits", false, "fail runs that route to a depleted worker")
}

func runServe(cmd *cobra.Command, _ []string) error {
	obs := slogobs.New()
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	toolServers, err := loadToolServers(serveFlags.toolsConfig)
	if err != nil {
		return err
	}

	engine, err := nodes.BuildEngine(
		nodes.Config{Observer: obs, ToolServers: toolServers},
		graph.WithObservability(obs),
		graph.WithEnforceCredits(serveFlags.enforceCredits),
	)
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}

	store, closeStore, err := openStore(ctx, obs)
	if err != nil {
		return err
	}
	defer closeStore()

	httpServer := &http.Server{
		Addr: serveFlags.addr,
		Handler: server.New(engine, server.Options{
			Reports:  report.NewService(store, obs),
			Observer: obs,
		}),
	}

	errCh := make(chan error, 1)
	go func() {
		obs.Info(ctx, "http server listening", observability.String("addr", serveFlags.addr))
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

// openStore selects the report store from the flags.
func openStore(ctx context.Context, obs observability.Provider) (report.Store, func(), error) {
	if serveFlags.mongoURI == "" {
		obs.Info(ctx, "using in-memory report store")
		return inmem.New(), func() {}, nil
	}

	client, err := mongodriver.Connect(mongooptions.Client().ApplyURI(serveFlags.mongoURI))
	if err != nil {
		return nil, nil, fmt.Errorf("connect mongo: %w", err)
	}
	closeClient := func() {
		disconnectCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = client.Disconnect(disconnectCtx)
	}

	store, err := reportmongo.New(reportmongo.Options{
		Client:   client,
		Database: serveFlags.mongoDB,
	})
	if err != nil {
		closeClient()
		return nil, nil, fmt.Errorf("open mongo store: %w", err)
	}
	obs.Info(ctx, "using mongo report store", observability.String("database", serveFlags.mongoDB))
	return store, closeClient, nil
}

// toolServerEntry is one MCP server in the --tools-config file.
type toolServerEntry struct {
	Name    string   `json:"name"`
	Command string   `json:"command,omitempty"`
	Args    []string `json:"args,omitempty"`
	URL     string   `json:"url,omitempty"`
}

// loadToolServers reads the agent -> MCP servers map, e.g.
//
//	{"researcher": [{"name": "search", "command": "search-mcp"}],
//	 "market": [{"name": "quotes", "url": "http://localhost:9100/mcp"}]}
func loadToolServers(path string) (map[string][]toolbox.ServerConfig, error) {
	if path == "" {
		return nil, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tools config: %w", err)
	}

	var entries map[string][]toolServerEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("parse tools config: %w", err)
	}

	servers := make(map[string][]toolbox.ServerConfig, len(entries))
	for agent, list := range entries {
		for _, entry := range list {
			if entry.Command == "" && entry.URL == "" {
				return nil, errors.New("tools config: server " + entry.Name + " needs a command or url")
			}
			servers[agent] = append(servers[agent], toolbox.ServerConfig{
				Name:    entry.Name,
				Command: entry.Command,
				Args:    entry.Args,
				URL:     entry.URL,
			})
		}
	}
	return servers, nil
}
