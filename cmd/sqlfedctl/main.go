// Command sqlfedctl is the operator CLI for the SQL federation/
// acceleration runtime: it loads the same config.Config every backend
// pool is built from, and dispatches to one of a small set of
// subcommands, the flag-driven style of cmd/migrate/main.go scaled up
// to several commands instead of one.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/nullstream/sqlfed/internal/config"
	"github.com/nullstream/sqlfed/internal/factory"
	"github.com/nullstream/sqlfed/internal/obs"
	"github.com/nullstream/sqlfed/internal/provision"
	"github.com/nullstream/sqlfed/internal/vectorsearch"
)

func main() {
	command := flag.String("command", "serve", "Command to run: serve, provision, query, or search")
	configPath := flag.String("config", os.Getenv("SQLFED_CONFIG_PATH"), "Path to config file")
	backendName := flag.String("backend", "", "Backend name (key under config's backends map)")
	tableName := flag.String("table", "", "Table name")
	mode := flag.String("mode", "read", "Table mode: read or read_write")
	onConflict := flag.String("on-conflict", "", "on_conflict option, e.g. \"upsert:id\" (empty disables)")
	indexes := flag.String("indexes", "", "indexes option, e.g. \"email:unique;(tenant,status):enabled\" (empty disables)")
	query := flag.String("query", "", "SQL query to run (command=query) or search text (command=search)")
	topN := flag.Int("top-n", 10, "Result limit for command=search")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load or validate configuration")
	}
	config.InitLogger(cfg.App.LogLevel, cfg.App.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	breakers := obs.NewBreakerManager()

	var metricsServer *obs.Server
	if cfg.Monitoring.EnableMetrics {
		metricsServer = obs.NewServer(cfg.Monitoring.MetricsPort, cfg.App.Version, log.Logger)
		if err := metricsServer.Start(); err != nil {
			log.Fatal().Err(err).Msg("failed to start metrics server")
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = metricsServer.Shutdown(shutdownCtx)
		}()
	}

	switch *command {
	case "serve":
		runServe(ctx, cfg, breakers)
	case "provision":
		runProvision(ctx, cfg, breakers, *backendName, *tableName, *mode, *onConflict, *indexes)
	case "query":
		runQuery(ctx, cfg, breakers, *backendName, *query)
	case "search":
		runSearch(ctx, cfg, breakers, *backendName, *tableName, *query, *topN)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n", *command)
		fmt.Fprintln(os.Stderr, "usage: sqlfedctl -command=[serve|provision|query|search] ...")
		os.Exit(1)
	}
}

func backendConfig(cfg *config.Config, name string) config.BackendConfig {
	b, ok := cfg.Backends[name]
	if !ok {
		log.Fatal().Str("backend", name).Msg("unknown backend name")
	}
	return b
}

// runServe keeps the process alive with only the metrics/health server
// running, the mode used when sqlfedctl is deployed as a long-lived
// sidecar rather than invoked for one operation.
func runServe(ctx context.Context, cfg *config.Config, breakers *obs.BreakerManager) {
	log.Info().Str("environment", cfg.App.Environment).Msg("sqlfedctl serving")
	<-ctx.Done()
	log.Info().Msg("shutdown signal received, stopping")
}

func runProvision(ctx context.Context, cfg *config.Config, breakers *obs.BreakerManager, backendName, tableName, mode, onConflictOpt, indexesOpt string) {
	if backendName == "" || tableName == "" {
		log.Fatal().Msg("provision requires -backend and -table")
	}

	pool, err := factory.NewPool(ctx, backendName, backendConfig(cfg, backendName), breakers, log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build backend pool")
	}
	defer pool.Close()

	var onConflict *provision.OnConflict
	if onConflictOpt != "" {
		onConflict, err = provision.ParseOnConflict(onConflictOpt)
		if err != nil {
			log.Fatal().Err(err).Msg("invalid -on-conflict option")
		}
	}

	indexes, err := provision.ParseIndexes(indexesOpt)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid -indexes option")
	}

	table, err := factory.CreateExternalTable(ctx, pool, tableName, factory.Options{
		Mode:       mode,
		Indexes:    indexes,
		OnConflict: onConflict,
	}, log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to provision table")
	}

	log.Info().
		Str("table", tableName).
		Bool("provisioner_available", table.Provisioner != nil).
		Msg("table ready")
}

func runQuery(ctx context.Context, cfg *config.Config, breakers *obs.BreakerManager, backendName, query string) {
	if backendName == "" || query == "" {
		log.Fatal().Msg("query requires -backend and -query")
	}

	pool, err := factory.NewPool(ctx, backendName, backendConfig(cfg, backendName), breakers, log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build backend pool")
	}
	defer pool.Close()

	conn, err := pool.Connect(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect")
	}
	defer conn.Close()

	stream, err := conn.QueryArrow(ctx, query)
	if err != nil {
		log.Fatal().Err(err).Msg("query failed")
	}
	defer stream.Close()

	var totalRows int64
	for {
		batch, err := stream.Next(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("stream read failed")
		}
		if batch == nil {
			break
		}
		totalRows += batch.NumRows()
		batch.Release()
	}
	log.Info().Int64("rows", totalRows).Msg("query complete")
}

func runSearch(ctx context.Context, cfg *config.Config, breakers *obs.BreakerManager, backendName, tableName, query string, topN int) {
	if backendName == "" || tableName == "" || query == "" {
		log.Fatal().Msg("search requires -backend, -table, and -query")
	}

	pool, err := factory.NewPool(ctx, backendName, backendConfig(cfg, backendName), breakers, log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build backend pool")
	}
	defer pool.Close()

	conn, err := pool.Connect(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect")
	}
	defer conn.Close()

	embeddingTable, ok := conn.(vectorsearch.EmbeddingTable)
	if !ok {
		log.Fatal().Str("table", tableName).Msg("backend connection has no embedding column configured")
	}

	store := vectorsearch.NewEmbeddingModelStore(nil)
	result, err := vectorsearch.Search(ctx, conn, store,
		map[string]vectorsearch.EmbeddingTable{tableName: embeddingTable},
		func(table string) string { return "default" },
		query, vectorsearch.Limit{TopN: topN})
	if err != nil {
		log.Fatal().Err(err).Msg("search failed")
	}

	for table, rows := range result.Tables {
		log.Info().Str("table", table).Int("results", len(rows)).Msg("search results")
		for _, row := range rows {
			fmt.Println(row)
		}
	}
}
