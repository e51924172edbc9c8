package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/cbodonnell/rally/pkg/api"
	"github.com/cbodonnell/rally/pkg/config"
	"github.com/cbodonnell/rally/pkg/log"
	"github.com/cbodonnell/rally/pkg/network"
	"github.com/cbodonnell/rally/pkg/registry"
	"github.com/cbodonnell/rally/pkg/repositories"
	"github.com/cbodonnell/rally/pkg/version"
	"github.com/cbodonnell/rally/pkg/workers"
)

const matchEventChannelSize = 256

func main() {
	configPath := flag.String("config", "", "Path to a YAML config file")
	gamePort := flag.Int("game-port", 0, "WebSocket port to listen on")
	apiPort := flag.Int("api-port", 0, "API port to listen on")
	logLevel := flag.String("log-level", "", "Log level")
	sqlitePath := flag.String("sqlite-path", "", "Path to the SQLite database")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		var err error
		cfg, err = config.Load(*configPath)
		if err != nil {
			panic(fmt.Sprintf("Failed to load config: %v", err))
		}
	}
	if *gamePort != 0 {
		cfg.GamePort = *gamePort
	}
	if *apiPort != 0 {
		cfg.APIPort = *apiPort
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	if *sqlitePath != "" {
		cfg.SQLitePath = *sqlitePath
	}

	parsedLogLevel, err := log.ParseLogLevel(cfg.LogLevel)
	if err != nil {
		panic(fmt.Sprintf("Failed to parse log level: %v", err))
	}

	logger := log.New(os.Stdout, "", log.DefaultLoggerFlag, parsedLogLevel)
	log.SetDefaultLogger(logger)
	log.Info("Log level set to %s", parsedLogLevel)

	log.Info("Starting server version %s", version.Get())
	ctx := context.Background()

	var repository repositories.Repository
	if connStr := os.Getenv("DATABASE_URL"); connStr != "" {
		repository, err = repositories.NewPostgresRepository(ctx, connStr)
		if err != nil {
			panic(fmt.Sprintf("Failed to create postgres repository: %v", err))
		}
	} else {
		repository, err = repositories.NewSQLiteRepository(ctx, cfg.SQLitePath)
		if err != nil {
			panic(fmt.Sprintf("Failed to create sqlite repository: %v", err))
		}
	}
	defer repository.Close(ctx)

	matchEvents := make(chan workers.MatchEvent, matchEventChannelSize)

	persistenceWorker := workers.NewPersistenceWorker(workers.NewPersistenceWorkerOptions{
		Repository: repository,
		Events:     matchEvents,
	})
	go persistenceWorker.Start(ctx)

	matchRegistry := registry.NewRegistry(registry.NewRegistryOptions{
		Geometry: cfg.Geometry(),
		Events:   matchEvents,
		Linger:   cfg.ReconnectLinger(),
	})

	apiServer := api.NewAPIServer(api.NewAPIServerOptions{
		Port:       cfg.APIPort,
		Registry:   matchRegistry,
		Repository: repository,
	})
	go apiServer.Start()

	gameServer := network.NewGameServer(network.NewGameServerOptions{
		Port:     cfg.GamePort,
		Registry: matchRegistry,
	})

	log.Info("Starting game server")
	gameServer.Start(ctx)
}
