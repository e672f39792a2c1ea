// Command login-server runs the PWO login server: it accepts the RSA/XTEA
// handshake, authenticates against MySQL, and bridges authenticated
// connections into the event/module fabric and the Redis message bus.
// Mirrors main.cpp's mainLoader bootstrap order: RSA key, scripting
// engine, database, Redis, modules, then start listening.
package main

import (
	"context"
	"fmt"
	"net"
	"os"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/bravecorp/pwo-login-server/internal/accountstore"
	"github.com/bravecorp/pwo-login-server/internal/bus"
	"github.com/bravecorp/pwo-login-server/internal/config"
	"github.com/bravecorp/pwo-login-server/internal/cryptoutil"
	"github.com/bravecorp/pwo-login-server/internal/events"
	"github.com/bravecorp/pwo-login-server/internal/lifecycle"
	"github.com/bravecorp/pwo-login-server/internal/logging"
	"github.com/bravecorp/pwo-login-server/internal/netsrv"
	"github.com/bravecorp/pwo-login-server/internal/protocol"
	"github.com/bravecorp/pwo-login-server/internal/script/fakeengine"
	"github.com/bravecorp/pwo-login-server/internal/tasks"
)

func main() {
	var configPath string

	root := &cobra.Command{
		Use:   "login-server",
		Short: "PWO login server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), configPath)
		},
	}
	root.Flags().StringVar(&configPath, "config", "", "path to a config file (optional, env vars and defaults otherwise)")

	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := logging.New(logLevelFromString(cfg.LogLevel))
	log.Log(logging.LevelInfo, "starting login server")

	log.Log(logging.LevelInfo, "loading RSA key", "path", cfg.RSAKeyPath)
	keyBytes, err := os.ReadFile(cfg.RSAKeyPath)
	if err != nil {
		return fmt.Errorf("read RSA key: %w", err)
	}
	rsaKey, err := cryptoutil.LoadRSAPrivateKey(keyBytes)
	if err != nil {
		return fmt.Errorf("parse RSA key: %w", err)
	}

	// No scripting runtime ships in this repository (see
	// internal/script's doc comment); fakeengine stands in so the event
	// registry has somewhere to route callbacks and load module code
	// until a real engine is wired in.
	log.Log(logging.LevelInfo, "loading scripting engine (placeholder)")
	engine := fakeengine.New()
	registry := events.NewRegistry(engine)
	registry.SetLogger(log)

	// A module directory is optional — this deployment may not have one
	// (no scripting engine ships to drive real module code), so a missing
	// directory is logged and skipped rather than treated as fatal.
	if err := registry.LoadModules(cfg.ModulesPath); err != nil {
		log.Log(logging.LevelWarn, "no modules loaded", "path", cfg.ModulesPath, "err", err)
	}

	log.Log(logging.LevelInfo, "establishing database connection...")
	store, err := accountstore.OpenMySQLStore(accountstore.DSNConfig{
		Host:     cfg.MySQLHost,
		Port:     cfg.MySQLPort,
		Socket:   cfg.MySQLSock,
		User:     cfg.MySQLUser,
		Password: cfg.MySQLPass,
		Database: cfg.MySQLDatabase,
	}, cfg.EncryptionSalt)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer store.Close()

	log.Log(logging.LevelInfo, "connecting to redis")
	redisClient := redis.NewClient(&redis.Options{
		Addr: fmt.Sprintf("%s:%d", cfg.RedisHost, cfg.RedisPort),
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("connect to redis: %w", err)
	}
	defer redisClient.Close()

	dispatcher := tasks.NewDispatcher()
	dispatcherDone := make(chan struct{})

	subscriber := bus.NewSubscriber(redisClient, dispatcher, registry, log)
	if err := subscriber.Subscribe(ctx, "loginserver"); err != nil {
		return fmt.Errorf("subscribe to bus: %w", err)
	}

	connRegistry := netsrv.NewRegistry(log)

	protoConfig := protocol.Config{
		VersionMin:  cfg.VersionMin,
		VersionStr:  cfg.VersionStr,
		MotdNumber:  cfg.MotdNumber,
		MotdMessage: cfg.MotdMessage,
	}
	newProtocol := func(conn *netsrv.Connection) netsrv.ProtocolHandler {
		return protocol.New(conn, protocol.Deps{
			RSAKey:   rsaKey,
			Store:    store,
			Registry: registry,
			Config:   protoConfig,
			Logger:   log,
		})
	}

	listener, err := net.Listen("tcp", cfg.Addr())
	if err != nil {
		return fmt.Errorf("listen on %s: %w", cfg.Addr(), err)
	}

	acceptor := netsrv.NewAcceptor(listener, connRegistry, newProtocol, log)

	sup := lifecycle.New(log)
	sup.Acceptor = acceptor
	sup.Dispatcher = dispatcher
	sup.DispatcherDone = dispatcherDone
	sup.Subscriber = subscriber
	sup.Registry = connRegistry

	// The dispatcher, bus subscriber, and acceptor each run their own
	// loop for the life of the process; errgroup just gives us one
	// place to wait for all three to actually exit once Shutdown asks
	// them to, instead of three bare `go func(){}`s nothing ever joins.
	var g errgroup.Group
	g.Go(func() error {
		dispatcher.Run()
		close(dispatcherDone)
		return nil
	})
	g.Go(func() error {
		subscriber.Run(ctx)
		return nil
	})
	g.Go(func() error {
		acceptor.Run(ctx)
		return nil
	})

	log.Log(logging.LevelInfo, "listening", "addr", cfg.Addr())

	sup.WaitForSignal(ctx)
	return g.Wait()
}

func logLevelFromString(s string) logging.Level {
	switch s {
	case "debug":
		return logging.LevelDebug
	case "info":
		return logging.LevelInfo
	case "warn":
		return logging.LevelWarn
	case "error":
		return logging.LevelError
	default:
		return logging.LevelInfo
	}
}
