package main

import (
	"context"
	"errors"
	"flag"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/wfunc/flyknight/catalog"
	"github.com/wfunc/flyknight/client"
	"github.com/wfunc/flyknight/config"
	"github.com/wfunc/flyknight/dungeon"
	"github.com/wfunc/flyknight/logger"
	"github.com/wfunc/flyknight/server"
)

func main() {
	mode := flag.String("mode", "host", "host or join")
	addr := flag.String("addr", "127.0.0.1", "host address to join (join mode)")
	name := flag.String("name", "Knight", "player name")
	configPath := flag.String("config", ".", "directory holding config.yaml")
	flag.Parse()

	// A missing .env is fine.
	_ = godotenv.Load()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		logger.Init("info")
		logger.Log.Fatalf("Failed to load configuration: %v", err)
	}
	logger.Init(cfg.Log.Level)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch *mode {
	case "host":
		err = runHost(ctx, cfg, *name)
	case "join":
		err = runJoin(ctx, cfg, *addr, cfg.Server.Port, *name)
	default:
		logger.Log.Fatalf("Unknown mode %q, expected host or join", *mode)
	}
	if err != nil {
		logger.Log.Fatalf("%s: %v", *mode, err)
	}
}

func runHost(ctx context.Context, cfg *config.Config, name string) error {
	cat := catalog.Default()
	if cfg.Catalog.Path != "" {
		loaded, err := catalog.Load(cfg.Catalog.Path)
		if err != nil {
			return err
		}
		cat = loaded
	}

	gameServer, err := server.NewGameServer(cfg, cat, dungeon.NewGenerator(cat))
	if err != nil {
		return err
	}
	if err := gameServer.Start(ctx); err != nil {
		return err
	}
	defer func() {
		gameServer.Shutdown()
		gameServer.Wait()
	}()

	// The host plays through the same protocol as everyone else.
	port := cfg.Server.Port
	if a, ok := gameServer.Addr().(*net.TCPAddr); ok {
		port = a.Port
	}
	return runJoin(ctx, cfg, "127.0.0.1", port, name)
}

func runJoin(ctx context.Context, cfg *config.Config, addr string, port int, name string) error {
	opts := client.DefaultOptions()
	opts.QueueSize = cfg.Net.SendQueueSize
	opts.Liveness = cfg.Sim.LivenessWindow()

	dialCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	c, err := client.Connect(dialCtx, addr, port, name, opts)
	if err != nil {
		return err
	}
	defer c.Close()
	logger.Log.Infof("Joined %s:%d as player %d", addr, port, c.PlayerID())

	err = client.RunHeadless(ctx, c, client.Idle, 5*time.Second)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
