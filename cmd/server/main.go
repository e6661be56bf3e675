package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"snake-arena/internal/api"
	"snake-arena/internal/config"
	"snake-arena/internal/game"
)

func main() {
	if err := godotenv.Load(".env"); err != nil {
		log.Println("💡 No .env file found, using environment variables only")
	}

	cfg := config.Load()

	log.Println("🐍 ================================")
	log.Println("🐍  SNAKE ARENA SERVER")
	log.Println("🐍 ================================")
	log.Printf("🎮 Config: %d rooms x %d slots, %dx%d grid, %d Hz, %d food",
		cfg.Rooms.Count, cfg.Rooms.Capacity,
		cfg.Game.GridWidth, cfg.Game.GridHeight,
		cfg.Game.TickRate, cfg.Game.MaxFood)

	hooks := game.Hooks{
		ObserveTick: func(d time.Duration) {
			api.ObserveTickDuration(d.Seconds())
		},
		FrameDropped: api.RecordFrameDropped,
	}

	mgr := game.NewManager(cfg.Game, cfg.Rooms, game.NewGreedyPolicy(), hooks)
	srv := api.NewServer(mgr, cfg.Server)

	// Serve until signaled; the listener error path also ends the process.
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(fmt.Sprintf(":%d", cfg.Server.Port))
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Printf("🛑 received %v, shutting down", sig)
	case err := <-errCh:
		log.Printf("🚨 server error: %v", err)
	}

	srv.Stop()
	mgr.Shutdown()
}
