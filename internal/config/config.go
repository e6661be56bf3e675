// Package config provides centralized configuration management.
// This is the SINGLE SOURCE OF TRUTH for all game and server settings.
//
// All values are fixed at process start; nothing here is mutated after Load().
package config

import (
	"os"
	"strconv"
	"time"
)

// GameConfig holds the simulation parameters shared by every room.
type GameConfig struct {
	GridWidth  int // Arena width in cells
	GridHeight int // Arena height in cells
	TickRate   int // Simulation ticks per second
	MaxFood    int // Food items kept on the grid at once
	FoodReward int // Score awarded per food item

	// Round flow timing
	ResultDisplay  time.Duration // How long FINISHED shows the result before reset
	StartCountdown time.Duration // Auto-start delay once two occupants are present
}

// DefaultGame returns the default game configuration.
func DefaultGame() GameConfig {
	return GameConfig{
		GridWidth:      50,
		GridHeight:     50,
		TickRate:       15,
		MaxFood:        3,
		FoodReward:     1,
		ResultDisplay:  3 * time.Second,
		StartCountdown: 5 * time.Second,
	}
}

// GameFromEnv returns game configuration with environment variable overrides.
// Environment variables take precedence over defaults.
func GameFromEnv() GameConfig {
	cfg := DefaultGame()

	if w := getEnvInt("GRID_WIDTH", 0); w > 0 {
		cfg.GridWidth = w
	}
	if h := getEnvInt("GRID_HEIGHT", 0); h > 0 {
		cfg.GridHeight = h
	}
	if tr := getEnvInt("TICK_RATE", 0); tr > 0 {
		cfg.TickRate = tr
	}
	if mf := getEnvInt("MAX_FOOD", 0); mf > 0 {
		cfg.MaxFood = mf
	}
	if s := getEnvInt("RESULT_DISPLAY_SECONDS", 0); s > 0 {
		cfg.ResultDisplay = time.Duration(s) * time.Second
	}
	if s := getEnvInt("START_COUNTDOWN_SECONDS", 0); s > 0 {
		cfg.StartCountdown = time.Duration(s) * time.Second
	}

	return cfg
}

// TickInterval returns the wall-clock duration of one simulation tick.
func (c GameConfig) TickInterval() time.Duration {
	return time.Second / time.Duration(c.TickRate)
}

// RoomsConfig holds the fixed room arena layout.
type RoomsConfig struct {
	Count    int // Number of rooms created at startup
	Capacity int // Player slots per room (humans and bots)
}

// DefaultRooms returns the default room arena configuration.
func DefaultRooms() RoomsConfig {
	return RoomsConfig{
		Count:    20,
		Capacity: 10,
	}
}

// RoomsFromEnv returns room configuration with environment variable overrides.
func RoomsFromEnv() RoomsConfig {
	cfg := DefaultRooms()

	if n := getEnvInt("ROOM_COUNT", 0); n > 0 {
		cfg.Count = n
	}
	if c := getEnvInt("ROOM_CAPACITY", 0); c > 0 {
		cfg.Capacity = c
	}

	return cfg
}

// ServerConfig holds HTTP/WebSocket server settings.
type ServerConfig struct {
	Port            int
	MaxConnsTotal   int // Hard cap on concurrent websocket connections
	MaxConnsPerIP   int // Concurrent websocket connections per client IP
	SendBufferSize  int // Outbound frames buffered per connection before dropping
	MaxNameLength   int // Display names are truncated to this length
}

// DefaultServer returns the default server configuration.
func DefaultServer() ServerConfig {
	return ServerConfig{
		Port:           8765,
		MaxConnsTotal:  500,
		MaxConnsPerIP:  10,
		SendBufferSize: 64,
		MaxNameLength:  10,
	}
}

// ServerFromEnv returns server configuration with environment variable overrides.
func ServerFromEnv() ServerConfig {
	cfg := DefaultServer()

	if p := getEnvInt("PORT", 0); p > 0 {
		cfg.Port = p
	}
	if mc := getEnvInt("MAX_CONNECTIONS", 0); mc > 0 {
		cfg.MaxConnsTotal = mc
	}
	if mc := getEnvInt("MAX_CONNECTIONS_PER_IP", 0); mc > 0 {
		cfg.MaxConnsPerIP = mc
	}

	return cfg
}

// AppConfig holds the complete application configuration.
type AppConfig struct {
	Game   GameConfig
	Rooms  RoomsConfig
	Server ServerConfig
}

// Load returns the complete configuration with environment overrides.
func Load() AppConfig {
	return AppConfig{
		Game:   GameFromEnv(),
		Rooms:  RoomsFromEnv(),
		Server: ServerFromEnv(),
	}
}

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}
