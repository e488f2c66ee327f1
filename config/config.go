package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Sim     SimConfig     `mapstructure:"sim"`
	Net     NetConfig     `mapstructure:"net"`
	Log     LogConfig     `mapstructure:"log"`
	Catalog CatalogConfig `mapstructure:"catalog"`
}

type ServerConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	MetricsAddress string `mapstructure:"metrics_address"`
	RPCAddress     string `mapstructure:"rpc_address"`
	MaxPlayers     int    `mapstructure:"max_players"`
}

type SimConfig struct {
	TickRate          int     `mapstructure:"tick_rate"`
	LivenessTicks     int     `mapstructure:"liveness_ticks"`
	Seed              int64   `mapstructure:"seed"`
	RoomCount         int     `mapstructure:"room_count"`
	HysteresisMargin  float64 `mapstructure:"hysteresis_margin"`
	HitImmunityTicks  int     `mapstructure:"hit_immunity_ticks"`
	PickupRadius      float64 `mapstructure:"pickup_radius"`
	BlockDrainPerSec  float64 `mapstructure:"block_drain_per_sec"`
	SprintDrainPerSec float64 `mapstructure:"sprint_drain_per_sec"`
}

type NetConfig struct {
	SendQueueSize        int     `mapstructure:"send_queue_size"`
	InboundRate          float64 `mapstructure:"inbound_rate"`
	InboundBurst         int     `mapstructure:"inbound_burst"`
	InputQueueLimit      int     `mapstructure:"input_queue_limit"`
	CompressionThreshold int     `mapstructure:"compression_threshold"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type CatalogConfig struct {
	Path string `mapstructure:"path"`
}

// DefaultPort is the well-known port hosts listen on.
const DefaultPort = 5555

// TickInterval is the wall-clock duration of one simulation step.
func (c SimConfig) TickInterval() time.Duration {
	if c.TickRate <= 0 {
		return time.Second / 30
	}
	return time.Second / time.Duration(c.TickRate)
}

// LivenessWindow is how long a connection may stay silent before it is
// treated as disconnected.
func (c SimConfig) LivenessWindow() time.Duration {
	return time.Duration(c.LivenessTicks) * c.TickInterval()
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", DefaultPort)
	v.SetDefault("server.metrics_address", "127.0.0.1:6060")
	v.SetDefault("server.rpc_address", "127.0.0.1:6061")
	v.SetDefault("server.max_players", 4)

	v.SetDefault("sim.tick_rate", 30)
	v.SetDefault("sim.liveness_ticks", 90)
	v.SetDefault("sim.seed", 0)
	v.SetDefault("sim.room_count", 6)
	v.SetDefault("sim.hysteresis_margin", 50.0)
	v.SetDefault("sim.hit_immunity_ticks", 15)
	v.SetDefault("sim.pickup_radius", 30.0)
	v.SetDefault("sim.block_drain_per_sec", 6.0)
	v.SetDefault("sim.sprint_drain_per_sec", 40.0)

	v.SetDefault("net.send_queue_size", 64)
	v.SetDefault("net.inbound_rate", 120.0)
	v.SetDefault("net.inbound_burst", 60)
	v.SetDefault("net.input_queue_limit", 128)
	v.SetDefault("net.compression_threshold", 4096)

	v.SetDefault("log.level", "info")
	v.SetDefault("catalog.path", "")
}

// Default returns the built-in configuration without touching the filesystem.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		panic("config defaults do not decode: " + err.Error())
	}
	return cfg
}

// LoadConfig reads config.yaml from path if present. Environment variables
// prefixed with FLYKNIGHT_ override file values.
func LoadConfig(path string) (config *Config, err error) {
	v := viper.New()
	setDefaults(v)

	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.SetEnvPrefix("FLYKNIGHT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err = v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	config = &Config{}
	if err = v.Unmarshal(config); err != nil {
		return nil, err
	}
	if config.Server.MaxPlayers < 1 {
		config.Server.MaxPlayers = 1
	}
	return config, nil
}
