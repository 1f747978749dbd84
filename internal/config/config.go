package config

import (
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	LogLevel       string   `yaml:"log-level" env:"LOG_LEVEL" env-default:"info"`
	HTTPPort       string   `yaml:"http-port" env:"HTTP_PORT" env-default:"9090"`
	SocketPort     string   `yaml:"socket-port" env:"SOCKET_PORT" env-default:"8080"`
	AllowedOrigins []string `yaml:"allowed-origins" env:"ALLOWED_ORIGINS" env-separator:"," env-default:"http://localhost:5173,http://localhost:5174"`
	Redis          Redis    `yaml:"redis"`
	Game           Game     `yaml:"game"`
}

type Redis struct {
	Host string `yaml:"host" env:"REDIS_HOST" env-default:"localhost"`
	Port string `yaml:"port" env:"REDIS_PORT" env-default:"6379"`
}

// Game holds the timing rules of a room.
//
// The turn clock keeps running while a player is disconnected, so a reconnect window longer than
// the turn timeout never expires in a running game: some turn times out first. Keep
// ReconnectWindow below TurnTimeout if disconnect_timeout results are wanted.
type Game struct {
	TurnTimeout     time.Duration `yaml:"turn-timeout" env:"GAME_TURN_TIMEOUT" env-default:"30s"`
	TickInterval    time.Duration `yaml:"tick-interval" env:"GAME_TICK_INTERVAL" env-default:"1s"`
	ReconnectWindow time.Duration `yaml:"reconnect-window" env:"GAME_RECONNECT_WINDOW" env-default:"60s"`
	FinishedRoomTTL time.Duration `yaml:"finished-room-ttl" env:"GAME_FINISHED_ROOM_TTL" env-default:"2m"`
	SweepInterval   time.Duration `yaml:"sweep-interval" env:"GAME_SWEEP_INTERVAL" env-default:"10s"`
	ResultTTL       time.Duration `yaml:"result-ttl" env:"GAME_RESULT_TTL" env-default:"24h"`
}

// MustLoad - load all configurations in config.yml file.
func MustLoad(path string) *Config {
	config := &Config{}

	if err := cleanenv.ReadConfig(path, config); err != nil {
		panic(fmt.Errorf("unable to load config file: %w", err))
	}

	return config
}

func (that *Redis) GetRedisAddr() string {
	if that.Host == "" || that.Port == "" {
		return ""
	}

	return fmt.Sprintf("%s:%s", that.Host, that.Port)
}
