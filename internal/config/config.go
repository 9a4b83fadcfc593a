// Package config loads server settings from the environment, with an
// optional .env file for local development.
package config

import (
	"errors"
	"io/fs"
	"net"
	"strconv"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds every tunable of the quiz server.
type Config struct {
	Host string `env:"QUIZ_HOST" envDefault:"127.0.0.1"`
	Port int    `env:"QUIZ_PORT" envDefault:"65432"`

	QuestionsPath string `env:"QUIZ_QUESTIONS_PATH" envDefault:"data/questions.csv"`

	// MaxQuestions caps how many questions a single session presents.
	MaxQuestions int `env:"QUIZ_MAX_QUESTIONS" envDefault:"10"`

	// AnswerTimeout bounds the read of a single answer.
	AnswerTimeout time.Duration `env:"QUIZ_ANSWER_TIMEOUT" envDefault:"3m"`

	// WaitInterval spaces the WAIT heartbeats while the lobby is open.
	WaitInterval time.Duration `env:"QUIZ_WAIT_INTERVAL" envDefault:"2s"`

	// LobbyPollInterval bounds each lobby-wait poll iteration.
	LobbyPollInterval time.Duration `env:"QUIZ_LOBBY_POLL_INTERVAL" envDefault:"1s"`

	// AcceptTimeout bounds each Accept call so the loop can observe
	// a shutdown request.
	AcceptTimeout time.Duration `env:"QUIZ_ACCEPT_TIMEOUT" envDefault:"1s"`

	Admin AdminConfig `envPrefix:"QUIZ_ADMIN_"`
}

// AdminConfig configures the operator-facing HTTP surface.
type AdminConfig struct {
	Addr      string        `env:"ADDR" envDefault:"127.0.0.1:8090"`
	JWTSecret string        `env:"JWT_SECRET"`
	Password  string        `env:"PASSWORD"`
	LiveFeed  time.Duration `env:"LIVE_FEED_INTERVAL" envDefault:"1s"`
	ReadLimit int64         `env:"WS_READ_LIMIT" envDefault:"512"`
}

// Load reads an optional .env file and parses the environment.
// A missing .env file is not an error; a malformed one is.
func Load(path string) (Config, error) {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, err
	}
	return env.ParseAs[Config]()
}

// Addr returns the quiz listener address in host:port form.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}
