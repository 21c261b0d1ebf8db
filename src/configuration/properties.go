package configuration

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v6"
)

type (
	Properties struct {
		LogLevel string `env:"LOG_LEVEL" envDefault:"DEBUG"`

		Auth     AuthProperties       `envPrefix:"AUTH_"`
		S3       S3Properties         `envPrefix:"S3_"`
		Server   HttpServerProperties `envPrefix:"HTTP_"`
		Analyzer AnalyzerProperties   `envPrefix:"ANALYZER_"`
		Database DatabaseProperties   `envPrefix:"DB_"`
		Upload   UploadProperties     `envPrefix:"UPLOAD_"`
	}

	AuthProperties struct {
		Secret   string        `env:"SECRET"`
		TokenTTL time.Duration `env:"TOKEN_TTL" envDefault:"168h"`
	}

	HttpServerProperties struct {
		Name        string        `env:"NAME" envDefault:"pondserv"`
		Port        string        `env:"PORT" envDefault:"5001"`
		ReadTimeout time.Duration `env:"READ_TIMEOUT" envDefault:"5s"`
	}

	AnalyzerProperties struct {
		Host         string        `env:"HOST" envDefault:"https://generativelanguage.googleapis.com"`
		APIKey       string        `env:"API_KEY"`
		Model        string        `env:"MODEL" envDefault:"gemini-2.0-flash"`
		Timeout      time.Duration `env:"TIMEOUT" envDefault:"120s"`
		MaxTextBytes int64         `env:"MAX_TEXT_BYTES" envDefault:"65536"`
	}

	S3Properties struct {
		Host      string `env:"HOST" envDefault:"localhost:9000"`
		AccessKey string `env:"ACCESS_KEY"`
		SecretKey string `env:"SECRET_KEY"`
		Bucket    string `env:"BUCKET" envDefault:"pond"`
		UseSSL    bool   `env:"USE_SSL" envDefault:"true"`
	}

	DatabaseProperties struct {
		Path string `env:"PATH" envDefault:"pond.db"`
	}

	UploadProperties struct {
		Dir         string `env:"DIR" envDefault:"uploads"`
		MaxFileSize int64  `env:"MAX_FILE_SIZE" envDefault:"5242880"`
	}
)

func ReadProperties() *Properties {
	config := &Properties{}

	if err := env.Parse(config); err != nil {
		panic(fmt.Errorf("read config error: %w", err))
	}
	return config
}
