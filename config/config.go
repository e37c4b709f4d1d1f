package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"
)

type Config struct {
	DatabaseURL       string        `ff:"long: database-url, default: postgresql://postgres@127.0.0.1:5432/tradepost?sslmode=disable, usage: URL for the Postgres database"`
	Port              uint32        `ff:"long: port, short: p, default: 4000, usage: Port for the HTTP server"`
	MinioEndpoint     string        `ff:"long: minio-endpoint, default: localhost:9000, usage: MinIO endpoint"`
	MinioAccessKey    string        `ff:"long: minio-access-key, default: minioadmin, usage: MinIO access key"`
	MinioSecretKey    string        `ff:"long: minio-secret-key, default: minioadmin, usage: MinIO secret key"`
	MinioSecure       bool          `ff:"long: minio-secure, default: false, usage: Use secure connection to MinIO"`
	PairLockWait      time.Duration `ff:"long: pair-lock-wait, default: 5s, usage: How long to wait for the conversation pair lock before giving up"`
	ConfirmWindow     time.Duration `ff:"long: confirm-window, default: 24h, usage: Buyer response window for purchase confirmations"`
	SweepInterval     time.Duration `ff:"long: sweep-interval, default: 5m, usage: Interval between expired-confirmation sweeps (0 disables the sweep)"`
	CleanupTimeout    time.Duration `ff:"long: cleanup-timeout, default: 5s, usage: Timeout for background cleanup operations"`
	BackgroundTimeout time.Duration `ff:"long: background-timeout, default: 15s, usage: Timeout for service background operations"`
}

func Load() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	fs := ff.NewFlagSetFrom("tradepost", &cfg)
	err := ff.Parse(fs, os.Args[1:], ff.WithEnvVarPrefix("TRADEPOST"))
	if errors.Is(err, ff.ErrHelp) {
		fmt.Println(ffhelp.Flags(fs))
		os.Exit(0)
	}

	return cfg, err
}
