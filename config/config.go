package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	JournalPebble = "pebble"
	JournalWAL    = "wal"
)

// Config holds all process configuration.
type Config struct {
	Journal          string
	DataDir          string
	RefData          string
	WALSegmentBytes  int64
	IDBlock          uint64
	CheckpointEvery  time.Duration
	GRPCAddr         string
	KafkaBrokers     []string
	ExecTopic        string
	ViewTopic        string
	BroadcastEvery   time.Duration
	BroadcastRetries uint32
	LogLevel         string
	LogFile          string
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Journal:          JournalPebble,
		DataDir:          "data",
		RefData:          "refdata.json",
		WALSegmentBytes:  64 << 20,
		IDBlock:          1024,
		CheckpointEvery:  time.Minute,
		GRPCAddr:         ":50051",
		ExecTopic:        "swirly.execs",
		ViewTopic:        "swirly.views",
		BroadcastEvery:   250 * time.Millisecond,
		BroadcastRetries: 10,
		LogLevel:         "info",
	}
}

// Load applies envPath (if it exists, otherwise .env in the working
// directory) and the process environment over Default.
func Load(envPath string) (*Config, error) {
	if envPath != "" {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load() // loads .env from current directory
	}

	d := Default()
	c := &Config{
		Journal:          getEnvString("SWIRLY_JOURNAL", d.Journal),
		DataDir:          getEnvString("SWIRLY_DATA_DIR", d.DataDir),
		RefData:          getEnvString("SWIRLY_REFDATA", d.RefData),
		WALSegmentBytes:  int64(getEnvInt("SWIRLY_WAL_SEGMENT_BYTES", int(d.WALSegmentBytes))),
		IDBlock:          uint64(getEnvInt("SWIRLY_ID_BLOCK", int(d.IDBlock))),
		CheckpointEvery:  getEnvDuration("SWIRLY_CHECKPOINT_INTERVAL", d.CheckpointEvery),
		GRPCAddr:         getEnvString("SWIRLY_GRPC_ADDR", d.GRPCAddr),
		KafkaBrokers:     getEnvStrings("SWIRLY_KAFKA_BROKERS", nil),
		ExecTopic:        getEnvString("SWIRLY_EXEC_TOPIC", d.ExecTopic),
		ViewTopic:        getEnvString("SWIRLY_VIEW_TOPIC", d.ViewTopic),
		BroadcastEvery:   getEnvDuration("SWIRLY_BROADCAST_INTERVAL", d.BroadcastEvery),
		BroadcastRetries: uint32(getEnvInt("SWIRLY_BROADCAST_RETRIES", int(d.BroadcastRetries))),
		LogLevel:         getEnvString("SWIRLY_LOG_LEVEL", d.LogLevel),
		LogFile:          getEnvString("SWIRLY_LOG_FILE", ""),
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	switch c.Journal {
	case JournalPebble, JournalWAL:
	default:
		return fmt.Errorf("invalid journal %q", c.Journal)
	}
	if c.DataDir == "" {
		return fmt.Errorf("data dir required")
	}
	if c.RefData == "" {
		return fmt.Errorf("refdata path required")
	}
	if c.Journal == JournalWAL && c.WALSegmentBytes <= 0 {
		return fmt.Errorf("invalid wal segment size: %d", c.WALSegmentBytes)
	}
	if c.IDBlock == 0 {
		return fmt.Errorf("invalid id block: %d", c.IDBlock)
	}
	if c.GRPCAddr == "" {
		return fmt.Errorf("grpc address required")
	}
	if c.KafkaEnabled() && (c.ExecTopic == "" || c.ViewTopic == "") {
		return fmt.Errorf("kafka topics required when brokers are set")
	}
	return nil
}

// KafkaEnabled reports whether brokers are configured.
func (c *Config) KafkaEnabled() bool { return len(c.KafkaBrokers) > 0 }

func (c *Config) String() string {
	return fmt.Sprintf(
		"Journal{%s, dir:%s}, GRPC{%s}, Kafka{brokers:%d, execs:%s, views:%s}",
		c.Journal, c.DataDir, c.GRPCAddr,
		len(c.KafkaBrokers), c.ExecTopic, c.ViewTopic,
	)
}

// Helper functions for environment variable parsing

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getEnvStrings splits a comma separated list, dropping empty items.
func getEnvStrings(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, s := range strings.Split(value, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
