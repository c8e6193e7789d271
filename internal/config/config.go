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
	StoreMemory = "memory"
	StoreSQLite = "sqlite"
	StoreInflux = "influx"
)

// Config holds the settings shared by the thermo binaries. Each cmd exposes
// the fields it uses as flags whose defaults come from here.
type Config struct {
	LogLevel string
	LogFile  string
	Timezone string

	GRPCAddr   string
	HTTPAddr   string
	GRPCTarget string
	GRPCWait   time.Duration

	Store      string
	CSVPath    string
	SQLitePath string

	InfluxURL    string
	InfluxToken  string
	InfluxOrg    string
	InfluxBucket string

	KafkaBrokers []string
	KafkaTopic   string
	KafkaGroupID string

	MQTTBroker   string
	MQTTTopic    string
	MQTTClientID string

	RecordRatePerSec float64
	RecordBurst      int
	CORSOrigins      []string
}

// Load reads the given .env files (".env" when none are named; a missing file
// is not an error) and then the process environment.
func Load(envFiles ...string) (Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !os.IsNotExist(err) {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}

	cfg := Config{
		LogLevel: envOr("LOG_LEVEL", "info"),
		LogFile:  os.Getenv("LOG_FILE"),
		Timezone: envOr("THERMO_TIMEZONE", "Local"),

		GRPCAddr:   envOr("GRPC_ADDR", ":9090"),
		HTTPAddr:   envOr("HTTP_ADDR", ":8080"),
		GRPCTarget: envOr("GRPC_TARGET", "127.0.0.1:9090"),
		GRPCWait:   envDurationMs("GRPC_WAIT_TIMEOUT_MS", 20_000),

		Store:      strings.ToLower(envOr("STORE", StoreMemory)),
		CSVPath:    os.Getenv("CSV_PATH"),
		SQLitePath: envOr("SQLITE_PATH", "data/readings.db"),

		InfluxURL:    os.Getenv("INFLUXDB_URL"),
		InfluxToken:  os.Getenv("INFLUXDB_TOKEN"),
		InfluxOrg:    os.Getenv("INFLUXDB_ORG"),
		InfluxBucket: envOr("INFLUXDB_BUCKET", "thermo"),

		KafkaBrokers: splitList(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:   envOr("KAFKA_TOPIC", "thermo.readings"),
		KafkaGroupID: envOr("KAFKA_GROUP_ID", "thermo"),

		MQTTBroker:   os.Getenv("MQTT_BROKER"),
		MQTTTopic:    envOr("MQTT_TOPIC", "thermo/readings"),
		MQTTClientID: envOr("MQTT_CLIENT_ID", "thermo"),

		RecordBurst: envInt("RECORD_BURST", 20),
		CORSOrigins: splitList(envOr("CORS_ALLOWED_ORIGINS", "*")),
	}

	rate, err := strconv.ParseFloat(envOr("RECORD_RATE_PER_SEC", "10"), 64)
	if err != nil || rate < 0 {
		return Config{}, fmt.Errorf("RECORD_RATE_PER_SEC must be a non-negative number")
	}
	cfg.RecordRatePerSec = rate

	return cfg, cfg.Validate()
}

// Validate checks the fields that depend on each other.
func (c Config) Validate() error {
	switch c.Store {
	case StoreMemory, StoreSQLite:
	case StoreInflux:
		if c.InfluxURL == "" || c.InfluxToken == "" || c.InfluxOrg == "" {
			return fmt.Errorf("influx store requires INFLUXDB_URL, INFLUXDB_TOKEN and INFLUXDB_ORG")
		}
	default:
		return fmt.Errorf("unknown STORE %q (want %s, %s or %s)", c.Store, StoreMemory, StoreSQLite, StoreInflux)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// Location resolves Timezone; "Local" and "" mean the process local zone.
func (c Config) Location() (*time.Location, error) {
	if c.Timezone == "" || c.Timezone == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("THERMO_TIMEZONE: %w", err)
	}
	return loc, nil
}

func envOr(k, fallback string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return fallback
}

func envInt(k string, fallback int) int {
	n, err := strconv.Atoi(os.Getenv(k))
	if err != nil {
		return fallback
	}
	return n
}

func envDurationMs(k string, fallbackMs int) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return time.Duration(fallbackMs) * time.Millisecond
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return time.Duration(fallbackMs) * time.Millisecond
	}
	return time.Duration(n) * time.Millisecond
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
