package config

import (
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/charangentem-coder/rental-price-predictor/forest"
)

// Dataset sources accepted by DATASET_SOURCE.
const (
	SourceCSV      = "csv"
	SourcePostgres = "postgres"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	DatasetPath      string
	DatasetSource    string
	ArtifactLocation string
	MetricsPath      string
	MetricsJSONPath  string
	HoldoutCSVPath   string

	TestFraction    float64
	Seed            int64
	NTrees          int
	MaxDepth        int
	MinSamplesSplit int
	MinSamplesLeaf  int
	MaxFeatures     int

	MaxConcurrency int
	MaxRetries     int
	RecordRuns     bool

	HTTPAddr string
	LogMode  string
}

// Load reads the .env file and returns a populated Config struct.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("[config] No .env file found, falling back to system env vars")
	}
	return FromEnv()
}

// FromEnv builds a Config from the current process environment only.
func FromEnv() *Config {
	defaults := forest.DefaultParams()

	return &Config{
		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "rental"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "rental123"),
		PostgresDB:       getEnv("POSTGRES_DB", "rental_db"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),

		DatasetPath:      getEnv("DATASET_PATH", "./data/rental_data.csv"),
		DatasetSource:    strings.ToLower(getEnv("DATASET_SOURCE", SourceCSV)),
		ArtifactLocation: getEnv("ARTIFACT_LOCATION", "./artifacts/rent_model.bin"),
		MetricsPath:      getEnv("METRICS_PATH", "./output/metrics.txt"),
		MetricsJSONPath:  getEnv("METRICS_JSON_PATH", "./output/metrics.json"),
		HoldoutCSVPath:   getEnv("HOLDOUT_CSV_PATH", "./output/holdout_predictions.csv"),

		TestFraction:    getEnvFloat("TEST_FRACTION", 0.2),
		Seed:            int64(getEnvInt("SEED", int(defaults.Seed))),
		NTrees:          getEnvInt("N_TREES", defaults.NTrees),
		MaxDepth:        getEnvInt("MAX_DEPTH", defaults.MaxDepth),
		MinSamplesSplit: getEnvInt("MIN_SAMPLES_SPLIT", defaults.MinSamplesSplit),
		MinSamplesLeaf:  getEnvInt("MIN_SAMPLES_LEAF", defaults.MinSamplesLeaf),
		MaxFeatures:     getEnvInt("MAX_FEATURES", defaults.MaxFeatures),

		MaxConcurrency: getEnvInt("MAX_CONCURRENCY", 4),
		MaxRetries:     getEnvInt("MAX_RETRIES", 3),
		RecordRuns:     getEnvBool("RECORD_RUNS", false),

		HTTPAddr: getEnv("HTTP_ADDR", ":8080"),
		LogMode:  getEnv("LOG_MODE", "development"),
	}
}

// DSN returns the PostgreSQL connection string.
func (c *Config) DSN() string {
	return "host=" + c.PostgresHost +
		" port=" + c.PostgresPort +
		" user=" + c.PostgresUser +
		" password=" + c.PostgresPassword +
		" dbname=" + c.PostgresDB +
		" sslmode=" + c.PostgresSSLMode
}

// ForestParams returns the ensemble hyper-parameters.
func (c *Config) ForestParams() forest.Params {
	return forest.Params{
		NTrees:          c.NTrees,
		MaxDepth:        c.MaxDepth,
		MinSamplesSplit: c.MinSamplesSplit,
		MinSamplesLeaf:  c.MinSamplesLeaf,
		MaxFeatures:     c.MaxFeatures,
		Seed:            c.Seed,
	}
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		n, err := strconv.Atoi(val)
		if err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if val := os.Getenv(key); val != "" {
		f, err := strconv.ParseFloat(val, 64)
		if err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		b, err := strconv.ParseBool(val)
		if err == nil {
			return b
		}
	}
	return fallback
}
