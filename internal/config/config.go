package config

import (
	"log"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Storage  StorageConfig
	Worker   WorkerConfig
}

type ServerConfig struct {
	Port string
	Env  string
}

type DatabaseConfig struct {
	// Path is the SQLite file holding the applications table.
	Path string
}

type StorageConfig struct {
	// DataDir is the base directory the model store roots and caches are
	// resolved from.
	DataDir     string
	MaxFileSize int64
}

type WorkerConfig struct {
	QueueSize int
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found. Using default values.")
	}

	return &Config{
		Server: ServerConfig{
			Port: getEnv("PORT", "3000"),
			Env:  getEnv("ENV", "development"),
		},
		Database: DatabaseConfig{
			Path: getEnv("DB_PATH", "./data/applications.db"),
		},
		Storage: StorageConfig{
			DataDir:     getEnv("DATA_DIR", "./data"),
			MaxFileSize: getEnvAsInt64("MAX_FILE_SIZE", 10485760),
		},
		Worker: WorkerConfig{
			QueueSize: getEnvAsInt("TRAIN_QUEUE_SIZE", 10),
		},
	}
}

// ModelsDir is the root of classical model packages.
func (c *Config) ModelsDir() string {
	return filepath.Join(c.Storage.DataDir, "saved_models")
}

// DeepModelsDir is the root of neural model packages.
func (c *Config) DeepModelsDir() string {
	return filepath.Join(c.Storage.DataDir, "saved_deep_models")
}

// CacheDir holds transient artefacts such as export staging files.
func (c *Config) CacheDir() string {
	return filepath.Join(c.Storage.DataDir, "cache")
}

// BertCacheDir holds pretrained encoder weights and tokenisers.
func (c *Config) BertCacheDir() string {
	return filepath.Join(c.Storage.DataDir, "bert_cache")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseInt(valueStr, 10, 64); err == nil {
		return value
	}
	return defaultValue
}
