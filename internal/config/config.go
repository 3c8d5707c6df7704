package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config represents the main application configuration.
type Config struct {
	DBPath      string `json:"db_path"`
	ServerPort  int    `json:"server_port"`
	MaxFileSize int64  `json:"max_file_size"`

	Knowledge KnowledgeConfig `json:"knowledge"`
	Tools     ToolsConfig     `json:"tools"`
	Events    EventsConfig    `json:"events"`
	Audit     AuditConfig     `json:"audit"`
}

// KnowledgeConfig configures the knowledge base and embedding provider.
type KnowledgeConfig struct {
	// SeedDirs are directories of exploit/audit corpora to load on `seed`.
	SeedDirs []string `json:"seed_dirs"`
	// SWCRegistryPath is the path to the SWC registry JSON file.
	SWCRegistryPath string `json:"swc_registry_path"`
	// GeminiAPIKey enables external embeddings; empty falls back to local.
	GeminiAPIKey   string `json:"-"`
	EmbeddingModel string `json:"embedding_model"`
}

// ToolsConfig configures the external security tool runners.
type ToolsConfig struct {
	Enabled         bool          `json:"enabled"`
	DefaultTimeout  time.Duration `json:"default_timeout"`
	AnalysisTimeout time.Duration `json:"analysis_timeout"`
}

// EventsConfig configures the optional Kafka event stream.
type EventsConfig struct {
	Enabled bool     `json:"enabled"`
	Brokers []string `json:"brokers"`
	Topic   string   `json:"topic"`
}

// AuditConfig configures the relational audit trail.
type AuditConfig struct {
	Enabled bool   `json:"enabled"`
	DBPath  string `json:"db_path"`
}

// Load loads configuration from environment variables.
func Load() *Config {
	return &Config{
		DBPath:      getEnv("SOLGUARDIAN_DB_PATH", ""),
		ServerPort:  getEnvInt("SERVER_PORT", 8090),
		MaxFileSize: int64(getEnvInt("MAX_FILE_SIZE_BYTES", 1024*1024)),
		Knowledge: KnowledgeConfig{
			SeedDirs:        getEnvList("KNOWLEDGE_SEED_DIRS"),
			SWCRegistryPath: getEnv("SWC_REGISTRY_PATH", ""),
			GeminiAPIKey:    getEnv("GEMINI_API_KEY", ""),
			EmbeddingModel:  getEnv("EMBEDDING_MODEL", "text-embedding-004"),
		},
		Tools: ToolsConfig{
			Enabled:         getEnvBool("EXTERNAL_TOOLS_ENABLED", true),
			DefaultTimeout:  time.Duration(getEnvInt("TOOL_TIMEOUT_SECONDS", 60)) * time.Second,
			AnalysisTimeout: time.Duration(getEnvInt("TOOL_ANALYSIS_TIMEOUT_SECONDS", 300)) * time.Second,
		},
		Events: EventsConfig{
			Enabled: getEnvBool("ENABLE_KAFKA_EVENTS", false),
			Brokers: getEnvList("KAFKA_BROKERS"),
			Topic:   getEnv("KAFKA_TOPIC", "solguardian-events"),
		},
		Audit: AuditConfig{
			Enabled: getEnvBool("AUDIT_ENABLED", true),
			DBPath:  getEnv("AUDIT_DB_PATH", ""),
		},
	}
}

// Validate checks the configuration for invalid combinations.
func (c *Config) Validate() error {
	if c.ServerPort <= 0 || c.ServerPort > 65535 {
		return fmt.Errorf("invalid server port: %d", c.ServerPort)
	}
	if c.MaxFileSize <= 0 {
		return fmt.Errorf("max file size must be positive")
	}
	if c.Tools.DefaultTimeout <= 0 || c.Tools.AnalysisTimeout <= 0 {
		return fmt.Errorf("tool timeouts must be positive")
	}
	if c.Events.Enabled && len(c.Events.Brokers) == 0 {
		return fmt.Errorf("kafka events enabled but no brokers configured")
	}
	return nil
}

// getEnv retrieves an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves an environment variable as an integer with a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvBool retrieves an environment variable as a boolean with a default value
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

// getEnvList retrieves a comma-separated environment variable as a slice
func getEnvList(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
