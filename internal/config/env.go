package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port           string
	AllowedOrigins []string
	RequestTimeout time.Duration
	LogLevel       string
	LogFormat      string

	// intake and extraction
	MaxUploadBytes   int64
	ChunkSizeBytes   int
	SpoolDir         string
	SpoolMemoryBytes int64
	ExtractionPolicy string
	ExtractionWorker int
	ReclaimEvery     int
	ResponseMode     string
	StrictPDFCheck   bool

	// persistence
	PersistenceMode  string
	PersistWorkers   int
	PersistQueueSize int
	PersistRetries   int
	PersistBackoff   time.Duration
	PersistTimeout   time.Duration
	MetadataWait     time.Duration
	StoragePrefix    string

	BlobBackend  string
	AwsAccessKey string
	AwsSecretKey string
	AwsRegion    string
	BucketName   string
	GCSBucket    string

	MetadataBackend     string
	DatabaseURL         string
	SslCertPath         string
	FirestoreProjectID  string
	FirestoreCollection string
}

// LoadConfig loads the environment variables (and an optional .env file) and returns config
func LoadConfig() (*Config, error) {

	_ = godotenv.Load()

	cfg := &Config{
		Port:           getEnv("PORT", "8080"),
		AllowedOrigins: getEnvList("ALLOWED_ORIGINS", []string{"http://localhost:3000", "http://127.0.0.1:3000"}),
		RequestTimeout: getEnvDuration("REQUEST_TIMEOUT", 5*time.Minute),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		LogFormat:      getEnv("LOG_FORMAT", "json"),

		MaxUploadBytes:   getEnvInt64("MAX_UPLOAD_BYTES", 10<<20),
		ChunkSizeBytes:   getEnvInt("CHUNK_SIZE_BYTES", 64<<10),
		SpoolDir:         getEnv("SPOOL_DIR", os.TempDir()),
		SpoolMemoryBytes: getEnvInt64("SPOOL_MEMORY_BYTES", 1<<20),
		ExtractionPolicy: strings.ToLower(getEnv("EXTRACTION_POLICY", "sequential")),
		ExtractionWorker: getEnvInt("EXTRACTION_WORKERS", 0),
		ReclaimEvery:     getEnvInt("RECLAIM_EVERY_PAGES", 10),
		ResponseMode:     strings.ToLower(getEnv("RESPONSE_MODE", "stream")),
		StrictPDFCheck:   getEnvBool("STRICT_PDF_VALIDATION", false),

		PersistenceMode:  strings.ToLower(getEnv("PERSISTENCE_MODE", "background")),
		PersistWorkers:   getEnvInt("PERSIST_WORKERS", 4),
		PersistQueueSize: getEnvInt("PERSIST_QUEUE_SIZE", 64),
		PersistRetries:   getEnvInt("PERSIST_RETRIES", 3),
		PersistBackoff:   getEnvDuration("PERSIST_BACKOFF", 500*time.Millisecond),
		PersistTimeout:   getEnvDuration("PERSIST_TIMEOUT", 2*time.Minute),
		MetadataWait:     getEnvDuration("METADATA_WAIT", 10*time.Minute),
		StoragePrefix:    getEnv("STORAGE_PREFIX", "uploads"),

		BlobBackend:  strings.ToLower(getEnv("BLOB_BACKEND", "memory")),
		AwsAccessKey: getEnv("AWS_ACCESS_KEY", ""),
		AwsSecretKey: getEnv("AWS_SECRET_KEY", ""),
		AwsRegion:    getEnv("AWS_REGION", "us-east-2"),
		BucketName:   getEnv("BUCKET_NAME", "quickread-docs"),
		GCSBucket:    getEnv("GCS_BUCKET", ""),

		MetadataBackend:     strings.ToLower(getEnv("METADATA_BACKEND", "none")),
		DatabaseURL:         getEnv("DATABASE_URL", ""),
		SslCertPath:         getEnv("SSL_CERT_PATH", ""),
		FirestoreProjectID:  getEnv("FIRESTORE_PROJECT_ID", ""),
		FirestoreCollection: getEnv("FIRESTORE_COLLECTION", "documents"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects combinations the service cannot start with.
func (c *Config) Validate() error {
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("MAX_UPLOAD_BYTES must be positive, got %d", c.MaxUploadBytes)
	}
	if c.ChunkSizeBytes <= 0 {
		return fmt.Errorf("CHUNK_SIZE_BYTES must be positive, got %d", c.ChunkSizeBytes)
	}
	switch c.ExtractionPolicy {
	case "sequential", "parallel":
	default:
		return fmt.Errorf("EXTRACTION_POLICY must be sequential or parallel, got %q", c.ExtractionPolicy)
	}
	switch c.ResponseMode {
	case "stream", "aggregate":
	default:
		return fmt.Errorf("RESPONSE_MODE must be stream or aggregate, got %q", c.ResponseMode)
	}
	switch c.PersistenceMode {
	case "background", "inline":
	default:
		return fmt.Errorf("PERSISTENCE_MODE must be background or inline, got %q", c.PersistenceMode)
	}

	switch c.BlobBackend {
	case "memory":
	case "s3":
		if c.AwsAccessKey == "" || c.AwsSecretKey == "" {
			return fmt.Errorf("AWS credentials not set")
		}
		if c.BucketName == "" {
			return fmt.Errorf("BUCKET_NAME not set")
		}
	case "gcs":
		if c.GCSBucket == "" {
			return fmt.Errorf("GCS_BUCKET not set")
		}
	default:
		return fmt.Errorf("BLOB_BACKEND must be memory, s3 or gcs, got %q", c.BlobBackend)
	}

	switch c.MetadataBackend {
	case "none":
	case "postgres":
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL not set")
		}
	case "firestore":
		if c.FirestoreProjectID == "" {
			return fmt.Errorf("FIRESTORE_PROJECT_ID not set")
		}
	default:
		return fmt.Errorf("METADATA_BACKEND must be none, postgres or firestore, got %q", c.MetadataBackend)
	}
	return nil
}

// Helper to read environment variables with a default fallback
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, def int) int {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("WARN: %s=%q not an int, using default %d", key, v, def)
		return def
	}
	return n
}

func getEnvInt64(key string, def int64) int64 {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		log.Printf("WARN: %s=%q not an int, using default %d", key, v, def)
		return def
	}
	return n
}

func getEnvBool(key string, def bool) bool {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Printf("WARN: %s=%q not a bool, using default %t", key, v, def)
		return def
	}
	return b
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Printf("WARN: %s=%q not a duration, using default %s", key, v, def)
		return def
	}
	return d
}

func getEnvList(key string, def []string) []string {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
