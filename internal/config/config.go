package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	env "github.com/Netflix/go-env"
	"github.com/go-playground/validator/v10"
)

// Config holds all configuration for our application
type Config struct {
	Port        string `env:"PORT,default=8080" validate:"required,numeric"`
	Origin      string `env:"ORIGIN,default=http://localhost:3000"`
	Environment string `env:"ENVIRONMENT,default=development"`
	LogLevel    string `env:"LOG_LEVEL,default=info" validate:"oneof=debug info warn error"`
	LogFormat   string `env:"LOG_FORMAT,default=text" validate:"oneof=text json logfmt"`

	Database DatabaseConfig
	Storage  StorageConfig
	Upload   UploadConfig
}

// DatabaseConfig holds database connection details
type DatabaseConfig struct {
	Driver      string `env:"DB_DRIVER,default=sqlite" validate:"oneof=sqlite mysql postgres"`
	Host        string `env:"DB_HOST,default=localhost"`
	Port        string `env:"DB_PORT,default=3306"`
	Username    string `env:"DB_USERNAME,default=root"`
	Password    string `env:"DB_PASSWORD"`
	Name        string `env:"DB_NAME,default=medfiles"`
	URL         string `env:"DATABASE_URL"`
	SSLMode     string `env:"DB_SSL_MODE,default=disable"`
	SSLCert     string `env:"DB_SSL_CERT"`
	SSLKey      string `env:"DB_SSL_KEY"`
	SSLRootCert string `env:"DB_SSL_ROOT_CERT"`
	SQLitePath  string `env:"DB_SQLITE_PATH,default=medfiles.db"`

	DSN string
}

// StorageConfig selects and configures the blob store that holds file bytes.
type StorageConfig struct {
	Backend        string        `env:"STORAGE_BACKEND,default=local" validate:"oneof=local s3 gcs"`
	LocalRoot      string        `env:"LOCAL_STORAGE_ROOT,default=./data/files"`
	S3Bucket       string        `env:"S3_BUCKET" validate:"required_if=Backend s3"`
	S3Region       string        `env:"S3_REGION,default=us-east-1"`
	S3Endpoint     string        `env:"S3_ENDPOINT"`
	S3AccessKey    string        `env:"S3_ACCESS_KEY"`
	S3SecretKey    string        `env:"S3_SECRET_KEY"`
	GCSBucket      string        `env:"GCS_BUCKET" validate:"required_if=Backend gcs"`
	GCSCredentials string        `env:"GCS_CREDENTIALS_FILE"`
	SigningSecret  string        `env:"SIGNING_SECRET,default=default_signing_secret" validate:"required"`
	SignedURLTTL   time.Duration `env:"SIGNED_URL_TTL,default=15m" validate:"gt=0"`
	PublicBaseURL  string        `env:"PUBLIC_BASE_URL,default=http://localhost:8080"`
}

// UploadConfig holds the limits consumed by the validator and the upload orchestrator.
type UploadConfig struct {
	AllowedExtensions []string      `env:"ALLOWED_EXTENSIONS,default=pdf|jpg|jpeg|png|gif|doc|docx|txt" validate:"min=1,dive,required"`
	MaxSizeBytes      int64         `env:"MAX_FILE_SIZE_BYTES,default=10485760" validate:"gt=0"`
	MaxFilesPerBatch  int           `env:"MAX_FILES_PER_BATCH,default=5" validate:"gt=0"`
	Parallelism       int           `env:"UPLOAD_PARALLELISM,default=0" validate:"gte=0"`
	FileTimeout       time.Duration `env:"FILE_TIMEOUT,default=60s" validate:"gt=0"`
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if _, err := env.UnmarshalFromEnviron(cfg); err != nil {
		return nil, fmt.Errorf("invalid environment: %w", err)
	}

	for i, ext := range cfg.Upload.AllowedExtensions {
		cfg.Upload.AllowedExtensions[i] = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(ext)), ".")
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	dsn, err := cfg.Database.buildDSN()
	if err != nil {
		return nil, err
	}
	cfg.Database.DSN = dsn

	return cfg, nil
}

func (d DatabaseConfig) buildDSN() (string, error) {
	switch d.Driver {
	case "mysql":
		// Build DSN (Data Source Name) for MySQL connection
		return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
			d.Username, d.Password, d.Host, d.Port, d.Name), nil
	case "postgres":
		if d.URL == "" {
			return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
				url.QueryEscape(d.Username), url.QueryEscape(d.Password), d.Host, d.Port, d.Name, d.SSLMode), nil
		}
		return d.configureSSLMode(d.URL), nil
	default:
		return d.SQLitePath, nil
	}
}

// configureSSLMode adds or modifies SSL configuration in a postgres URL.
// Unparseable URLs are returned as-is.
func (d DatabaseConfig) configureSSLMode(databaseURL string) string {
	u, err := url.Parse(databaseURL)
	if err != nil {
		return databaseURL
	}

	query := u.Query()
	query.Set("sslmode", d.SSLMode)
	if d.SSLMode != "disable" {
		if d.SSLCert != "" {
			query.Set("sslcert", d.SSLCert)
		}
		if d.SSLKey != "" {
			query.Set("sslkey", d.SSLKey)
		}
		if d.SSLRootCert != "" {
			query.Set("sslrootcert", d.SSLRootCert)
		}
	}

	u.RawQuery = query.Encode()
	return u.String()
}

// MaskedDSN returns the DSN with any password replaced, for logging.
func (d DatabaseConfig) MaskedDSN() string {
	switch d.Driver {
	case "postgres":
		u, err := url.Parse(d.DSN)
		if err != nil {
			return d.DSN
		}
		if u.User != nil && u.User.Username() != "" {
			if _, hasPassword := u.User.Password(); hasPassword {
				u.User = url.UserPassword(u.User.Username(), "***")
			}
		}
		return u.String()
	case "mysql":
		if d.Password == "" {
			return d.DSN
		}
		return strings.Replace(d.DSN, ":"+d.Password+"@", ":***@", 1)
	default:
		return d.DSN
	}
}
