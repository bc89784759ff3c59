package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/sparkify/datalake-etl/internal/domain"
)

const (
	// DefaultInputRoot is the bucket holding the raw song and log datasets
	DefaultInputRoot = "s3a://udacity-dend/"
	// DefaultOutputRoot is the data lake bucket receiving the analytical tables
	DefaultOutputRoot = "s3a://sparkify-data-lake-dend/"
	// DefaultConfigFile is the credentials file looked up when no path is given
	DefaultConfigFile = "dl.cfg"

	envPrefix = "DATALAKE"
)

var (
	// ErrConfigNotFound is returned when no configuration file can be located
	ErrConfigNotFound = errors.New("configuration file not found")
	// ErrMissingCredentials is returned when S3 locations are configured without keys
	ErrMissingCredentials = errors.New("missing storage credentials")
	// ErrInvalidConfig is returned when a setting has an unsupported value
	ErrInvalidConfig = errors.New("invalid configuration")
)

// SongplayID strategies
const (
	SongplayIDSequence    = "sequence"
	SongplayIDContentHash = "content_hash"
)

// LogConfig holds logging configuration
type LogConfig struct {
	Debug     bool   `mapstructure:"debug"`
	SentryDSN string `mapstructure:"sentry_dsn"`
}

// AWSConfig holds S3 credentials and connection settings.
// The key names match the [AWS] section of dl.cfg.
type AWSConfig struct {
	AccessKeyID     string `mapstructure:"aws_access_key_id"`
	SecretAccessKey string `mapstructure:"aws_secret_access_key"`
	SessionToken    string `mapstructure:"aws_session_token"`
	Region          string `mapstructure:"region"`
	Endpoint        string `mapstructure:"endpoint"`       // S3-compatible endpoint (MinIO, R2), empty for AWS
	UsePathStyle    bool   `mapstructure:"use_path_style"` // required by most S3-compatible endpoints
}

// GCSConfig holds Google Cloud Storage settings
type GCSConfig struct {
	CredentialsFile string `mapstructure:"credentials_file"`
	Endpoint        string `mapstructure:"endpoint"` // fake-gcs-server or another emulator
}

// PipelineConfig holds the data shaping settings
type PipelineConfig struct {
	InputRoot          string `mapstructure:"input_root"`
	OutputRoot         string `mapstructure:"output_root"`
	SongDataPattern    string `mapstructure:"song_data_pattern"` // relative to input_root
	LogDataPattern     string `mapstructure:"log_data_pattern"`  // relative to input_root
	SongPlayPage       string `mapstructure:"song_play_page"`
	Timezone           string `mapstructure:"timezone"`
	SongplayIDStrategy string `mapstructure:"songplay_id_strategy"`
}

// ReaderConfig holds JSON reader settings
type ReaderConfig struct {
	Concurrency  int `mapstructure:"concurrency"`    // objects fetched and decoded in parallel
	MaxLineBytes int `mapstructure:"max_line_bytes"` // longest accepted JSON line

	// Cloud storage request throttling, 0 disables it
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	RequestBurst      int     `mapstructure:"request_burst"`
}

// OutputConfig holds columnar writer settings
type OutputConfig struct {
	Compression    string `mapstructure:"compression"` // snappy | zstd | gzip | none
	MaxRowsPerFile int    `mapstructure:"max_rows_per_file"`
	Partitioned    bool   `mapstructure:"partitioned"`
}

// DatabaseConfig holds run ledger database configuration
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
}

// NATSConfig holds NATS JetStream configuration for run notifications
type NATSConfig struct {
	URL            string        `mapstructure:"url"`
	SubjectPrefix  string        `mapstructure:"subject_prefix"`
	MaxReconnects  int           `mapstructure:"max_reconnects"`
	ReconnectWait  time.Duration `mapstructure:"reconnect_wait"`
	ConnectionName string        `mapstructure:"connection_name"`
}

// WebhookConfig holds the run notification webhook endpoint
type WebhookConfig struct {
	URL     string        `mapstructure:"url"`
	Secret  string        `mapstructure:"secret"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// MetricsConfig holds Prometheus Pushgateway configuration
type MetricsConfig struct {
	PushgatewayURL string `mapstructure:"pushgateway_url"`
	Job            string `mapstructure:"job"`
}

// ETLConfig holds configuration for the etl program
type ETLConfig struct {
	Log      LogConfig      `mapstructure:"log"`
	AWS      AWSConfig      `mapstructure:"aws"`
	GCS      GCSConfig      `mapstructure:"gcs"`
	Pipeline PipelineConfig `mapstructure:"pipeline"`
	Reader   ReaderConfig   `mapstructure:"reader"`
	Output   OutputConfig   `mapstructure:"output"`
	Database DatabaseConfig `mapstructure:"database"`
	NATS     NATSConfig     `mapstructure:"nats"`
	Webhook  WebhookConfig  `mapstructure:"webhook"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

// LoadETLConfig loads configuration for the etl program.
// A missing configuration file is an error: the credentials it carries are mandatory.
func LoadETLConfig(configFile string, envPath string) (*ETLConfig, error) {
	path, err := resolveConfigFile(configFile)
	if err != nil {
		return nil, err
	}

	v := configureViper("etl", path, envPath)

	// Set defaults
	v.SetDefault("log.debug", false)
	v.SetDefault("aws.region", "us-west-2")
	v.SetDefault("aws.use_path_style", false)
	v.SetDefault("pipeline.input_root", DefaultInputRoot)
	v.SetDefault("pipeline.output_root", DefaultOutputRoot)
	v.SetDefault("pipeline.song_data_pattern", domain.DatasetSongData+"/*/*/*")
	v.SetDefault("pipeline.log_data_pattern", domain.DatasetLogData+"/*/*")
	v.SetDefault("pipeline.song_play_page", domain.SongPlayPage)
	v.SetDefault("pipeline.timezone", "UTC")
	v.SetDefault("pipeline.songplay_id_strategy", SongplayIDSequence)
	v.SetDefault("reader.concurrency", 16)
	v.SetDefault("reader.max_line_bytes", 16*1024*1024)
	v.SetDefault("reader.requests_per_second", 0)
	v.SetDefault("reader.request_burst", 16)
	v.SetDefault("output.compression", "snappy")
	v.SetDefault("output.max_rows_per_file", 1_000_000)
	v.SetDefault("output.partitioned", false)
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("nats.subject_prefix", "datalake.runs")
	v.SetDefault("nats.max_reconnects", 10)
	v.SetDefault("nats.reconnect_wait", "2s")
	v.SetDefault("nats.connection_name", "datalake-etl")
	v.SetDefault("webhook.timeout", "10s")
	v.SetDefault("metrics.job", "datalake_etl")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var config ETLConfig
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate checks the settings that cannot be defaulted
func (c *ETLConfig) Validate() error {
	if IsS3Location(c.Pipeline.InputRoot) || IsS3Location(c.Pipeline.OutputRoot) {
		if c.AWS.AccessKeyID == "" || c.AWS.SecretAccessKey == "" {
			return fmt.Errorf("%w: AWS_ACCESS_KEY_ID and AWS_SECRET_ACCESS_KEY are required in the [AWS] section", ErrMissingCredentials)
		}
	}

	switch c.Pipeline.SongplayIDStrategy {
	case SongplayIDSequence, SongplayIDContentHash:
	default:
		return fmt.Errorf("%w: unknown songplay_id_strategy %q", ErrInvalidConfig, c.Pipeline.SongplayIDStrategy)
	}

	switch strings.ToLower(c.Output.Compression) {
	case "snappy", "zstd", "gzip", "none", "":
	default:
		return fmt.Errorf("%w: unknown compression %q", ErrInvalidConfig, c.Output.Compression)
	}

	if c.Reader.Concurrency <= 0 {
		return fmt.Errorf("%w: reader.concurrency must be positive", ErrInvalidConfig)
	}
	if c.Reader.RequestsPerSecond < 0 {
		return fmt.Errorf("%w: reader.requests_per_second must not be negative", ErrInvalidConfig)
	}
	if c.Output.MaxRowsPerFile <= 0 {
		return fmt.Errorf("%w: output.max_rows_per_file must be positive", ErrInvalidConfig)
	}
	if _, err := time.LoadLocation(c.Pipeline.Timezone); err != nil {
		return fmt.Errorf("%w: timezone %q: %v", ErrInvalidConfig, c.Pipeline.Timezone, err)
	}

	return nil
}

// Location returns the calendar location used to decompose timestamps
func (c *PipelineConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// IsS3Location reports whether a URI points at S3 or an S3-compatible store
func IsS3Location(uri string) bool {
	lower := strings.ToLower(strings.TrimSpace(uri))
	return strings.HasPrefix(lower, "s3://") || strings.HasPrefix(lower, "s3a://") || strings.HasPrefix(lower, "s3n://")
}

// Enabled reports whether a run ledger database is configured
func (c *DatabaseConfig) Enabled() bool {
	return c.Host != ""
}

// DSN returns the database connection string
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

// resolveConfigFile returns the configuration file to read.
// Without an explicit path, dl.cfg is searched in the current and config/ directories.
func resolveConfigFile(configFile string) (string, error) {
	if configFile != "" {
		if _, err := os.Stat(configFile); err != nil {
			return "", fmt.Errorf("%w: %s", ErrConfigNotFound, configFile)
		}
		return configFile, nil
	}

	for _, dir := range []string{".", "config"} {
		candidate := filepath.Join(dir, DefaultConfigFile)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}

	return "", fmt.Errorf("%w: %s", ErrConfigNotFound, DefaultConfigFile)
}

func configureViper(service string, configFile string, envPath string) *viper.Viper {
	v := viper.NewWithOptions(viper.WithCodecRegistry(newCodecRegistry()))

	// Load environment variables
	loadEnv(envPath, service)

	v.SetConfigFile(configFile)
	// dl.cfg is an INI file; other extensions are inferred by viper
	switch strings.ToLower(filepath.Ext(configFile)) {
	case ".cfg", ".ini", ".conf", "":
		v.SetConfigType("ini")
	}

	// Set environment variables
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Explicitly bind all environment variables
	bindAllEnvVars(v)
	return v
}

// bindAllEnvVars explicitly binds all possible environment variables
// This is required for viper to map env vars to config struct fields that are absent from the file
func bindAllEnvVars(v *viper.Viper) {
	keys := []string{
		// Log
		"log.debug",
		"log.sentry_dsn",
		// AWS
		"aws.aws_access_key_id",
		"aws.aws_secret_access_key",
		"aws.aws_session_token",
		"aws.region",
		"aws.endpoint",
		"aws.use_path_style",
		// GCS
		"gcs.credentials_file",
		"gcs.endpoint",
		// Pipeline
		"pipeline.input_root",
		"pipeline.output_root",
		"pipeline.song_data_pattern",
		"pipeline.log_data_pattern",
		"pipeline.song_play_page",
		"pipeline.timezone",
		"pipeline.songplay_id_strategy",
		// Reader
		"reader.concurrency",
		"reader.max_line_bytes",
		"reader.requests_per_second",
		"reader.request_burst",
		// Output
		"output.compression",
		"output.max_rows_per_file",
		"output.partitioned",
		// Database
		"database.host",
		"database.port",
		"database.user",
		"database.password",
		"database.dbname",
		"database.sslmode",
		"database.max_open_conns",
		"database.max_idle_conns",
		"database.conn_max_lifetime",
		"database.conn_max_idle_time",
		// NATS
		"nats.url",
		"nats.subject_prefix",
		"nats.max_reconnects",
		"nats.reconnect_wait",
		"nats.connection_name",
		// Webhook
		"webhook.url",
		"webhook.secret",
		"webhook.timeout",
		// Metrics
		"metrics.pushgateway_url",
		"metrics.job",
	}

	for _, key := range keys {
		_ = v.BindEnv(key)
	}
}

func loadEnv(envPath string, service string) {
	// Always try shared base first, then local, then optional per-service local.
	envFiles := []string{".env", ".env.local"}
	if service != "" {
		envFiles = append(envFiles, ".env."+service+".local")
	}

	// Default to config directory
	if envPath == "" {
		envPath = "config/"
	}

	for _, envFile := range envFiles {
		candidate := filepath.Join(envPath, envFile)
		_ = godotenv.Overload(candidate) // Overload lets later files override earlier ones
	}
}

// ChdirRepoRoot changes the current working directory to the nearest ancestor holding a config directory
func ChdirRepoRoot() {
	cwd, _ := os.Getwd()
	for range 5 {
		if _, err := os.Stat(filepath.Join(cwd, "config")); err == nil {
			_ = os.Chdir(cwd)
			return
		}
		cwd = filepath.Dir(cwd)
	}
}
