package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/oshokin/fire-watch/internal/logger"
	"github.com/oshokin/fire-watch/internal/service/orchestrator"
)

// Config holds the settings shared by fire-server and fire-cli.
type Config struct {
	// HTTPAddress is the listen address of the REST and websocket API.
	HTTPAddress string `yaml:"http_addr"`
	// HealthAddress is the listen address of the gRPC health service. Empty disables it.
	HealthAddress string `yaml:"health_addr"`
	// DatabasePath is the SQLite file. ":memory:" keeps everything in process memory.
	DatabasePath string `yaml:"database_path"`
	// StaticDir is served under /static/ (annotated images).
	StaticDir string `yaml:"static_dir"`
	// PublicBaseURL resolves relative image URLs returned by the vision service.
	PublicBaseURL string `yaml:"public_base_url,omitempty"`

	Log          LogConfig          `yaml:"log"`
	Hub          HubConfig          `yaml:"hub"`
	Orchestrator OrchestratorConfig `yaml:"orchestrator"`
	Vision       VisionConfig       `yaml:"vision"`
	SMTP         SMTPConfig         `yaml:"smtp"`
	Ingest       IngestConfig       `yaml:"ingest"`
	Client       ClientConfig       `yaml:"client"`
}

// LogConfig selects the log level and encoder.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// HubConfig tunes real-time delivery.
type HubConfig struct {
	// DeliveryTimeout bounds one delivery to one subscriber.
	DeliveryTimeout time.Duration `yaml:"delivery_timeout"`
	// SendBuffer is the outbound queue length per websocket.
	SendBuffer int `yaml:"send_buffer"`
}

// OrchestratorConfig tunes the alert pipeline.
type OrchestratorConfig struct {
	// SensorPolicy is pause_when_confirmed or always_process.
	SensorPolicy string `yaml:"sensor_policy"`
	// NotifyTimeout bounds one email attempt.
	NotifyTimeout time.Duration `yaml:"notify_timeout"`
}

// VisionConfig points at the inference service. An empty endpoint disables /predict.
type VisionConfig struct {
	Endpoint            string        `yaml:"endpoint,omitempty"`
	Timeout             time.Duration `yaml:"timeout"`
	ConfidenceThreshold float64       `yaml:"confidence_threshold"`
}

// SMTPConfig configures alert emails. An empty host means log-only alerts.
type SMTPConfig struct {
	Host     string   `yaml:"host,omitempty"`
	Port     int      `yaml:"port,omitempty"`
	Username string   `yaml:"username,omitempty"`
	Password string   `yaml:"password,omitempty"`
	From     string   `yaml:"from,omitempty"`
	To       []string `yaml:"to,omitempty"`
}

// IngestConfig configures broker ingestion.
type IngestConfig struct {
	Kafka KafkaConfig `yaml:"kafka"`
}

// KafkaConfig enables the Kafka/Redpanda consumer when Brokers is set.
type KafkaConfig struct {
	Brokers []string `yaml:"brokers,omitempty"`
	Topic   string   `yaml:"topic,omitempty"`
	Group   string   `yaml:"group,omitempty"`
}

// ClientConfig is used by fire-cli.
type ClientConfig struct {
	ServerURL string        `yaml:"server_url"`
	Timeout   time.Duration `yaml:"timeout"`
}

const (
	// DefaultConfigFilename is the default settings file.
	DefaultConfigFilename = "fire-watch-settings.yaml"
	// DefaultHTTPAddress is the default API listen address.
	DefaultHTTPAddress = ":8000"
	// DefaultHealthAddress is the default gRPC health listen address.
	DefaultHealthAddress = ":8001"
	// DefaultDatabasePath is the default SQLite file.
	DefaultDatabasePath = "fire-watch.db"
	// DefaultStaticDir is the default static files directory.
	DefaultStaticDir = "static"
	// DefaultTimeout is the default duration for client calls.
	DefaultTimeout = 5 * time.Second
	// DefaultDeliveryTimeout bounds one websocket delivery.
	DefaultDeliveryTimeout = 2 * time.Second
	// DefaultSendBuffer is the default websocket queue length.
	DefaultSendBuffer = 16
	// DefaultNotifyTimeout bounds one email attempt.
	DefaultNotifyTimeout = 10 * time.Second
	// DefaultVisionTimeout bounds one inference request.
	DefaultVisionTimeout = 30 * time.Second
	// DefaultConfidenceThreshold drops weaker detections.
	DefaultConfidenceThreshold = 0.25
	// DefaultSMTPPort is the submission port.
	DefaultSMTPPort = 587
	// DefaultKafkaTopic is the topic sensors publish to.
	DefaultKafkaTopic = "fire-watch.sensors"
	// DefaultKafkaGroup is the consumer group of the server.
	DefaultKafkaGroup = "fire-watch"
	// DefaultServerURL is where fire-cli looks for the server.
	DefaultServerURL = "http://127.0.0.1:8000"

	// DefaultFilePermissions is the permission for saved settings; they may hold SMTP credentials.
	DefaultFilePermissions = 0o600
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errSMTPIncomplete is returned when SMTP is enabled without sender or recipients.
	errSMTPIncomplete = errors.New("smtp requires from and at least one recipient")
)

// Default returns the settings used when no file exists.
func Default() *Config {
	cfg := &Config{HealthAddress: DefaultHealthAddress}

	// Validate on a config this sparse only fills defaults.
	_ = Validate(cfg)

	return cfg
}

// Load reads configuration from path. When path is empty the default file is
// used, and a missing default file yields Default().
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}

		return nil, fmt.Errorf("read settings: %w", err)
	}

	var cfg Config
	if err = yaml.Unmarshal(contents, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if err = Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes the settings to path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	if err = os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate fills defaults and checks every section.
func Validate(settings *Config) error {
	if settings == nil {
		return errConfigIsNotSet
	}

	applyDefaults(settings)

	if err := validateAddress("http_addr", settings.HTTPAddress); err != nil {
		return err
	}

	if settings.HealthAddress != "" {
		if err := validateAddress("health_addr", settings.HealthAddress); err != nil {
			return err
		}
	}

	if err := validateURL("public_base_url", settings.PublicBaseURL); err != nil {
		return err
	}

	if _, ok := logger.ParseLogLevel(settings.Log.Level); !ok {
		return fmt.Errorf("invalid log level %q", settings.Log.Level)
	}

	if settings.Log.Format != logger.FormatConsole && settings.Log.Format != logger.FormatJSON {
		return fmt.Errorf("invalid log format %q", settings.Log.Format)
	}

	if _, err := orchestrator.ParseSensorPolicy(settings.Orchestrator.SensorPolicy); err != nil {
		return err
	}

	if err := validateURL("vision.endpoint", settings.Vision.Endpoint); err != nil {
		return err
	}

	if c := settings.Vision.ConfidenceThreshold; c < 0 || c > 1 {
		return fmt.Errorf("vision.confidence_threshold must be within [0, 1], got %v", c)
	}

	if err := validateSMTP(&settings.SMTP); err != nil {
		return err
	}

	return validateURL("client.server_url", settings.Client.ServerURL)
}

//nolint:cyclop // Flat list of defaults.
func applyDefaults(s *Config) {
	if s.HTTPAddress == "" {
		s.HTTPAddress = DefaultHTTPAddress
	}

	if s.DatabasePath == "" {
		s.DatabasePath = DefaultDatabasePath
	}

	if s.StaticDir == "" {
		s.StaticDir = DefaultStaticDir
	}

	if s.Log.Level == "" {
		s.Log.Level = "info"
	}

	if s.Log.Format == "" {
		s.Log.Format = logger.FormatConsole
	}

	if s.Hub.DeliveryTimeout <= 0 {
		s.Hub.DeliveryTimeout = DefaultDeliveryTimeout
	}

	if s.Hub.SendBuffer <= 0 {
		s.Hub.SendBuffer = DefaultSendBuffer
	}

	if s.Orchestrator.SensorPolicy == "" {
		s.Orchestrator.SensorPolicy = string(orchestrator.PolicyPauseWhenConfirmed)
	}

	if s.Orchestrator.NotifyTimeout <= 0 {
		s.Orchestrator.NotifyTimeout = DefaultNotifyTimeout
	}

	if s.Vision.Timeout <= 0 {
		s.Vision.Timeout = DefaultVisionTimeout
	}

	if s.Vision.ConfidenceThreshold == 0 {
		s.Vision.ConfidenceThreshold = DefaultConfidenceThreshold
	}

	if s.SMTP.Host != "" && s.SMTP.Port == 0 {
		s.SMTP.Port = DefaultSMTPPort
	}

	if len(s.Ingest.Kafka.Brokers) > 0 {
		if s.Ingest.Kafka.Topic == "" {
			s.Ingest.Kafka.Topic = DefaultKafkaTopic
		}

		if s.Ingest.Kafka.Group == "" {
			s.Ingest.Kafka.Group = DefaultKafkaGroup
		}
	}

	if s.Client.ServerURL == "" {
		s.Client.ServerURL = DefaultServerURL
	}

	if s.Client.Timeout <= 0 {
		s.Client.Timeout = DefaultTimeout
	}
}

func validateAddress(name, address string) error {
	if _, _, err := net.SplitHostPort(address); err != nil {
		return fmt.Errorf("invalid %s %q: %w", name, address, err)
	}

	return nil
}

func validateURL(name, raw string) error {
	if raw == "" {
		return nil
	}

	parsed, err := url.ParseRequestURI(raw)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", name, err)
	}

	if parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("invalid %s %q: scheme and host are required", name, raw)
	}

	return nil
}

func validateSMTP(s *SMTPConfig) error {
	if s.Host == "" {
		return nil
	}

	if s.Port < 1 || s.Port > 65535 {
		return fmt.Errorf("invalid smtp port %d", s.Port)
	}

	if s.From == "" || len(s.To) == 0 {
		return errSMTPIncomplete
	}

	return nil
}
