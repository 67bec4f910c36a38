// Package config provides configuration loading for experimentd.
//
// Values come from hardcoded defaults, then an optional YAML or TOML file,
// then EXPERIMENTD_* environment variables.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"time"
)

// Config holds the complete experimentd configuration.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Web       WebConfig       `koanf:"web"`
	Store     StoreConfig     `koanf:"store"`
	NATS      NATSConfig      `koanf:"nats"`
	Logging   LoggingConfig   `koanf:"logging"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
}

// ServerConfig holds the REST API server configuration.
type ServerConfig struct {
	Host            string   `koanf:"host"`
	Port            int      `koanf:"port"`
	ShutdownTimeout Duration `koanf:"shutdown_timeout"`

	// SubmitRate limits POST /submit in requests per second. Zero disables.
	SubmitRate  float64 `koanf:"submit_rate"`
	SubmitBurst int     `koanf:"submit_burst"`
}

// WebConfig holds the authoring and respondent web server configuration.
type WebConfig struct {
	Host            string   `koanf:"host"`
	Port            int      `koanf:"port"`
	ShutdownTimeout Duration `koanf:"shutdown_timeout"`

	// APIURL is the base of the REST API, e.g. http://localhost:9090/api/experiments.
	APIURL         string   `koanf:"api_url"`
	RequestTimeout Duration `koanf:"request_timeout"`
	UpstreamRate   float64  `koanf:"upstream_rate"`
	UpstreamBurst  int      `koanf:"upstream_burst"`

	// TemplateName names the stored definition used to seed new drafts.
	TemplateName string `koanf:"template_name"`
}

// StoreConfig holds collection file locations.
type StoreConfig struct {
	DataDir         string `koanf:"data_dir"`
	DefinitionsFile string `koanf:"definitions_file"`
	ResponsesFile   string `koanf:"responses_file"`
	Watch           bool   `koanf:"watch"`
}

// NATSConfig holds change event publishing configuration.
type NATSConfig struct {
	Enabled        bool     `koanf:"enabled"`
	URL            string   `koanf:"url"`
	SubjectPrefix  string   `koanf:"subject_prefix"`
	Token          Secret   `koanf:"token"`
	ConnectTimeout Duration `koanf:"connect_timeout"`
}

// LoggingConfig holds the subset of logging settings exposed to operators.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// TelemetryConfig holds OpenTelemetry configuration.
type TelemetryConfig struct {
	Enabled        bool     `koanf:"enabled"`
	ServiceName    string   `koanf:"service_name"`
	Endpoint       string   `koanf:"endpoint"`
	Protocol       string   `koanf:"protocol"`
	Insecure       bool     `koanf:"insecure"`
	TLSSkipVerify  bool     `koanf:"tls_skip_verify"`
	SampleRate     float64  `koanf:"sample_rate"`
	ExportInterval Duration `koanf:"export_interval"`
}

// Default returns configuration populated with defaults.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "",
			Port:            9090,
			ShutdownTimeout: Duration(10 * time.Second),
			SubmitRate:      50,
			SubmitBurst:     100,
		},
		Web: WebConfig{
			Host:            "",
			Port:            8080,
			ShutdownTimeout: Duration(10 * time.Second),
			APIURL:          "http://localhost:9090/api/experiments",
			RequestTimeout:  Duration(10 * time.Second),
			UpstreamRate:    20,
			UpstreamBurst:   10,
			TemplateName:    "[Template Experiment]",
		},
		Store: StoreConfig{
			DataDir:         "Data",
			DefinitionsFile: "fileData.json",
			ResponsesFile:   "userResponses.json",
		},
		NATS: NATSConfig{
			URL:            "nats://127.0.0.1:4222",
			SubjectPrefix:  "experimentd",
			ConnectTimeout: Duration(2 * time.Second),
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Telemetry: TelemetryConfig{
			ServiceName:    "experimentd",
			Endpoint:       "localhost:4317",
			Protocol:       "grpc",
			Insecure:       true,
			SampleRate:     1.0,
			ExportInterval: Duration(15 * time.Second),
		},
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := validatePort("server", c.Server.Port); err != nil {
		return err
	}
	if c.Server.ShutdownTimeout <= 0 {
		return errors.New("server shutdown timeout must be positive")
	}
	if c.Server.SubmitRate < 0 || c.Server.SubmitBurst < 0 {
		return errors.New("server submit rate and burst cannot be negative")
	}
	if c.Server.SubmitRate > 0 && c.Server.SubmitBurst == 0 {
		return errors.New("server submit burst must be positive when submit rate is set")
	}

	if err := validatePort("web", c.Web.Port); err != nil {
		return err
	}
	if c.Web.ShutdownTimeout <= 0 {
		return errors.New("web shutdown timeout must be positive")
	}
	if c.Web.RequestTimeout <= 0 {
		return errors.New("web request timeout must be positive")
	}
	if u, err := url.Parse(c.Web.APIURL); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid web api_url: %q", c.Web.APIURL)
	}
	if c.Web.UpstreamRate < 0 || c.Web.UpstreamBurst < 0 {
		return errors.New("web upstream rate and burst cannot be negative")
	}

	if c.Store.DataDir == "" {
		return errors.New("store data_dir is required")
	}
	for name, file := range map[string]string{
		"definitions_file": c.Store.DefinitionsFile,
		"responses_file":   c.Store.ResponsesFile,
	} {
		if file == "" {
			return fmt.Errorf("store %s is required", name)
		}
		if file != filepath.Base(file) || file == "." || file == ".." {
			return fmt.Errorf("store %s must be a plain file name inside data_dir: %q", name, file)
		}
	}

	if c.NATS.Enabled {
		if c.NATS.URL == "" {
			return errors.New("nats url required when nats is enabled")
		}
		if c.NATS.SubjectPrefix == "" || strings.ContainsAny(c.NATS.SubjectPrefix, " *>") {
			return fmt.Errorf("invalid nats subject_prefix: %q", c.NATS.SubjectPrefix)
		}
	}

	switch strings.ToLower(c.Logging.Format) {
	case "json", "console":
	default:
		return fmt.Errorf("logging format must be 'json' or 'console', got %q", c.Logging.Format)
	}

	if c.Telemetry.Enabled {
		if c.Telemetry.ServiceName == "" {
			return errors.New("service name required when telemetry is enabled")
		}
		if c.Telemetry.Protocol != "grpc" && c.Telemetry.Protocol != "http/protobuf" {
			return fmt.Errorf("telemetry protocol must be 'grpc' or 'http/protobuf', got %q", c.Telemetry.Protocol)
		}
		if c.Telemetry.SampleRate < 0 || c.Telemetry.SampleRate > 1 {
			return fmt.Errorf("telemetry sample_rate must be within [0,1], got %v", c.Telemetry.SampleRate)
		}
	}

	return nil
}

func validatePort(section string, port int) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("invalid %s port: %d (must be 1-65535)", section, port)
	}
	return nil
}

// Addr joins host and port for a listener.
func Addr(host string, port int) string {
	return fmt.Sprintf("%s:%d", host, port)
}
