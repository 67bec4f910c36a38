package config

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 8080, cfg.Web.Port)
	assert.Equal(t, "http://localhost:9090/api/experiments", cfg.Web.APIURL)
	assert.Equal(t, "[Template Experiment]", cfg.Web.TemplateName)
	assert.Equal(t, "Data", cfg.Store.DataDir)
	assert.Equal(t, "fileData.json", cfg.Store.DefinitionsFile)
	assert.Equal(t, "userResponses.json", cfg.Store.ResponsesFile)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout.Duration())
	assert.False(t, cfg.NATS.Enabled)
	assert.False(t, cfg.Telemetry.Enabled)
	require.NoError(t, cfg.Validate())
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"server port zero", func(c *Config) { c.Server.Port = 0 }, "invalid server port"},
		{"web port too high", func(c *Config) { c.Web.Port = 70000 }, "invalid web port"},
		{"shutdown timeout zero", func(c *Config) { c.Server.ShutdownTimeout = 0 }, "shutdown timeout"},
		{"request timeout zero", func(c *Config) { c.Web.RequestTimeout = 0 }, "request timeout"},
		{"api url relative", func(c *Config) { c.Web.APIURL = "/api/experiments" }, "api_url"},
		{"negative submit rate", func(c *Config) { c.Server.SubmitRate = -1 }, "cannot be negative"},
		{"rate without burst", func(c *Config) { c.Server.SubmitBurst = 0 }, "burst must be positive"},
		{"empty data dir", func(c *Config) { c.Store.DataDir = "" }, "data_dir"},
		{"empty definitions file", func(c *Config) { c.Store.DefinitionsFile = "" }, "definitions_file"},
		{"responses file escapes", func(c *Config) { c.Store.ResponsesFile = "../x.json" }, "plain file name"},
		{"nats prefix wildcard", func(c *Config) {
			c.NATS.Enabled = true
			c.NATS.SubjectPrefix = "exp.>"
		}, "subject_prefix"},
		{"logging format", func(c *Config) { c.Logging.Format = "xml" }, "logging format"},
		{"telemetry protocol", func(c *Config) {
			c.Telemetry.Enabled = true
			c.Telemetry.Protocol = "udp"
		}, "telemetry protocol"},
		{"telemetry sample rate", func(c *Config) {
			c.Telemetry.Enabled = true
			c.Telemetry.SampleRate = 2
		}, "sample_rate"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestAddr(t *testing.T) {
	assert.Equal(t, ":9090", Addr("", 9090))
	assert.Equal(t, "127.0.0.1:8080", Addr("127.0.0.1", 8080))
}

func TestSecret_Redaction(t *testing.T) {
	s := Secret("s3cr3t")

	assert.Equal(t, "[REDACTED]", s.String())
	assert.Equal(t, "[REDACTED]", fmt.Sprintf("%v", s))
	assert.Equal(t, "Secret([REDACTED])", fmt.Sprintf("%#v", s))
	assert.Equal(t, "s3cr3t", s.Value())
	assert.True(t, s.IsSet())
	assert.False(t, Secret("").IsSet())

	out, err := json.Marshal(struct{ Token Secret }{s})
	require.NoError(t, err)
	assert.JSONEq(t, `{"Token":"[REDACTED]"}`, string(out))

	var back struct{ Token Secret }
	assert.Error(t, json.Unmarshal(out, &back))
}

func TestDuration_UnmarshalText(t *testing.T) {
	var d Duration
	require.NoError(t, d.UnmarshalText([]byte("1m30s")))
	assert.Equal(t, 90*time.Second, d.Duration())

	assert.Error(t, d.UnmarshalText([]byte("-5s")))
	assert.Error(t, d.UnmarshalText([]byte("soon")))

	text, err := d.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "1m30s", string(text))
}
