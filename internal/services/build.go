package services

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/experimentd/internal/client"
	"github.com/fyrsmithlabs/experimentd/internal/config"
	"github.com/fyrsmithlabs/experimentd/internal/events"
	apihttp "github.com/fyrsmithlabs/experimentd/internal/http"
	"github.com/fyrsmithlabs/experimentd/internal/logging"
	"github.com/fyrsmithlabs/experimentd/internal/site"
	"github.com/fyrsmithlabs/experimentd/internal/store"
	"github.com/fyrsmithlabs/experimentd/internal/telemetry"
)

// NewLogger builds the process logger from the operator-facing logging
// section. OTEL output is enabled when telemetry is.
func NewLogger(sec config.LoggingConfig, tel *telemetry.Telemetry) (*logging.Logger, error) {
	cfg := logging.NewDefaultConfig()
	if sec.Level != "" {
		level, err := logging.LevelFromString(sec.Level)
		if err != nil {
			return nil, err
		}
		cfg.Level = level
	}
	if sec.Format != "" {
		cfg.Format = strings.ToLower(sec.Format)
	}
	cfg.Fields = map[string]string{"service": "experimentd"}
	cfg.OTEL = tel.IsEnabled()
	return logging.NewLogger(cfg, tel.LoggerProvider())
}

// StoreConfig maps the store section.
func StoreConfig(sec config.StoreConfig) *store.Config {
	return &store.Config{
		DataDir:         sec.DataDir,
		DefinitionsFile: sec.DefinitionsFile,
		ResponsesFile:   sec.ResponsesFile,
		Watch:           sec.Watch,
	}
}

// EventsConfig maps the nats section.
func EventsConfig(sec config.NATSConfig) events.Config {
	return events.Config{
		URL:            sec.URL,
		SubjectPrefix:  sec.SubjectPrefix,
		Token:          sec.Token.Value(),
		ConnectTimeout: sec.ConnectTimeout.Duration(),
	}
}

// ClientConfig maps the web section onto the API client.
func ClientConfig(sec config.WebConfig) client.Config {
	return client.Config{
		BaseURL: sec.APIURL,
		Timeout: sec.RequestTimeout.Duration(),
		Rate:    sec.UpstreamRate,
		Burst:   sec.UpstreamBurst,
	}
}

// APIConfig maps the server section.
func APIConfig(sec config.ServerConfig) *apihttp.Config {
	return &apihttp.Config{
		Host:        sec.Host,
		Port:        sec.Port,
		SubmitRate:  sec.SubmitRate,
		SubmitBurst: sec.SubmitBurst,
	}
}

// SiteConfig maps the web section onto the site server.
func SiteConfig(sec config.WebConfig) *site.Config {
	return &site.Config{
		Host:         sec.Host,
		Port:         sec.Port,
		TemplateName: sec.TemplateName,
	}
}

// base starts telemetry and the logger shared by both processes.
func base(ctx context.Context, cfg *config.Config, version string) (*registry, error) {
	tel, err := telemetry.New(ctx, telemetry.FromSection(cfg.Telemetry, version))
	if err != nil {
		return nil, err
	}
	logger, err := NewLogger(cfg.Logging, tel)
	if err != nil {
		_ = tel.Shutdown(ctx)
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	r := newRegistry(Options{Logger: logger, Telemetry: tel})
	r.onClose(tel.Shutdown)
	r.onClose(func(context.Context) error { return logger.Sync() })

	if h := tel.Health(); h.Degraded {
		logger.Warn(ctx, "telemetry degraded", zap.Strings("problems", h.Problems))
	}
	return r, nil
}

// BuildAPI wires the REST API process: file store, optional watcher and
// the change event publisher.
func BuildAPI(ctx context.Context, cfg *config.Config, version string) (Registry, error) {
	r, err := base(ctx, cfg, version)
	if err != nil {
		return nil, err
	}
	fail := func(err error) (Registry, error) {
		_ = r.Close(context.WithoutCancel(ctx))
		return nil, err
	}

	fs, err := store.NewFileStore(StoreConfig(cfg.Store), r.logger)
	if err != nil {
		return fail(err)
	}
	r.store = fs
	r.backend = fs

	if cfg.Store.Watch {
		w, err := store.NewWatcher(fs)
		if err != nil {
			return fail(err)
		}
		if err := w.Start(ctx); err != nil {
			return fail(err)
		}
		go logChanges(ctx, w, r.logger)
		r.onClose(func(context.Context) error {
			w.Stop()
			return nil
		})
	}

	if cfg.NATS.Enabled {
		pub, err := events.Connect(EventsConfig(cfg.NATS), r.logger)
		if err != nil {
			return fail(err)
		}
		r.events = pub
		r.onClose(func(context.Context) error { return pub.Close() })
	}

	r.logger.Info(ctx, "api services ready",
		zap.String("data_dir", cfg.Store.DataDir),
		zap.Bool("watch", cfg.Store.Watch),
		zap.Bool("events", cfg.NATS.Enabled),
	)
	return r, nil
}

// BuildWeb wires the web process, which reaches storage through the API.
func BuildWeb(ctx context.Context, cfg *config.Config, version string) (Registry, error) {
	r, err := base(ctx, cfg, version)
	if err != nil {
		return nil, err
	}
	c, err := client.New(ClientConfig(cfg.Web), r.logger)
	if err != nil {
		_ = r.Close(context.WithoutCancel(ctx))
		return nil, err
	}
	r.backend = c

	r.logger.Info(ctx, "web services ready", zap.String("api_url", cfg.Web.APIURL))
	return r, nil
}

// logChanges reports edits made to the collection files by other processes.
// Such edits race with this process's read-modify-rewrite cycle.
func logChanges(ctx context.Context, w *store.Watcher, logger *logging.Logger) {
	for change := range w.Changes() {
		logger.Warn(ctx, "collection file changed outside this process",
			zap.String("resource", string(change.Resource)),
			zap.String("path", change.Path),
			zap.String("op", change.Op.String()),
		)
	}
}
