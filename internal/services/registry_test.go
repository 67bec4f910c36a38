package services

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/fyrsmithlabs/experimentd/internal/client"
	"github.com/fyrsmithlabs/experimentd/internal/config"
	"github.com/fyrsmithlabs/experimentd/internal/events"
	"github.com/fyrsmithlabs/experimentd/internal/experiment"
	"github.com/fyrsmithlabs/experimentd/internal/logging"
	"github.com/fyrsmithlabs/experimentd/internal/store"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Store.DataDir = t.TempDir()
	cfg.Logging.Level = "error"
	return cfg
}

func TestNewRegistry_Defaults(t *testing.T) {
	reg := NewRegistry(Options{})

	assert.NotNil(t, reg.Logger())
	assert.Equal(t, events.Nop{}, reg.Events())
	assert.Nil(t, reg.Store())
	assert.Nil(t, reg.Backend())
	assert.NoError(t, reg.Close(context.Background()))
}

func TestRegistry_CloseOrder(t *testing.T) {
	r := newRegistry(Options{})
	var order []int
	boom := errors.New("boom")
	r.onClose(func(context.Context) error { order = append(order, 1); return nil })
	r.onClose(func(context.Context) error { order = append(order, 2); return boom })

	err := r.Close(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []int{2, 1}, order)

	require.NoError(t, r.Close(context.Background()), "second close is a no-op")
}

func TestNewLogger(t *testing.T) {
	t.Run("level and format", func(t *testing.T) {
		logger, err := NewLogger(config.LoggingConfig{Level: "debug", Format: "Console"}, nil)
		require.NoError(t, err)
		assert.True(t, logger.Enabled(zapcore.DebugLevel))
	})

	t.Run("unknown level", func(t *testing.T) {
		_, err := NewLogger(config.LoggingConfig{Level: "loud"}, nil)
		assert.Error(t, err)
	})
}

func TestSectionMapping(t *testing.T) {
	cfg := config.Default()
	cfg.NATS.Token = config.Secret("s3cret")

	sc := StoreConfig(cfg.Store)
	assert.Equal(t, "fileData.json", sc.DefinitionsFile)
	assert.Equal(t, "userResponses.json", sc.ResponsesFile)

	ec := EventsConfig(cfg.NATS)
	assert.Equal(t, "s3cret", ec.Token)
	assert.Equal(t, 2*time.Second, ec.ConnectTimeout)

	cc := ClientConfig(cfg.Web)
	assert.Equal(t, "http://localhost:9090/api/experiments", cc.BaseURL)

	assert.Equal(t, 9090, APIConfig(cfg.Server).Port)
	assert.Equal(t, "[Template Experiment]", SiteConfig(cfg.Web).TemplateName)
}

func TestBuildAPI(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)

	reg, err := BuildAPI(ctx, cfg, "test")
	require.NoError(t, err)
	t.Cleanup(func() { _ = reg.Close(ctx) })

	require.IsType(t, &store.FileStore{}, reg.Store())
	assert.Equal(t, reg.Store(), reg.Backend())
	assert.Equal(t, events.Nop{}, reg.Events())

	require.NoError(t, reg.Store().AddExperiment(ctx, &experiment.Experiment{Name: "Alpha"}))
	list, err := reg.Store().GetExperiments(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)

	_, err = os.Stat(filepath.Join(cfg.Store.DataDir, "fileData.json"))
	assert.NoError(t, err)
}

func TestBuildAPI_InvalidStore(t *testing.T) {
	cfg := testConfig(t)
	cfg.Store.DefinitionsFile = "../escape.json"

	_, err := BuildAPI(context.Background(), cfg, "test")
	assert.Error(t, err)
}

func TestBuildAPI_WithNATS(t *testing.T) {
	srv, err := natsserver.NewServer(&natsserver.Options{Host: "127.0.0.1", Port: -1, NoLog: true, NoSigs: true})
	require.NoError(t, err)
	go srv.Start()
	require.True(t, srv.ReadyForConnections(5*time.Second))
	t.Cleanup(srv.Shutdown)

	ctx := context.Background()
	cfg := testConfig(t)
	cfg.NATS.Enabled = true
	cfg.NATS.URL = srv.ClientURL()

	reg, err := BuildAPI(ctx, cfg, "test")
	require.NoError(t, err)

	require.IsType(t, &events.NATSPublisher{}, reg.Events())
	assert.NoError(t, reg.Events().Publish(ctx, events.DefinitionAdded, "Alpha"))
	assert.NoError(t, reg.Close(ctx))
}

func TestBuildWeb(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)

	reg, err := BuildWeb(ctx, cfg, "test")
	require.NoError(t, err)
	t.Cleanup(func() { _ = reg.Close(ctx) })

	assert.Nil(t, reg.Store())
	assert.IsType(t, &client.Client{}, reg.Backend())
}

func TestBuildWeb_BadAPIURL(t *testing.T) {
	cfg := testConfig(t)
	cfg.Web.APIURL = "not a url"

	_, err := BuildWeb(context.Background(), cfg, "test")
	assert.Error(t, err)
}

func TestLogChanges(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dir := t.TempDir()
	fs, err := store.NewFileStore(&store.Config{
		DataDir:         dir,
		DefinitionsFile: "fileData.json",
		ResponsesFile:   "userResponses.json",
	}, nil)
	require.NoError(t, err)

	w, err := store.NewWatcher(fs)
	require.NoError(t, err)
	require.NoError(t, w.Start(ctx))

	tl := logging.NewTestLogger()
	done := make(chan struct{})
	go func() {
		logChanges(ctx, w, tl.Logger)
		close(done)
	}()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "fileData.json"), []byte("[]"), 0o600))
	require.Eventually(t, func() bool {
		return tl.FilterMessage("collection file changed outside this process").Len() > 0
	}, 5*time.Second, 20*time.Millisecond)

	w.Stop()
	<-done
}
