package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/fyrsmithlabs/experimentd/internal/logging"
)

func startTestNATSServer(t *testing.T) *natsserver.Server {
	t.Helper()
	srv, err := natsserver.NewServer(&natsserver.Options{
		Host:   "127.0.0.1",
		Port:   -1,
		NoLog:  true,
		NoSigs: true,
	})
	require.NoError(t, err)

	go srv.Start()
	if !srv.ReadyForConnections(5 * time.Second) {
		t.Fatal("NATS server not ready")
	}
	t.Cleanup(func() {
		srv.Shutdown()
		srv.WaitForShutdown()
	})
	return srv
}

func subscribe(t *testing.T, nc *nats.Conn, subject string) *nats.Subscription {
	t.Helper()
	sub, err := nc.SubscribeSync(subject)
	require.NoError(t, err)
	require.NoError(t, nc.Flush())
	return sub
}

func TestNATSPublisher_Publish(t *testing.T) {
	srv := startTestNATSServer(t)
	nc, err := nats.Connect(srv.ClientURL())
	require.NoError(t, err)
	defer nc.Close()

	logger := logging.NewTestLogger()
	pub := NewNATSPublisher(nc, "lab", logger.Logger)
	fixed := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	pub.now = func() time.Time { return fixed }

	sub := subscribe(t, nc, "lab.>")

	tests := []struct {
		kind    Kind
		name    string
		subject string
	}{
		{DefinitionAdded, "Checkout Flow", "lab.definitions.added"},
		{DefinitionUpdated, "Checkout Flow", "lab.definitions.updated"},
		{ResponseSubmitted, "Onboarding", "lab.responses.submitted"},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			require.NoError(t, pub.Publish(context.Background(), tt.kind, tt.name))

			msg, err := sub.NextMsg(2 * time.Second)
			require.NoError(t, err)
			assert.Equal(t, tt.subject, msg.Subject)

			var ev Event
			require.NoError(t, json.Unmarshal(msg.Data, &ev))
			assert.NotEmpty(t, ev.ID)
			assert.Equal(t, tt.kind, ev.Kind)
			assert.Equal(t, tt.name, ev.Name)
			assert.True(t, fixed.Equal(ev.At))
		})
	}

	logger.AssertLogged(t, zapcore.DebugLevel, "event published")
	// Borrowed connections stay open.
	require.NoError(t, pub.Close())
	assert.False(t, nc.IsClosed())
}

func TestNATSPublisher_ContextDeadline(t *testing.T) {
	srv := startTestNATSServer(t)
	nc, err := nats.Connect(srv.ClientURL())
	require.NoError(t, err)
	defer nc.Close()

	pub := NewNATSPublisher(nc, "", nil)
	assert.Equal(t, "experimentd.responses.submitted", pub.Subject(ResponseSubmitted))

	sub := subscribe(t, nc, "experimentd.responses.submitted")
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, pub.Publish(ctx, ResponseSubmitted, "Onboarding"))

	_, err = sub.NextMsg(2 * time.Second)
	require.NoError(t, err)
}

func TestNATSPublisher_ClosedConnection(t *testing.T) {
	srv := startTestNATSServer(t)
	nc, err := nats.Connect(srv.ClientURL())
	require.NoError(t, err)
	nc.Close()

	pub := NewNATSPublisher(nc, "lab", nil)
	err = pub.Publish(context.Background(), DefinitionAdded, "X")
	require.Error(t, err)
	assert.ErrorIs(t, err, nats.ErrConnectionClosed)
	assert.Contains(t, err.Error(), "lab.definitions.added")
}

func TestConnect(t *testing.T) {
	srv := startTestNATSServer(t)

	pub, err := Connect(Config{URL: srv.ClientURL(), SubjectPrefix: ".lab."}, nil)
	require.NoError(t, err)
	assert.Equal(t, "lab.definitions.added", pub.Subject(DefinitionAdded))

	require.NoError(t, pub.Publish(context.Background(), DefinitionAdded, "X"))
	require.NoError(t, pub.Close())
	assert.True(t, pub.conn.IsClosed())
}

func TestConnect_RequiresURL(t *testing.T) {
	_, err := Connect(Config{}, nil)
	require.Error(t, err)
}

func TestNop(t *testing.T) {
	var p Publisher = Nop{}
	assert.NoError(t, p.Publish(context.Background(), DefinitionAdded, "X"))
	assert.NoError(t, p.Close())
}
