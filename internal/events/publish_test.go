package events

import (
	"encoding/json"
	"testing"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/supportd/internal/config"
)

// startTestNATSServer starts an embedded NATS server on a random port.
func startTestNATSServer(t *testing.T) *natsserver.Server {
	t.Helper()
	opts := &natsserver.Options{
		Host:   "127.0.0.1",
		Port:   -1,
		NoLog:  true,
		NoSigs: true,
	}

	server, err := natsserver.NewServer(opts)
	require.NoError(t, err)

	go server.Start()

	if !server.ReadyForConnections(5 * time.Second) {
		t.Fatal("NATS server not ready")
	}

	t.Cleanup(func() {
		server.Shutdown()
		server.WaitForShutdown()
	})
	return server
}

func connectTestNATS(t *testing.T, server *natsserver.Server) *nats.Conn {
	t.Helper()
	nc, err := nats.Connect(server.ClientURL())
	require.NoError(t, err)
	t.Cleanup(nc.Close)
	return nc
}

func TestConnect(t *testing.T) {
	server := startTestNATSServer(t)

	nc, err := Connect(server.ClientURL(), zap.NewNop())
	require.NoError(t, err)
	defer nc.Close()

	assert.True(t, nc.IsConnected())
}

func TestNewPublisher_RequiresConnection(t *testing.T) {
	_, err := NewPublisher(nil, Config{}, zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nats connection")
}

func TestNATSPublisher_RecordUsage(t *testing.T) {
	server := startTestNATSServer(t)
	nc := connectTestNATS(t, server)

	msgs := make(chan *nats.Msg, 10)
	sub, err := nc.ChanSubscribe("knowledge.usage.>", msgs)
	require.NoError(t, err)
	defer sub.Unsubscribe()

	pub, err := NewPublisher(nc, Config{}, zap.NewNop())
	require.NoError(t, err)

	pub.RecordUsage("learned", "rec-1")

	select {
	case msg := <-msgs:
		assert.Equal(t, "knowledge.usage.learned.rec-1", msg.Subject)

		var event UsageEvent
		require.NoError(t, json.Unmarshal(msg.Data, &event))
		assert.Equal(t, "learned", event.Origin)
		assert.Equal(t, "rec-1", event.RecordID)
		assert.False(t, event.Timestamp.IsZero())
	case <-time.After(2 * time.Second):
		t.Fatal("no usage event received")
	}
}

func TestNATSPublisher_CustomPrefix(t *testing.T) {
	server := startTestNATSServer(t)
	nc := connectTestNATS(t, server)

	msgs := make(chan *nats.Msg, 10)
	sub, err := nc.ChanSubscribe("supportd.custom.>", msgs)
	require.NoError(t, err)
	defer sub.Unsubscribe()

	pub, err := NewPublisher(nc, Config{SubjectPrefix: "supportd.custom"}, zap.NewNop())
	require.NoError(t, err)

	pub.RecordUsage("reference", "rec-9")

	select {
	case msg := <-msgs:
		assert.Equal(t, "supportd.custom.reference.rec-9", msg.Subject)
	case <-time.After(2 * time.Second):
		t.Fatal("no usage event received")
	}
}

func TestNATSPublisher_EmptyRecordID(t *testing.T) {
	server := startTestNATSServer(t)
	nc := connectTestNATS(t, server)

	msgs := make(chan *nats.Msg, 10)
	sub, err := nc.ChanSubscribe("knowledge.usage.>", msgs)
	require.NoError(t, err)
	defer sub.Unsubscribe()

	pub, err := NewPublisher(nc, Config{}, zap.NewNop())
	require.NoError(t, err)

	pub.RecordUsage("learned", "")

	select {
	case msg := <-msgs:
		t.Fatalf("unexpected publish on %s", msg.Subject)
	case <-time.After(150 * time.Millisecond):
	}
}

func TestNoopPublisher(t *testing.T) {
	assert.NotPanics(t, func() {
		NoopPublisher{}.RecordUsage("learned", "rec-1")
	})
}

func TestConfig_ApplyDefaults(t *testing.T) {
	cfg := Config{}
	cfg.applyDefaults()
	assert.Equal(t, DefaultSubjectPrefix, cfg.SubjectPrefix)
	assert.Equal(t, DefaultFlushInterval, cfg.FlushInterval)
	assert.Equal(t, DefaultStoreTimeout, cfg.StoreTimeout)

	cfg = Config{SubjectPrefix: "x.y", FlushInterval: time.Second, StoreTimeout: time.Second}
	cfg.applyDefaults()
	assert.Equal(t, "x.y", cfg.SubjectPrefix)
	assert.Equal(t, time.Second, cfg.FlushInterval)
}

func TestFromAppConfig(t *testing.T) {
	appCfg := &config.Config{}
	appCfg.Events.SubjectPrefix = "kb.usage"
	appCfg.VectorStore.ReferenceCollection = "kb_reference"
	appCfg.VectorStore.LearnedCollection = "kb_learned"
	appCfg.Retrieval.StoreTimeout = config.Duration(4 * time.Second)

	cfg := FromAppConfig(appCfg)
	assert.Equal(t, "kb.usage", cfg.SubjectPrefix)
	assert.Equal(t, "kb_reference", cfg.ReferenceCollection)
	assert.Equal(t, "kb_learned", cfg.LearnedCollection)
	assert.Equal(t, 4*time.Second, cfg.StoreTimeout)
}
