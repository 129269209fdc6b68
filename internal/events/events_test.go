package events

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"testing"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats-server/v2/test"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startTestServer(t *testing.T) *server.Server {
	t.Helper()
	opts := test.DefaultTestOptions
	opts.Port = -1
	s := test.RunServer(&opts)
	t.Cleanup(s.Shutdown)
	return s
}

func TestNATSPublisher_Publish(t *testing.T) {
	srv := startTestServer(t)

	sub, err := nats.Connect(srv.ClientURL())
	require.NoError(t, err)
	defer sub.Close()
	msgs := make(chan *nats.Msg, 1)
	_, err = sub.ChanSubscribe("test.progress", msgs)
	require.NoError(t, err)
	require.NoError(t, sub.Flush())

	pub, err := Connect(srv.ClientURL(), "test.progress")
	require.NoError(t, err)
	defer pub.Close() //nolint:errcheck

	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	err = pub.Publish(context.Background(), Event{
		Type:      TypeStepCompleted,
		Email:     "ana@example.com",
		SubjectID: "a1_intro",
		StepIndex: 2,
		XP:        120,
		At:        at,
	})
	require.NoError(t, err)

	select {
	case msg := <-msgs:
		var got Event
		require.NoError(t, json.Unmarshal(msg.Data, &got))
		assert.Equal(t, TypeStepCompleted, got.Type)
		assert.Equal(t, "a1_intro", got.SubjectID)
		assert.Equal(t, 2, got.StepIndex)
		assert.Equal(t, 120, got.XP)
		assert.True(t, at.Equal(got.At))
		assert.Contains(t, string(msg.Data), `"subjectId":"a1_intro"`)
	case <-time.After(2 * time.Second):
		t.Fatal("no event received")
	}
}

func TestNATSPublisher_DefaultSubjectAndTimestamp(t *testing.T) {
	srv := startTestServer(t)

	conn, err := nats.Connect(srv.ClientURL())
	require.NoError(t, err)
	defer conn.Close()

	subscription, err := conn.SubscribeSync(DefaultSubject)
	require.NoError(t, err)
	require.NoError(t, conn.Flush())

	pub := NewNATSPublisher(conn, "")
	require.NoError(t, pub.Publish(context.Background(), Event{Type: TypeXPEarned, XP: 10}))

	msg, err := subscription.NextMsg(2 * time.Second)
	require.NoError(t, err)
	var got Event
	require.NoError(t, json.Unmarshal(msg.Data, &got))
	assert.False(t, got.At.IsZero())
}

func TestNATSPublisher_PublishWithoutDeadline(t *testing.T) {
	srv := startTestServer(t)

	conn, err := nats.Connect(srv.ClientURL())
	require.NoError(t, err)
	defer conn.Close()

	subscription, err := conn.SubscribeSync(DefaultSubject)
	require.NoError(t, err)
	require.NoError(t, conn.Flush())

	// the CLI hands in signal contexts, which carry no deadline
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	_, hasDeadline := ctx.Deadline()
	require.False(t, hasDeadline)

	pub := NewNATSPublisher(conn, "")
	require.NoError(t, pub.Publish(ctx, Event{Type: TypeStepCompleted, SubjectID: "a1_food", StepIndex: 3}))

	msg, err := subscription.NextMsg(2 * time.Second)
	require.NoError(t, err)
	var got Event
	require.NoError(t, json.Unmarshal(msg.Data, &got))
	assert.Equal(t, "a1_food", got.SubjectID)
	assert.Equal(t, 3, got.StepIndex)
}

func TestNew(t *testing.T) {
	p, err := New("", "")
	require.NoError(t, err)
	assert.IsType(t, Nop{}, p)
	assert.NoError(t, p.Publish(context.Background(), Event{}))
	assert.NoError(t, p.Close())

	_, err = New("nats://127.0.0.1:1", "")
	assert.Error(t, err)
}
