package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/datachef-lab/taskify-backend/internal/config"
	"github.com/datachef-lab/taskify-backend/internal/shared/sse"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type staticDirectory map[string]Recipient

func (d staticDirectory) Recipients(_ context.Context, ids []string) ([]Recipient, error) {
	var out []Recipient
	for _, id := range ids {
		if r, ok := d[id]; ok {
			out = append(out, r)
		}
	}
	return out, nil
}

type recordingChannel struct {
	mu   sync.Mutex
	sent []string
	fail string
}

func (c *recordingChannel) Name() string { return "recording" }

func (c *recordingChannel) Send(_ context.Context, to Recipient, _ Notification) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if to.ID == c.fail {
		return errors.New("mailbox full")
	}
	c.sent = append(c.sent, to.ID)
	return nil
}

var people = staticDirectory{
	"u1": {ID: "u1", Name: "Asha", Email: "asha@example.com"},
	"u2": {ID: "u2", Name: "Ravi"},
}

func TestDispatcher_Notify(t *testing.T) {
	ch := &recordingChannel{fail: "u2"}
	d := NewDispatcher(people, zap.NewNop(), ch)

	err := d.Notify(context.Background(), Notification{UserIDs: []string{"u1", "u2", "ghost"}, Title: "Hi"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "recipient ghost not found")
	assert.Contains(t, err.Error(), "mailbox full")
	assert.Equal(t, []string{"u1"}, ch.sent, "failure for one user does not stop the others")

	assert.NoError(t, d.Notify(context.Background(), Notification{}))
}

func TestChatChannel_BroadcastsOnce(t *testing.T) {
	var (
		mu    sync.Mutex
		posts []map[string]interface{}
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		var body map[string]interface{}
		assert.NoError(t, json.Unmarshal(raw, &body))
		mu.Lock()
		posts = append(posts, body)
		mu.Unlock()
		w.Write([]byte(`{"code":0}`))
	}))
	defer srv.Close()

	assert.Nil(t, NewChatChannel(config.ChatConfig{}))
	chat := NewChatChannel(config.ChatConfig{WebhookURL: srv.URL})
	require.NotNil(t, chat)

	d := NewDispatcher(people, nil, chat)
	require.NoError(t, d.Notify(context.Background(), Notification{
		UserIDs:    []string{"u1", "u2"},
		Title:      "Voltage above limit",
		Body:       "Site check needs review",
		EntityType: "task",
		EntityID:   "T-2024-001",
	}))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, posts, 1)
	raw, _ := json.Marshal(posts[0]["card"])
	assert.Contains(t, string(raw), "Asha, Ravi")
	assert.Contains(t, string(raw), "T-2024-001")
}

func TestSSEChannel_Send(t *testing.T) {
	hub := sse.NewHub(zap.NewNop())
	client := &sse.Client{ID: "c1", UserID: "u1", Events: make(chan sse.Event, 1)}
	hub.Register(client)
	defer hub.Unregister("c1")

	ch := NewSSEChannel(hub)
	require.NoError(t, ch.Send(context.Background(), people["u1"], Notification{Title: "Hi", Body: "there"}))
	// offline users are not an error
	require.NoError(t, ch.Send(context.Background(), people["u2"], Notification{Title: "Hi"}))

	ev := <-client.Events
	assert.Equal(t, "notification", ev.EventType)
	assert.Contains(t, ev.Data, `"title":"Hi"`)
}

func TestNewEmailChannel_RequiresHost(t *testing.T) {
	assert.Nil(t, NewEmailChannel(config.SMTPConfig{}))
	assert.NotNil(t, NewEmailChannel(config.SMTPConfig{Host: "smtp.example.com", Port: 587, FromEmail: "noreply@example.com"}))

	body := renderEmail(Recipient{Name: "<Asha>"}, Notification{Body: "a & b", EntityType: "task", EntityID: "1"})
	assert.Contains(t, body, "&lt;Asha&gt;")
	assert.Contains(t, body, "a &amp; b")
}
