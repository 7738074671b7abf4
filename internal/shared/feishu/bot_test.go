package feishu

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBotClient_SendCard(t *testing.T) {
	var got map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		raw, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(raw, &got))
		w.Write([]byte(`{"code":0,"msg":"success"}`))
	}))
	defer srv.Close()

	c := NewBotClient(srv.URL, "bot-secret")
	c.now = func() time.Time { return time.Unix(1700000000, 0) }

	card := NewNotificationCard("Voltage above limit", "Check the site",
		[]CardEntry{{"Task", "T-2024-001"}, {"Customer", ""}}, []string{"Asha"})
	require.NoError(t, c.SendCard(context.Background(), card))

	assert.Equal(t, "interactive", got["msg_type"])
	assert.Equal(t, "1700000000", got["timestamp"])
	assert.Equal(t, Sign(1700000000, "bot-secret"), got["sign"])

	elements := got["card"].(map[string]interface{})["elements"].([]interface{})
	// body, fields, hr, note
	require.Len(t, elements, 4)
	fields := elements[1].(map[string]interface{})["fields"].([]interface{})
	assert.Len(t, fields, 1, "empty entries are dropped")
}

func TestBotClient_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/down" {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"code":19021,"msg":"sign match fail"}`))
	}))
	defer srv.Close()

	card := NewNotificationCard("t", "", nil, nil)

	err := NewBotClient(srv.URL+"/hook", "").SendCard(context.Background(), card)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sign match fail")

	err = NewBotClient(srv.URL+"/down", "").SendCard(context.Background(), card)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestSign_Deterministic(t *testing.T) {
	assert.Equal(t, Sign(1, "s"), Sign(1, "s"))
	assert.NotEqual(t, Sign(1, "s"), Sign(2, "s"))
}
