package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orderhub/order-intake/internal/normalize"
)

type fakeAPI struct {
	handler func(req openai.ChatCompletionRequest) (string, int)
	calls   atomic.Int32
	last    atomic.Value
}

func (f *fakeAPI) server(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.calls.Add(1)
		if r.URL.Path != "/v1/chat/completions" {
			http.NotFound(w, r)
			return
		}
		var req openai.ChatCompletionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.last.Store(req)

		content, status := f.handler(req)
		w.Header().Set("Content-Type", "application/json")
		if status != http.StatusOK {
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"error":{"message":"upstream failure","type":"server_error"}}`))
			return
		}
		_ = json.NewEncoder(w).Encode(openai.ChatCompletionResponse{
			ID:     "chatcmpl-test",
			Object: "chat.completion",
			Model:  req.Model,
			Choices: []openai.ChatCompletionChoice{{
				Index:        0,
				Message:      openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: content},
				FinishReason: openai.FinishReasonStop,
			}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestClient(t *testing.T, api *fakeAPI, cfg Config) *Client {
	t.Helper()
	srv := api.server(t)
	cfg.APIKey = "sk-test"
	cfg.BaseURL = srv.URL + "/v1"
	cfg.RateLimit = 1000
	cfg.RateBurst = 1000
	c := New(cfg, nil)
	c.backoff = func(int) time.Duration { return 0 }
	return c
}

type recordingObserver struct {
	outcomes []string
}

func (r *recordingObserver) ObserveAI(operation, outcome string, _ time.Duration) {
	r.outcomes = append(r.outcomes, operation+":"+outcome)
}

func TestRewrite(t *testing.T) {
	api := &fakeAPI{handler: func(openai.ChatCompletionRequest) (string, int) {
		return "```\n3bg Onion\n```", http.StatusOK
	}}
	obs := &recordingObserver{}
	c := newTestClient(t, api, Config{}).WithObserver(obs)

	got, err := c.Rewrite(context.Background(), normalize.RewriteRequest{
		Line:              "ONION-3",
		UnitLegend:        "Bag → bg",
		PrimaryUnitLegend: "onion → bag",
	})

	require.NoError(t, err)
	assert.Equal(t, "3bg Onion", got)
	assert.Equal(t, []string{"rewrite:ok"}, obs.outcomes)

	req := api.last.Load().(openai.ChatCompletionRequest)
	assert.Equal(t, DefaultModel, req.Model)
	require.Len(t, req.Messages, 2)
	assert.Equal(t, openai.ChatMessageRoleSystem, req.Messages[0].Role)
	assert.Contains(t, req.Messages[1].Content, "Input: ONION-3")
	assert.Contains(t, req.Messages[1].Content, "onion → bag")
}

func TestSuggest(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		want  string
	}{
		{"catalog name", "Onion", "Onion"},
		{"quoted with period", `"Tomato."`, "Tomato"},
		{"none", "None", ""},
		{"none lower", "none.", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := &fakeAPI{handler: func(openai.ChatCompletionRequest) (string, int) {
				return tt.reply, http.StatusOK
			}}
			c := newTestClient(t, api, Config{Model: "gpt-test"})

			got, err := c.Suggest(context.Background(), "onoin", []string{"Onion", "Tomato"})

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)

			req := api.last.Load().(openai.ChatCompletionRequest)
			assert.Equal(t, "gpt-test", req.Model)
			assert.Contains(t, req.Messages[1].Content, `"onoin"`)
			assert.Contains(t, req.Messages[1].Content, "- Tomato")
		})
	}
}

func TestComplete_RetriesThenSucceeds(t *testing.T) {
	var n atomic.Int32
	api := &fakeAPI{handler: func(openai.ChatCompletionRequest) (string, int) {
		if n.Add(1) == 1 {
			return "", http.StatusInternalServerError
		}
		return "Rice", http.StatusOK
	}}
	c := newTestClient(t, api, Config{MaxRetries: 3})

	got, err := c.Suggest(context.Background(), "rise", []string{"Rice"})

	require.NoError(t, err)
	assert.Equal(t, "Rice", got)
	assert.Equal(t, int32(2), api.calls.Load())
}

func TestComplete_GivesUpAfterMaxRetries(t *testing.T) {
	api := &fakeAPI{handler: func(openai.ChatCompletionRequest) (string, int) {
		return "", http.StatusInternalServerError
	}}
	obs := &recordingObserver{}
	c := newTestClient(t, api, Config{MaxRetries: 2}).WithObserver(obs)

	_, err := c.Suggest(context.Background(), "rise", []string{"Rice"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "openai suggest")
	assert.Equal(t, int32(2), api.calls.Load())
	assert.Equal(t, []string{"suggest:error"}, obs.outcomes)
}

func TestComplete_TimeoutBoundsAllAttempts(t *testing.T) {
	api := &fakeAPI{handler: func(openai.ChatCompletionRequest) (string, int) {
		time.Sleep(200 * time.Millisecond)
		return "Rice", http.StatusOK
	}}
	c := newTestClient(t, api, Config{Timeout: 30 * time.Millisecond, MaxRetries: 5})

	start := time.Now()
	_, err := c.Suggest(context.Background(), "rise", []string{"Rice"})

	require.Error(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestCleanReply(t *testing.T) {
	assert.Equal(t, "5kg Carrot", cleanReply("\n```\n5kg Carrot\n```\n"))
	assert.Equal(t, "Onion", cleanReply("'Onion'"))
	assert.Equal(t, "", cleanReply("  \n "))
}
