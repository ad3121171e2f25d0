package pplx

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stepPayload(answer string) string {
	steps := []map[string]any{
		{"step_type": "SEARCH", "content": map[string]any{}},
		{"step_type": "FINAL", "content": map[string]any{"answer": answer}},
	}
	encoded, _ := json.Marshal(steps)
	return string(encoded)
}

func sseLine(t *testing.T, event map[string]any) string {
	t.Helper()
	encoded, err := json.Marshal(event)
	require.NoError(t, err)
	return "data: " + string(encoded) + "\n"
}

func newStreamServer(t *testing.T, events []map[string]any, gotBody *askRequest) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc(warmupPath, func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, r.URL.Query().Get("q"))
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc(askPath, func(w http.ResponseWriter, r *http.Request) {
		if gotBody != nil {
			require.NoError(t, json.NewDecoder(r.Body).Decode(gotBody))
		}
		cookie, err := r.Cookie(sessionCookie)
		require.NoError(t, err)
		assert.Equal(t, "test-token", cookie.Value)

		w.Header().Set("Content-Type", "text/event-stream")
		for _, event := range events {
			fmt.Fprint(w, sseLine(t, event))
		}
	})
	return httptest.NewServer(mux)
}

func TestAskStream_DeltasAndFinal(t *testing.T) {
	events := []map[string]any{
		{"backend_uuid": "uuid-1", "text": stepPayload("1. First")},
		{"backend_uuid": "uuid-1", "text": stepPayload("1. First limitation.")},
		{"backend_uuid": "uuid-1", "text": stepPayload("1. First limitation."), "final": true},
	}
	server := newStreamServer(t, events, nil)
	defer server.Close()

	adapter := New("test-token", WithBaseURL(server.URL))

	var deltas []string
	var final string
	err := adapter.AskStream(context.Background(), "prompt", func(chunk StreamChunk) {
		if chunk.IsFinal {
			final = chunk.FinalAnswer
			return
		}
		deltas = append(deltas, chunk.Delta)
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"1. First", " limitation."}, deltas)
	assert.Equal(t, "1. First limitation.", final)
}

func TestAskStream_SendsProtocolPayload(t *testing.T) {
	events := []map[string]any{
		{"text": stepPayload("done"), "final": true},
	}
	var body askRequest
	server := newStreamServer(t, events, &body)
	defer server.Close()

	adapter := New("test-token", WithBaseURL(server.URL), WithModel(ModelGPT5))
	_, err := adapter.AskOnce(context.Background(), "the prompt")
	require.NoError(t, err)

	assert.Equal(t, "the prompt", body.QueryStr)
	assert.Equal(t, "gpt5", body.Params.ModelPreference)
	assert.Equal(t, "copilot", body.Params.Mode)
	assert.Equal(t, "internet", body.Params.SearchFocus)
	assert.Equal(t, protocolVersion, body.Params.Version)
	assert.True(t, body.Params.IsIncognito)
	assert.True(t, body.Params.SendBackText)
	assert.False(t, body.Params.UseSchematizedAPI)
}

func TestAskStream_SkipsMalformedLines(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc(warmupPath, func(w http.ResponseWriter, r *http.Request) {})
	mux.HandleFunc(askPath, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "event: ping\n")
		fmt.Fprint(w, "data: not json\n")
		fmt.Fprint(w, "data: {\"text\": \"\", \"final\": false}\n")
		fmt.Fprintf(w, "data: {\"text\": %q, \"final\": true}\n", stepPayload("answer"))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	adapter := New("test-token", WithBaseURL(server.URL))
	answer, err := adapter.AskOnce(context.Background(), "p")
	require.NoError(t, err)
	assert.Equal(t, "answer", answer)
}

func TestAskStream_NoFinalEventIsError(t *testing.T) {
	events := []map[string]any{
		{"text": stepPayload("partial")},
	}
	server := newStreamServer(t, events, nil)
	defer server.Close()

	adapter := New("test-token", WithBaseURL(server.URL))
	err := adapter.AskStream(context.Background(), "p", func(StreamChunk) {})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "without final event")
}

func TestAskStream_HTTPErrorStatus(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc(warmupPath, func(w http.ResponseWriter, r *http.Request) {})
	mux.HandleFunc(askPath, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	adapter := New("bad-token", WithBaseURL(server.URL))
	err := adapter.AskStream(context.Background(), "p", func(StreamChunk) {})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
}

func TestParseAnswer(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		want   string
		wantOK bool
	}{
		{"step list with final", stepPayload("hello"), "hello", true},
		{"step list without final", `[{"step_type": "SEARCH", "content": {}}]`, "", false},
		{"bare object", `{"answer": "direct"}`, "direct", true},
		{"double encoded", `{"answer": "{\"answer\": \"inner\"}"}`, "inner", true},
		{"double encoded without inner answer", `{"answer": "{\"other\": 1}"}`, `{"other": 1}`, true},
		{"empty", "", "", false},
		{"garbage", "not json", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := parseAnswer(tt.text)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAskStream_RewrittenAnswerReplacesStream(t *testing.T) {
	events := []map[string]any{
		{"text": stepPayload("1. First draft")},
		{"text": stepPayload("1. Reworded entirely.")},
		{"text": stepPayload("1. Reworded entirely."), "final": true},
	}
	server := newStreamServer(t, events, nil)
	defer server.Close()

	adapter := New("test-token", WithBaseURL(server.URL))

	var chunks []StreamChunk
	err := adapter.AskStream(context.Background(), "p", func(chunk StreamChunk) {
		chunks = append(chunks, chunk)
	})
	require.NoError(t, err)

	require.Len(t, chunks, 3)
	assert.Equal(t, StreamChunk{Delta: "1. First draft"}, chunks[0])
	assert.Equal(t, StreamChunk{Delta: "1. Reworded entirely.", Replace: true}, chunks[1])
	assert.Equal(t, "1. Reworded entirely.", chunks[2].FinalAnswer)
}

// replayClient feeds a scripted chunk sequence into AskStream callbacks.
type replayClient struct {
	chunks []StreamChunk
}

func (r *replayClient) AskStream(ctx context.Context, prompt string, onChunk func(StreamChunk)) error {
	for _, chunk := range r.chunks {
		onChunk(chunk)
	}
	return nil
}

func (r *replayClient) AskOnce(ctx context.Context, prompt string) (string, error) {
	return "", nil
}

func TestCollectStreamText_ReplaceDropsSupersededText(t *testing.T) {
	client := &replayClient{chunks: []StreamChunk{
		{Delta: "1. First draft"},
		{Delta: "1. Reworded entirely.", Replace: true},
		{IsFinal: true},
	}}

	text, err := CollectStreamText(context.Background(), client, "p")
	require.NoError(t, err)
	assert.Equal(t, "1. Reworded entirely.", text)
}

func TestCollectStreamText_PrefersFinalAnswer(t *testing.T) {
	events := []map[string]any{
		{"text": stepPayload("1. Part")},
		{"text": stepPayload("1. Partial then rewritten."), "final": true},
	}
	server := newStreamServer(t, events, nil)
	defer server.Close()

	adapter := New("test-token", WithBaseURL(server.URL))
	text, err := CollectStreamText(context.Background(), adapter, "p")
	require.NoError(t, err)
	assert.Equal(t, "1. Partial then rewritten.", text)
}
