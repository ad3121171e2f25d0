// Package pplx talks to the Perplexity web UI by replaying its browser
// protocol: a warmup GET to establish the session, then a streaming POST to
// the SSE ask endpoint. Authentication is the session-token cookie.
package pplx

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

const (
	defaultBaseURL = "https://www.perplexity.ai"
	sessionCookie  = "__Secure-next-auth.session-token"

	warmupPath = "/search/new"
	askPath    = "/rest/sse/perplexity_ask"

	protocolVersion = "2.18"
	defaultLanguage = "en-US"

	// The web UI keeps very long-lived streams open; match its patience.
	streamTimeout = 30 * time.Minute
)

// Model selects the backend model identifier and mode sent with a query.
type Model struct {
	Identifier string
	Mode       string
}

// Model catalog as exposed by the web UI. Identifiers are the internal
// preference strings, not marketing names.
var (
	ModelBest         = Model{Identifier: "claude2", Mode: "copilot"}
	ModelResearch     = Model{Identifier: "pplx_alpha", Mode: "copilot"}
	ModelSonarThink   = Model{Identifier: "claude37sonnetthinking", Mode: "copilot"}
	ModelGemini       = Model{Identifier: "gemini2flash", Mode: "copilot"}
	ModelGPT5         = Model{Identifier: "gpt5", Mode: "copilot"}
	ModelGPT5Thinking = Model{Identifier: "gpt5_thinking", Mode: "copilot"}
	ModelO3           = Model{Identifier: "o3", Mode: "copilot"}
	ModelGrok4        = Model{Identifier: "grok4", Mode: "copilot"}
)

// modelsByName maps the CLI-facing model names onto the catalog.
var modelsByName = map[string]Model{
	"best":          ModelBest,
	"research":      ModelResearch,
	"sonar-think":   ModelSonarThink,
	"gemini":        ModelGemini,
	"gpt5":          ModelGPT5,
	"gpt5-thinking": ModelGPT5Thinking,
	"o3":            ModelO3,
	"grok4":         ModelGrok4,
}

// ModelByName resolves a model name like "best" or "gpt5". Unknown names
// fall back to ModelBest with ok=false.
func ModelByName(name string) (Model, bool) {
	m, ok := modelsByName[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return ModelBest, false
	}
	return m, true
}

// StreamChunk is one unit of streamed output. Delta carries incremental
// answer text; when Replace is set the delta is a full snapshot that
// supersedes everything streamed so far (the upstream rewrote earlier text).
// The chunk with IsFinal set closes the stream and carries the complete
// answer.
type StreamChunk struct {
	Delta       string
	Replace     bool
	IsFinal     bool
	FinalAnswer string
}

// Client is the model-client surface the pipeline depends on.
type Client interface {
	AskStream(ctx context.Context, prompt string, onChunk func(StreamChunk)) error
	AskOnce(ctx context.Context, prompt string) (string, error)
}

// Adapter implements Client against the live web endpoint.
type Adapter struct {
	http  *resty.Client
	log   *zap.Logger
	model Model
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithModel overrides the default model preference.
func WithModel(m Model) Option {
	return func(a *Adapter) { a.model = m }
}

// WithLogger attaches a logger; the default discards everything.
func WithLogger(log *zap.Logger) Option {
	return func(a *Adapter) { a.log = log }
}

// WithBaseURL points the adapter at a different host. Used by tests.
func WithBaseURL(baseURL string) Option {
	return func(a *Adapter) { a.http.SetBaseURL(baseURL) }
}

// New builds an Adapter authenticated by the given session token.
func New(sessionToken string, opts ...Option) *Adapter {
	httpClient := resty.New().
		SetBaseURL(defaultBaseURL).
		SetTimeout(streamTimeout).
		SetHeaders(map[string]string{
			"Accept":       "text/event-stream, application/json",
			"Content-Type": "application/json",
			"User-Agent":   "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/140.0.0.0 Safari/537.36",
			"Referer":      defaultBaseURL + "/",
			"Origin":       defaultBaseURL,
		}).
		SetCookie(&http.Cookie{Name: sessionCookie, Value: sessionToken})

	a := &Adapter{
		http:  httpClient,
		log:   zap.NewNop(),
		model: ModelBest,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}
