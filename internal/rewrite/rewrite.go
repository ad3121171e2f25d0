// Package rewrite turns the numbered limitation list into prose through a
// local OpenAI-compatible chat endpoint. The rewrite is advisory: every
// failure path falls back to a deterministic bullet rendering, so callers
// never see an error from here.
package rewrite

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// Config controls the rewriter endpoint. Zero values resolve to the
// defaults documented on each field.
type Config struct {
	// APIBase is the OpenAI-compatible base URL. Default http://127.0.0.1:8001/v1.
	APIBase string
	// APIKey is sent as the bearer token. Default "dummy-key".
	APIKey string
	// Model is the chat model name. Default "gpt-4.1".
	Model string
	// Enabled gates the network call entirely; when false only the local
	// bullet fallback runs.
	Enabled bool
	// Timeout bounds the chat request. Default 20s.
	Timeout time.Duration
}

func (c *Config) applyDefaults() {
	if c.APIBase == "" {
		c.APIBase = "http://127.0.0.1:8001/v1"
	}
	if c.APIKey == "" {
		c.APIKey = "dummy-key"
	}
	if c.Model == "" {
		c.Model = "gpt-4.1"
	}
	if c.Timeout <= 0 {
		c.Timeout = 20 * time.Second
	}
}

// ConfigFromEnv reads REWRITER_* environment variables.
func ConfigFromEnv() Config {
	cfg := Config{
		APIBase: os.Getenv("REWRITER_API_BASE"),
		APIKey:  os.Getenv("REWRITER_API_KEY"),
		Model:   os.Getenv("REWRITER_MODEL"),
		Enabled: true,
	}
	if raw, set := os.LookupEnv("REWRITER_ENABLED"); set {
		cfg.Enabled = raw != "" && raw != "0" && raw != "false" && raw != "False"
	}
	if raw := os.Getenv("REWRITER_TIMEOUT"); raw != "" {
		if seconds, err := strconv.ParseFloat(raw, 64); err == nil && seconds > 0 {
			cfg.Timeout = time.Duration(seconds * float64(time.Second))
		}
	}
	return cfg
}

// Rewriter calls the configured chat endpoint.
type Rewriter struct {
	http *resty.Client
	cfg  Config
	log  *zap.Logger
}

// New builds a Rewriter from cfg. A nil logger is replaced with a no-op.
func New(cfg Config, log *zap.Logger) *Rewriter {
	cfg.applyDefaults()
	if log == nil {
		log = zap.NewNop()
	}
	httpClient := resty.New().
		SetBaseURL(strings.TrimRight(cfg.APIBase, "/")).
		SetTimeout(cfg.Timeout).
		SetAuthToken(cfg.APIKey).
		SetHeader("Content-Type", "application/json")
	return &Rewriter{http: httpClient, cfg: cfg, log: log}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

const rewriteSystemPrompt = "You rewrite numbered lists of system limitations into clear, plain prose " +
	"for business readers. Keep every factual statement, keep the meaning exact, do not add new claims, " +
	"and do not output JSON or markdown headings."

func rewriteUserPrompt(numberedText string) string {
	return "Rewrite the following numbered limitations as short readable prose. " +
		"Output the rewritten text only, with no preface or appendix.\n\n" + numberedText
}

var numberedLineRE = regexp.MustCompile(`^\s*\d+[.)]\s+(.*)$`)

// bulletFallback reformats numbered lines as dash bullets. When the input has
// no numbered lines it is returned unchanged.
func bulletFallback(numberedText string) string {
	var lines []string
	for _, line := range strings.Split(numberedText, "\n") {
		if m := numberedLineRE.FindStringSubmatch(line); m != nil {
			lines = append(lines, "- "+strings.TrimSpace(m[1]))
		}
	}
	if len(lines) == 0 {
		return numberedText
	}
	return strings.Join(lines, "\n")
}

// Rewrite produces the human-readable rendering of numberedText. It never
// fails: network errors, empty responses, and JSON-shaped responses all fall
// back to the local bullet rendering.
func (r *Rewriter) Rewrite(ctx context.Context, numberedText string) string {
	if !r.cfg.Enabled {
		return bulletFallback(numberedText)
	}

	var parsed chatResponse
	resp, err := r.http.R().
		SetContext(ctx).
		SetBody(chatRequest{
			Model: r.cfg.Model,
			Messages: []chatMessage{
				{Role: "system", Content: rewriteSystemPrompt},
				{Role: "user", Content: rewriteUserPrompt(numberedText)},
			},
			Temperature: 0.2,
			MaxTokens:   600,
		}).
		SetResult(&parsed).
		Post("/chat/completions")
	if err != nil {
		r.log.Warn("rewrite request failed, using local fallback", zap.Error(err))
		return bulletFallback(numberedText)
	}
	if resp.IsError() {
		r.log.Warn("rewrite endpoint returned error status, using local fallback",
			zap.Int("status", resp.StatusCode()))
		return bulletFallback(numberedText)
	}

	if len(parsed.Choices) == 0 {
		return bulletFallback(numberedText)
	}
	message := strings.TrimSpace(parsed.Choices[0].Message.Content)
	if message == "" {
		return bulletFallback(numberedText)
	}
	// A JSON-shaped reply means the model ignored the contract.
	if strings.HasPrefix(message, "{") || strings.HasPrefix(message, "[") {
		return bulletFallback(numberedText)
	}
	return message
}

// Endpoint reports the resolved chat completions URL, for logging.
func (r *Rewriter) Endpoint() string {
	return fmt.Sprintf("%s/chat/completions", strings.TrimRight(r.cfg.APIBase, "/"))
}
