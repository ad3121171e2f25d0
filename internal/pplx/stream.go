package pplx

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// askRequest is the body of the streaming POST. Field names and values
// mirror what the web UI sends.
type askRequest struct {
	Params   askParams `json:"params"`
	QueryStr string    `json:"query_str"`
}

type askParams struct {
	Attachments         []string `json:"attachments"`
	Language            string   `json:"language"`
	Timezone            *string  `json:"timezone"`
	ClientCoordinates   any      `json:"client_coordinates"`
	Sources             []string `json:"sources"`
	ModelPreference     string   `json:"model_preference"`
	Mode                string   `json:"mode"`
	SearchFocus         string   `json:"search_focus"`
	SearchRecencyFilter *string  `json:"search_recency_filter"`
	IsIncognito         bool     `json:"is_incognito"`
	UseSchematizedAPI   bool     `json:"use_schematized_api"`
	LocalSearchEnabled  bool     `json:"local_search_enabled"`
	PromptSource        string   `json:"prompt_source"`
	SendBackText        bool     `json:"send_back_text_in_streaming_api"`
	Version             string   `json:"version"`
}

func (a *Adapter) buildRequest(prompt string) askRequest {
	return askRequest{
		Params: askParams{
			Attachments:        []string{},
			Language:           defaultLanguage,
			Sources:            []string{"web"},
			ModelPreference:    a.model.Identifier,
			Mode:               a.model.Mode,
			SearchFocus:        "internet",
			IsIncognito:        true,
			UseSchematizedAPI:  false,
			LocalSearchEnabled: true,
			PromptSource:       "user",
			SendBackText:       true,
			Version:            protocolVersion,
		},
		QueryStr: prompt,
	}
}

// sseEvent is one "data:" line of the SSE stream.
type sseEvent struct {
	BackendUUID string `json:"backend_uuid"`
	ThreadTitle string `json:"thread_title"`
	Text        string `json:"text"`
	Final       bool   `json:"final"`
}

// answerStep is one element of the step list carried in an event's text
// payload. Only the FINAL step carries the assembled answer.
type answerStep struct {
	StepType string          `json:"step_type"`
	Content  json.RawMessage `json:"content"`
}

type stepContent struct {
	Answer string `json:"answer"`
}

// parseAnswer digs the assembled answer out of an event's text payload.
// The payload is itself JSON: either a step list whose FINAL step holds the
// content, or a bare object. The answer inside may be JSON-encoded a second
// time.
func parseAnswer(text string) (string, bool) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return "", false
	}

	if strings.HasPrefix(trimmed, "[") {
		var steps []answerStep
		if err := json.Unmarshal([]byte(trimmed), &steps); err != nil {
			return "", false
		}
		for _, step := range steps {
			if step.StepType != "FINAL" {
				continue
			}
			var content stepContent
			if err := json.Unmarshal(step.Content, &content); err != nil {
				return "", false
			}
			return unwrapAnswer(content.Answer), true
		}
		return "", false
	}

	var content stepContent
	if err := json.Unmarshal([]byte(trimmed), &content); err != nil {
		return "", false
	}
	return unwrapAnswer(content.Answer), true
}

// unwrapAnswer handles the double-encoded case where the answer string is a
// JSON object carrying the real answer.
func unwrapAnswer(answer string) string {
	trimmed := strings.TrimSpace(answer)
	if !strings.HasPrefix(trimmed, "{") || !strings.HasSuffix(trimmed, "}") {
		return answer
	}
	var inner stepContent
	if err := json.Unmarshal([]byte(trimmed), &inner); err != nil || inner.Answer == "" {
		return answer
	}
	return inner.Answer
}

// warmup performs the session-establishing GET the web UI issues before
// every ask.
func (a *Adapter) warmup(ctx context.Context, prompt string) error {
	resp, err := a.http.R().
		SetContext(ctx).
		SetQueryParam("q", prompt).
		Get(warmupPath)
	if err != nil {
		return fmt.Errorf("warmup request: %w", err)
	}
	a.log.Debug("warmup completed", zap.Int("status", resp.StatusCode()))
	return nil
}

// AskStream sends the prompt and invokes onChunk for every answer update.
// The final chunk has IsFinal set and carries the complete answer.
func (a *Adapter) AskStream(ctx context.Context, prompt string, onChunk func(StreamChunk)) error {
	if err := a.warmup(ctx, prompt); err != nil {
		return err
	}

	resp, err := a.http.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		SetBody(a.buildRequest(prompt)).
		Post(askPath)
	if err != nil {
		return fmt.Errorf("ask request: %w", err)
	}
	body := resp.RawBody()
	defer body.Close()

	if resp.StatusCode() != 200 {
		return fmt.Errorf("ask request: unexpected status %d", resp.StatusCode())
	}

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	var answer string
	lines := 0
	for scanner.Scan() {
		lines++
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}

		var event sseEvent
		if err := json.Unmarshal([]byte(line[len("data: "):]), &event); err != nil {
			a.log.Warn("skipping undecodable stream line", zap.Error(err))
			continue
		}

		if event.Text != "" {
			if updated, ok := parseAnswer(event.Text); ok {
				if strings.HasPrefix(updated, answer) {
					if delta := updated[len(answer):]; delta != "" {
						onChunk(StreamChunk{Delta: delta})
					}
				} else if updated != "" {
					// The upstream rewrote earlier text; the snapshot
					// replaces everything streamed so far.
					onChunk(StreamChunk{Delta: updated, Replace: true})
				}
				answer = updated
			}
		}

		if event.Final {
			a.log.Debug("stream finished",
				zap.Int("lines", lines),
				zap.Int("answer_len", len(answer)),
				zap.String("backend_uuid", event.BackendUUID))
			onChunk(StreamChunk{IsFinal: true, FinalAnswer: answer})
			return nil
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading stream: %w", err)
	}
	return fmt.Errorf("stream ended without final event")
}

// AskOnce sends the prompt and blocks until the complete answer arrives.
func (a *Adapter) AskOnce(ctx context.Context, prompt string) (string, error) {
	var final string
	err := a.AskStream(ctx, prompt, func(chunk StreamChunk) {
		if chunk.IsFinal {
			final = chunk.FinalAnswer
		}
	})
	if err != nil {
		return "", err
	}
	return final, nil
}

// CollectStreamText consumes a streaming response, assembling incremental
// text with fallback to the final answer when the stream supplies one.
func CollectStreamText(ctx context.Context, client Client, prompt string) (string, error) {
	var streamed strings.Builder
	var final string

	err := client.AskStream(ctx, prompt, func(chunk StreamChunk) {
		if chunk.Replace {
			streamed.Reset()
		}
		if chunk.Delta != "" {
			streamed.WriteString(chunk.Delta)
		}
		if chunk.IsFinal && strings.TrimSpace(chunk.FinalAnswer) != "" {
			final = chunk.FinalAnswer
		}
	})
	if err != nil {
		return "", err
	}
	if final != "" {
		return final, nil
	}
	return streamed.String(), nil
}
