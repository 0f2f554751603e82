// Package dispatcher performs the single remote exchange per user question.
// Every failure path (network error, non-2xx status, malformed payload,
// timeout) resolves to the same fixed degraded assistant message; the caller
// never sees an error and the underlying cause is only logged.
package dispatcher

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/0DidUStudy/ragchat/internal/history"
	"github.com/0DidUStudy/ragchat/internal/identity"
	"github.com/0DidUStudy/ragchat/internal/logger"
)

// FallbackContent is the single degraded-mode reply. One policy, every
// failure path.
const FallbackContent = "抱歉，智能教学服务暂时不可用，请稍后再试。"

const maxResponseBytes = 4 << 20

// Client talks to the remote question-answering service.
type Client struct {
	baseURL string
	httpc   *http.Client
}

// New builds a client for the service at baseURL. The timeout bounds the
// whole exchange; an unbounded wait would leave the controller stuck in its
// sending state.
func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpc:   &http.Client{Timeout: timeout},
	}
}

type queryRequest struct {
	Question  string `json:"question"`
	UserID    string `json:"user_id,omitempty"`
	SessionID string `json:"session_id,omitempty"`
}

type queryResponse struct {
	Response         string   `json:"response"`
	Timestamp        string   `json:"timestamp"`
	SubQuestions     []string `json:"sub_questions"`
	RetrievalContext struct {
		Knowledge []history.KnowledgeSnippet `json:"knowledge"`
		Memory    []history.MemoryEntity     `json:"memory"`
	} `json:"retrieval_context"`
}

// Fallback returns the degraded assistant message with an empty retrieval
// context, stamped now.
func Fallback() history.Message {
	return history.NewAssistantMessage(FallbackContent, emptyRetrieval())
}

// Send performs one POST /query exchange and maps the reply into an assistant
// message. It never returns an error and never mutates conversation state.
func (c *Client) Send(ctx context.Context, question string, id identity.Identity) history.Message {
	body, err := json.Marshal(queryRequest{
		Question:  question,
		UserID:    id.UserID,
		SessionID: id.SessionID,
	})
	if err != nil {
		logger.L.Error("failed to encode query", "error", err)
		return Fallback()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/query", bytes.NewReader(body))
	if err != nil {
		logger.L.Error("failed to build query request", "error", err)
		return Fallback()
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		logger.L.Warn("query request failed; using degraded reply", "error", err)
		return Fallback()
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		logger.L.Warn("query returned non-success status; using degraded reply", "status", resp.StatusCode)
		return Fallback()
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		logger.L.Warn("failed to read query response; using degraded reply", "error", err)
		return Fallback()
	}

	var qr queryResponse
	if err := json.Unmarshal(raw, &qr); err != nil || qr.Response == "" {
		logger.L.Warn("malformed query response; using degraded reply", "error", err)
		return Fallback()
	}

	rc := &history.RetrievalContext{
		Knowledge:    qr.RetrievalContext.Knowledge,
		Memory:       qr.RetrievalContext.Memory,
		SubQuestions: qr.SubQuestions,
	}
	if rc.Knowledge == nil {
		rc.Knowledge = []history.KnowledgeSnippet{}
	}
	if rc.Memory == nil {
		rc.Memory = []history.MemoryEntity{}
	}
	if rc.SubQuestions == nil {
		rc.SubQuestions = []string{}
	}

	return history.Message{
		Role:      history.RoleAssistant,
		Content:   qr.Response,
		Timestamp: parseTimestamp(qr.Timestamp),
		Retrieval: rc,
	}
}

// Health reports whether the service answered GET /health with 200.
func (c *Client) Health(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := c.httpc.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
	return resp.StatusCode == http.StatusOK
}

func emptyRetrieval() *history.RetrievalContext {
	return &history.RetrievalContext{
		Knowledge:    []history.KnowledgeSnippet{},
		Memory:       []history.MemoryEntity{},
		SubQuestions: []string{},
	}
}

// parseTimestamp accepts RFC3339 and the service's zone-less ISO-8601 form,
// defaulting to now when the field is absent or unparseable.
func parseTimestamp(s string) time.Time {
	if s == "" {
		return time.Now()
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t
	}
	if t, err := time.Parse("2006-01-02T15:04:05.999999999", s); err == nil {
		return t.UTC()
	}
	return time.Now()
}
