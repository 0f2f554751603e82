package dispatcher

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/0DidUStudy/ragchat/internal/history"
	"github.com/0DidUStudy/ragchat/internal/identity"
)

func TestSend_MapsSuccessfulResponse(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/query", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"response": "KMP是一种字符串匹配算法。",
			"timestamp": "2026-03-01T08:30:00.120000",
			"sub_questions": ["什么是部分匹配表？"],
			"retrieval_context": {
				"knowledge": [{"type": "knowledge_base", "content": "KMP避免回溯。", "score": 0.9}],
				"memory": [{"entity": "KMP", "type": "Algorithm", "properties": {"complexity": "O(n+m)"}, "score": 0.8}]
			},
			"conversation_id": 17
		}`))
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second)
	msg := c.Send(context.Background(), "什么是KMP算法？", identity.Identity{UserID: "u1", SessionID: "s1"})

	require.Equal(t, "什么是KMP算法？", gotBody["question"])
	require.Equal(t, "u1", gotBody["user_id"])
	require.Equal(t, "s1", gotBody["session_id"])

	require.Equal(t, history.RoleAssistant, msg.Role)
	require.Equal(t, "KMP是一种字符串匹配算法。", msg.Content)
	require.Equal(t, 2026, msg.Timestamp.Year())
	require.NotNil(t, msg.Retrieval)
	require.Equal(t, []string{"什么是部分匹配表？"}, msg.Retrieval.SubQuestions)
	require.Len(t, msg.Retrieval.Knowledge, 1)
	require.Equal(t, "knowledge_base", msg.Retrieval.Knowledge[0].Type)
	require.Len(t, msg.Retrieval.Memory, 1)
	require.Equal(t, "KMP", msg.Retrieval.Memory[0].Entity)
}

func TestSend_MissingOptionalsDefaultToEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"response": "答案"}`))
	}))
	defer srv.Close()

	before := time.Now().Add(-time.Second)
	msg := New(srv.URL, time.Second).Send(context.Background(), "q", identity.Identity{})

	require.Equal(t, "答案", msg.Content)
	require.NotNil(t, msg.Retrieval)
	require.Empty(t, msg.Retrieval.Knowledge)
	require.Empty(t, msg.Retrieval.Memory)
	require.Empty(t, msg.Retrieval.SubQuestions)
	require.True(t, msg.Timestamp.After(before), "missing timestamp should default to now")
}

func TestSend_NonSuccessStatusYieldsFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	msg := New(srv.URL, time.Second).Send(context.Background(), "q", identity.Identity{})
	requireFallback(t, msg)
}

func TestSend_MalformedPayloadYieldsFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"respo`))
	}))
	defer srv.Close()

	msg := New(srv.URL, time.Second).Send(context.Background(), "q", identity.Identity{})
	requireFallback(t, msg)
}

func TestSend_UnreachableServiceYieldsFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	msg := New(srv.URL, time.Second).Send(context.Background(), "q", identity.Identity{})
	requireFallback(t, msg)
}

func TestSend_TimeoutYieldsFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
		w.Write([]byte(`{"response": "too late"}`))
	}))
	defer srv.Close()

	start := time.Now()
	msg := New(srv.URL, 50*time.Millisecond).Send(context.Background(), "q", identity.Identity{})
	requireFallback(t, msg)
	require.Less(t, time.Since(start), 300*time.Millisecond, "send must be bounded by the timeout")
}

func TestHealth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(`{"status": "healthy"}`))
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second)
	require.True(t, c.Health(context.Background()))

	srv.Close()
	require.False(t, c.Health(context.Background()))
}

func TestHealth_NonOKStatusIsUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	require.False(t, New(srv.URL, time.Second).Health(context.Background()))
}

func requireFallback(t *testing.T, msg history.Message) {
	t.Helper()
	require.Equal(t, history.RoleAssistant, msg.Role)
	require.Equal(t, FallbackContent, msg.Content)
	require.NotNil(t, msg.Retrieval)
	require.Empty(t, msg.Retrieval.Knowledge)
	require.Empty(t, msg.Retrieval.Memory)
	require.Empty(t, msg.Retrieval.SubQuestions)
}
