package history

import "time"

// Role identifies who produced a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn in the conversation. Assistant messages may carry the
// retrieval context returned by the remote service.
type Message struct {
	Role      Role              `json:"role"`
	Content   string            `json:"content"`
	Timestamp time.Time         `json:"timestamp"`
	Retrieval *RetrievalContext `json:"retrieval_context,omitempty"`
}

// RetrievalContext is the auxiliary metadata attached to an assistant message:
// matched knowledge snippets, memory entities and suggested sub-questions.
type RetrievalContext struct {
	Knowledge    []KnowledgeSnippet `json:"knowledge"`
	Memory       []MemoryEntity     `json:"memory"`
	SubQuestions []string           `json:"sub_questions"`
}

// KnowledgeSnippet is one matched knowledge-base entry.
type KnowledgeSnippet struct {
	Type    string  `json:"type"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`
}

// MemoryEntity is one memory-graph node the service used for the answer.
type MemoryEntity struct {
	Entity     string         `json:"entity"`
	Type       string         `json:"type"`
	Properties map[string]any `json:"properties"`
	Score      float64        `json:"score"`
}

// GreetingContent is the canned opening message shown whenever no persisted
// history exists.
const GreetingContent = "你好！我是智能教学助手，可以回答数据结构与算法方面的问题。试着问我：什么是KMP算法？"

// Greeting returns a fresh canned greeting message.
func Greeting() Message {
	return Message{
		Role:      RoleAssistant,
		Content:   GreetingContent,
		Timestamp: time.Now(),
	}
}

// NewUserMessage builds a user message stamped now.
func NewUserMessage(content string) Message {
	return Message{
		Role:      RoleUser,
		Content:   content,
		Timestamp: time.Now(),
	}
}

// NewAssistantMessage builds an assistant message stamped now.
func NewAssistantMessage(content string, rc *RetrievalContext) Message {
	return Message{
		Role:      RoleAssistant,
		Content:   content,
		Timestamp: time.Now(),
		Retrieval: rc,
	}
}
