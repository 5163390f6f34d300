package role

import (
	"github.com/dotcommander/storyteller/internal/llm"
)

// Permission filters the transcript an agent is allowed to see. Apply must
// not modify its input.
type Permission interface {
	Name() string
	Apply(msgs []llm.Message) []llm.Message
}

// LastMessage keeps only the final message.
type LastMessage struct{}

func (LastMessage) Name() string { return "last_message" }

func (LastMessage) Apply(msgs []llm.Message) []llm.Message {
	if len(msgs) == 0 {
		return nil
	}
	return []llm.Message{msgs[len(msgs)-1]}
}

// NoInfo hides the whole transcript.
type NoInfo struct{}

func (NoInfo) Name() string { return "no_info" }

func (NoInfo) Apply([]llm.Message) []llm.Message { return nil }

// NoSystemPrompts drops system messages.
type NoSystemPrompts struct{}

func (NoSystemPrompts) Name() string { return "no_system_prompts" }

func (NoSystemPrompts) Apply(msgs []llm.Message) []llm.Message {
	out := make([]llm.Message, 0, len(msgs))
	for _, m := range msgs {
		if m.Role != llm.RoleSystem {
			out = append(out, m)
		}
	}
	return out
}
