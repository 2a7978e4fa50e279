package openrouter

import (
	"github.com/openai/openai-go"

	"github.com/madlen/chat-backend/pkg/history"
)

// MapHistory translates stored conversation history into the completion
// API's message format. It is the sole boundary between the ledger's message
// shape and the wire shape: order-preserving, side-effect free.
//
// A message carrying image attachments becomes a multi-part message with one
// text part (the stored content, even when empty) followed by one image part
// per URL in stored order. Everything else maps to a plain text message of
// the same role.
func MapHistory(messages []history.Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, msg := range messages {
		if msg.Role == history.RoleUser && len(msg.ImageURLs) > 0 {
			parts := make([]openai.ChatCompletionContentPartUnionParam, 0, len(msg.ImageURLs)+1)
			parts = append(parts, openai.TextContentPart(msg.Content))
			for _, url := range msg.ImageURLs {
				parts = append(parts, openai.ImageContentPart(
					openai.ChatCompletionContentPartImageImageURLParam{URL: url},
				))
			}
			out = append(out, openai.UserMessage(parts))
			continue
		}

		switch msg.Role {
		case history.RoleSystem:
			out = append(out, openai.SystemMessage(msg.Content))
		case history.RoleAssistant:
			out = append(out, openai.AssistantMessage(msg.Content))
		default:
			out = append(out, openai.UserMessage(msg.Content))
		}
	}
	return out
}
