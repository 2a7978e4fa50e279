package httpapi

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/madlen/chat-backend/pkg/chat"
)

// ChatRequestSchema is the JSON Schema for the chat request body
const ChatRequestSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["model", "message"],
  "properties": {
    "sessionId": {
      "type": "string",
      "description": "Existing session to continue; omit to start a new one"
    },
    "model": {
      "type": "string",
      "minLength": 1,
      "description": "Model identifier to complete with"
    },
    "message": {
      "type": "string",
      "minLength": 1,
      "description": "User message text"
    },
    "imageUrls": {
      "type": "array",
      "items": {
        "type": "string",
        "minLength": 1
      },
      "description": "Relative URLs of uploaded images"
    },
    "temperature": {
      "type": "number",
      "minimum": 0,
      "maximum": 2,
      "description": "Sampling temperature"
    }
  }
}`

var chatSchemaLoader = gojsonschema.NewStringLoader(ChatRequestSchema)

// validateChatRequest checks the raw body against the request schema. A
// violation maps to a 400 through chat.ValidationError.
func validateChatRequest(body []byte) error {
	result, err := gojsonschema.Validate(chatSchemaLoader, gojsonschema.NewBytesLoader(body))
	if err != nil {
		return &chat.ValidationError{Msg: "request body must be valid JSON"}
	}
	if result.Valid() {
		return nil
	}

	// Missing or empty required fields get the message the frontend expects.
	for _, violation := range result.Errors() {
		switch violation.Type() {
		case "required":
			return &chat.ValidationError{Msg: "model and message are required"}
		case "string_gte":
			if field := violation.Field(); field == "model" || field == "message" {
				return &chat.ValidationError{Msg: "model and message are required"}
			}
		}
	}

	details := make([]string, 0, len(result.Errors()))
	for _, violation := range result.Errors() {
		details = append(details, violation.String())
	}
	return &chat.ValidationError{Msg: fmt.Sprintf("invalid chat request: %s", strings.Join(details, "; "))}
}
