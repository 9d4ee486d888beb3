package ai

import (
	"context"
	"encoding/base64"
	"fmt"
)

// Role of a chat message
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ImagePart is an image inlined into a user message
type ImagePart struct {
	MIMEType string
	Data     []byte
	Detail   string // low | high | auto
}

// DataURI encodes the image as data:<mime>;base64,<payload>
func (p ImagePart) DataURI() string {
	return fmt.Sprintf("data:%s;base64,%s", p.MIMEType, base64.StdEncoding.EncodeToString(p.Data))
}

type Message struct {
	Role   Role
	Text   string
	Images []ImagePart
}

// CompletionRequest is one call to the completion API
type CompletionRequest struct {
	Model       string
	Messages    []Message
	MaxTokens   int
	Temperature float32
	JSONMode    bool
}

// Client port to the hosted completion API
type Client interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}
