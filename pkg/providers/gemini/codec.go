package gemini

import (
	"errors"
	"strings"

	"github.com/germanamz/invoker/pkg/chats/chat"
	"github.com/germanamz/invoker/pkg/chats/role"
	"github.com/germanamz/invoker/pkg/modeladapter"
	"github.com/germanamz/invoker/pkg/modeladapter/usage"
)

// ErrEmptyCandidates is returned when a response carries no candidates,
// typically because the prompt was blocked.
var ErrEmptyCandidates = errors.New("empty candidates in response")

// --- request types ---

// Request is the generateContent request body. Both the Gemini API and the
// managed model endpoints accept it.
type Request struct {
	Contents          []Content        `json:"contents"`
	SystemInstruction *Content         `json:"systemInstruction,omitempty"`
	GenerationConfig  GenerationConfig `json:"generationConfig"`
}

// Content is one turn of the conversation.
type Content struct {
	Role  string `json:"role,omitempty"`
	Parts []Part `json:"parts"`
}

// Part is a text part of a Content.
type Part struct {
	Text string `json:"text"`
}

// GenerationConfig holds sampling settings. Temperature is always sent so
// that 0 selects greedy decoding instead of the provider default.
type GenerationConfig struct {
	Temperature     *float64 `json:"temperature,omitempty"`
	MaxOutputTokens int      `json:"maxOutputTokens,omitempty"`
}

// --- response types ---

// Response is the generateContent response body.
type Response struct {
	Candidates    []Candidate `json:"candidates"`
	UsageMetadata UsageMeta   `json:"usageMetadata"`
}

type Candidate struct {
	Content      Content `json:"content"`
	FinishReason string  `json:"finishReason"`
}

type UsageMeta struct {
	PromptTokenCount     int `json:"promptTokenCount"`
	CandidatesTokenCount int `json:"candidatesTokenCount"`
	TotalTokenCount      int `json:"totalTokenCount"`
}

// --- conversion helpers ---

// EncodeRequest converts a conversation into a generateContent request.
// System messages become parts of the system instruction, in order; every
// other message becomes a content entry with its role mapped. Consecutive
// messages with the same role are merged since the API requires alternation.
// No ordering or count checks are made here; the backend decides what it
// accepts.
func EncodeRequest(c *chat.Chat, temperature float64, maxTokens int) Request {
	t := temperature
	req := Request{
		GenerationConfig: GenerationConfig{
			Temperature:     &t,
			MaxOutputTokens: maxTokens,
		},
	}

	if sys := c.System(); len(sys) > 0 {
		si := &Content{}
		for _, m := range sys {
			si.Parts = append(si.Parts, Part{Text: m.Content})
		}
		req.SystemInstruction = si
	}

	for _, m := range c.Turns() {
		apiRole := mapRole(m.Role)

		if n := len(req.Contents); n > 0 && req.Contents[n-1].Role == apiRole {
			req.Contents[n-1].Parts = append(req.Contents[n-1].Parts, Part{Text: m.Content})
			continue
		}

		req.Contents = append(req.Contents, Content{
			Role:  apiRole,
			Parts: []Part{{Text: m.Content}},
		})
	}

	return req
}

// DecodeResponse extracts the first candidate's text, finish reason, and
// token usage.
func DecodeResponse(resp Response) (modeladapter.Completion, error) {
	if len(resp.Candidates) == 0 {
		return modeladapter.Completion{}, ErrEmptyCandidates
	}

	cand := resp.Candidates[0]

	var b strings.Builder
	for _, p := range cand.Content.Parts {
		b.WriteString(p.Text)
	}

	return modeladapter.Completion{
		Text:       b.String(),
		StopReason: cand.FinishReason,
		Usage: usage.TokenCount{
			InputTokens:  resp.UsageMetadata.PromptTokenCount,
			OutputTokens: resp.UsageMetadata.CandidatesTokenCount,
		},
	}, nil
}

func mapRole(r role.Role) string {
	if r == role.Assistant {
		return "model"
	}
	return "user"
}
