package gemini

import (
	"encoding/base64"
	"strings"
)

// NewUserTurn builds the opening user turn: the task instruction plus the
// initial screenshot when one is available.
func NewUserTurn(text string, png []byte) Content {
	parts := []Part{{Text: text}}
	if len(png) > 0 {
		parts = append(parts, Part{InlineData: &InlineData{
			MimeType: "image/png",
			Data:     base64.StdEncoding.EncodeToString(png),
		}})
	}
	return Content{Role: RoleUser, Parts: parts}
}

// NewFunctionResponseTurn wraps the responses for one turn's executed
// actions into a single user turn.
func NewFunctionResponseTurn(responses []FunctionResponse) Content {
	parts := make([]Part, 0, len(responses))
	for i := range responses {
		parts = append(parts, Part{FunctionResponse: &responses[i]})
	}
	return Content{Role: RoleUser, Parts: parts}
}

// NewScreenshotData encodes a PNG capture as inline media.
func NewScreenshotData(png []byte) *InlineData {
	return &InlineData{
		MimeType: "image/png",
		Data:     base64.StdEncoding.EncodeToString(png),
	}
}

// FunctionCalls extracts the model's proposed actions from a candidate, in
// part order. An empty result means the candidate is a final answer.
func FunctionCalls(c *Candidate) []*FunctionCall {
	if c == nil {
		return nil
	}
	var calls []*FunctionCall
	for i := range c.Content.Parts {
		if fc := c.Content.Parts[i].FunctionCall; fc != nil {
			calls = append(calls, fc)
		}
	}
	return calls
}

// FinalText joins the candidate's non-empty text parts with spaces.
func FinalText(c *Candidate) string {
	if c == nil {
		return ""
	}
	var texts []string
	for _, p := range c.Content.Parts {
		if p.Text != "" {
			texts = append(texts, p.Text)
		}
	}
	return strings.Join(texts, " ")
}

// AcknowledgeSafety builds the acknowledgment a gated call demands. The
// decision is read from the function call itself, the one field the
// capability populates; a nil result means no acknowledgment is needed.
func AcknowledgeSafety(call *FunctionCall) *SafetyAcknowledgment {
	if call == nil || call.SafetyDecision == nil {
		return nil
	}
	return &SafetyAcknowledgment{
		Acknowledged: true,
		Decision:     call.SafetyDecision.Decision,
	}
}
