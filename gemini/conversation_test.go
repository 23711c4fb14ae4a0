package gemini

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewUserTurn(t *testing.T) {
	png := []byte{0x89, 'P', 'N', 'G'}

	turn := NewUserTurn("find the cheapest flight", png)

	assert.Equal(t, RoleUser, turn.Role)
	require.Len(t, turn.Parts, 2)
	assert.Equal(t, "find the cheapest flight", turn.Parts[0].Text)
	require.NotNil(t, turn.Parts[1].InlineData)
	assert.Equal(t, "image/png", turn.Parts[1].InlineData.MimeType)
	assert.Equal(t, base64.StdEncoding.EncodeToString(png), turn.Parts[1].InlineData.Data)
}

func TestNewUserTurn_TextOnly(t *testing.T) {
	turn := NewUserTurn("hello", nil)

	require.Len(t, turn.Parts, 1)
	assert.Equal(t, "hello", turn.Parts[0].Text)
}

func TestNewFunctionResponseTurn(t *testing.T) {
	responses := []FunctionResponse{
		{Name: "click_at", Response: map[string]any{"url": "https://a"}},
		{Name: "navigate", Response: map[string]any{"url": "https://b"}},
	}

	turn := NewFunctionResponseTurn(responses)

	assert.Equal(t, RoleUser, turn.Role)
	require.Len(t, turn.Parts, 2)
	assert.Equal(t, "click_at", turn.Parts[0].FunctionResponse.Name)
	assert.Equal(t, "navigate", turn.Parts[1].FunctionResponse.Name)
}

func TestFunctionCalls(t *testing.T) {
	cand := &Candidate{Content: Content{
		Role: RoleModel,
		Parts: []Part{
			{Text: "I'll click the button"},
			{FunctionCall: &FunctionCall{Name: "click_at"}},
			{FunctionCall: &FunctionCall{Name: "type_text_at"}},
		},
	}}

	calls := FunctionCalls(cand)

	require.Len(t, calls, 2)
	assert.Equal(t, "click_at", calls[0].Name)
	assert.Equal(t, "type_text_at", calls[1].Name)
}

func TestFunctionCalls_FinalAnswer(t *testing.T) {
	cand := &Candidate{Content: Content{
		Parts: []Part{{Text: "The cheapest flight is $42."}},
	}}

	assert.Empty(t, FunctionCalls(cand), "a text-only candidate proposes no actions")
	assert.Empty(t, FunctionCalls(nil))
}

func TestFinalText(t *testing.T) {
	cand := &Candidate{Content: Content{
		Parts: []Part{
			{Text: "The answer"},
			{FunctionCall: &FunctionCall{Name: "noise"}},
			{Text: "is 42."},
		},
	}}

	assert.Equal(t, "The answer is 42.", FinalText(cand), "text parts join with spaces")
	assert.Empty(t, FinalText(nil))
}

func TestAcknowledgeSafety(t *testing.T) {
	t.Run("gated call yields acknowledgment", func(t *testing.T) {
		call := &FunctionCall{
			Name: "navigate",
			SafetyDecision: &SafetyDecision{
				Decision:    "require_confirmation",
				Explanation: "navigating to a login page",
			},
		}

		ack := AcknowledgeSafety(call)

		require.NotNil(t, ack)
		assert.True(t, ack.Acknowledged)
		assert.Equal(t, "require_confirmation", ack.Decision)
	})

	t.Run("ungated call needs none", func(t *testing.T) {
		assert.Nil(t, AcknowledgeSafety(&FunctionCall{Name: "click_at"}))
		assert.Nil(t, AcknowledgeSafety(nil))
	})
}
