package gemini

// Conversation roles. The API uses "model" for assistant turns.
const (
	RoleUser  = "user"
	RoleModel = "model"
)

// EnvironmentBrowser selects the browser action space of the computer-use
// tool.
const EnvironmentBrowser = "ENVIRONMENT_BROWSER"

// Content is one conversation turn.
type Content struct {
	Role  string `json:"role,omitempty"`
	Parts []Part `json:"parts"`
}

// Part is a fragment of a turn: text, inline media, a proposed function
// call or a function response.
type Part struct {
	Text             string            `json:"text,omitempty"`
	InlineData       *InlineData       `json:"inlineData,omitempty"`
	FunctionCall     *FunctionCall     `json:"functionCall,omitempty"`
	FunctionResponse *FunctionResponse `json:"functionResponse,omitempty"`
}

// InlineData carries base64-encoded media.
type InlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

// FunctionCall is one browser action the model proposes. A safety decision,
// when present, rides on the call itself rather than in any content field.
type FunctionCall struct {
	Name           string          `json:"name"`
	Args           map[string]any  `json:"args,omitempty"`
	SafetyDecision *SafetyDecision `json:"safetyDecision,omitempty"`
}

// SafetyDecision marks a proposed action the model will only perform after
// an explicit confirmation.
type SafetyDecision struct {
	Decision    string `json:"decision,omitempty"`
	Explanation string `json:"explanation,omitempty"`
}

// SafetyAcknowledgment confirms a safety decision. It must ride on the
// function response of the gated call or the API rejects the request.
type SafetyAcknowledgment struct {
	Acknowledged bool   `json:"acknowledged"`
	Decision     string `json:"decision,omitempty"`
}

// FunctionResponse reports one executed action back to the model, with the
// post-action screenshot attached as a response part.
type FunctionResponse struct {
	Name                 string                 `json:"name"`
	Response             map[string]any         `json:"response"`
	Parts                []FunctionResponsePart `json:"parts,omitempty"`
	SafetyAcknowledgment *SafetyAcknowledgment  `json:"safetyDecisionAcknowledgment,omitempty"`
}

// FunctionResponsePart attaches media to a function response.
type FunctionResponsePart struct {
	InlineData *InlineData `json:"inlineData,omitempty"`
}

// Tool enables a model capability. Only computer use is carried here.
type Tool struct {
	ComputerUse *ComputerUse `json:"computerUse,omitempty"`
}

// ComputerUse declares the environment the proposed actions target.
type ComputerUse struct {
	Environment string `json:"environment"`
}

// Candidate is one model answer: either function-call parts (actions to
// execute) or text parts (the final answer).
type Candidate struct {
	Content      Content `json:"content"`
	FinishReason string  `json:"finishReason,omitempty"`
	Index        int     `json:"index"`
}

// UsageMetadata reports token consumption for one request.
type UsageMetadata struct {
	PromptTokenCount     int `json:"promptTokenCount"`
	CandidatesTokenCount int `json:"candidatesTokenCount"`
	TotalTokenCount      int `json:"totalTokenCount"`
}

type generateRequest struct {
	Contents []Content `json:"contents"`
	Tools    []Tool    `json:"tools,omitempty"`
}

type generateResponse struct {
	Candidates    []Candidate    `json:"candidates"`
	UsageMetadata *UsageMetadata `json:"usageMetadata,omitempty"`
	ModelVersion  string         `json:"modelVersion,omitempty"`
	ResponseID    string         `json:"responseId,omitempty"`
}

type errorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}
