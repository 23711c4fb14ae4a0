/*
Package gemini is the vision-capability client behind webpilot's agent
loop. It talks to the Gemini REST API
(generativelanguage.googleapis.com) directly, building requests, parsing
responses and mapping errors itself, with the computer-use tool enabled
on every call.

# Core structs

  - Client — holds the http.Client, rate limiter, tracer and config;
    authenticates with the x-goog-api-key header
  - Content / Part — multimodal conversation turns (text, inline PNG,
    function calls, function responses)
  - FunctionCall / FunctionResponse — the action-proposal round trip,
    including the safety-decision handshake

# Constructors

  - NewClient(cfg, collector, logger) — requires an API key; defaults to
    the computer-use preview model

# Capabilities

  - generateContent (/v1beta/models/{model}:generateContent) with the
    ENVIRONMENT_BROWSER computer-use tool
  - Conversation builders and candidate extractors (NewUserTurn,
    NewFunctionResponseTurn, FunctionCalls, FinalText)
  - Safety-decision acknowledgment (AcknowledgeSafety)

# Unsupported

  - Streaming, embeddings, model listing
*/
package gemini
