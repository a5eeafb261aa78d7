// Package protocol defines the wire messages streamed to the
// visualization client: JSON envelopes plus tagged binary frames.
package protocol

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
)

// Message type names of the JSON envelopes.
const (
	TypeInferenceRun    = "inference.run"
	TypeInferenceResult = "inference.result"
	TypeActivationFrame = "activation.frame"
	TypeSlices          = "activation.slices"
	TypeProjections     = "activation.projections"
	TypeError           = "error"
)

// Binary frame tags. Every binary frame starts with the tag as a
// 4-byte little-endian uint32; the remainder is the payload.
const (
	TagSlices      uint32 = 0x01
	TagProjections uint32 = 0x02
)

// TagLen is the byte length of the binary frame tag prefix.
const TagLen = 4

// Envelope is the outer JSON message shape, both directions.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// InferenceRun is the inbound request starting one turn.
type InferenceRun struct {
	Prompt       string `json:"prompt"`
	MaxNewTokens int    `json:"max_new_tokens"`
}

// DefaultMaxNewTokens applies when the client omits the token budget.
const DefaultMaxNewTokens = 64

// ActivationFrame is the per-turn block heat summary.
type ActivationFrame struct {
	BlockHeat []float64 `json:"block_heat"`
	ModelID   string    `json:"model_id"`
	Prompt    string    `json:"prompt"`
	NumLayers int       `json:"num_layers"`
}

// Projections announces the sizes of the projection binary frame.
type Projections struct {
	NumLayers     int `json:"num_layers"`
	SeqLen        int `json:"seq_len"`
	DModel        int `json:"d_model"`
	NumStages     int `json:"num_stages"`
	TokenProjSize int `json:"token_proj_size"`
}

// InferenceResult carries the generated text and always ends a turn.
type InferenceResult struct {
	Text    string `json:"text"`
	ModelID string `json:"model_id"`
}

// ErrorPayload reports a turn or parse failure.
type ErrorPayload struct {
	Message string `json:"message"`
}

// Encode wraps a payload into an envelope and marshals it.
func Encode(msgType string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("protocol: marshal %s payload: %w", msgType, err)
	}
	return json.Marshal(Envelope{Type: msgType, Payload: raw})
}

// BinaryFrame prefixes payload with the little-endian frame tag.
func BinaryFrame(tag uint32, payload []byte) []byte {
	frame := make([]byte, TagLen+len(payload))
	binary.LittleEndian.PutUint32(frame, tag)
	copy(frame[TagLen:], payload)
	return frame
}

// ProjectionFrame builds the tag-0x02 frame: token projection bytes
// immediately followed by dimension projection bytes.
func ProjectionFrame(tokenProj, dimProj []byte) []byte {
	frame := make([]byte, TagLen+len(tokenProj)+len(dimProj))
	binary.LittleEndian.PutUint32(frame, TagProjections)
	copy(frame[TagLen:], tokenProj)
	copy(frame[TagLen+len(tokenProj):], dimProj)
	return frame
}

// DecodeInbound parses a client message. A nil error means the
// envelope was well-formed JSON with a type; the payload still has to
// be decoded per type.
func DecodeInbound(raw []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Envelope{}, err
	}
	return env, nil
}

// DecodeInferenceRun parses the inference.run payload and applies the
// default token budget.
func DecodeInferenceRun(payload json.RawMessage) (InferenceRun, error) {
	req := InferenceRun{MaxNewTokens: DefaultMaxNewTokens}
	if len(payload) == 0 {
		return req, nil
	}
	if err := json.Unmarshal(payload, &req); err != nil {
		return InferenceRun{}, err
	}
	if req.MaxNewTokens <= 0 {
		req.MaxNewTokens = DefaultMaxNewTokens
	}
	return req, nil
}
