package protocol

import (
	"encoding/binary"
	"encoding/json"
	"testing"
)

func TestEncode_EnvelopeShape(t *testing.T) {
	raw, err := Encode(TypeInferenceResult, InferenceResult{Text: "hello", ModelID: "synthetic"})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		t.Fatalf("unmarshal envelope: %v", err)
	}
	if env.Type != TypeInferenceResult {
		t.Errorf("type = %q, want %q", env.Type, TypeInferenceResult)
	}

	var res InferenceResult
	if err := json.Unmarshal(env.Payload, &res); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if res.Text != "hello" || res.ModelID != "synthetic" {
		t.Errorf("payload = %+v", res)
	}
}

func TestBinaryFrame_TagPrefix(t *testing.T) {
	payload := []byte{0xaa, 0xbb, 0xcc}
	frame := BinaryFrame(TagSlices, payload)

	if len(frame) != TagLen+len(payload) {
		t.Fatalf("len = %d, want %d", len(frame), TagLen+len(payload))
	}
	if tag := binary.LittleEndian.Uint32(frame); tag != TagSlices {
		t.Errorf("tag = %#x, want %#x", tag, TagSlices)
	}
	for i, b := range payload {
		if frame[TagLen+i] != b {
			t.Fatalf("payload byte %d = %#x, want %#x", i, frame[TagLen+i], b)
		}
	}
}

func TestProjectionFrame_Concatenation(t *testing.T) {
	tok := []byte{1, 2, 3, 4}
	dim := []byte{5, 6}
	frame := ProjectionFrame(tok, dim)

	if tag := binary.LittleEndian.Uint32(frame); tag != TagProjections {
		t.Fatalf("tag = %#x, want %#x", tag, TagProjections)
	}
	body := frame[TagLen:]
	if len(body) != len(tok)+len(dim) {
		t.Fatalf("body = %d bytes, want %d", len(body), len(tok)+len(dim))
	}
	// Token projection bytes come first, dimension projection follows.
	for i, b := range tok {
		if body[i] != b {
			t.Fatalf("token byte %d = %#x, want %#x", i, body[i], b)
		}
	}
	for i, b := range dim {
		if body[len(tok)+i] != b {
			t.Fatalf("dim byte %d = %#x, want %#x", i, body[len(tok)+i], b)
		}
	}
}

func TestDecodeInferenceRun_Defaults(t *testing.T) {
	tests := []struct {
		name       string
		payload    string
		wantPrompt string
		wantTokens int
	}{
		{"explicit budget", `{"prompt": "hi", "max_new_tokens": 16}`, "hi", 16},
		{"omitted budget", `{"prompt": "hi"}`, "hi", DefaultMaxNewTokens},
		{"zero budget", `{"prompt": "hi", "max_new_tokens": 0}`, "hi", DefaultMaxNewTokens},
		{"negative budget", `{"prompt": "hi", "max_new_tokens": -3}`, "hi", DefaultMaxNewTokens},
		{"empty payload", ``, "", DefaultMaxNewTokens},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := DecodeInferenceRun(json.RawMessage(tt.payload))
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			if req.Prompt != tt.wantPrompt || req.MaxNewTokens != tt.wantTokens {
				t.Errorf("req = %+v, want prompt=%q tokens=%d", req, tt.wantPrompt, tt.wantTokens)
			}
		})
	}
}

func TestDecodeInbound_MalformedJSON(t *testing.T) {
	if _, err := DecodeInbound([]byte("not json{")); err == nil {
		t.Fatal("expected error for malformed frame")
	}
}
