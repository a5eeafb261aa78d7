package api

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/rikugan-dev/rikugan/pkg/adapter"
	"github.com/rikugan-dev/rikugan/pkg/config"
	"github.com/rikugan-dev/rikugan/pkg/probe"
	"github.com/rikugan-dev/rikugan/pkg/protocol"
	"github.com/rikugan-dev/rikugan/pkg/session"
)

// newTestServer builds a full server with an empty session slot.
func newTestServer(t *testing.T) (*httptest.Server, *session.State) {
	t.Helper()

	state := session.New()
	cfg := config.Default()
	srv := NewServer(cfg.Server, Deps{
		Registry: adapter.Default(),
		State:    state,
		Model:    cfg.Model,
		Metrics:  NewMetrics(prometheus.NewRegistry()),
		Log:      zerolog.Nop(),
	})

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, state
}

func dialWS(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func loadFine(t *testing.T, state *session.State, layers, dModel int) *adapter.Synthetic {
	t.Helper()
	a := adapter.NewSynthetic(adapter.SyntheticConfig{Layers: layers, DModel: dModel})
	if err := a.Load(context.Background(), adapter.LoadOptions{}); err != nil {
		t.Fatalf("load: %v", err)
	}
	state.Set(a, a.Descriptor().ID)
	return a
}

func sendRun(t *testing.T, conn *websocket.Conn, prompt string, maxNewTokens int) {
	t.Helper()
	msg, err := protocol.Encode(protocol.TypeInferenceRun, protocol.InferenceRun{
		Prompt:       prompt,
		MaxNewTokens: maxNewTokens,
	})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
		t.Fatalf("write: %v", err)
	}
}

// readText reads the next frame and requires it to be a JSON envelope
// of the given type, returning the raw payload.
func readText(t *testing.T, conn *websocket.Conn, wantType string) json.RawMessage {
	t.Helper()
	msgType, raw, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if msgType != websocket.TextMessage {
		t.Fatalf("message type = %d, want text while expecting %q", msgType, wantType)
	}
	var env protocol.Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if env.Type != wantType {
		t.Fatalf("envelope type = %q, want %q", env.Type, wantType)
	}
	return env.Payload
}

// readBinary reads the next frame and requires it to be a binary frame
// with the given tag, returning the payload after the tag.
func readBinary(t *testing.T, conn *websocket.Conn, wantTag uint32) []byte {
	t.Helper()
	msgType, raw, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if msgType != websocket.BinaryMessage {
		t.Fatalf("message type = %d, want binary", msgType)
	}
	if len(raw) < protocol.TagLen {
		t.Fatalf("binary frame too short: %d bytes", len(raw))
	}
	if tag := binary.LittleEndian.Uint32(raw); tag != wantTag {
		t.Fatalf("tag = %#x, want %#x", tag, wantTag)
	}
	return raw[protocol.TagLen:]
}

// -----------------------------------------------------------------------------
// Protocol Order Tests
// -----------------------------------------------------------------------------

func TestStream_FineTurnOrder(t *testing.T) {
	const (
		layers = 2
		dModel = 8
		prompt = "Hi"
	)
	ts, state := newTestServer(t)
	loadFine(t, state, layers, dModel)
	conn := dialWS(t, ts)

	sendRun(t, conn, prompt, 4)

	// 1. activation.frame
	var frame protocol.ActivationFrame
	if err := json.Unmarshal(readText(t, conn, protocol.TypeActivationFrame), &frame); err != nil {
		t.Fatalf("frame payload: %v", err)
	}
	if len(frame.BlockHeat) != layers || frame.NumLayers != layers {
		t.Errorf("frame = %+v, want %d layers", frame, layers)
	}
	if frame.Prompt != prompt || frame.ModelID != "synthetic-tiny" {
		t.Errorf("frame = %+v", frame)
	}
	for l, h := range frame.BlockHeat {
		if h <= 0 {
			t.Errorf("heat[%d] = %v, want > 0", l, h)
		}
	}

	// 2. activation.slices
	var meta probe.SliceMetadata
	if err := json.Unmarshal(readText(t, conn, protocol.TypeSlices), &meta); err != nil {
		t.Fatalf("slices payload: %v", err)
	}
	seqLen := len(prompt)
	if meta.NumLayers != layers || meta.SeqLen != seqLen || meta.DModel != dModel {
		t.Errorf("meta = %+v", meta)
	}
	if len(meta.SliceTypes) != probe.NumSlices {
		t.Errorf("slice types = %v", meta.SliceTypes)
	}

	// 3. binary 0x01: the full slice buffer
	sliceBytes := readBinary(t, conn, protocol.TagSlices)
	if want := layers * probe.NumSlices * seqLen * dModel * 4; len(sliceBytes) != want {
		t.Errorf("slice payload = %d bytes, want %d", len(sliceBytes), want)
	}

	// 4. activation.projections
	var proj protocol.Projections
	if err := json.Unmarshal(readText(t, conn, protocol.TypeProjections), &proj); err != nil {
		t.Fatalf("projections payload: %v", err)
	}
	wantTok := layers * probe.NumSlices * seqLen * 4
	if proj.NumStages != probe.NumSlices || proj.TokenProjSize != wantTok {
		t.Errorf("projections = %+v, want token_proj_size %d", proj, wantTok)
	}

	// 5. binary 0x02: token projection then dim projection
	projBytes := readBinary(t, conn, protocol.TagProjections)
	wantDim := layers * probe.NumSlices * dModel * 4
	if len(projBytes) != wantTok+wantDim {
		t.Errorf("projection payload = %d bytes, want %d", len(projBytes), wantTok+wantDim)
	}

	// 6. inference.result, always last
	var result protocol.InferenceResult
	if err := json.Unmarshal(readText(t, conn, protocol.TypeInferenceResult), &result); err != nil {
		t.Fatalf("result payload: %v", err)
	}
	if result.Text == "" || result.ModelID != "synthetic-tiny" {
		t.Errorf("result = %+v", result)
	}
}

func TestStream_CoarseTurnOrder(t *testing.T) {
	ts, state := newTestServer(t)

	a := adapter.NewCoarseSynthetic()
	if err := a.Load(context.Background(), adapter.LoadOptions{}); err != nil {
		t.Fatalf("load: %v", err)
	}
	state.Set(a, a.Descriptor().ID)
	conn := dialWS(t, ts)

	sendRun(t, conn, "hello", 4)

	var frame protocol.ActivationFrame
	if err := json.Unmarshal(readText(t, conn, protocol.TypeActivationFrame), &frame); err != nil {
		t.Fatalf("frame payload: %v", err)
	}
	if len(frame.BlockHeat) != a.Descriptor().Layers {
		t.Errorf("heat length = %d, want %d", len(frame.BlockHeat), a.Descriptor().Layers)
	}

	// Coarse models skip straight to the result: no slices, no binary.
	var result protocol.InferenceResult
	if err := json.Unmarshal(readText(t, conn, protocol.TypeInferenceResult), &result); err != nil {
		t.Fatalf("result payload: %v", err)
	}
	if result.ModelID != "synthetic-coarse" {
		t.Errorf("result = %+v", result)
	}
}

func TestStream_PlainTurnResultOnly(t *testing.T) {
	ts, state := newTestServer(t)

	a := adapter.NewEcho()
	if err := a.Load(context.Background(), adapter.LoadOptions{}); err != nil {
		t.Fatalf("load: %v", err)
	}
	state.Set(a, a.Descriptor().ID)
	conn := dialWS(t, ts)

	sendRun(t, conn, "repeat me", 4)

	var result protocol.InferenceResult
	if err := json.Unmarshal(readText(t, conn, protocol.TypeInferenceResult), &result); err != nil {
		t.Fatalf("result payload: %v", err)
	}
	if result.Text == "" {
		t.Error("expected echoed text")
	}
}

// -----------------------------------------------------------------------------
// Error Handling Tests
// -----------------------------------------------------------------------------

func readError(t *testing.T, conn *websocket.Conn) string {
	t.Helper()
	var payload protocol.ErrorPayload
	if err := json.Unmarshal(readText(t, conn, protocol.TypeError), &payload); err != nil {
		t.Fatalf("error payload: %v", err)
	}
	return payload.Message
}

func TestStream_ErrorsKeepConnectionOpen(t *testing.T) {
	ts, state := newTestServer(t)
	conn := dialWS(t, ts)

	// Malformed JSON.
	if err := conn.WriteMessage(websocket.TextMessage, []byte("not json{")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if msg := readError(t, conn); msg != "Invalid JSON" {
		t.Errorf("message = %q, want %q", msg, "Invalid JSON")
	}

	// Unknown type.
	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"bogus","payload":{}}`)); err != nil {
		t.Fatalf("write: %v", err)
	}
	if msg := readError(t, conn); msg != "Unknown message type: bogus" {
		t.Errorf("message = %q", msg)
	}

	// No model loaded.
	sendRun(t, conn, "hello", 4)
	if msg := readError(t, conn); msg != "No model loaded." {
		t.Errorf("message = %q, want %q", msg, "No model loaded.")
	}

	// The same connection still serves a full turn afterwards.
	loadFine(t, state, 2, 8)
	sendRun(t, conn, "hello", 2)
	readText(t, conn, protocol.TypeActivationFrame)
	readText(t, conn, protocol.TypeSlices)
	readBinary(t, conn, protocol.TagSlices)
	readText(t, conn, protocol.TypeProjections)
	readBinary(t, conn, protocol.TagProjections)
	readText(t, conn, protocol.TypeInferenceResult)
}

// failingAdapter reports fine activation support but fails every
// generation call after instrumentation is installed.
type failingAdapter struct {
	*adapter.Synthetic
}

func (f *failingAdapter) Generate(context.Context, string, int) (string, error) {
	return "", errors.New("generation backend unavailable")
}

func TestStream_GenerateFailureKeepsConnectionOpen(t *testing.T) {
	ts, state := newTestServer(t)
	conn := dialWS(t, ts)

	a := &failingAdapter{Synthetic: adapter.NewSynthetic(adapter.SyntheticConfig{Layers: 2, DModel: 8})}
	if err := a.Load(context.Background(), adapter.LoadOptions{}); err != nil {
		t.Fatalf("load: %v", err)
	}
	state.Set(a, a.Descriptor().ID)

	// The failed turn reports the error and nothing else: readError
	// fails if any other frame, result included, arrives first.
	sendRun(t, conn, "hello", 4)
	if msg := readError(t, conn); msg != "generation backend unavailable" {
		t.Errorf("message = %q", msg)
	}

	// The same connection serves a full turn once a working model is
	// active again.
	loadFine(t, state, 2, 8)
	sendRun(t, conn, "hello", 2)
	readText(t, conn, protocol.TypeActivationFrame)
	readText(t, conn, protocol.TypeSlices)
	readBinary(t, conn, protocol.TagSlices)
	readText(t, conn, protocol.TypeProjections)
	readBinary(t, conn, protocol.TagProjections)
	readText(t, conn, protocol.TypeInferenceResult)
}

func TestStream_OriginCheck(t *testing.T) {
	state := session.New()
	cfg := config.Default()
	cfg.Server.AllowedOrigins = []string{"http://viewer.example"}
	srv := NewServer(cfg.Server, Deps{
		Registry: adapter.Default(),
		State:    state,
		Model:    cfg.Model,
		Metrics:  NewMetrics(prometheus.NewRegistry()),
		Log:      zerolog.Nop(),
	})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"

	if conn, _, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": {"http://evil.example"}}); err == nil {
		conn.Close()
		t.Fatal("handshake with a disallowed origin succeeded")
	}

	conn, _, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": {"http://viewer.example"}})
	if err != nil {
		t.Fatalf("handshake with allowed origin: %v", err)
	}
	conn.Close()
}

func TestStream_EmptyPromptStillStreams(t *testing.T) {
	ts, state := newTestServer(t)
	loadFine(t, state, 2, 8)
	conn := dialWS(t, ts)

	sendRun(t, conn, "", 2)

	// Empty prompts embed a single begin-of-sequence position.
	var meta probe.SliceMetadata
	readText(t, conn, protocol.TypeActivationFrame)
	if err := json.Unmarshal(readText(t, conn, protocol.TypeSlices), &meta); err != nil {
		t.Fatalf("slices payload: %v", err)
	}
	if meta.SeqLen != 1 {
		t.Errorf("seq_len = %d, want 1", meta.SeqLen)
	}
	readBinary(t, conn, protocol.TagSlices)
	readText(t, conn, protocol.TypeProjections)
	readBinary(t, conn, protocol.TagProjections)
	readText(t, conn, protocol.TypeInferenceResult)
}

func TestStream_DefaultTokenBudget(t *testing.T) {
	ts, state := newTestServer(t)
	loadFine(t, state, 2, 8)
	conn := dialWS(t, ts)

	// Omitted max_new_tokens defaults to 64 generated words.
	if err := conn.WriteMessage(websocket.TextMessage,
		[]byte(`{"type":"inference.run","payload":{"prompt":"hello"}}`)); err != nil {
		t.Fatalf("write: %v", err)
	}

	readText(t, conn, protocol.TypeActivationFrame)
	readText(t, conn, protocol.TypeSlices)
	readBinary(t, conn, protocol.TagSlices)
	readText(t, conn, protocol.TypeProjections)
	readBinary(t, conn, protocol.TagProjections)

	var result protocol.InferenceResult
	if err := json.Unmarshal(readText(t, conn, protocol.TypeInferenceResult), &result); err != nil {
		t.Fatalf("result payload: %v", err)
	}
	if words := strings.Fields(result.Text); len(words) != protocol.DefaultMaxNewTokens {
		t.Errorf("generated %d words, want %d", len(words), protocol.DefaultMaxNewTokens)
	}
}
