package console

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/rikugan-dev/rikugan/pkg/probe"
	"github.com/rikugan-dev/rikugan/pkg/protocol"
)

// Turn collects everything the server streams for one prompt.
type Turn struct {
	Frame       *protocol.ActivationFrame
	Meta        *probe.SliceMetadata
	SliceBytes  []byte
	Projections *protocol.Projections
	TokenProj   []byte
	DimProj     []byte
	Result      protocol.InferenceResult
}

// ServerError is an error frame the server sent for a turn. The
// connection stays usable after one.
type ServerError struct {
	Message string
}

func (e *ServerError) Error() string { return e.Message }

// StreamClient runs activation turns over the server's WebSocket.
type StreamClient struct {
	conn *websocket.Conn
}

// DialStream connects to the streaming endpoint of a server base URL.
func DialStream(baseURL string) (*StreamClient, error) {
	wsURL := baseURL
	if strings.HasPrefix(wsURL, "http") {
		wsURL = "ws" + strings.TrimPrefix(wsURL, "http")
	}
	wsURL = strings.TrimSuffix(wsURL, "/") + "/ws"

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", wsURL, err)
	}
	return &StreamClient{conn: conn}, nil
}

// Close closes the WebSocket connection.
func (s *StreamClient) Close() error {
	return s.conn.Close()
}

// RunTurn submits one prompt and collects frames until the result
// arrives. A server error frame is returned as *ServerError.
func (s *StreamClient) RunTurn(prompt string, maxNewTokens int) (*Turn, error) {
	msg, err := protocol.Encode(protocol.TypeInferenceRun, protocol.InferenceRun{
		Prompt:       prompt,
		MaxNewTokens: maxNewTokens,
	})
	if err != nil {
		return nil, err
	}
	if err := s.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
		return nil, err
	}

	turn := &Turn{}
	for {
		msgType, raw, err := s.conn.ReadMessage()
		if err != nil {
			return nil, err
		}

		if msgType == websocket.BinaryMessage {
			if err := turn.acceptBinary(raw); err != nil {
				return nil, err
			}
			continue
		}
		if msgType != websocket.TextMessage {
			continue
		}

		env, err := protocol.DecodeInbound(raw)
		if err != nil {
			return nil, fmt.Errorf("malformed server frame: %w", err)
		}
		done, err := turn.acceptJSON(env)
		if err != nil {
			return nil, err
		}
		if done {
			return turn, nil
		}
	}
}

func unmarshal(raw json.RawMessage, target any) error {
	return json.Unmarshal(raw, target)
}

func (t *Turn) acceptJSON(env protocol.Envelope) (bool, error) {
	switch env.Type {
	case protocol.TypeActivationFrame:
		t.Frame = &protocol.ActivationFrame{}
		return false, unmarshal(env.Payload, t.Frame)
	case protocol.TypeSlices:
		t.Meta = &probe.SliceMetadata{}
		return false, unmarshal(env.Payload, t.Meta)
	case protocol.TypeProjections:
		t.Projections = &protocol.Projections{}
		return false, unmarshal(env.Payload, t.Projections)
	case protocol.TypeInferenceResult:
		return true, unmarshal(env.Payload, &t.Result)
	case protocol.TypeError:
		var payload protocol.ErrorPayload
		if err := unmarshal(env.Payload, &payload); err != nil {
			return false, err
		}
		return false, &ServerError{Message: payload.Message}
	default:
		// Unknown frame types are skipped so older consoles keep
		// working against newer servers.
		return false, nil
	}
}

func (t *Turn) acceptBinary(raw []byte) error {
	if len(raw) < protocol.TagLen {
		return fmt.Errorf("binary frame too short: %d bytes", len(raw))
	}
	tag := binary.LittleEndian.Uint32(raw)
	payload := raw[protocol.TagLen:]

	switch tag {
	case protocol.TagSlices:
		t.SliceBytes = payload
	case protocol.TagProjections:
		// Projection metadata always precedes its binary frame and
		// carries the split point.
		if t.Projections == nil {
			return fmt.Errorf("projection frame before projection metadata")
		}
		split := t.Projections.TokenProjSize
		if split < 0 || split > len(payload) {
			return fmt.Errorf("projection split %d outside payload of %d bytes", split, len(payload))
		}
		t.TokenProj = payload[:split]
		t.DimProj = payload[split:]
	}
	return nil
}
