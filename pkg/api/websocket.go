// Package api provides the HTTP/WebSocket server for the Rikugan
// visualization backend.
package api

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/rikugan-dev/rikugan/pkg/adapter"
	"github.com/rikugan-dev/rikugan/pkg/probe"
	"github.com/rikugan-dev/rikugan/pkg/protocol"
	"github.com/rikugan-dev/rikugan/pkg/session"
	"github.com/rikugan-dev/rikugan/pkg/trace"
)

// -----------------------------------------------------------------------------
// WebSocket Constants
// -----------------------------------------------------------------------------

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer. Prompts are text; a
	// megabyte is generous.
	maxMessageSize = 1 << 20
)

// -----------------------------------------------------------------------------
// Stream Handler
// -----------------------------------------------------------------------------

// StreamHandler runs the activation streaming protocol. Each
// connection is served by a synchronous turn loop: one inference.run
// is processed at a time and its frames are sent in protocol order
// before the next request is read.
type StreamHandler struct {
	state    *session.State
	metrics  *Metrics
	trace    *trace.Recorder
	upgrader websocket.Upgrader
	log      zerolog.Logger
}

// NewStreamHandler creates a StreamHandler. The trace recorder may be
// nil, in which case no turns are recorded. checkOrigin gates the
// WebSocket handshake; a nil checker accepts any origin.
func NewStreamHandler(state *session.State, metrics *Metrics, recorder *trace.Recorder, checkOrigin func(*http.Request) bool, log zerolog.Logger) *StreamHandler {
	if checkOrigin == nil {
		checkOrigin = func(*http.Request) bool { return true }
	}
	return &StreamHandler{
		state:   state,
		metrics: metrics,
		trace:   recorder,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
		log: log.With().Str("component", "ws").Logger(),
	}
}

// HandleFunc returns an http.HandlerFunc for WebSocket connections.
func (h *StreamHandler) HandleFunc() HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.ServeHTTP(w, r)
	}
}

// ServeHTTP upgrades the connection and runs the turn loop until the
// peer disconnects.
func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("upgrade failed")
		return
	}

	c := &streamConn{
		conn:    conn,
		metrics: h.metrics,
	}
	connID := uuid.NewString()
	log := h.log.With().Str("conn_id", connID).Logger()

	h.metrics.Connections.Inc()
	defer h.metrics.Connections.Dec()
	log.Info().Msg("client connected")

	done := make(chan struct{})
	defer close(done)
	go c.pingLoop(done)

	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	defer conn.Close()
	for {
		msgType, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Warn().Err(err).Msg("read failed")
			} else {
				log.Info().Msg("client disconnected")
			}
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}
		conn.SetReadDeadline(time.Now().Add(pongWait))

		env, err := protocol.DecodeInbound(raw)
		if err != nil {
			c.sendError("Invalid JSON")
			continue
		}

		switch env.Type {
		case protocol.TypeInferenceRun:
			req, err := protocol.DecodeInferenceRun(env.Payload)
			if err != nil {
				c.sendError("Invalid JSON")
				continue
			}
			h.runTurn(r.Context(), log, c, req)
		default:
			c.sendError(fmt.Sprintf("Unknown message type: %s", env.Type))
		}
	}
}

// runTurn executes one inference turn and streams its frames. The
// protocol path depends on the active model's activation support:
// fine streams the full slice set, coarse streams block heat only,
// and unsupported models stream just the result. Errors are reported
// on the connection and leave it open.
func (h *StreamHandler) runTurn(ctx context.Context, log zerolog.Logger, c *streamConn, req protocol.InferenceRun) {
	active, modelID, ok := h.state.Active()
	if !ok || !active.Loaded() {
		c.sendError("No model loaded.")
		return
	}

	desc := active.Descriptor()
	turnID := uuid.NewString()
	start := time.Now()
	startBytes := c.bytesSent()

	log = log.With().
		Str("turn_id", turnID).
		Str("model_id", modelID).
		Str("support", desc.Activation.String()).
		Logger()
	log.Debug().Int("max_new_tokens", req.MaxNewTokens).Msg("turn started")

	var (
		summary turnSummary
		err     error
	)
	switch desc.Activation {
	case adapter.SupportFine:
		summary, err = h.runFineTurn(ctx, c, active, modelID, req)
	case adapter.SupportCoarse:
		summary, err = h.runCoarseTurn(ctx, c, active, modelID, req)
	default:
		summary, err = h.runPlainTurn(ctx, c, active, modelID, req)
	}

	duration := time.Since(start)
	streamed := c.bytesSent() - startBytes

	if err != nil {
		h.metrics.TurnsTotal.WithLabelValues("error").Inc()
		log.Warn().Err(err).Dur("duration", duration).Msg("turn failed")
		c.sendError(err.Error())
		return
	}

	h.metrics.TurnsTotal.WithLabelValues("ok").Inc()
	h.metrics.TurnDuration.Observe(duration.Seconds())
	log.Info().
		Dur("duration", duration).
		Int64("bytes", streamed).
		Msg("turn completed")

	if recErr := h.trace.Record(trace.Turn{
		ID:            turnID,
		ModelID:       modelID,
		Prompt:        req.Prompt,
		NumLayers:     summary.numLayers,
		SeqLen:        summary.seqLen,
		DModel:        summary.dModel,
		MeanBlockHeat: summary.meanHeat,
		Duration:      duration,
		BytesStreamed: streamed,
		StartedAt:     start,
	}); recErr != nil {
		log.Warn().Err(recErr).Msg("trace record failed")
	}
}

// turnSummary carries per-turn statistics into the trace recorder.
type turnSummary struct {
	numLayers int
	seqLen    int
	dModel    int
	meanHeat  float64
}

// runFineTurn captures the full slice set during generation and
// streams frames 1 through 6 in protocol order.
func (h *StreamHandler) runFineTurn(ctx context.Context, c *streamConn, active adapter.Adapter, modelID string, req protocol.InferenceRun) (turnSummary, error) {
	desc := active.Descriptor()

	p := probe.NewSliceProbe(desc.Layers)
	if err := p.Install(active); err != nil {
		return turnSummary{}, err
	}
	defer p.Remove()

	text, err := active.Generate(ctx, req.Prompt, req.MaxNewTokens)
	if err != nil {
		return turnSummary{}, err
	}
	p.Remove()

	heat := p.BlockHeat()
	if err := c.sendJSON(protocol.TypeActivationFrame, protocol.ActivationFrame{
		BlockHeat: heat,
		ModelID:   modelID,
		Prompt:    req.Prompt,
		NumLayers: len(heat),
	}); err != nil {
		return turnSummary{}, err
	}

	sliceBytes, meta, tokBytes, dimBytes := p.NormalizeAndSerialize()

	if err := c.sendJSON(protocol.TypeSlices, meta); err != nil {
		return turnSummary{}, err
	}
	if len(sliceBytes) > 0 {
		if err := c.sendBinary(protocol.BinaryFrame(protocol.TagSlices, sliceBytes)); err != nil {
			return turnSummary{}, err
		}
	}

	if len(tokBytes) > 0 && len(dimBytes) > 0 {
		if err := c.sendJSON(protocol.TypeProjections, protocol.Projections{
			NumLayers:     len(heat),
			SeqLen:        meta.SeqLen,
			DModel:        meta.DModel,
			NumStages:     probe.NumSlices,
			TokenProjSize: len(tokBytes),
		}); err != nil {
			return turnSummary{}, err
		}
		if err := c.sendBinary(protocol.ProjectionFrame(tokBytes, dimBytes)); err != nil {
			return turnSummary{}, err
		}
	}

	if err := c.sendJSON(protocol.TypeInferenceResult, protocol.InferenceResult{
		Text:    text,
		ModelID: modelID,
	}); err != nil {
		return turnSummary{}, err
	}

	return turnSummary{
		numLayers: len(heat),
		seqLen:    meta.SeqLen,
		dModel:    meta.DModel,
		meanHeat:  meanHeat(heat),
	}, nil
}

// runCoarseTurn captures block heat during generation and streams the
// activation frame followed by the result.
func (h *StreamHandler) runCoarseTurn(ctx context.Context, c *streamConn, active adapter.Adapter, modelID string, req protocol.InferenceRun) (turnSummary, error) {
	desc := active.Descriptor()

	p := probe.NewHeatProbe(desc.Layers)
	if err := p.Install(active); err != nil {
		return turnSummary{}, err
	}
	defer p.Remove()

	text, err := active.Generate(ctx, req.Prompt, req.MaxNewTokens)
	if err != nil {
		return turnSummary{}, err
	}
	p.Remove()

	heat := p.BlockHeat()
	if err := c.sendJSON(protocol.TypeActivationFrame, protocol.ActivationFrame{
		BlockHeat: heat,
		ModelID:   modelID,
		Prompt:    req.Prompt,
		NumLayers: len(heat),
	}); err != nil {
		return turnSummary{}, err
	}

	if err := c.sendJSON(protocol.TypeInferenceResult, protocol.InferenceResult{
		Text:    text,
		ModelID: modelID,
	}); err != nil {
		return turnSummary{}, err
	}

	return turnSummary{numLayers: len(heat), meanHeat: meanHeat(heat)}, nil
}

// runPlainTurn generates without instrumentation and streams only the
// result.
func (h *StreamHandler) runPlainTurn(ctx context.Context, c *streamConn, active adapter.Adapter, modelID string, req protocol.InferenceRun) (turnSummary, error) {
	text, err := active.Generate(ctx, req.Prompt, req.MaxNewTokens)
	if err != nil {
		return turnSummary{}, err
	}

	if err := c.sendJSON(protocol.TypeInferenceResult, protocol.InferenceResult{
		Text:    text,
		ModelID: modelID,
	}); err != nil {
		return turnSummary{}, err
	}
	return turnSummary{}, nil
}

func meanHeat(heat []float64) float64 {
	if len(heat) == 0 {
		return 0
	}
	var sum float64
	for _, h := range heat {
		sum += h
	}
	return sum / float64(len(heat))
}

// -----------------------------------------------------------------------------
// Connection
// -----------------------------------------------------------------------------

// streamConn serializes all writes on one WebSocket connection so
// turn frames and ping frames never interleave.
type streamConn struct {
	conn    *websocket.Conn
	metrics *Metrics

	writeMu sync.Mutex
	written int64
}

func (c *streamConn) sendJSON(msgType string, payload any) error {
	data, err := protocol.Encode(msgType, payload)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return err
	}
	c.written += int64(len(data))
	c.metrics.FramesTotal.WithLabelValues(msgType).Inc()
	c.metrics.BytesStreamed.Add(float64(len(data)))
	return nil
}

func (c *streamConn) sendBinary(frame []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
		return err
	}
	c.written += int64(len(frame))
	c.metrics.FramesTotal.WithLabelValues("binary").Inc()
	c.metrics.BytesStreamed.Add(float64(len(frame)))
	return nil
}

// sendError reports a turn or parse failure. Send failures here are
// ignored: the read loop will observe the dead connection.
func (c *streamConn) sendError(message string) {
	_ = c.sendJSON(protocol.TypeError, protocol.ErrorPayload{Message: message})
}

func (c *streamConn) bytesSent() int64 {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.written
}

// pingLoop keeps the connection alive until done is closed.
func (c *streamConn) pingLoop(done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			c.writeMu.Lock()
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			err := c.conn.WriteMessage(websocket.PingMessage, nil)
			c.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}
