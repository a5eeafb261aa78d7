package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
)

// HandlerFunc is the function signature for API handlers.
type HandlerFunc func(w http.ResponseWriter, r *http.Request)

// route pairs a method and pattern with its handler.
type route struct {
	method  string
	pattern string
	handler HandlerFunc
}

// Router matches requests by method and pattern. Pattern segments
// starting with a colon bind path parameters, so /api/models/:name
// matches /api/models/synthetic-tiny with name=synthetic-tiny.
type Router struct {
	mu     sync.RWMutex
	routes []route

	// NotFound is called when no route matches.
	NotFound http.Handler
}

// NewRouter creates a router whose NotFound handler answers with the
// standard JSON error envelope.
func NewRouter() *Router {
	return &Router{
		NotFound: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			WriteError(w, http.StatusNotFound, "not_found", "The requested resource was not found")
		}),
	}
}

// Handle registers a handler for the given method and pattern.
func (rt *Router) Handle(method, pattern string, handler HandlerFunc) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.routes = append(rt.routes, route{method: method, pattern: pattern, handler: handler})
}

// GET registers a handler for GET requests.
func (rt *Router) GET(pattern string, handler HandlerFunc) {
	rt.Handle(http.MethodGet, pattern, handler)
}

// POST registers a handler for POST requests.
func (rt *Router) POST(pattern string, handler HandlerFunc) {
	rt.Handle(http.MethodPost, pattern, handler)
}

// ServeHTTP dispatches to the first route whose method and pattern
// match, falling back to NotFound.
func (rt *Router) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rt.mu.RLock()
	defer rt.mu.RUnlock()

	for _, route := range rt.routes {
		if route.method != r.Method {
			continue
		}
		params, ok := matchPath(route.pattern, r.URL.Path)
		if !ok {
			continue
		}
		if len(params) > 0 {
			r = withPathParams(r, params)
		}
		route.handler(w, r)
		return
	}

	rt.NotFound.ServeHTTP(w, r)
}

// matchPath compares a pattern against a request path segment by
// segment, collecting :name bindings.
func matchPath(pattern, path string) (map[string]string, bool) {
	want := splitPath(pattern)
	got := splitPath(path)
	if len(want) != len(got) {
		return nil, false
	}

	var params map[string]string
	for i, seg := range want {
		switch {
		case strings.HasPrefix(seg, ":"):
			if params == nil {
				params = make(map[string]string)
			}
			params[seg[1:]] = got[i]
		case seg != got[i]:
			return nil, false
		}
	}
	return params, true
}

func splitPath(p string) []string {
	return strings.Split(strings.Trim(p, "/"), "/")
}

// contextKey is a private type for context keys to avoid collisions.
type contextKey string

const pathParamsKey contextKey = "pathParams"

func withPathParams(r *http.Request, params map[string]string) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), pathParamsKey, params))
}

// PathParam returns the named path parameter bound during routing, or
// the empty string when the route declared no such segment.
func PathParam(r *http.Request, name string) string {
	params, ok := r.Context().Value(pathParamsKey).(map[string]string)
	if !ok {
		return ""
	}
	return params[name]
}

// -----------------------------------------------------------------------------
// Response Helpers
// -----------------------------------------------------------------------------

// APIResponse is the standard response wrapper for API endpoints.
type APIResponse struct {
	Success bool      `json:"success"`
	Data    any       `json:"data,omitempty"`
	Error   *APIError `json:"error,omitempty"`
}

// APIError represents an error response.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WriteJSON writes data wrapped in the success envelope. Success
// tracks the status code class.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	writeResponse(w, status, APIResponse{
		Success: status >= 200 && status < 300,
		Data:    data,
	})
}

// WriteError writes a coded error wrapped in the failure envelope.
func WriteError(w http.ResponseWriter, status int, code, message string) {
	writeResponse(w, status, APIResponse{
		Success: false,
		Error:   &APIError{Code: code, Message: message},
	})
}

func writeResponse(w http.ResponseWriter, status int, resp APIResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Headers are already sent; an encode failure has nowhere to go.
	_ = json.NewEncoder(w).Encode(resp)
}

// ReadJSON decodes a JSON request body into target and closes the
// body.
func ReadJSON(r *http.Request, target any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(target)
}
