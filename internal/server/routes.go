package server

import (
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"
)

// Response is what a RouteHandler produces. An empty ContentType means HTML.
type Response struct {
	Status      int
	ContentType string
	Body        []byte
}

// HTML returns a text/html response with the given status.
func HTML(status int, body string) Response {
	return Response{Status: status, ContentType: "text/html; charset=utf-8", Body: []byte(body)}
}

// OK returns a 200 HTML response.
func OK(body string) Response {
	return HTML(http.StatusOK, body)
}

// InternalServerError returns an empty 500 response.
func InternalServerError() Response {
	return HTML(http.StatusInternalServerError, "")
}

// RouteHandler turns a request into a response.
type RouteHandler func(r *http.Request) Response

type webSocketRoute struct {
	path      string
	callbacks WebSocketCallbacks
}

// RouteTable dispatches on the exact request path. Registering a path again
// replaces its handler. At most one path is the WebSocket upgrade route and
// it takes precedence over an ordinary route on the same path.
type RouteTable struct {
	mu       sync.RWMutex
	routes   map[string]RouteHandler
	ws       *webSocketRoute
	upgrader websocket.Upgrader
	registry *SessionRegistry
	sessOpts sessionOptions
	logger   *log.Logger
}

// NewRouteTable returns an empty table whose WebSocket sessions are tracked by registry.
func NewRouteTable(cfg Config, registry *SessionRegistry, logger *log.Logger) *RouteTable {
	cfg = cfg.sanitize()
	if logger == nil {
		logger = log.Default()
	}
	policy := newOriginPolicy(cfg.AllowedOrigins, logger)

	return &RouteTable{
		routes: make(map[string]RouteHandler),
		upgrader: websocket.Upgrader{
			HandshakeTimeout: 10 * time.Second,
			ReadBufferSize:   1024,
			WriteBufferSize:  1024,
			CheckOrigin:      policy.check,
		},
		registry: registry,
		sessOpts: sessionOptions{
			maxMessageSize: cfg.MaxMessageSize,
			rateLimit:      cfg.RateLimit,
			logger:         logger,
		},
		logger: logger,
	}
}

// SetRoute registers h for path, replacing any previous handler.
func (t *RouteTable) SetRoute(path string, h RouteHandler) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.routes[path] = h
}

// RemoveRoute unregisters path. It does not affect the WebSocket route.
func (t *RouteTable) RemoveRoute(path string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.routes, path)
}

// Routes returns the registered ordinary paths in sorted order.
func (t *RouteTable) Routes() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	paths := make([]string, 0, len(t.routes))
	for p := range t.routes {
		paths = append(paths, p)
	}
	slices.Sort(paths)
	return paths
}

// SetWebSocketRoute makes path the upgrade route, replacing the previous one.
// Sessions already connected through the old route are unaffected.
func (t *RouteTable) SetWebSocketRoute(path string, cb WebSocketCallbacks) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ws = &webSocketRoute{path: path, callbacks: cb}
}

// WebSocketPath returns the current upgrade path, or "" if none is set.
func (t *RouteTable) WebSocketPath() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.ws == nil {
		return ""
	}
	return t.ws.path
}

func (t *RouteTable) lookup(path string) (*webSocketRoute, RouteHandler) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.ws != nil && t.ws.path == path {
		ws := *t.ws
		return &ws, nil
	}
	return nil, t.routes[path]
}

// ServeHTTP implements http.Handler.
func (t *RouteTable) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, h := t.lookup(r.URL.Path)
	switch {
	case ws != nil:
		t.serveWebSocket(w, r, ws.callbacks)
	case h != nil:
		writeResponse(w, h(r), t.logger)
	default:
		http.NotFound(w, r)
	}
}

func (t *RouteTable) serveWebSocket(w http.ResponseWriter, r *http.Request, cb WebSocketCallbacks) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed. WebSocket endpoint only accepts GET requests.", http.StatusMethodNotAllowed)
		return
	}

	conn, err := t.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// The upgrader has already answered with an HTTP error.
		t.logger.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "err", err)
		return
	}

	t.registry.serve(newSession(conn, r.RemoteAddr, t.sessOpts), cb)
}

func writeResponse(w http.ResponseWriter, resp Response, logger *log.Logger) {
	contentType := resp.ContentType
	if contentType == "" {
		contentType = "text/html; charset=utf-8"
	}
	status := resp.Status
	if status == 0 {
		status = http.StatusOK
	}

	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(status)
	if _, err := w.Write(resp.Body); err != nil {
		logger.Error("writing response", "err", err)
	}
}
