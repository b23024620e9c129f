package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouteTable() *RouteTable {
	logger := discardLogger()
	return NewRouteTable(DefaultConfig(), NewSessionRegistry(logger), logger)
}

func serve(t *RouteTable, method, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, http.NoBody)
	rr := httptest.NewRecorder()
	t.ServeHTTP(rr, req)
	return rr
}

// TestSetRouteLastWriteWins verifies re-registering a path replaces its handler.
func TestSetRouteLastWriteWins(t *testing.T) {
	table := newTestRouteTable()

	table.SetRoute("/", func(*http.Request) Response { return OK("first") })
	table.SetRoute("/", func(*http.Request) Response { return OK("second") })

	rr := serve(table, http.MethodGet, "/")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "second", rr.Body.String())
	assert.Equal(t, "text/html; charset=utf-8", rr.Header().Get("Content-Type"))
	assert.Equal(t, []string{"/"}, table.Routes())
}

// TestExactPathDispatch verifies there is no prefix matching.
func TestExactPathDispatch(t *testing.T) {
	table := newTestRouteTable()
	table.SetRoute("/page", func(*http.Request) Response { return OK("page") })

	tests := []struct {
		path string
		want int
	}{
		{"/page", http.StatusOK},
		{"/page/", http.StatusNotFound},
		{"/page/child", http.StatusNotFound},
		{"/", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, serve(table, http.MethodGet, tt.path).Code)
		})
	}
}

func TestRouteResponseStatusAndType(t *testing.T) {
	table := newTestRouteTable()
	table.SetRoute("/broken", func(*http.Request) Response { return InternalServerError() })
	table.SetRoute("/plain", func(*http.Request) Response {
		return Response{ContentType: "text/plain", Body: []byte("hi")}
	})

	rr := serve(table, http.MethodGet, "/broken")
	assert.Equal(t, http.StatusInternalServerError, rr.Code)

	rr = serve(table, http.MethodGet, "/plain")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "text/plain", rr.Header().Get("Content-Type"))
	assert.Equal(t, "hi", rr.Body.String())
}

func TestRemoveRouteAndListing(t *testing.T) {
	table := newTestRouteTable()
	for _, p := range []string{"/b", "/a", "/c"} {
		table.SetRoute(p, func(*http.Request) Response { return OK("") })
	}
	assert.Equal(t, []string{"/a", "/b", "/c"}, table.Routes())

	table.RemoveRoute("/b")
	assert.Equal(t, []string{"/a", "/c"}, table.Routes())
	assert.Equal(t, http.StatusNotFound, serve(table, http.MethodGet, "/b").Code)
}

// TestWebSocketRouteReplaced verifies only the latest upgrade path is served
// and that a non-upgrade request is rejected for that request only.
func TestWebSocketRouteReplaced(t *testing.T) {
	table := newTestRouteTable()
	assert.Empty(t, table.WebSocketPath())

	table.SetWebSocketRoute("/old", WebSocketCallbacks{})
	table.SetWebSocketRoute("/ws", WebSocketCallbacks{})
	require.Equal(t, "/ws", table.WebSocketPath())

	assert.Equal(t, http.StatusNotFound, serve(table, http.MethodGet, "/old").Code)
	assert.Equal(t, http.StatusBadRequest, serve(table, http.MethodGet, "/ws").Code)
	assert.Equal(t, http.StatusMethodNotAllowed, serve(table, http.MethodPost, "/ws").Code)
}

// TestWebSocketRouteShadowsOrdinaryRoute verifies the upgrade route wins on a shared path.
func TestWebSocketRouteShadowsOrdinaryRoute(t *testing.T) {
	table := newTestRouteTable()
	table.SetRoute("/ws", func(*http.Request) Response { return OK("page") })
	table.SetWebSocketRoute("/ws", WebSocketCallbacks{})

	assert.Equal(t, http.StatusBadRequest, serve(table, http.MethodGet, "/ws").Code)

	table.SetWebSocketRoute("/elsewhere", WebSocketCallbacks{})
	rr := serve(table, http.MethodGet, "/ws")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "page", rr.Body.String())
}
