package server

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"math/rand/v2"
	"net/http"
)

//go:embed templates/websocket.html
var templateFS embed.FS

var webSocketPage = template.Must(template.ParseFS(templateFS, "templates/websocket.html"))

const reloadScript = `<script>
function doReloadNoCache() {
    window.location.reload(true);
}
window.addEventListener('load', function () {
    setTimeout(doReloadNoCache, 2000);
});
</script>
`

// RandomNumberFragment returns a paragraph showing a random number in large type.
func RandomNumberFragment() string {
	return fmt.Sprintf(`<p style="font-size: 200px;">%d</p>`, 100+rand.IntN(19900))
}

// NumberPage serves a fresh random number on every request. With polling the
// page reloads itself every two seconds.
func NumberPage(polling bool) RouteHandler {
	return func(_ *http.Request) Response {
		body := RandomNumberFragment()
		if polling {
			body = reloadScript + body
		}
		return OK(body)
	}
}

// RenderWebSocketPage renders the client page that connects to wsURL and shows
// every frame it receives.
func RenderWebSocketPage(wsURL string) (string, error) {
	var buf bytes.Buffer
	if err := webSocketPage.Execute(&buf, struct{ URL string }{URL: wsURL}); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// EchoCallbacks writes every received frame back to its sender.
func EchoCallbacks() WebSocketCallbacks {
	return WebSocketCallbacks{
		OnText: func(s *Session, text string) {
			_ = s.WriteText(text)
		},
		OnBinary: func(s *Session, data []byte) {
			_ = s.WriteBinary(data)
		},
	}
}

// SetUpHTTPDemo serves the random number page at path.
func (s *Server) SetUpHTTPDemo(path string, polling bool) {
	s.SetRoute(path, NumberPage(polling))
}

// SetUpWebSocketDemo serves a client page at clientPath that connects to the
// WebSocket route at serverPath using the URL for mode. The URL is built per
// request; when it cannot be built the page answers 500.
func (s *Server) SetUpWebSocketDemo(clientPath, serverPath string, mode Mode, cb WebSocketCallbacks) {
	s.SetRoute(clientPath, func(_ *http.Request) Response {
		wsURL, err := s.urls.BuildPath("ws", mode, s.cfg.Port, serverPath)
		if err != nil {
			s.logger.Error("building websocket url", "mode", mode, "err", err)
			return InternalServerError()
		}
		page, err := RenderWebSocketPage(wsURL)
		if err != nil {
			s.logger.Error("rendering websocket page", "err", err)
			return InternalServerError()
		}
		return OK(page)
	})
	s.SetWebSocketRoute(serverPath, cb)
}
