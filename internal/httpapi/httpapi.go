// Package httpapi implements the HTTP Endpoint Layer of spec.md §4.6: the
// banner route, the render route, and the uniform JSON error mapping of
// §6-§7. Routing is done with gorilla/mux so the router itself enforces
// the wire contract's exact-method surface, the way go-livepeer pulls in
// gorilla/mux for its own HTTP API.
package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/df07/render-bridge-server/internal/apperror"
	"github.com/df07/render-bridge-server/internal/pipeline"
	"github.com/df07/render-bridge-server/internal/renderlog"
	"github.com/df07/render-bridge-server/internal/schema"
	"github.com/sirupsen/logrus"
)

// bannerHTML is the GET / response body. The <h1> text is this port's
// chosen product identifier (spec.md §8 testable property #2 allows "or
// equivalent identifier the implementation chooses").
const bannerHTML = `<!DOCTYPE html>
<html>
<head><title>Render Bridge</title></head>
<body><h1>Render Bridge glTF Scene Server</h1></body>
</html>
`

// Server wires the Pipeline Orchestrator behind the two URL rules of
// spec.md §2/§4.6.
type Server struct {
	orchestrator *pipeline.Orchestrator
	tempDir      string
	baseLogger   *logrus.Logger
}

// New creates a Server. tempDir is where uploaded scene files (and their
// rendered PNGs) are written for the lifetime of each request.
func New(orchestrator *pipeline.Orchestrator, tempDir string, baseLogger *logrus.Logger) *Server {
	return &Server{orchestrator: orchestrator, tempDir: tempDir, baseLogger: baseLogger}
}

// Router builds the gorilla/mux router implementing the wire contract:
// exact methods for the two declared routes, 405 for a method mismatch on
// either path, default not-found behavior otherwise.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/", s.handleBanner).Methods(http.MethodGet)
	r.HandleFunc("/render", s.handleRender).Methods(http.MethodPost)
	return r
}

func (s *Server) handleBanner(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(bannerHTML))
}

func (s *Server) handleRender(w http.ResponseWriter, r *http.Request) {
	logger := renderlog.NewRequestLogger(s.baseLogger)
	logger.Printf("render request received from %s", r.RemoteAddr)

	req, err := schema.Parse(r, s.tempDir)
	if err != nil {
		s.writeError(w, logger, err)
		return
	}

	ctx := renderlog.WithContext(r.Context(), logger)
	png, err := s.orchestrator.Render(ctx, req)
	if err != nil {
		s.writeError(w, logger, err)
		return
	}

	logger.Printf("render succeeded, %d bytes", len(png))
	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}

// errorBody is the JSON error wire contract of spec.md §6: {"error": true,
// "code": 500, "message": "..."}.
type errorBody struct {
	Error   bool   `json:"error"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// writeError classifies err via apperror and writes the uniform JSON error
// body. Every error kind maps to HTTP 500 per spec.md §6/§7: "the wire
// contract uses 500 uniformly".
func (s *Server) writeError(w http.ResponseWriter, logger *renderlog.Logger, err error) {
	appErr := apperror.AsError(err)
	logger.Printf("render failed (%s): %v", appErr.Kind, appErr)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusInternalServerError)
	_ = json.NewEncoder(w).Encode(errorBody{
		Error:   true,
		Code:    http.StatusInternalServerError,
		Message: "Internal server error: " + appErr.Error(),
	})
}
