package provision

import (
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"github.com/evercall/voicebridge/internal/config"
)

// Server proxies credentialed provisioning calls so API keys never reach
// call clients or dashboards. It holds the only copies of the agent and
// recognition keys.
type Server struct {
	cfg    *config.Config
	client *http.Client
	logger zerolog.Logger
}

// NewServer creates the provisioning handler set.
func NewServer(cfg *config.Config, logger zerolog.Logger) *Server {
	return &Server{
		cfg:    cfg,
		client: &http.Client{Timeout: 15 * time.Second},
		logger: logger,
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// HandleSession exchanges an assistant ID for a one-call session URL. The
// upstream response is passed through untouched; clients read its
// sessionURL field.
func (s *Server) HandleSession(w http.ResponseWriter, r *http.Request) {
	assistantID := r.PathValue("assistantID")
	if assistantID == "" {
		writeError(w, http.StatusBadRequest, "assistant ID is required")
		return
	}
	if s.cfg.AgentAPIKey == "" {
		writeError(w, http.StatusInternalServerError, "agent API key not configured")
		return
	}

	upstream := s.cfg.AgentTokenURL + "/" + url.PathEscape(assistantID)
	s.proxy(w, r, upstream, "session")
}

// HandleCalls proxies the call-history listing for a model, for dashboards.
func (s *Server) HandleCalls(w http.ResponseWriter, r *http.Request) {
	modelID := r.PathValue("modelID")
	if modelID == "" {
		writeError(w, http.StatusBadRequest, "model ID is required")
		return
	}
	if s.cfg.AgentAPIKey == "" {
		writeError(w, http.StatusInternalServerError, "agent API key not configured")
		return
	}

	q := url.Values{}
	q.Set("model_id", modelID)
	q.Set("limit", paramOr(r, "limit", "20"))
	q.Set("offset", paramOr(r, "offset", "0"))

	upstream := s.cfg.AgentAPIURL + "/calls?" + q.Encode()
	s.proxy(w, r, upstream, "calls")
}

// HandleRecognitionToken hands the call client a recognition credential.
func (s *Server) HandleRecognitionToken(w http.ResponseWriter, r *http.Request) {
	if s.cfg.RecognitionAPIKey == "" {
		writeError(w, http.StatusInternalServerError, "recognition API key not configured")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"token": s.cfg.RecognitionAPIKey})
}

// proxy forwards a GET with the agent credential and relays status and body
// back unchanged.
func (s *Server) proxy(w http.ResponseWriter, r *http.Request, upstream, what string) {
	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, upstream, nil)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to build upstream request")
		return
	}
	req.Header.Set("Authorization", "Bearer "+s.cfg.AgentAPIKey)

	resp, err := s.client.Do(req)
	if err != nil {
		s.logger.Error().Err(err).Str("endpoint", what).Msg("Upstream request failed")
		writeError(w, http.StatusBadGateway, "upstream request failed")
		return
	}
	defer resp.Body.Close()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.StatusCode)
	io.Copy(w, resp.Body)
}

func paramOr(r *http.Request, key, fallback string) string {
	if v := r.URL.Query().Get(key); v != "" {
		return v
	}
	return fallback
}
