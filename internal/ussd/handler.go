package ussd

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/afyabook/afyabook/internal/observability/metrics"
	"github.com/afyabook/afyabook/pkg/logging"
)

// Handler adapts the gateway's HTTP convention to the engine: it decodes one
// inbound turn, drives Engine.Run and encodes the result as a single line
// prefixed with CON (expect more input) or END (session over).
type Handler struct {
	engine  *Engine
	logger  *logging.Logger
	metrics *metrics.USSDMetrics
}

// NewHandler creates the USSD transport handler.
func NewHandler(engine *Engine, logger *logging.Logger, m *metrics.USSDMetrics) *Handler {
	if engine == nil {
		panic("ussd: engine cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{engine: engine, logger: logger, metrics: m}
}

type turnPayload struct {
	SessionID   string `json:"sessionId"`
	ServiceCode string `json:"serviceCode"`
	PhoneNumber string `json:"phoneNumber"`
	Text        string `json:"text"`
}

// HandleTurn handles POST /ussd requests from the gateway.
func (h *Handler) HandleTurn(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	payload, err := decodeTurn(r)
	if err != nil {
		http.Error(w, "malformed request body", http.StatusBadRequest)
		h.metrics.ObserveTurn("rejected", time.Since(start).Seconds())
		return
	}
	if strings.TrimSpace(payload.SessionID) == "" || strings.TrimSpace(payload.PhoneNumber) == "" {
		http.Error(w, "sessionId and phoneNumber are required", http.StatusBadRequest)
		h.metrics.ObserveTurn("rejected", time.Since(start).Seconds())
		return
	}

	turn := Turn{
		SessionID:   payload.SessionID,
		ServiceCode: payload.ServiceCode,
		Phone:       payload.PhoneNumber,
		Input:       lastInput(payload.Text),
	}

	resp, err := h.engine.Run(r.Context(), turn)
	if err != nil {
		h.logger.Error("turn processing failed", "session_id", turn.SessionID, "error", err)
		writeDirective(w, true, DefaultErrorMessage)
		h.metrics.ObserveTurn("error", time.Since(start).Seconds())
		return
	}

	writeDirective(w, resp.End, resp.Text)
	result := "continue"
	if resp.End {
		result = "end"
	}
	h.metrics.ObserveTurn(result, time.Since(start).Seconds())
}

// HealthCheck returns a simple liveness response.
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response := map[string]string{
		"status": "ok",
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(response)
}

func decodeTurn(r *http.Request) (turnPayload, error) {
	var payload turnPayload
	if strings.Contains(r.Header.Get("Content-Type"), "application/json") {
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			return payload, err
		}
		return payload, nil
	}
	if err := r.ParseForm(); err != nil {
		return payload, err
	}
	payload.SessionID = r.PostFormValue("sessionId")
	payload.ServiceCode = r.PostFormValue("serviceCode")
	payload.PhoneNumber = r.PostFormValue("phoneNumber")
	payload.Text = r.PostFormValue("text")
	return payload, nil
}

// lastInput extracts the newest keystroke submission from the gateway's
// accumulated "a*b*c" text.
func lastInput(text string) string {
	if idx := strings.LastIndex(text, "*"); idx >= 0 {
		return text[idx+1:]
	}
	return text
}

func writeDirective(w http.ResponseWriter, end bool, text string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	prefix := "CON "
	if end {
		prefix = "END "
	}
	_, _ = w.Write([]byte(prefix + text))
}
