package contact

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/wolfman30/shinestar-cleaners/internal/relay"
	"github.com/wolfman30/shinestar-cleaners/pkg/logging"
)

// maxBodyBytes bounds a contact payload.
const maxBodyBytes = 64 << 10

// Notifier is told about accepted submissions.
type Notifier interface {
	NotifySubmission(ctx context.Context, sub Submission) error
}

// SubmissionRecorder counts submissions by outcome.
type SubmissionRecorder interface {
	ObserveSubmission(outcome string)
}

// Handler serves the contact form endpoints. It holds no per-request state.
type Handler struct {
	logger   *logging.Logger
	notifier Notifier
	relays   relay.Factory
	metrics  SubmissionRecorder
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithNotifier forwards accepted submissions to n.
func WithNotifier(n Notifier) HandlerOption {
	return func(h *Handler) { h.notifier = n }
}

// WithRelays enables the prefill endpoint.
func WithRelays(f relay.Factory) HandlerOption {
	return func(h *Handler) { h.relays = f }
}

// WithMetrics attaches a submission recorder.
func WithMetrics(m SubmissionRecorder) HandlerOption {
	return func(h *Handler) { h.metrics = m }
}

// NewHandler creates a new contact handler
func NewHandler(logger *logging.Logger, opts ...HandlerOption) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	h := &Handler{logger: logger}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Submit handles POST /api/contact requests
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	defer func() {
		if rec := recover(); rec != nil {
			h.logger.Error("error processing contact form", "error", fmt.Sprint(rec))
			h.observe("error")
			writeJSON(w, http.StatusInternalServerError, Response{Success: false, Message: failureMessage})
		}
	}()

	raw, err := decodeBody(r)
	if err != nil {
		h.logger.Warn("contact: invalid request body", "error", err)
		verr := &ValidationErrors{}
		verr.addForm("Invalid request body")
		h.observe("invalid")
		writeJSON(w, http.StatusBadRequest, Response{Success: false, Message: validationMessage, Errors: verr})
		return
	}

	sub, err := DecodeAndValidate(raw)
	if err != nil {
		var verr *ValidationErrors
		if errors.As(err, &verr) {
			h.observe("invalid")
			writeJSON(w, http.StatusBadRequest, Response{Success: false, Message: validationMessage, Errors: verr})
			return
		}
		h.fail(w, err)
		return
	}

	h.logger.Info("contact form submission",
		"name", sub.Name,
		"email", logging.RedactEmail(sub.Email),
		"phone_provided", sub.Phone != "",
		"topic", sub.Topic(),
		"message_length", len(sub.Message),
	)

	if h.notifier != nil {
		if err := h.notifier.NotifySubmission(r.Context(), sub); err != nil {
			h.fail(w, err)
			return
		}
	}

	h.observe("accepted")
	writeJSON(w, http.StatusOK, Response{Success: true, Message: successMessage})
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	h.logger.Error("error processing contact form", "error", err)
	h.observe("error")
	writeJSON(w, http.StatusInternalServerError, Response{Success: false, Message: failureMessage})
}

func (h *Handler) observe(outcome string) {
	if h.metrics != nil {
		h.metrics.ObserveSubmission(outcome)
	}
}

// decodeBody reads a JSON object; anything else is a client error.
func decodeBody(r *http.Request) (map[string]any, error) {
	if r.Body == nil {
		return nil, errors.New("empty body")
	}
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		return nil, err
	}
	if len(data) > maxBodyBytes {
		return nil, errors.New("body too large")
	}
	if strings.TrimSpace(string(data)) == "" {
		return nil, errors.New("empty body")
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, errors.New("body is not an object")
	}
	return raw, nil
}

// PrefillResponse seeds the contact form at initialization.
type PrefillResponse struct {
	Fields         map[string]string `json:"fields"`
	DefaultSubject string            `json:"default_subject"`
	Subjects       []Option          `json:"subjects"`
	Services       []string          `json:"services"`
}

// Prefill handles GET /api/contact/prefill?session=<id>. Relayed fields are
// best effort; a relay failure yields an empty mapping.
func (h *Handler) Prefill(w http.ResponseWriter, r *http.Request) {
	fields := map[string]string{}
	session := strings.TrimSpace(r.URL.Query().Get("session"))
	if h.relays != nil && session != "" {
		got, err := h.relays.For(session).ReadAll(r.Context())
		if err != nil {
			h.logger.Warn("contact: relay read failed", "error", err)
		} else if got != nil {
			fields = got
		}
	}

	writeJSON(w, http.StatusOK, PrefillResponse{
		Fields:         fields,
		DefaultSubject: DefaultSubject,
		Subjects:       SubjectOptions,
		Services:       ServiceOptions,
	})
}

var fallbackBody = []byte(`{"success":false,"message":"` + failureMessage + `"}`)

// writeJSON marshals before writing headers so encoding failures still
// produce a well formed 500.
func writeJSON(w http.ResponseWriter, status int, body any) {
	data, err := json.Marshal(body)
	if err != nil {
		data = fallbackBody
		status = http.StatusInternalServerError
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}
