package httpadapter

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/kirillkom/bookbot/internal/core/domain"
	"github.com/kirillkom/bookbot/internal/core/ports"
)

// Router exposes the resolver over HTTP for operators and smoke tests. The
// chat transport is the primary surface.
type Router struct {
	resolver ports.ReviewResolver
	isbn     ports.ISBNLookup
	flow     ports.ConfirmationFlow
	metrics  http.Handler
	wrap     func(http.Handler) http.Handler
}

func NewRouter(
	resolver ports.ReviewResolver,
	isbn ports.ISBNLookup,
	flow ports.ConfirmationFlow,
	metricsHandler http.Handler,
	metricsMiddleware func(http.Handler) http.Handler,
) *Router {
	return &Router{
		resolver: resolver,
		isbn:     isbn,
		flow:     flow,
		metrics:  metricsHandler,
		wrap:     metricsMiddleware,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", rt.healthz)
	if rt.metrics != nil {
		mux.Handle("GET /metrics", rt.metrics)
	}
	mux.HandleFunc("POST /v1/reviews/resolve", rt.resolveReview)
	mux.HandleFunc("GET /v1/isbn/{isbn}", rt.lookupISBN)
	mux.HandleFunc("GET /v1/sessions/{user_id}", rt.getSession)
	mux.HandleFunc("POST /v1/sessions/{user_id}/reply", rt.replySession)
	mux.HandleFunc("DELETE /v1/sessions/{user_id}", rt.cancelSession)

	middlewares := []func(http.Handler) http.Handler{requestIDMiddleware, accessLogMiddleware, recoverMiddleware, bodyLimitMiddleware}
	if rt.wrap != nil {
		middlewares = append(middlewares, rt.wrap)
	}
	return chain(mux, middlewares...)
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type resolveRequest struct {
	UserID string `json:"user_id"`
	Text   string `json:"text"`
	Hint   string `json:"hint"`
}

type resolveResponse struct {
	Outcome domain.Outcome `json:"outcome"`
	Prompt  domain.Prompt  `json:"prompt"`
}

func (rt *Router) resolveReview(w http.ResponseWriter, r *http.Request) {
	var req resolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid json")
		return
	}
	if strings.TrimSpace(req.UserID) == "" || strings.TrimSpace(req.Text) == "" {
		writeError(w, r, http.StatusBadRequest, "user_id and text are required")
		return
	}

	outcome, err := rt.resolver.Resolve(r.Context(), domain.Review{
		UserID: req.UserID,
		Text:   req.Text,
		Hint:   req.Hint,
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resolveResponse{Outcome: outcome, Prompt: outcome.Prompt(req.UserID)})
}

func (rt *Router) lookupISBN(w http.ResponseWriter, r *http.Request) {
	meta, err := rt.isbn.LookupISBN(r.Context(), r.PathValue("isbn"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, meta)
}

func (rt *Router) getSession(w http.ResponseWriter, r *http.Request) {
	session, ok := rt.flow.Active(r.Context(), r.PathValue("user_id"))
	if !ok {
		writeError(w, r, http.StatusNotFound, "no active session")
		return
	}
	writeJSON(w, http.StatusOK, session)
}

type replyRequest struct {
	Text   string `json:"text"`
	Action string `json:"action"`
}

// replySession feeds one user event into the dialog. Action is one of
// "isbn", "manual" or empty for a plain text reply.
func (rt *Router) replySession(w http.ResponseWriter, r *http.Request) {
	var req replyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid json")
		return
	}
	userID := r.PathValue("user_id")

	var (
		prompt domain.Prompt
		err    error
	)
	switch strings.ToLower(strings.TrimSpace(req.Action)) {
	case "":
		prompt, err = rt.flow.HandleText(r.Context(), userID, req.Text)
	case "isbn":
		prompt, err = rt.flow.RequestISBN(r.Context(), userID)
	case "manual":
		prompt, err = rt.flow.RequestManual(r.Context(), userID)
	default:
		writeError(w, r, http.StatusBadRequest, "unknown action")
		return
	}
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, prompt)
}

func (rt *Router) cancelSession(w http.ResponseWriter, r *http.Request) {
	prompt, err := rt.flow.Cancel(r.Context(), r.PathValue("user_id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, prompt)
}

func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	status := mapErrorToHTTPStatus(err)
	if status >= 500 {
		slog.Error("http_handler_failed", "request_id", requestIDFromContext(r.Context()), "path", r.URL.Path, "error", err)
	}
	writeError(w, r, status, err.Error())
}

func writeError(w http.ResponseWriter, r *http.Request, status int, message string) {
	writeJSON(w, status, map[string]string{
		"error":      message,
		"request_id": requestIDFromContext(r.Context()),
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
