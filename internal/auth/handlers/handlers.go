// Package handlers exposes a Passport over HTTP: a login page, one redirect
// route per strategy, and the provider callbacks.
package handlers

import (
	"errors"
	"html/template"
	"net/http"

	"github.com/brizzai/passport/internal/auth"
	"github.com/brizzai/passport/internal/auth/constants"
	"github.com/brizzai/passport/internal/logger"
	"github.com/brizzai/passport/internal/utils"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

var indexTemplate = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html>
<head><title>Sign in</title></head>
<body>
<h1>Sign in</h1>
<ul>
{{range .}}<li><a href="/auth/{{.}}">Sign in with {{.}}</a></li>
{{else}}<li>No strategies configured</li>
{{end}}</ul>
</body>
</html>
`))

// Handler serves the login routes for a Passport
type Handler struct {
	passport *auth.Passport
}

// NewHandler creates a new Handler instance
func NewHandler(p *auth.Passport) *Handler {
	return &Handler{passport: p}
}

// Routes returns a router with every login route registered
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	h.RegisterRoutes(r)
	return r
}

// RegisterRoutes registers the login routes on r
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.HandleIndex)
	r.Get("/healthz", h.HandleHealth)
	r.Get("/auth/callback", h.HandleCallback)
	r.Get("/auth/{provider}", h.HandleLogin)
	r.Get("/auth/{provider}/callback", h.HandleCallback)
}

// HandleIndex renders a link per registered strategy
func (h *Handler) HandleIndex(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := indexTemplate.Execute(w, h.passport.Names()); err != nil {
		logger.Error("Failed to render index", zap.Error(err))
	}
}

// HandleHealth reports liveness and the number of pending flows
func (h *Handler) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	utils.WriteJSON(w, map[string]interface{}{
		"status":  "ok",
		"pending": h.passport.Pending(),
	})
}

// HandleLogin redirects the browser to the provider's consent page
func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "provider")

	authURL, err := h.passport.AuthorizeURL(r.Context(), name)
	if err != nil {
		writeFlowError(w, err)
		return
	}
	http.Redirect(w, r, authURL, http.StatusFound)
}

// HandleCallback completes the flow and returns the profile as JSON
func (h *Handler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	sc := auth.StateCodeFromQuery(r.URL.Query())

	resp, err := h.passport.GetProfile(r.Context(), sc)
	if err != nil {
		writeFlowError(w, err)
		return
	}

	switch resp := resp.(type) {
	case auth.FailureRedirect:
		http.Redirect(w, r, resp.URL, http.StatusFound)
	case auth.ProfileResponse:
		w.Header().Set("Cache-Control", "no-store")
		utils.WriteJSON(w, resp.Profile)
	default:
		logger.Error("Unexpected flow response", zap.Any("response", resp))
		utils.WriteError(w, "server_error", "unexpected response", http.StatusInternalServerError)
	}
}

func writeFlowError(w http.ResponseWriter, err error) {
	var exchErr *auth.ExchangeError
	var profErr *auth.ProfileError

	switch {
	case errors.Is(err, auth.ErrUnknownStrategy):
		utils.WriteError(w, "not_found", err.Error(), http.StatusNotFound)
	case errors.Is(err, auth.ErrUnknownState):
		utils.WriteError(w, "invalid_request", "unknown or expired "+constants.StateParam, http.StatusBadRequest)
	case errors.Is(err, auth.ErrMissingCode):
		utils.WriteError(w, "invalid_request", err.Error(), http.StatusBadRequest)
	case errors.Is(err, auth.ErrAccessDenied):
		utils.WriteError(w, "access_denied", err.Error(), http.StatusForbidden)
	case errors.As(err, &exchErr):
		utils.WriteError(w, "invalid_grant", "token exchange with "+exchErr.Strategy+" failed", http.StatusBadGateway)
	case errors.As(err, &profErr):
		utils.WriteError(w, "server_error", "profile fetch from "+profErr.Strategy+" failed", http.StatusBadGateway)
	default:
		logger.Error("Login flow failed", zap.Error(err))
		utils.WriteError(w, "server_error", "internal error", http.StatusInternalServerError)
	}
}
