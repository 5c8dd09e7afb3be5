package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"greenctf/internal/auth/models"
	dErrors "greenctf/pkg/domain-errors"
	"greenctf/pkg/platform/httputil"
	"greenctf/pkg/platform/middleware/admin"
	"greenctf/pkg/requestcontext"
)

// DefaultCookieName carries the session token for browser clients.
const DefaultCookieName = "greenctf_admin_session"

//go:generate mockgen -source=handler.go -destination=mocks/gateway-mocks.go -package=mocks Gateway

// Gateway defines the admin access control operations served over HTTP.
type Gateway interface {
	Login(ctx context.Context, req *models.LoginRequest) (*models.LoginResult, error)
	Logout(ctx context.Context, token string) error
	CheckSession(ctx context.Context, token string) (*models.Claims, error)
	ChangeCredentials(ctx context.Context, token string, req *models.ChangeCredentialsRequest) (*models.CredentialChangeResult, error)
	ListSessions(ctx context.Context, token string) ([]models.SessionSummary, error)
}

// CookieConfig controls the session cookie written on login.
type CookieConfig struct {
	Name string
	// Secure forces the Secure attribute. Requests over TLS or behind a
	// proxy reporting https always get it.
	Secure bool
	// MaxAge in seconds; zero makes it a browser-session cookie.
	MaxAge int
}

// Handler serves the admin auth endpoints.
type Handler struct {
	gateway Gateway
	logger  *slog.Logger
	cookie  CookieConfig
}

func New(gateway Gateway, logger *slog.Logger, cookie CookieConfig) *Handler {
	if cookie.Name == "" {
		cookie.Name = DefaultCookieName
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{gateway: gateway, logger: logger, cookie: cookie}
}

// CookieName is the name of the session cookie.
func (h *Handler) CookieName() string {
	return h.cookie.Name
}

// Register registers the admin auth routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/api/admin/auth/login", h.HandleLogin)
	r.Post("/api/admin/auth/logout", h.HandleLogout)
	r.Get("/api/admin/auth/session", h.HandleCheckSession)
	r.Post("/api/admin/auth/session", h.HandleCheckSession)
	r.Post("/api/admin/auth/credentials", h.HandleChangeCredentials)
	r.Get("/api/admin/auth/sessions", h.HandleListSessions)
}

// RegisterLegacy mounts the single action endpoint used by the original
// back-office frontend.
func (h *Handler) RegisterLegacy(r chi.Router) {
	r.Post("/api/admin_auth.php", h.HandleLegacyAction)
	r.Get("/api/admin_auth.php", h.HandleCheckSession)
}

// SessionValidator adapts the gateway for admin.RequireAdmin.
func SessionValidator(g Gateway) admin.SessionValidator {
	return admin.ValidatorFunc(func(ctx context.Context, token string) (*admin.Principal, error) {
		claims, err := g.CheckSession(ctx, token)
		if err != nil {
			return nil, err
		}
		return &admin.Principal{
			AdminID:  claims.AdminID,
			Username: claims.Username,
			Role:     string(claims.Role),
			Token:    token,
		}, nil
	})
}

// HandleLogin implements POST /api/admin/auth/login.
//
// Input: { "username": "alice", "password": "..." }
// Output: { "success": true, "message": "Login successful", "token": "...", "admin": {...} }
func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeJSON[models.LoginRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	h.login(w, r, req)
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request, req *models.LoginRequest) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	res, err := h.gateway.Login(ctx, req)
	if err != nil {
		h.logger.InfoContext(ctx, "admin login rejected",
			"code", dErrors.CodeOf(err),
			"request_id", requestID,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "admin login successful",
		"admin_id", res.Admin.ID,
		"request_id", requestID,
	)
	h.setSessionCookie(w, r, res.Token)
	httputil.WriteJSON(w, http.StatusOK, models.LoginResponse{
		Success:   true,
		Message:   "Login successful",
		Token:     res.Token,
		Admin:     res.Admin,
		ExpiresIn: res.ExpiresIn,
	})
}

// HandleLogout implements POST /api/admin/auth/logout. Logging out without a
// session succeeds.
func (h *Handler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	token := admin.TokenFromRequest(r, h.cookie.Name)

	if err := h.gateway.Logout(ctx, token); err != nil {
		h.logger.ErrorContext(ctx, "admin logout failed",
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		httputil.WriteError(w, err)
		return
	}

	h.clearSessionCookie(w, r)
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Success: true, Message: "Logout successful"})
}

// HandleCheckSession implements GET|POST /api/admin/auth/session.
func (h *Handler) HandleCheckSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	token := admin.TokenFromRequest(r, h.cookie.Name)
	if token == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthenticated, "Not authenticated"))
		return
	}

	claims, err := h.gateway.CheckSession(ctx, token)
	if err != nil {
		if invalidatesSession(err) {
			h.clearSessionCookie(w, r)
		}
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, models.SessionResponse{
		Success: true,
		Admin: models.AdminSummary{
			ID:       claims.AdminID,
			Username: claims.Username,
			Role:     claims.Role,
		},
	})
}

// HandleChangeCredentials implements POST /api/admin/auth/credentials.
//
// Input: { "current_password": "...", "new_username"?: "...", "new_email"?: "...", "new_password"?: "..." }
func (h *Handler) HandleChangeCredentials(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	token := admin.TokenFromRequest(r, h.cookie.Name)
	if token == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthenticated, "Not authenticated"))
		return
	}

	req, ok := httputil.DecodeJSON[models.ChangeCredentialsRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	h.changeCredentials(w, r, token, req)
}

func (h *Handler) changeCredentials(w http.ResponseWriter, r *http.Request, token string, req *models.ChangeCredentialsRequest) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	res, err := h.gateway.ChangeCredentials(ctx, token, req)
	if err != nil {
		h.logger.InfoContext(ctx, "credential change rejected",
			"code", dErrors.CodeOf(err),
			"request_id", requestID,
		)
		if invalidatesSession(err) {
			h.clearSessionCookie(w, r)
		}
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "credentials updated",
		"admin_id", res.Admin.ID,
		"revoked_sessions", res.RevokedSessions,
		"request_id", requestID,
	)
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Success: true, Message: "Credentials updated successfully"})
}

// HandleListSessions implements GET /api/admin/auth/sessions.
func (h *Handler) HandleListSessions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	token := admin.TokenFromRequest(r, h.cookie.Name)
	if token == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthenticated, "Not authenticated"))
		return
	}

	sessions, err := h.gateway.ListSessions(ctx, token)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, models.SessionsResponse{Success: true, Sessions: sessions})
}

// HandleLegacyAction implements POST /api/admin_auth.php with an "action"
// field selecting login, logout, check_session or change_credentials.
func (h *Handler) HandleLegacyAction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req models.LegacyActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		h.logger.WarnContext(ctx, "failed to decode legacy auth request",
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "Invalid request body"))
		return
	}

	switch req.Action {
	case "login":
		h.login(w, r, &req.LoginRequest)
	case "logout":
		h.HandleLogout(w, r)
	case "check_session":
		h.HandleCheckSession(w, r)
	case "change_credentials":
		token := admin.TokenFromRequest(r, h.cookie.Name)
		if token == "" {
			httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthenticated, "Not authenticated"))
			return
		}
		h.changeCredentials(w, r, token, &req.ChangeCredentialsRequest)
	default:
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "Invalid action"))
	}
}

func (h *Handler) setSessionCookie(w http.ResponseWriter, r *http.Request, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.cookie.Name,
		Value:    token,
		Path:     "/",
		MaxAge:   h.cookie.MaxAge,
		HttpOnly: true,
		Secure:   h.cookie.Secure || isHTTPS(r),
		SameSite: http.SameSiteStrictMode,
	})
}

func (h *Handler) clearSessionCookie(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.cookie.Name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cookie.Secure || isHTTPS(r),
		SameSite: http.SameSiteStrictMode,
	})
}

// invalidatesSession reports whether err means the presented token is dead.
func invalidatesSession(err error) bool {
	switch dErrors.CodeOf(err) {
	case dErrors.CodeUnauthenticated, dErrors.CodeSessionExpired, dErrors.CodeAccountDisabled:
		return true
	default:
		return false
	}
}

func isHTTPS(r *http.Request) bool {
	if r.TLS != nil {
		return true
	}
	return strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}
