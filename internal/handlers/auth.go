package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/classvault/apiserver/internal/services"
	"github.com/classvault/apiserver/internal/store"
	"github.com/go-chi/chi/v5"
)

// SessionCookieName carries the opaque session token.
const SessionCookieName = "classvault_session"

// AuthHandler provides the OTP authentication endpoints.
type AuthHandler struct {
	authService  *services.AuthService
	cookieSecure bool
	sessionTTL   time.Duration
}

// NewAuthHandler constructs an AuthHandler with the provided dependencies.
func NewAuthHandler(authService *services.AuthService, cookieSecure bool, sessionTTL time.Duration) *AuthHandler {
	return &AuthHandler{
		authService:  authService,
		cookieSecure: cookieSecure,
		sessionTTL:   sessionTTL,
	}
}

// AuthRouter registers auth routes on the given router.
func AuthRouter(r chi.Router, authService *services.AuthService, cookieSecure bool, sessionTTL time.Duration) {
	handler := NewAuthHandler(authService, cookieSecure, sessionTTL)

	r.Post("/register", handler.Register)
	r.Post("/sign-in", handler.SignIn)
	r.Post("/verify", handler.Verify)
	r.Get("/me", handler.Me)
	r.Post("/sign-out", handler.SignOut)
}

// RequireUser resolves the session cookie and injects the account into the
// request context. The access decision is recomputed from the store on
// every request; nothing client-held is trusted beyond the token itself.
func (h *AuthHandler) RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, err := h.authService.ResolveSession(r.Context(), sessionToken(r))
		if err != nil {
			if errors.Is(err, services.ErrUnauthenticated) {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			writeError(w, http.StatusInternalServerError, "failed to resolve session")
			return
		}
		next.ServeHTTP(w, r.WithContext(withUser(r.Context(), user)))
	})
}

type RegisterRequest struct {
	FullName  string `json:"fullName"`
	Email     string `json:"email"`
	IsStudent bool   `json:"isStudent"`
}

type SignInRequest struct {
	Email string `json:"email"`
}

type VerifyRequest struct {
	AccountID string `json:"accountId"`
	Code      string `json:"code"`
}

// Register creates an account (or re-issues a code for a known email) and
// dispatches the OTP. If dispatch fails the caller gets an error and no
// account is created.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	req.FullName = strings.TrimSpace(req.FullName)
	req.Email = strings.TrimSpace(req.Email)
	if req.FullName == "" || req.Email == "" {
		writeError(w, http.StatusBadRequest, "missing required fields")
		return
	}

	result, err := h.authService.Register(r.Context(), req.FullName, req.Email, req.IsStudent)
	if err != nil {
		if errors.Is(err, services.ErrDispatchFailed) {
			writeError(w, http.StatusBadGateway, "failed to send verification code")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to register")
		return
	}

	writeJSON(w, http.StatusCreated, result)
}

// SignIn issues a fresh OTP for an existing email.
func (h *AuthHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	var req SignInRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	if strings.TrimSpace(req.Email) == "" {
		writeError(w, http.StatusBadRequest, "missing email")
		return
	}

	result, err := h.authService.SignIn(r.Context(), req.Email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "user not found")
			return
		}
		if errors.Is(err, services.ErrDispatchFailed) {
			writeError(w, http.StatusBadGateway, "failed to send verification code")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to sign in")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// Verify exchanges a correct code for a session cookie.
func (h *AuthHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var req VerifyRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	req.AccountID = strings.TrimSpace(req.AccountID)
	req.Code = strings.TrimSpace(req.Code)
	if req.AccountID == "" || req.Code == "" {
		writeError(w, http.StatusBadRequest, "missing account id or code")
		return
	}

	result, err := h.authService.VerifyCode(r.Context(), req.AccountID, req.Code)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidCode):
			writeError(w, http.StatusUnauthorized, "invalid code")
		case errors.Is(err, services.ErrCodeExpired):
			writeError(w, http.StatusUnauthorized, "code expired")
		case errors.Is(err, services.ErrTooManyAttempts):
			writeError(w, http.StatusTooManyRequests, "too many attempts")
		default:
			writeError(w, http.StatusInternalServerError, "failed to verify code")
		}
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    result.SessionToken,
		Path:     "/",
		MaxAge:   int(h.sessionTTL.Seconds()),
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteStrictMode,
	})
	writeJSON(w, http.StatusOK, result)
}

// Me returns the current account, or null when no session resolves. A
// missing session is an ordinary condition here, not an error.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := h.authService.ResolveSession(r.Context(), sessionToken(r))
	if err != nil {
		if errors.Is(err, services.ErrUnauthenticated) {
			writeJSON(w, http.StatusOK, nil)
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load user")
		return
	}

	writeJSON(w, http.StatusOK, user)
}

// SignOut invalidates the session server-side (best effort) and always
// clears the cookie.
func (h *AuthHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	h.authService.SignOut(r.Context(), sessionToken(r))

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteStrictMode,
	})
	w.WriteHeader(http.StatusNoContent)
}

func sessionToken(r *http.Request) string {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}
