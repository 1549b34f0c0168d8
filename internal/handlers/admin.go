package handlers

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/classvault/apiserver/internal/services"
	"github.com/classvault/apiserver/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
)

const adminSubject = "admin"

// AdminHandler provides the administrator control surface. Access is gated
// by a passkey exchange that mints a short-lived capability token; the
// token is a time-boxed unlock, deliberately not a session bound to any
// account.
type AdminHandler struct {
	adminService *services.AdminService
	passkey      string
	secret       []byte
	tokenTTL     time.Duration
}

func NewAdminHandler(adminService *services.AdminService, passkey, tokenSecret string, tokenTTL time.Duration) *AdminHandler {
	return &AdminHandler{
		adminService: adminService,
		passkey:      passkey,
		secret:       []byte(tokenSecret),
		tokenTTL:     tokenTTL,
	}
}

// AdminRouter registers admin routes on the given router.
func AdminRouter(r chi.Router, adminService *services.AdminService, passkey, tokenSecret string, tokenTTL time.Duration) {
	handler := NewAdminHandler(adminService, passkey, tokenSecret, tokenTTL)

	r.Post("/auth", handler.Authenticate)
	r.Group(func(r chi.Router) {
		r.Use(handler.requireCapability)
		r.Get("/users", handler.ListUsers)
		r.Route("/users/{userID}", func(r chi.Router) {
			r.Patch("/dashboard-access", handler.SetDashboardAccess)
			r.Patch("/file-keyword", handler.SetFileAccessKeyword)
			r.Delete("/", handler.DeleteUser)
		})
	})
}

type PasskeyRequest struct {
	Passkey string `json:"passkey"`
}

type CapabilityResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Authenticate compares the submitted passkey against the server-held
// secret and, on success, mints the capability token.
func (h *AdminHandler) Authenticate(w http.ResponseWriter, r *http.Request) {
	if h.passkey == "" || len(h.secret) == 0 {
		writeError(w, http.StatusInternalServerError, "admin access is not configured")
		return
	}

	var req PasskeyRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	if subtle.ConstantTimeCompare([]byte(req.Passkey), []byte(h.passkey)) != 1 {
		writeError(w, http.StatusUnauthorized, "incorrect passkey")
		return
	}

	now := time.Now()
	expiresAt := now.Add(h.tokenTTL)
	claims := jwt.RegisteredClaims{
		Subject:   adminSubject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(h.secret)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create token")
		return
	}

	writeJSON(w, http.StatusOK, CapabilityResponse{Token: token, ExpiresAt: expiresAt})
}

func (h *AdminHandler) requireCapability(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString, err := bearerToken(r)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		claims := jwt.RegisteredClaims{}
		token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, errors.New("invalid signing method")
			}
			return h.secret, nil
		})
		if err != nil || !token.Valid || claims.Subject != adminSubject {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// ListUsers returns the non-student accounts the console can administer.
func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.adminService.ListNonStudentUsers(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list users")
		return
	}
	writeJSON(w, http.StatusOK, users)
}

type DashboardAccessRequest struct {
	Granted bool `json:"granted"`
}

func (h *AdminHandler) SetDashboardAccess(w http.ResponseWriter, r *http.Request) {
	var req DashboardAccessRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	err := h.adminService.SetDashboardAccess(r.Context(), chi.URLParam(r, "userID"), req.Granted)
	if err != nil {
		writeAdminError(w, err, "failed to update dashboard access")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type FileKeywordRequest struct {
	Keyword string `json:"keyword"`
}

func (h *AdminHandler) SetFileAccessKeyword(w http.ResponseWriter, r *http.Request) {
	var req FileKeywordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	err := h.adminService.SetFileAccessKeyword(r.Context(), chi.URLParam(r, "userID"), req.Keyword)
	if err != nil {
		writeAdminError(w, err, "failed to update file access keyword")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	err := h.adminService.DeleteAccount(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		var partial *services.PartialDeleteError
		if errors.As(err, &partial) {
			// Some stores were cleaned, some not. Report it; nothing is
			// rolled back, retrying the delete is safe.
			writeJSON(w, http.StatusInternalServerError, PartialDeleteResponse{
				Error:     "account partially deleted",
				Completed: partial.Completed,
				Failed:    partial.Failed,
			})
			return
		}
		writeAdminError(w, err, "failed to delete user")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type PartialDeleteResponse struct {
	Error     string   `json:"error"`
	Completed []string `json:"completed"`
	Failed    string   `json:"failed"`
}

func writeAdminError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "user not found")
	case errors.Is(err, services.ErrStudentImmutable):
		writeError(w, http.StatusForbidden, "student accounts cannot be modified")
	default:
		writeError(w, http.StatusInternalServerError, fallback)
	}
}

func bearerToken(r *http.Request) (string, error) {
	auth := strings.TrimSpace(r.Header.Get("Authorization"))
	if auth == "" {
		return "", errors.New("missing authorization")
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errors.New("invalid authorization")
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", errors.New("invalid authorization")
	}
	return token, nil
}
