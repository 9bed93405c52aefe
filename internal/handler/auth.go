package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/dukerupert/planwise/internal/auth"
	"github.com/dukerupert/planwise/internal/gcal"
	"github.com/dukerupert/planwise/internal/metrics"
	"github.com/dukerupert/planwise/internal/middleware"
	"github.com/dukerupert/planwise/internal/model"
	"github.com/dukerupert/planwise/internal/store"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// ProfileSource resolves a Google access token to its account.
type ProfileSource interface {
	Profile(ctx context.Context, accessToken string) (*gcal.Profile, error)
}

type AuthHandler struct {
	users        *store.UserStore
	issuer       *auth.TokenIssuer
	revoker      auth.Revoker
	profiles     ProfileSource
	cookieSecure bool
	logger       *slog.Logger
}

func NewAuthHandler(users *store.UserStore, issuer *auth.TokenIssuer, revoker auth.Revoker, profiles ProfileSource, cookieSecure bool, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		users:        users,
		issuer:       issuer,
		revoker:      revoker,
		profiles:     profiles,
		cookieSecure: cookieSecure,
		logger:       logger,
	}
}

type registerRequest struct {
	Name     string `json:"name" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type googleLoginRequest struct {
	AccessToken string `json:"accessToken" validate:"required"`
}

type sessionResponse struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expiresAt"`
	User      *model.User `json:"user"`
	UserKey   string      `json:"userKey"`
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	if err := validate.Struct(req); err != nil {
		metrics.TrackAuthAttempt("register", false)
		writeError(w, http.StatusBadRequest, "Missing or invalid fields")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		h.logger.Error("hash password", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal error")
		return
	}

	if _, err := h.users.Create(req.Email, req.Name, hash, model.ProviderCredentials); err != nil {
		metrics.TrackAuthAttempt("register", false)
		if errors.Is(err, store.ErrEmailTaken) {
			writeError(w, http.StatusBadRequest, "User already exists")
			return
		}
		h.logger.Error("create user", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal error")
		return
	}

	metrics.TrackAuthAttempt("register", true)
	h.logger.Info("user registered", "user_key", auth.UserKey(req.Email))
	writeJSON(w, http.StatusCreated, map[string]string{"message": "User created successfully"})
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "Email and password are required")
		return
	}

	user, err := h.users.GetByEmail(req.Email)
	if err != nil {
		h.logger.Error("login lookup", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal error")
		return
	}
	if user == nil || user.PasswordHash == "" {
		metrics.TrackAuthAttempt("login", false)
		writeError(w, http.StatusUnauthorized, auth.ErrBadCredentials.Error())
		return
	}
	if err := auth.CheckPassword(user.PasswordHash, req.Password); err != nil {
		metrics.TrackAuthAttempt("login", false)
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}

	h.startSession(w, "login", user, model.ProviderCredentials)
}

// GoogleLogin signs in with a Google access token, creating the account on
// first use.
func (h *AuthHandler) GoogleLogin(w http.ResponseWriter, r *http.Request) {
	if h.profiles == nil {
		writeError(w, http.StatusServiceUnavailable, "Google sign-in is not configured")
		return
	}
	var req googleLoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "accessToken is required")
		return
	}

	profile, err := h.profiles.Profile(r.Context(), req.AccessToken)
	if err != nil {
		metrics.TrackAuthAttempt("google", false)
		if errors.Is(err, auth.ErrUnauthorized) || errors.Is(err, auth.ErrForbidden) {
			writeError(w, http.StatusUnauthorized, "Google rejected the access token")
			return
		}
		h.logger.Error("fetch google profile", "error", err)
		writeError(w, http.StatusBadGateway, "Google is unavailable")
		return
	}
	if !profile.Verified {
		metrics.TrackAuthAttempt("google", false)
		writeError(w, http.StatusUnauthorized, "Google account email is not verified")
		return
	}

	user, err := h.users.EnsureProviderUser(profile.Email, profile.Name, model.ProviderGoogle)
	if err != nil {
		h.logger.Error("ensure google user", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal error")
		return
	}
	h.startSession(w, "google", user, model.ProviderGoogle)
}

// Me returns the account behind the current session.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	user, err := h.users.GetByID(id.UserID)
	if err != nil {
		h.logger.Error("load user", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal error")
		return
	}
	if user == nil {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"user":     user,
		"userKey":  auth.UserKey(user.Email),
		"provider": id.Provider,
	})
}

// startSession issues a token for user, sets the session cookie and writes
// the session body. provider names how this session was signed in.
func (h *AuthHandler) startSession(w http.ResponseWriter, kind string, user *model.User, provider string) {
	token, exp, err := h.issuer.Issue(auth.Identity{
		UserID:   user.ID,
		Email:    user.Email,
		Name:     user.Name,
		Provider: provider,
	})
	if err != nil {
		h.logger.Error("issue token", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal error")
		return
	}
	if err := h.users.RecordLogin(user.ID); err != nil {
		h.logger.Warn("record login", "error", err)
	}

	metrics.TrackAuthAttempt(kind, true)
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    token,
		Path:     "/",
		Expires:  exp,
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, sessionResponse{
		Token:     token,
		ExpiresAt: exp,
		User:      user,
		UserKey:   auth.UserKey(user.Email),
	})
}

// Logout revokes the presented token until it would have expired.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	claims, err := h.issuer.Parse(middleware.SessionToken(r))
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	until := time.Now().Add(time.Minute)
	if claims.ExpiresAt != nil {
		until = claims.ExpiresAt.Time
	}
	if err := h.revoker.Revoke(r.Context(), claims.ID, until); err != nil {
		h.logger.Error("revoke token", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal error")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, map[string]string{"message": "Logged out"})
}
