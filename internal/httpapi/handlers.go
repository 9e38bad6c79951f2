package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	marketAuth "github.com/MrEthical07/marketAuth"
	"github.com/MrEthical07/marketAuth/internal/logger"
	"github.com/MrEthical07/marketAuth/middleware"
)

const maxBodyBytes = 1 << 20

type handler struct {
	auth Auth
	log  *zap.Logger
}

type userResponse struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Username string `json:"username"`
	// FullName mirrors Username for older clients.
	FullName string `json:"fullName"`
}

type authResponse struct {
	Token     string       `json:"token"`
	ExpiresAt int64        `json:"expiresAt"`
	User      userResponse `json:"user"`
}

func toUserResponse(u marketAuth.PublicUser) userResponse {
	return userResponse{ID: u.ID, Email: u.Email, Username: u.Username, FullName: u.Username}
}

func toAuthResponse(res *marketAuth.AuthResult) authResponse {
	return authResponse{
		Token:     res.Token,
		ExpiresAt: res.ExpiresAt.Unix(),
		User:      toUserResponse(res.User),
	}
}

func (h *handler) signup(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !decode(w, r, &body) {
		return
	}

	res, err := h.auth.Signup(r.Context(), marketAuth.SignupRequest{
		Username: body.Username,
		Email:    body.Email,
		Password: body.Password,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toAuthResponse(res))
}

func (h *handler) login(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !decode(w, r, &body) {
		return
	}

	res, err := h.auth.Login(r.Context(), body.Email, body.Password)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAuthResponse(res))
}

func (h *handler) me(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeMessage(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	user, err := h.auth.CurrentUser(r.Context(), claims.UserID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(user))
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// writeError maps engine errors to statuses. Anything unrecognised is a 500
// with a generic message; the cause only goes to the log.
func (h *handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var locked *marketAuth.LockedError
	var signupLimited *marketAuth.SignupLimitedError

	switch {
	case errors.As(err, &locked):
		w.Header().Set("Retry-After", strconv.Itoa(locked.RetryAfterSeconds))
		writeMessage(w, http.StatusTooManyRequests, locked.Error())
	case errors.As(err, &signupLimited):
		w.Header().Set("Retry-After", strconv.Itoa(signupLimited.RetryAfterSeconds()))
		writeMessage(w, http.StatusTooManyRequests, signupLimited.Error())
	case errors.Is(err, marketAuth.ErrMissingCredentials):
		writeMessage(w, http.StatusBadRequest, "Email and password required")
	case errors.Is(err, marketAuth.ErrInvalidIdentity),
		errors.Is(err, marketAuth.ErrSignupInvalidEmail):
		writeMessage(w, http.StatusBadRequest, "Invalid email format")
	case errors.Is(err, marketAuth.ErrSignupInvalid):
		writeMessage(w, http.StatusBadRequest, "Missing fields")
	case errors.Is(err, marketAuth.ErrPasswordPolicy):
		writeMessage(w, http.StatusBadRequest, "Password does not meet the length requirements")
	case errors.Is(err, marketAuth.ErrInvalidCredentials):
		writeMessage(w, http.StatusUnauthorized, "Invalid credentials")
	case errors.Is(err, marketAuth.ErrTokenInvalid),
		errors.Is(err, marketAuth.ErrUserNotFound):
		writeMessage(w, http.StatusUnauthorized, "unauthorized")
	case errors.Is(err, marketAuth.ErrAccountExists):
		writeMessage(w, http.StatusConflict, "User already exists")
	case errors.Is(err, marketAuth.ErrSignupDisabled):
		writeMessage(w, http.StatusForbidden, "Signup is disabled")
	default:
		h.log.Error("request failed",
			zap.String("path", r.URL.Path),
			zap.String("client_ip", logger.MaskIP(clientIP(r))),
			zap.Error(err),
		)
		writeMessage(w, http.StatusInternalServerError, "Internal server error")
	}
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"message": message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
