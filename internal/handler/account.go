package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/sakif/reportnavi/internal/apperror"
	"github.com/sakif/reportnavi/internal/auth"
	"github.com/sakif/reportnavi/internal/service"
)

// AccountHandler serves registration, login and the signed-in user's
// profile.
type AccountHandler struct {
	accounts *service.AccountService
	tokens   *auth.TokenService
	logger   *slog.Logger
}

func NewAccountHandler(accounts *service.AccountService, tokens *auth.TokenService, logger *slog.Logger) *AccountHandler {
	return &AccountHandler{accounts: accounts, tokens: tokens, logger: logger}
}

// setTokenCookie stores the token in an HttpOnly cookie that lives as long
// as the token itself.
func (h *AccountHandler) setTokenCookie(w http.ResponseWriter, r *http.Request, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(h.tokens.TTL().Seconds()),
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
}

// HandleRegister handles POST /api/auth/register.
func (h *AccountHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	res, err := h.accounts.Register(r.Context(), req.Username, req.Password, req.AdminCode)
	if err != nil {
		writeError(w, err)
		return
	}

	h.setTokenCookie(w, r, res.Token)
	writeJSON(w, http.StatusCreated, authResponse{User: toUserResponse(res.User), Token: res.Token})
}

// HandleLogin handles POST /api/auth/login.
func (h *AccountHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	res, err := h.accounts.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	h.setTokenCookie(w, r, res.Token)
	writeJSON(w, http.StatusOK, authResponse{User: toUserResponse(res.User), Token: res.Token})
}

// HandleLogout clears the cookie. Bearer tokens stay valid until they
// expire; there is no server-side session to revoke.
func (h *AccountHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

// HandleMe handles GET /api/me.
func (h *AccountHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	username, ok := auth.UsernameFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthorized("valid authentication required"))
		return
	}

	user, err := h.accounts.Get(r.Context(), username)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(user))
}

// HandleUpdateAvatar handles PUT /api/me/avatar.
func (h *AccountHandler) HandleUpdateAvatar(w http.ResponseWriter, r *http.Request) {
	username, ok := auth.UsernameFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthorized("valid authentication required"))
		return
	}

	var req avatarRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	user, err := h.accounts.UpdateAvatar(r.Context(), username, req.ProfilePic)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(user))
}

// HandleLeaderboard handles GET /api/users/leaderboard?limit=N.
func (h *AccountHandler) HandleLeaderboard(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			writeError(w, apperror.ValidationFailed("limit", "limit must be a positive integer"))
			return
		}
		limit = n
	}

	users, err := h.accounts.Leaderboard(r.Context(), limit)
	if err != nil {
		writeError(w, err)
		return
	}

	out := make([]userResponse, len(users))
	for i := range users {
		out[i] = toUserResponse(&users[i])
	}
	writeJSON(w, http.StatusOK, out)
}
