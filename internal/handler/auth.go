package handler

import (
	"encoding/json"
	"net/http"

	"bazaar-economy-api/internal/model"
	"bazaar-economy-api/internal/service"
	"bazaar-economy-api/pkg/apierror"
	"bazaar-economy-api/pkg/response"
)

// AuthHandler handles session token issuance. Tokens are minted by the
// trusted game server (holding the admin key) on behalf of players.
type AuthHandler struct {
	tokenService *service.TokenService
	adminKey     string
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(tokenService *service.TokenService, adminKey string) *AuthHandler {
	return &AuthHandler{
		tokenService: tokenService,
		adminKey:     adminKey,
	}
}

// TokenRequest represents the request body for token generation.
type TokenRequest struct {
	AccountID string `json:"account_id"`
	Label     string `json:"label,omitempty"`
}

// TokenResponse represents the response for token generation.
type TokenResponse struct {
	Token     string `json:"token"`
	ExpiresIn int    `json:"expires_in"`
}

// GenerateToken handles POST /auth/token
func (h *AuthHandler) GenerateToken(w http.ResponseWriter, r *http.Request) {
	if h.adminKey == "" || r.Header.Get("X-Admin-Key") != h.adminKey {
		response.Error(w, apierror.Forbidden("Admin key required"))
		return
	}

	var req TokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, apierror.BadRequest("invalid request body"))
		return
	}
	defer r.Body.Close()

	if req.AccountID == "" {
		response.Error(w, apierror.BadRequest("account_id is required"))
		return
	}

	tokenData := model.TokenData{
		AccountID: req.AccountID,
		Label:     req.Label,
	}

	token, err := h.tokenService.GenerateToken(r.Context(), tokenData)
	if err != nil {
		response.Error(w, apierror.InternalError("failed to generate token"))
		return
	}

	response.OK(w, TokenResponse{
		Token:     token,
		ExpiresIn: 3600,
	})
}

// RevokeToken handles POST /auth/revoke
func (h *AuthHandler) RevokeToken(w http.ResponseWriter, r *http.Request) {
	token := r.Header.Get("X-Token")
	if token == "" {
		response.Error(w, apierror.BadRequest("X-Token header required"))
		return
	}

	if err := h.tokenService.RevokeToken(r.Context(), token); err != nil {
		response.Error(w, apierror.InternalError("failed to revoke token"))
		return
	}

	response.OK(w, map[string]string{"status": "revoked"})
}

// RefreshToken handles POST /auth/refresh
func (h *AuthHandler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	token := r.Header.Get("X-Token")
	if token == "" {
		response.Error(w, apierror.BadRequest("X-Token header required"))
		return
	}

	if err := h.tokenService.RefreshToken(r.Context(), token); err != nil {
		response.Error(w, apierror.Unauthorized(err.Error()))
		return
	}

	response.OK(w, map[string]interface{}{
		"status":     "refreshed",
		"expires_in": 3600,
	})
}
