package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"referral-bot/internal/models"
	"referral-bot/internal/services"

	"github.com/rs/zerolog/hlog"
)

type AuthHandler struct {
	authService *services.AuthService
}

func NewAuthHandler(authService *services.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}

	token, err := h.authService.Login(req.Password)
	switch {
	case errors.Is(err, services.ErrLoginDisabled):
		respondWithError(w, http.StatusServiceUnavailable, "login_disabled", "Operator login is not configured")
		return
	case errors.Is(err, services.ErrInvalidCredentials):
		respondWithError(w, http.StatusUnauthorized, "authentication_failed", "Invalid password")
		return
	case err != nil:
		hlog.FromRequest(r).Error().Err(err).Msg("Token generation failed")
		respondWithError(w, http.StatusInternalServerError, "token_generation_failed", "Failed to generate token")
		return
	}

	respondWithJSON(w, http.StatusOK, models.AuthResponse{
		Token:     token,
		ExpiresIn: int64(services.TokenTTL.Seconds()),
	})
}
