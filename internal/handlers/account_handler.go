package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"referral-bot/internal/models"
	"referral-bot/internal/services"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/hlog"
)

// AccountHandler exposes the engine's intents over HTTP. Business rejections
// come back as 200 with the result variant in "status".
type AccountHandler struct {
	engine *services.Engine
}

func NewAccountHandler(engine *services.Engine) *AccountHandler {
	return &AccountHandler{engine: engine}
}

func (h *AccountHandler) Start(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.accountID(w, r)
	if !ok {
		return
	}

	var req models.StartRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondWithError(w, http.StatusBadRequest, "invalid_request", "Invalid request body")
			return
		}
	}

	info, err := h.engine.Start(r.Context(), userID, req.DisplayName, req.Referrer)
	if err != nil {
		h.fail(w, r, err, "Start failed")
		return
	}
	respondWithJSON(w, http.StatusOK, info)
}

func (h *AccountHandler) Balance(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.accountID(w, r)
	if !ok {
		return
	}

	info, err := h.engine.CheckBalance(r.Context(), userID, "")
	if err != nil {
		h.fail(w, r, err, "Failed to fetch balance")
		return
	}
	respondWithJSON(w, http.StatusOK, info)
}

func (h *AccountHandler) ReferralLink(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.accountID(w, r)
	if !ok {
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]string{
		"referral_link": h.engine.ReferralLink(userID),
	})
}

func (h *AccountHandler) ClaimBonus(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.accountID(w, r)
	if !ok {
		return
	}

	result, err := h.engine.ClaimBonus(r.Context(), userID, "", h.engine.Today())
	if err != nil {
		h.fail(w, r, err, "Failed to claim bonus")
		return
	}
	respondWithJSON(w, http.StatusOK, result)
}

func (h *AccountHandler) WithdrawStart(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.accountID(w, r)
	if !ok {
		return
	}

	result, err := h.engine.WithdrawStart(r.Context(), userID, "")
	if err != nil {
		h.fail(w, r, err, "Failed to start withdrawal")
		return
	}
	respondWithJSON(w, http.StatusOK, result)
}

func (h *AccountHandler) WithdrawAmount(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.accountID(w, r)
	if !ok {
		return
	}

	var req models.WithdrawAmountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}

	result, err := h.engine.WithdrawAmount(r.Context(), userID, req.Amount)
	if err != nil {
		h.fail(w, r, err, "Failed to process withdrawal")
		return
	}
	respondWithJSON(w, http.StatusOK, result)
}

func (h *AccountHandler) WithdrawCancel(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.accountID(w, r)
	if !ok {
		return
	}
	respondWithJSON(w, http.StatusOK, h.engine.WithdrawCancel(r.Context(), userID))
}

func (h *AccountHandler) History(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.accountID(w, r)
	if !ok {
		return
	}

	limit := 50
	offset := 0
	if l, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && l > 0 {
		limit = l
	}
	if o, err := strconv.Atoi(r.URL.Query().Get("offset")); err == nil && o >= 0 {
		offset = o
	}

	history, err := h.engine.History(r.Context(), userID, limit, offset)
	if err != nil {
		h.fail(w, r, err, "Failed to fetch ledger history")
		return
	}
	if history == nil {
		history = []models.LedgerEntry{}
	}
	respondWithJSON(w, http.StatusOK, history)
}

func (h *AccountHandler) accountID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid_account_id", "Invalid account ID")
		return 0, false
	}
	return id, true
}

func (h *AccountHandler) fail(w http.ResponseWriter, r *http.Request, err error, msg string) {
	hlog.FromRequest(r).Error().Err(err).Str("account_id", mux.Vars(r)["id"]).Msg(msg)
	respondWithError(w, http.StatusInternalServerError, "internal_error", msg)
}
