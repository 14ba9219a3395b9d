package router

import (
	"net/http"

	"referral-bot/internal/handlers"
	"referral-bot/internal/middleware"
	"referral-bot/internal/services"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Options tunes the per-client rate limit; a non-positive RateLimit disables it.
type Options struct {
	RateLimit float64
	RateBurst int
}

func SetupRouter(engine *services.Engine, auth *services.AuthService, logger zerolog.Logger, opts Options) *mux.Router {
	authHandler := handlers.NewAuthHandler(auth)
	accountHandler := handlers.NewAccountHandler(engine)

	r := mux.NewRouter()

	rateLimiter := middleware.NewRateLimiter(rate.Limit(opts.RateLimit), opts.RateBurst)

	r.Use(middleware.Logger(logger))
	r.Use(middleware.RequestID())
	r.Use(middleware.Recover())
	r.Use(middleware.AccessLog())
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS())
	r.Use(rateLimiter.Middleware())

	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(middleware.RequestValidation())

	api.HandleFunc("/auth/login", authHandler.Login).Methods("POST")

	accounts := api.PathPrefix("/accounts/{id}").Subrouter()
	accounts.Use(middleware.Authentication(auth))
	accounts.HandleFunc("/start", accountHandler.Start).Methods("POST")
	accounts.HandleFunc("/balance", accountHandler.Balance).Methods("GET")
	accounts.HandleFunc("/referral-link", accountHandler.ReferralLink).Methods("GET")
	accounts.HandleFunc("/bonus", accountHandler.ClaimBonus).Methods("POST")
	accounts.HandleFunc("/withdrawals/start", accountHandler.WithdrawStart).Methods("POST")
	accounts.HandleFunc("/withdrawals/amount", accountHandler.WithdrawAmount).Methods("POST")
	accounts.HandleFunc("/withdrawals/cancel", accountHandler.WithdrawCancel).Methods("POST")
	accounts.HandleFunc("/history", accountHandler.History).Methods("GET")

	r.Handle("/metrics", promhttp.Handler()).Methods("GET")
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods("GET")

	return r
}
