package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
)

type contextKey string

const (
	RequestIDKey contextKey = "request_id"

	requestIDHeader = "X-Request-ID"
	slowRequest     = time.Second
)

// RequestID reuses the caller's X-Request-ID or mints one, echoes it back and
// adds it to the request logger. Must run after Logger.
func RequestID() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(requestIDHeader)
			if id == "" {
				id = uuid.NewString()
			}
			w.Header().Set(requestIDHeader, id)

			log := hlog.FromRequest(r).With().Str("request_id", id).Logger()
			ctx := context.WithValue(r.Context(), RequestIDKey, id)
			ctx = log.WithContext(ctx)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// AccessLog writes one line per request; requests slower than a second are
// logged at warn.
func AccessLog() func(http.Handler) http.Handler {
	return hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		log := hlog.FromRequest(r)
		var ev *zerolog.Event
		if duration > slowRequest {
			ev = log.Warn()
		} else {
			ev = log.Info()
		}
		ev.Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("remote_addr", r.RemoteAddr).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Msg("Request completed")
	})
}

func GetRequestID(r *http.Request) string {
	id, _ := r.Context().Value(RequestIDKey).(string)
	return id
}
