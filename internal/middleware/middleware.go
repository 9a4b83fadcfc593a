// Package middleware assembles the HTTP middleware chain of the
// operator API.
package middleware

import (
	"context"
	"net/http"

	"github.com/MadAppGang/httplog"
	"github.com/google/uuid"
	"github.com/rs/cors"
)

type Middleware func(next http.Handler) http.Handler

var (
	CORS       = cors.New(cors.Options{})
	HTTPLogger = httplog.LoggerWithConfig(httplog.LoggerConfig{
		RouterName: "QuizRoomAdmin",
		Formatter:  httplog.DefaultLogFormatter,
	})
	DefaultMiddlewares = []Middleware{RequestIDMiddleware, CORS.Handler, HTTPLogger}
)

type ctxKeyRequestID int

const RequestIDKey ctxKeyRequestID = 0

// RequestIDMiddleware tags each request with an X-Request-ID,
// generating one when the client did not send any.
func RequestIDMiddleware(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}

		ctx := context.WithValue(r.Context(), RequestIDKey, requestID)

		w.Header().Set("X-Request-ID", requestID)
		h.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ApplyDefaults wraps a handler with the default middleware chain.
func ApplyDefaults(h http.Handler) http.Handler {
	for _, mw := range DefaultMiddlewares {
		h = mw(h)
	}
	return h
}
