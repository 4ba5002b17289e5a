package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
)

func (s *ChatApp) errorHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				var panicError error
				switch e := err.(type) {
				case error:
					panicError = e
				default:
					panicError = fmt.Errorf("%v", e)
				}
				s.log.Error().Err(panicError).Str("path", r.URL.Path).Msg("panic")
				w.Header().Set("Connection", "close")
				s.writeError(w, r, NewInternalServerError(panicError))
			}
		}()

		next.ServeHTTP(w, r)
	})
}

// limitBody rejects bodies larger than maxBytes. A declared length over the
// limit is refused up front; otherwise reads past it fail while decoding.
func (s *ChatApp) limitBody(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		limited := middleware.RequestSize(maxBytes)(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > maxBytes {
				s.writeError(w, r, NewRequestTooLargeError("request body too large"))
				return
			}
			limited.ServeHTTP(w, r)
		})
	}
}

// accessLog writes one line per request. It must run inside
// middleware.RequestID to report request ids.
func (s *ChatApp) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			s.log.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Dur("latency", time.Since(start)).
				Str("request_id", middleware.GetReqID(r.Context())).
				Str("remote_addr", r.RemoteAddr).
				Msg("request completed")
		}()

		next.ServeHTTP(ww, r)
	})
}

// authMiddleware resolves the caller's identity or rejects the request
// with 401 before next runs.
func (s *ChatApp) authMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, ok := tokenFromRequest(r)
		if !ok {
			s.writeError(w, r, NewUnauthorizedError("no token provided"))
			return
		}

		id, err := verifyToken(token, s.signingKey)
		if err != nil {
			s.log.Debug().Err(err).Msg("reject token")
			s.writeError(w, r, NewUnauthorizedError("invalid token"))
			return
		}

		w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate, private")
		next(w, r.WithContext(WithIdentity(r.Context(), id)))
	}
}
