// Package api serves the Greendizer wire contract over a simulator
// dataset. The resource tree is uniform, so three handlers cover it, one
// per verb.
package api

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/diwise/service-chassis/pkg/infrastructure/o11y"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"
	"github.com/go-chi/chi/v5"
	"github.com/greendizer/client-go/internal/pkg/application/simulator"
	"github.com/greendizer/client-go/internal/pkg/presentation/api/greendizer/auth"
	"go.opentelemetry.io/otel/trace"
)

func RegisterHandlers(ctx context.Context, r chi.Router, policies io.Reader, app *simulator.Simulator) error {

	authenticator, err := auth.NewAuthenticator(ctx, policies)
	if err != nil {
		return fmt.Errorf("failed to create api authenticator: %w", err)
	}

	r.Use(
		Logger(logging.GetFromContext(ctx)),
		RequiredContentTypes([]string{"application/json", "multipart/mixed"}),
	)

	r.Get("/*", NewRetrieveHandler(app, authenticator))
	r.Patch("/*", NewCommitHandler(app, authenticator))
	r.Post("/*", NewCreateHandler(app, authenticator))

	return nil
}

func Logger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			_, ctx, _ = o11y.AddTraceIDToLoggerAndStoreInContext(
				trace.SpanFromContext(ctx),
				logger,
				ctx)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func RequiredContentTypes(validTypes []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			contentType := r.Header.Get("Content-Type")
			isValidContentType := true

			if len(contentType) > 0 {
				isValidContentType = false

				for _, t := range validTypes {
					if strings.HasPrefix(contentType, t) {
						isValidContentType = true
						break
					}
				}
			}

			if isValidContentType {
				next.ServeHTTP(w, r)
			} else {
				http.Error(w, "unsupported media type", http.StatusUnsupportedMediaType)
			}
		})
	}
}
