package main

import (
	"context"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/diwise/service-chassis/pkg/infrastructure/buildinfo"
	"github.com/diwise/service-chassis/pkg/infrastructure/env"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y"
	"github.com/greendizer/client-go/internal/pkg/application/simulator"
	"github.com/greendizer/client-go/internal/pkg/infrastructure/router"
	api "github.com/greendizer/client-go/internal/pkg/presentation/api/greendizer"
)

const (
	appName string = "greendizer-api"
)

func main() {
	appVersion := buildinfo.SourceVersion()

	ctx, log, cleanup := o11y.Init(context.Background(), appName, appVersion, "json")
	defer cleanup()

	policies, err := openPolicies(ctx)
	if err != nil {
		log.Error("failed to open authz policies", "err", err.Error())
		os.Exit(1)
	}
	defer policies.Close()

	app := simulator.New()
	seedDemoAccounts(app)

	r := router.New(appName)

	err = api.RegisterHandlers(ctx, r, policies, app)
	if err != nil {
		log.Error("failed to register handlers", "err", err.Error())
		os.Exit(1)
	}

	port := env.GetVariableOrDefault(ctx, "SERVICE_PORT", "8080")
	log.Info("starting to listen for connections", "port", port)

	err = http.ListenAndServe(":"+port, r)
	if err != nil {
		log.Error("failed to listen for connections", "err", err.Error())
		os.Exit(1)
	}
}

// openPolicies reads the authorization policies from the configured path,
// falling back to a built in module that admits any bearer of a token.
func openPolicies(ctx context.Context) (io.ReadCloser, error) {
	path := env.GetVariableOrDefault(ctx, "AUTHZ_POLICIES_PATH", "")
	if path == "" {
		return io.NopCloser(strings.NewReader(defaultPolicies)), nil
	}

	return os.Open(path)
}

const defaultPolicies string = `package greendizer.authz

default allow = false

allow {
    input.token != ""
}
`
