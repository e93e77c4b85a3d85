// The api-server command runs the souq HTTP API.
package main

import (
	"context"

	sdkapp "github.com/go-faster/sdk/app"
	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"souq/internal/app"
)

func main() {
	sdkapp.Run(func(ctx context.Context, lg *zap.Logger, m *sdkapp.Telemetry) error {
		cfg, err := app.LoadConfig()
		if err != nil {
			return errors.Wrap(err, "load config")
		}
		return app.Run(ctx, lg, m, cfg)
	})
}
