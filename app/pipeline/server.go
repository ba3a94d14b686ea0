package pipeline

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/vyaparbazaar/featurex/app/pipeline/controller"
	"github.com/vyaparbazaar/featurex/app/pipeline/types"
)

// NewServer creates and returns a new Server instance with the given http.Server and zap.Logger.
func NewServer(app *types.App) error {
	ctler := controller.NewController(app)
	router, err := ctler.NewRouter()
	if err != nil {
		return err
	}

	// use <ip>:<port> to bind to a specific interface or :<port> to bind to all interfaces
	addr := app.Cfg.ListenAddr

	app.Server = &http.Server{Addr: addr, Handler: controller.WithCORS(router)}
	app.Logger.Info("Starting server", zap.String("addr", addr))

	return nil
}
