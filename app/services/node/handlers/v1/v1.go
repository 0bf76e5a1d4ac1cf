// Package v1 contains the full set of handler functions and routes
// supported by the v1 web api.
package v1

import (
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/leakwatch/blockchain/app/services/node/handlers/v1/private"
	"github.com/leakwatch/blockchain/app/services/node/handlers/v1/public"
	"github.com/leakwatch/blockchain/business/core/leak"
	"github.com/leakwatch/blockchain/business/web/v1/mid"
	"github.com/leakwatch/blockchain/foundation/blockchain/state"
	"github.com/leakwatch/blockchain/foundation/blockchain/worker"
	"github.com/leakwatch/blockchain/foundation/events"
	"github.com/leakwatch/blockchain/foundation/web"
	"go.uber.org/zap"
)

const version = "v1"

// Config contains all the mandatory systems required by handlers.
type Config struct {
	Log         *zap.SugaredLogger
	State       *state.State
	Detector    *leak.Detector
	Worker      *worker.Worker
	Evts        *events.Events
	ReportRate  float64
	ReportBurst int
}

// PublicRoutes binds all the version 1 public routes.
func PublicRoutes(app *web.App, cfg Config) {
	pbl := public.Handlers{
		Log:      cfg.Log,
		State:    cfg.State,
		Detector: cfg.Detector,
		WS:       websocket.Upgrader{},
		Evts:     cfg.Evts,
	}

	rate, burst := cfg.ReportRate, cfg.ReportBurst
	if rate <= 0 {
		rate = 1
	}
	if burst <= 0 {
		burst = 5
	}

	app.Handle(http.MethodGet, version, "/events", pbl.Events)
	app.Handle(http.MethodGet, version, "/ledger", pbl.Ledger)
	app.Handle(http.MethodGet, version, "/ledger/block/:index", pbl.Block)
	app.Handle(http.MethodGet, version, "/ledger/verify", pbl.Verify)
	app.Handle(http.MethodGet, version, "/ledger/tip", pbl.Tip)
	app.Handle(http.MethodPost, version, "/reports", pbl.SubmitReport, mid.RateLimit(rate, burst))
	app.Handle(http.MethodGet, version, "/reports/:recipient", pbl.Reports)
	app.Handle(http.MethodGet, version, "/rewards", pbl.Rewards)
	app.Handle(http.MethodGet, version, "/rewards/:recipient", pbl.Rewards)
	app.Handle(http.MethodGet, version, "/profile/:recipient", pbl.Profile)
	app.Handle(http.MethodPost, version, "/predict", pbl.Predict)
}

// PrivateRoutes binds all the version 1 operator routes.
func PrivateRoutes(app *web.App, cfg Config) {
	prv := private.Handlers{
		Log:      cfg.Log,
		State:    cfg.State,
		Detector: cfg.Detector,
		Worker:   cfg.Worker,
	}

	app.Handle(http.MethodPost, version, "/ledger/verify", prv.ScheduleVerify)
	app.Handle(http.MethodPost, version, "/transactions", prv.SubmitTransaction)
	app.Handle(http.MethodPost, version, "/retrain", prv.Retrain)
	app.Handle(http.MethodGet, version, "/balances", prv.Balances)
}
