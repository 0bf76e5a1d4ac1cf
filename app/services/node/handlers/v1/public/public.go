// Package public maintains the group of handlers for public access.
package public

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"github.com/leakwatch/blockchain/business/core/leak"
	"github.com/leakwatch/blockchain/business/sys/validate"
	v1 "github.com/leakwatch/blockchain/business/web/v1"
	"github.com/leakwatch/blockchain/foundation/blockchain/state"
	"github.com/leakwatch/blockchain/foundation/events"
	"github.com/leakwatch/blockchain/foundation/web"
	"go.uber.org/zap"
)

// Handlers manages the set of ledger endpoints.
type Handlers struct {
	Log      *zap.SugaredLogger
	State    *state.State
	Detector *leak.Detector
	WS       websocket.Upgrader
	Evts     *events.Events
}

// Events handles a web socket to provide events to a client.
func (h Handlers) Events(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	// Subscribe before the upgrade so no block appended after the client
	// is connected can be missed.
	ch := h.Evts.Acquire(v.TraceID)
	defer h.Evts.Release(v.TraceID)

	h.WS.CheckOrigin = func(r *http.Request) bool { return true }

	c, err := h.WS.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	defer c.Close()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case msg, wd := <-ch:
			if !wd {
				return nil
			}

			if err := c.WriteJSON(msg); err != nil {
				return nil
			}

		case <-ticker.C:
			if err := c.WriteMessage(websocket.PingMessage, []byte("ping")); err != nil {
				return nil
			}
		}
	}
}

// Ledger returns the full chain in append order.
func (h Handlers) Ledger(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	resp := ledger{
		Ledger: h.State.RetrieveChain(),
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// Block returns a single block by its index.
func (h Handlers) Block(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	index, err := strconv.ParseUint(web.Param(r, "index"), 10, 64)
	if err != nil {
		return v1.NewRequestError(fmt.Errorf("invalid block index: %w", err), http.StatusBadRequest)
	}

	block, err := h.State.QueryBlock(index)
	if err != nil {
		return v1.LedgerError(err)
	}

	return web.Respond(ctx, w, block, http.StatusOK)
}

// Verify walks the chain and reports if it's intact. A failed verification
// halts the ledger.
func (h Handlers) Verify(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	resp := verification{
		Valid:  true,
		Length: len(h.State.RetrieveChain()),
	}

	if err := h.State.Verify(); err != nil {
		h.Log.Errorw("verify", "traceid", web.GetTraceID(ctx), "ERROR", err)
		resp.Valid = false
		resp.Error = err.Error()
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// Tip returns the latest block signed by the node.
func (h Handlers) Tip(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	tip, err := h.State.SignedTip()
	if err != nil {
		return v1.LedgerError(err)
	}

	return web.Respond(ctx, w, tip, http.StatusOK)
}

// SubmitReport records a citizen leak report and rewards the reporter.
func (h Handlers) SubmitReport(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	var nr newReport
	if err := web.Decode(r, &nr); err != nil {
		return v1.NewRequestError(fmt.Errorf("unable to decode payload: %w", err), http.StatusBadRequest)
	}

	if err := validate.Check(nr); err != nil {
		return err
	}

	h.Log.Infow("submit report", "traceid", v.TraceID, "recipient", nr.Recipient, "zone", nr.ZoneID)

	block, err := h.State.SubmitReport(nr.toCitizenReport())
	if err != nil {
		return v1.LedgerError(err)
	}

	resp := reportResponse{
		Message: "Leak reported successfully.",
		Block:   block,
		Reward:  fmt.Sprintf("%s WaterCoins added", strconv.FormatFloat(h.State.ReportReward(), 'f', -1, 64)),
	}

	return web.Respond(ctx, w, resp, http.StatusCreated)
}

// Reports returns the report blocks filed by the recipient.
func (h Handlers) Reports(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	blocks := h.State.QueryReportsByRecipient(web.Param(r, "recipient"))
	return web.Respond(ctx, w, blocks, http.StatusOK)
}

// Rewards returns the reward total for a recipient, or across all
// recipients when none is given.
func (h Handlers) Rewards(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	recipient := web.Param(r, "recipient")

	resp := rewards{
		Recipient: recipient,
		Total:     h.State.QueryRewards(recipient),
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// Profile returns the report count and reward total of a recipient.
func (h Handlers) Profile(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	profile := h.State.QueryProfile(web.Param(r, "recipient"))
	return web.Respond(ctx, w, profile, http.StatusOK)
}

// Predict classifies a zone reading with the live leak model.
func (h Handlers) Predict(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var rd reading
	if err := web.Decode(r, &rd); err != nil {
		return v1.NewRequestError(fmt.Errorf("unable to decode payload: %w", err), http.StatusBadRequest)
	}

	if err := validate.Check(rd); err != nil {
		return err
	}

	prediction, err := h.Detector.Predict(rd.toReading())
	if err != nil {
		if errors.Is(err, leak.ErrNoModel) {
			return v1.NewRequestError(err, http.StatusServiceUnavailable)
		}
		return err
	}

	return web.Respond(ctx, w, prediction, http.StatusOK)
}
