// Package private maintains the group of handlers for operator access.
package private

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/leakwatch/blockchain/business/core/leak"
	"github.com/leakwatch/blockchain/business/sys/validate"
	v1 "github.com/leakwatch/blockchain/business/web/v1"
	"github.com/leakwatch/blockchain/foundation/blockchain/state"
	"github.com/leakwatch/blockchain/foundation/blockchain/worker"
	"github.com/leakwatch/blockchain/foundation/web"
	"go.uber.org/zap"
)

// maxUpload bounds the size of an uploaded training file.
const maxUpload = 32 << 20

// Handlers manages the set of operator endpoints.
type Handlers struct {
	Log      *zap.SugaredLogger
	State    *state.State
	Detector *leak.Detector
	Worker   *worker.Worker
}

// SubmitTransaction records a reward transaction issued by an operator.
func (h Handlers) SubmitTransaction(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	var nt newTransaction
	if err := web.Decode(r, &nt); err != nil {
		return v1.NewRequestError(fmt.Errorf("unable to decode payload: %w", err), http.StatusBadRequest)
	}

	if err := validate.Check(nt); err != nil {
		return err
	}

	h.Log.Infow("submit transaction", "traceid", v.TraceID, "sender", nt.Sender, "recipient", nt.Recipient, "amount", nt.RewardAmount)

	block, err := h.State.SubmitTransaction(nt.toRewardTransaction())
	if err != nil {
		return v1.LedgerError(err)
	}

	return web.Respond(ctx, w, block, http.StatusCreated)
}

// Retrain replaces the leak model with one trained on the uploaded CSV
// file.
func (h Handlers) Retrain(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxUpload)

	file, _, err := r.FormFile("file")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return v1.NewRequestError(errors.New("no file uploaded"), http.StatusBadRequest)
		}
		return v1.NewRequestError(fmt.Errorf("reading upload: %w", err), http.StatusBadRequest)
	}
	defer file.Close()

	model, err := h.Detector.Retrain(file)
	if err != nil {
		return v1.NewRequestError(err, http.StatusBadRequest)
	}

	resp := retrainResponse{
		Message:  "Model retrained successfully with new data.",
		Samples:  model.Samples,
		Accuracy: model.Accuracy,
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// Balances returns the reward totals of every recipient.
func (h Handlers) Balances(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	return web.Respond(ctx, w, h.State.QueryBalances(), http.StatusOK)
}

// ScheduleVerify asks the worker to verify the chain against storage in the
// background. The outcome is reported through the node's events.
func (h Handlers) ScheduleVerify(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	if h.Worker == nil {
		return v1.NewRequestError(errors.New("background verification is not running"), http.StatusServiceUnavailable)
	}

	h.Worker.SignalVerify()

	resp := struct {
		Status string `json:"status"`
	}{
		Status: "verification scheduled",
	}

	return web.Respond(ctx, w, resp, http.StatusAccepted)
}
