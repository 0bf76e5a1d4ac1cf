// Package worker runs the background verification of the chain.
package worker

import (
	"sync"
	"time"

	"github.com/leakwatch/blockchain/foundation/blockchain/state"
)

// DefaultInterval is how often the full chain is verified when no interval
// is configured.
const DefaultInterval = 5 * time.Minute

// Verifier represents the behavior required to verify the chain.
type Verifier interface {
	Verify() error
	Halted() bool
}

// =============================================================================

// Worker manages the verification workflow for the ledger.
type Worker struct {
	verifier  Verifier
	wg        sync.WaitGroup
	ticker    *time.Ticker
	shut      chan struct{}
	verify    chan bool
	evHandler state.EventHandler
}

// Run creates a worker and starts the verification goroutine. The chain is
// verified once every interval and whenever SignalVerify is called.
func Run(verifier Verifier, interval time.Duration, evHandler state.EventHandler) *Worker {
	if interval <= 0 {
		interval = DefaultInterval
	}

	ev := func(v string, args ...any) {
		if evHandler != nil {
			evHandler(v, args...)
		}
	}

	w := Worker{
		verifier:  verifier,
		ticker:    time.NewTicker(interval),
		shut:      make(chan struct{}),
		verify:    make(chan bool, 1),
		evHandler: ev,
	}

	// We don't want to return until we know the G is up and running.
	hasStarted := make(chan bool)

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		hasStarted <- true
		w.verifyOperations()
	}()

	<-hasStarted

	return &w
}

// Shutdown terminates the goroutine performing work.
func (w *Worker) Shutdown() {
	w.evHandler("worker: shutdown: started")
	defer w.evHandler("worker: shutdown: completed")

	w.evHandler("worker: shutdown: stop ticker")
	w.ticker.Stop()

	w.evHandler("worker: shutdown: terminate goroutines")
	close(w.shut)
	w.wg.Wait()
}

// SignalVerify requests a verification of the chain. If there is already a
// signal pending in the channel, just return since a verification will run.
func (w *Worker) SignalVerify() {
	select {
	case w.verify <- true:
		w.evHandler("worker: SignalVerify: verification signaled")
	default:
	}
}

// =============================================================================

// verifyOperations handles verification requests until shutdown.
func (w *Worker) verifyOperations() {
	w.evHandler("worker: verifyOperations: G started")
	defer w.evHandler("worker: verifyOperations: G completed")

	for {
		select {
		case <-w.ticker.C:
			if !w.isShutdown() {
				w.runVerification()
			}

		case <-w.verify:
			if !w.isShutdown() {
				w.runVerification()
			}

		case <-w.shut:
			w.evHandler("worker: verifyOperations: received shut signal")
			return
		}
	}
}

// runVerification walks the chain once. A halted ledger was already found
// to be invalid and isn't checked again.
func (w *Worker) runVerification() {
	if w.verifier.Halted() {
		w.evHandler("worker: runVerification: ledger halted, skipping")
		return
	}

	start := time.Now()
	if err := w.verifier.Verify(); err != nil {
		w.evHandler("worker: runVerification: ERROR: %s", err)
		return
	}

	w.evHandler("worker: runVerification: chain valid: took[%s]", time.Since(start))
}

// isShutdown is used to test if a shutdown has been signaled.
func (w *Worker) isShutdown() bool {
	select {
	case <-w.shut:
		return true
	default:
		return false
	}
}
