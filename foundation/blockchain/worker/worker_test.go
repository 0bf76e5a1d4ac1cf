package worker_test

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/leakwatch/blockchain/foundation/blockchain/worker"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

type fakeVerifier struct {
	mu     sync.Mutex
	calls  int
	err    error
	halted bool
	done   chan struct{}
}

func (f *fakeVerifier) Verify() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls++
	if f.err != nil {
		f.halted = true
	}
	f.done <- struct{}{}
	return f.err
}

func (f *fakeVerifier) Halted() bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.halted
}

func (f *fakeVerifier) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.calls
}

func Test_Worker(t *testing.T) {
	t.Log("Given the need to verify the chain in the background.")
	{
		t.Logf("\tTest 0:\tWhen a verification is signaled.")
		{
			fv := fakeVerifier{done: make(chan struct{}, 10)}
			w := worker.Run(&fv, time.Hour, nil)

			w.SignalVerify()

			select {
			case <-fv.done:
			case <-time.After(5 * time.Second):
				t.Fatalf("\t%s\tTest 0:\tShould verify the chain.", failed)
			}
			t.Logf("\t%s\tTest 0:\tShould verify the chain.", success)

			w.Shutdown()
		}

		t.Logf("\tTest 1:\tWhen the ticker fires.")
		{
			fv := fakeVerifier{done: make(chan struct{}, 100)}
			w := worker.Run(&fv, 10*time.Millisecond, nil)

			for i := 0; i < 2; i++ {
				select {
				case <-fv.done:
				case <-time.After(5 * time.Second):
					t.Fatalf("\t%s\tTest 1:\tShould verify on every tick.", failed)
				}
			}
			t.Logf("\t%s\tTest 1:\tShould verify on every tick.", success)

			w.Shutdown()
		}

		t.Logf("\tTest 2:\tWhen the ledger halted.")
		{
			fv := fakeVerifier{err: errors.New("bad hash"), done: make(chan struct{}, 10)}
			w := worker.Run(&fv, time.Hour, nil)

			w.SignalVerify()
			<-fv.done

			// A second signal is processed but skipped once halted.
			w.SignalVerify()
			w.Shutdown()

			if fv.Calls() != 1 {
				t.Fatalf("\t%s\tTest 2:\tShould stop verifying a halted ledger, got %d calls.", failed, fv.Calls())
			}
			t.Logf("\t%s\tTest 2:\tShould stop verifying a halted ledger.", success)
		}
	}
}
