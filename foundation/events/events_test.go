package events_test

import (
	"fmt"
	"testing"

	"github.com/leakwatch/blockchain/foundation/events"
	"go.uber.org/zap"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

func Test_Events(t *testing.T) {
	t.Log("Given the need to fan out events to subscribers.")
	{
		t.Logf("\tTest 0:\tWhen two subscribers are registered.")
		{
			evts := events.New()

			ch1 := evts.Acquire("one")
			ch2 := evts.Acquire("two")

			if evts.Acquire("one") != ch1 {
				t.Fatalf("\t%s\tTest 0:\tShould return the same channel for the same id.", failed)
			}
			t.Logf("\t%s\tTest 0:\tShould return the same channel for the same id.", success)

			evts.Send("viewer: block: 2")

			for _, ch := range []<-chan events.Event{ch1, ch2} {
				if got := <-ch; got.Message != "viewer: block: 2" || got.Seq != 1 {
					t.Fatalf("\t%s\tTest 0:\tShould receive the event, got %+v.", failed, got)
				}
			}
			t.Logf("\t%s\tTest 0:\tShould deliver the event to every subscriber.", success)

			if err := evts.Release("one"); err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould be able to release: %v", failed, err)
			}
			if _, open := <-ch1; open {
				t.Fatalf("\t%s\tTest 0:\tShould close a released channel.", failed)
			}
			t.Logf("\t%s\tTest 0:\tShould close a released channel.", success)

			if err := evts.Release("one"); err == nil {
				t.Fatalf("\t%s\tTest 0:\tShould fail to release an unknown id.", failed)
			}
			t.Logf("\t%s\tTest 0:\tShould fail to release an unknown id.", success)

			evts.Shutdown()
			if _, open := <-ch2; open {
				t.Fatalf("\t%s\tTest 0:\tShould close every channel on shutdown.", failed)
			}
			t.Logf("\t%s\tTest 0:\tShould close every channel on shutdown.", success)
		}

		t.Logf("\tTest 1:\tWhen a subscriber is not reading.")
		{
			evts := events.New()
			ch := evts.Acquire("slow")

			var last uint64
			for i := 0; i < 500; i++ {
				last = evts.Send(fmt.Sprintf("viewer: block: %d", i))
			}
			t.Logf("\t%s\tTest 1:\tShould not block the sender.", success)

			if last != 500 {
				t.Fatalf("\t%s\tTest 1:\tShould number every event, got %d.", failed, last)
			}

			var got []events.Event
			for len(ch) > 0 {
				got = append(got, <-ch)
			}
			if len(got) != 100 || got[len(got)-1].Seq != 100 {
				t.Fatalf("\t%s\tTest 1:\tShould keep the first 100 events, got %d.", failed, len(got))
			}

			late := evts.Acquire("late")
			evts.Send("viewer: block: next")
			<-late
			if next := <-ch; next.Seq != 501 {
				t.Fatalf("\t%s\tTest 1:\tShould expose the gap through the sequence, got %d.", failed, next.Seq)
			}
			t.Logf("\t%s\tTest 1:\tShould expose dropped events through the sequence.", success)

			evts.Shutdown()
		}

		t.Logf("\tTest 2:\tWhen used as the ledger event handler.")
		{
			evts := events.New()
			ch := evts.Acquire("viewer")

			ev := evts.Handler(zap.NewNop().Sugar())
			ev("database: Append: blk[%d]", 2)
			ev("viewer: block: %s", `{"index":2}`)

			got := <-ch
			if got.Message != `viewer: block: {"index":2}` || got.Seq != 1 {
				t.Fatalf("\t%s\tTest 2:\tShould only forward subscriber events, got %+v.", failed, got)
			}
			if len(ch) != 0 {
				t.Fatalf("\t%s\tTest 2:\tShould forward nothing else.", failed)
			}
			t.Logf("\t%s\tTest 2:\tShould only forward subscriber events.", success)

			evts.Shutdown()
		}
	}
}
