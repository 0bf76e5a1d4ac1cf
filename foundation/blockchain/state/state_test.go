package state_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/leakwatch/blockchain/foundation/blockchain/database"
	"github.com/leakwatch/blockchain/foundation/blockchain/state"
	"github.com/leakwatch/blockchain/foundation/blockchain/storage/memory"
	"github.com/leakwatch/blockchain/foundation/events"
	"go.uber.org/zap"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

const nodeKey = "fae85851bdf5c9f49923722ce38f3c1defcfd3619ef5453230a58ad805499959"

func ifErrFailNow(t *testing.T, err error) {
	if err != nil {
		t.Error(err)
		t.FailNow()
	}
}

func Test_SubmitAndQuery(t *testing.T) {
	strg, err := memory.New()
	ifErrFailNow(t, err)

	evts := events.New()
	defer evts.Shutdown()
	viewer := evts.Acquire("test")

	ev := evts.Handler(zap.NewNop().Sugar())

	st, err := state.New(state.Config{
		Storage:   strg,
		EvHandler: ev,
	})
	ifErrFailNow(t, err)
	defer st.Shutdown()

	t.Log("Given the need to record reports and rewards.")
	{
		t.Logf("\tTest 0:\tWhen submitting reports and transactions.")
		{
			block, err := st.SubmitReport(database.CitizenReport{Recipient: "bob", ZoneID: "Z1", RewardAmount: 1000})
			if err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould be able to submit a report: %v", failed, err)
			}
			t.Logf("\t%s\tTest 0:\tShould be able to submit a report.", success)

			report := block.Payload.(database.CitizenReport)
			if report.RewardAmount != state.DefaultReportReward {
				t.Fatalf("\t%s\tTest 0:\tShould credit the configured report reward, got %v.", failed, report.RewardAmount)
			}
			t.Logf("\t%s\tTest 0:\tShould credit the configured report reward.", success)

			if ev := <-viewer; !strings.HasPrefix(ev.Message, "viewer: block: {") || !strings.Contains(ev.Message, block.Hash) {
				t.Fatalf("\t%s\tTest 0:\tShould send a block event, got %+v.", failed, ev)
			}
			t.Logf("\t%s\tTest 0:\tShould send a block event.", success)

			if _, err := st.SubmitReport(database.CitizenReport{Recipient: "bob", ZoneID: "Z2"}); err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould be able to submit a report: %v", failed, err)
			}
			if _, err := st.SubmitTransaction(database.RewardTransaction{Sender: "admin", Recipient: "carol", RewardAmount: 10, Reason: "repair"}); err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould be able to submit a transaction: %v", failed, err)
			}

			if _, err := st.SubmitTransaction(database.RewardTransaction{Sender: "admin", Recipient: "carol", RewardAmount: -1}); !errors.Is(err, state.ErrInvalidReward) {
				t.Fatalf("\t%s\tTest 0:\tShould reject a negative reward, got %v.", failed, err)
			}
			t.Logf("\t%s\tTest 0:\tShould reject a negative reward.", success)

			if got := st.QueryRewards(""); got != 20 {
				t.Fatalf("\t%s\tTest 0:\tShould have a total of 20, got %v.", failed, got)
			}
			if got := st.QueryRewards("bob"); got != 10 {
				t.Fatalf("\t%s\tTest 0:\tShould have 10 for bob, got %v.", failed, got)
			}
			if got := st.QueryBalances(); len(got) != 2 || got["carol"] != 10 {
				t.Fatalf("\t%s\tTest 0:\tShould have two balances, got %v.", failed, got)
			}
			t.Logf("\t%s\tTest 0:\tShould aggregate rewards.", success)

			if got := st.QueryReportsByRecipient("bob"); len(got) != 2 {
				t.Fatalf("\t%s\tTest 0:\tShould find two reports for bob, got %d.", failed, len(got))
			}
			if got := st.QueryReportsByRecipient("carol"); len(got) != 0 {
				t.Fatalf("\t%s\tTest 0:\tShould find no reports for carol, got %d.", failed, len(got))
			}
			t.Logf("\t%s\tTest 0:\tShould filter reports by recipient.", success)

			p := st.QueryProfile("bob")
			if p.Reports != 2 || p.TotalReward != 10 {
				t.Fatalf("\t%s\tTest 0:\tShould build bob's profile, got %+v.", failed, p)
			}
			t.Logf("\t%s\tTest 0:\tShould build bob's profile.", success)

			if st.RetrieveLatestBlock().Index != 4 || len(st.RetrieveChain()) != 4 {
				t.Fatalf("\t%s\tTest 0:\tShould have four blocks.", failed)
			}
			if _, err := st.QueryBlock(9); !errors.Is(err, database.ErrNotFound) {
				t.Fatalf("\t%s\tTest 0:\tShould not find block 9, got %v.", failed, err)
			}
			t.Logf("\t%s\tTest 0:\tShould retrieve blocks.", success)

			if err := st.Verify(); err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould verify: %v", failed, err)
			}
			t.Logf("\t%s\tTest 0:\tShould verify.", success)
		}
	}
}

func Test_HaltOnTamper(t *testing.T) {
	t.Log("Given the need to stop appending to a chain that can't be trusted.")
	{
		t.Logf("\tTest 0:\tWhen the storage is changed while the ledger runs.")
		{
			strg, err := memory.New()
			ifErrFailNow(t, err)

			st, err := state.New(state.Config{Storage: strg, ReportReward: 3})
			ifErrFailNow(t, err)

			block, err := st.SubmitReport(database.CitizenReport{Recipient: "bob"})
			ifErrFailNow(t, err)

			blockData, err := strg.GetBlock(block.Index)
			ifErrFailNow(t, err)
			blockData.Payload = []byte(`{"type":"citizen_report","recipient":"mallory","reward_amount":3}`)
			ifErrFailNow(t, strg.Replace(blockData))

			if err := st.Verify(); !errors.Is(err, database.ErrIntegrityViolation) {
				t.Fatalf("\t%s\tTest 0:\tShould detect the change, got %v.", failed, err)
			}
			t.Logf("\t%s\tTest 0:\tShould detect the change.", success)

			if !st.Halted() {
				t.Fatalf("\t%s\tTest 0:\tShould be halted.", failed)
			}
			if _, err := st.SubmitReport(database.CitizenReport{Recipient: "bob"}); !errors.Is(err, state.ErrHalted) {
				t.Fatalf("\t%s\tTest 0:\tShould refuse appends, got %v.", failed, err)
			}
			t.Logf("\t%s\tTest 0:\tShould refuse appends.", success)

			if got := len(st.RetrieveChain()); got != 2 {
				t.Fatalf("\t%s\tTest 0:\tShould keep serving reads, got %d blocks.", failed, got)
			}
			t.Logf("\t%s\tTest 0:\tShould keep serving reads.", success)
		}
	}
}

func Test_SignedTip(t *testing.T) {
	t.Log("Given the need to attest to the chain tip.")
	{
		t.Logf("\tTest 0:\tWhen the node has a key.")
		{
			key, err := crypto.HexToECDSA(nodeKey)
			ifErrFailNow(t, err)

			st, err := state.New(state.Config{NodeKey: key})
			ifErrFailNow(t, err)

			block, err := st.SubmitReport(database.CitizenReport{Recipient: "bob"})
			ifErrFailNow(t, err)

			tip, err := st.SignedTip()
			if err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould be able to sign the tip: %v", failed, err)
			}
			t.Logf("\t%s\tTest 0:\tShould be able to sign the tip.", success)

			if tip.Hash != block.Hash || tip.Index != block.Index {
				t.Fatalf("\t%s\tTest 0:\tShould describe the latest block.", failed)
			}
			if tip.Signer != "0xdd6B972ffcc631a62CAE1BB9d80b7ff429c8ebA4" {
				t.Fatalf("\t%s\tTest 0:\tShould be signed by the node address, got %s.", failed, tip.Signer)
			}
			t.Logf("\t%s\tTest 0:\tShould describe the latest block signed by the node.", success)

			ok, err := state.VerifyTip(tip)
			if err != nil || !ok {
				t.Fatalf("\t%s\tTest 0:\tShould verify the tip: %v", failed, err)
			}
			t.Logf("\t%s\tTest 0:\tShould verify the tip.", success)

			forged := []struct {
				name   string
				change func(*state.Tip)
			}{
				{"hash", func(tp *state.Tip) { tp.Hash = block.PreviousHash }},
				{"index", func(tp *state.Tip) { tp.Index = 999 }},
				{"timestamp", func(tp *state.Tip) { tp.Timestamp = "2030-01-01T00:00:00.000000Z" }},
			}
			for _, f := range forged {
				changed := tip
				f.change(&changed)

				if ok, _ := state.VerifyTip(changed); ok {
					t.Fatalf("\t%s\tTest 0:\tShould reject a tip with a different %s.", failed, f.name)
				}
				t.Logf("\t%s\tTest 0:\tShould reject a tip with a different %s.", success, f.name)
			}
		}

		t.Logf("\tTest 1:\tWhen the node has no key.")
		{
			st, err := state.New(state.Config{})
			ifErrFailNow(t, err)

			if _, err := st.SignedTip(); !errors.Is(err, state.ErrNoSigner) {
				t.Fatalf("\t%s\tTest 1:\tShould fail without a key, got %v.", failed, err)
			}
			t.Logf("\t%s\tTest 1:\tShould fail without a key.", success)
		}
	}
}
