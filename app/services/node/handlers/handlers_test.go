package handlers_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/gorilla/websocket"
	"github.com/leakwatch/blockchain/app/services/node/handlers"
	"github.com/leakwatch/blockchain/business/core/leak"
	v1 "github.com/leakwatch/blockchain/business/web/v1"
	"github.com/leakwatch/blockchain/foundation/blockchain/database"
	"github.com/leakwatch/blockchain/foundation/blockchain/state"
	"github.com/leakwatch/blockchain/foundation/blockchain/worker"
	"github.com/leakwatch/blockchain/foundation/events"
	"go.uber.org/zap"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

const nodeKey = "fae85851bdf5c9f49923722ce38f3c1defcfd3619ef5453230a58ad805499959"

type ledgerTests struct {
	public  http.Handler
	private http.Handler
	state   *state.State
	evts    *events.Events
	checks  chan string
}

func newLedgerTests(t *testing.T) *ledgerTests {
	log := zap.NewNop().Sugar()

	key, err := crypto.HexToECDSA(nodeKey)
	if err != nil {
		t.Fatalf("Should be able to load the node key: %v", err)
	}

	evts := events.New()
	ev := evts.Handler(log)

	st, err := state.New(state.Config{NodeKey: key, EvHandler: ev})
	if err != nil {
		t.Fatalf("Should be able to construct the state: %v", err)
	}

	// Results of background verification are collected for assertions.
	checks := make(chan string, 10)
	wev := func(v string, args ...any) {
		if s := fmt.Sprintf(v, args...); strings.HasPrefix(s, "worker: runVerification:") {
			select {
			case checks <- s:
			default:
			}
		}
	}
	wrk := worker.Run(st, time.Hour, wev)
	t.Cleanup(wrk.Shutdown)

	detector, err := leak.NewDetector(log, "")
	if err != nil {
		t.Fatalf("Should be able to construct the detector: %v", err)
	}

	cfg := handlers.MuxConfig{
		Shutdown:    make(chan os.Signal, 1),
		Log:         log,
		State:       st,
		Detector:    detector,
		Worker:      wrk,
		Evts:        evts,
		ReportRate:  1000,
		ReportBurst: 1000,
	}

	return &ledgerTests{
		public:  handlers.PublicMux(cfg),
		private: handlers.PrivateMux(cfg),
		state:   st,
		evts:    evts,
		checks:  checks,
	}
}

func request(h http.Handler, method string, path string, body string) *httptest.ResponseRecorder {
	r := httptest.NewRequest(method, path, strings.NewReader(body))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

// =============================================================================

func Test_Ledger(t *testing.T) {
	lt := newLedgerTests(t)

	t.Log("Given the need to work with the ledger API.")
	{
		t.Logf("\tTest 0:\tWhen submitting a citizen report.")
		{
			w := request(lt.public, http.MethodPost, "/v1/reports", `{"recipient":"bob","zone_id":"Z1","latitude":40.7,"longitude":-74.0,"description":"burst pipe"}`)
			if w.Code != http.StatusCreated {
				t.Fatalf("\t%s\tTest 0:\tShould receive a status code of 201 for the response : %v", failed, w.Code)
			}
			t.Logf("\t%s\tTest 0:\tShould receive a status code of 201 for the response.", success)

			var resp struct {
				Message string         `json:"message"`
				Block   database.Block `json:"block"`
				Reward  string         `json:"reward"`
			}
			if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould be able to unmarshal the response : %v", failed, err)
			}
			t.Logf("\t%s\tTest 0:\tShould be able to unmarshal the response.", success)

			if resp.Reward != "5 WaterCoins added" || resp.Block.Index != 2 {
				t.Fatalf("\t%s\tTest 0:\tShould reward the report in block 2, got %q %d.", failed, resp.Reward, resp.Block.Index)
			}
			t.Logf("\t%s\tTest 0:\tShould reward the report in block 2.", success)
		}

		t.Logf("\tTest 1:\tWhen submitting an invalid report.")
		{
			w := request(lt.public, http.MethodPost, "/v1/reports", `{"zone_id":"Z1"}`)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("\t%s\tTest 1:\tShould receive a status code of 400 for the response : %v", failed, w.Code)
			}

			var er v1.ErrorResponse
			if err := json.NewDecoder(w.Body).Decode(&er); err != nil {
				t.Fatalf("\t%s\tTest 1:\tShould be able to unmarshal the response : %v", failed, err)
			}
			if _, exists := er.Fields["recipient"]; !exists {
				t.Fatalf("\t%s\tTest 1:\tShould report the recipient field, got %v.", failed, er.Fields)
			}
			t.Logf("\t%s\tTest 1:\tShould report the recipient field.", success)

			w = request(lt.public, http.MethodPost, "/v1/reports", `{"recipient":"bob","bonus":1}`)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("\t%s\tTest 1:\tShould reject unknown fields : %v", failed, w.Code)
			}
			t.Logf("\t%s\tTest 1:\tShould reject unknown fields.", success)
		}

		t.Logf("\tTest 2:\tWhen submitting operator transactions.")
		{
			w := request(lt.private, http.MethodPost, "/v1/transactions", `{"sender":"admin","recipient":"carol","reward_amount":10,"reason":"repair"}`)
			if w.Code != http.StatusCreated {
				t.Fatalf("\t%s\tTest 2:\tShould receive a status code of 201 for the response : %v", failed, w.Code)
			}
			t.Logf("\t%s\tTest 2:\tShould receive a status code of 201 for the response.", success)

			w = request(lt.private, http.MethodPost, "/v1/transactions", `{"sender":"admin","recipient":"carol","reward_amount":0}`)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("\t%s\tTest 2:\tShould reject a zero reward : %v", failed, w.Code)
			}
			t.Logf("\t%s\tTest 2:\tShould reject a zero reward.", success)
		}

		t.Logf("\tTest 3:\tWhen reading the ledger.")
		{
			w := request(lt.public, http.MethodGet, "/v1/ledger", "")
			if w.Code != http.StatusOK {
				t.Fatalf("\t%s\tTest 3:\tShould receive a status code of 200 for the response : %v", failed, w.Code)
			}

			var resp struct {
				Ledger []database.Block `json:"ledger"`
			}
			if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
				t.Fatalf("\t%s\tTest 3:\tShould be able to unmarshal the response : %v", failed, err)
			}
			if len(resp.Ledger) != 3 || !database.VerifyChain(resp.Ledger) {
				t.Fatalf("\t%s\tTest 3:\tShould return a valid chain of 3 blocks, got %d.", failed, len(resp.Ledger))
			}
			t.Logf("\t%s\tTest 3:\tShould return a valid chain of 3 blocks.", success)

			if w := request(lt.public, http.MethodGet, "/v1/ledger/block/3", ""); w.Code != http.StatusOK {
				t.Fatalf("\t%s\tTest 3:\tShould find block 3 : %v", failed, w.Code)
			}
			if w := request(lt.public, http.MethodGet, "/v1/ledger/block/30", ""); w.Code != http.StatusNotFound {
				t.Fatalf("\t%s\tTest 3:\tShould not find block 30 : %v", failed, w.Code)
			}
			if w := request(lt.public, http.MethodGet, "/v1/ledger/block/abc", ""); w.Code != http.StatusBadRequest {
				t.Fatalf("\t%s\tTest 3:\tShould reject a bad index : %v", failed, w.Code)
			}
			t.Logf("\t%s\tTest 3:\tShould look up blocks by index.", success)

			w = request(lt.public, http.MethodGet, "/v1/ledger/verify", "")
			var ver struct {
				Valid  bool `json:"valid"`
				Length int  `json:"length"`
			}
			if err := json.NewDecoder(w.Body).Decode(&ver); err != nil || !ver.Valid || ver.Length != 3 {
				t.Fatalf("\t%s\tTest 3:\tShould verify the chain, got %+v %v.", failed, ver, err)
			}
			t.Logf("\t%s\tTest 3:\tShould verify the chain.", success)

			w = request(lt.public, http.MethodGet, "/v1/ledger/tip", "")
			var tip state.Tip
			if err := json.NewDecoder(w.Body).Decode(&tip); err != nil {
				t.Fatalf("\t%s\tTest 3:\tShould be able to unmarshal the tip : %v", failed, err)
			}
			if ok, err := state.VerifyTip(tip); err != nil || !ok || tip.Index != 3 {
				t.Fatalf("\t%s\tTest 3:\tShould return a signed tip, got %+v %v.", failed, tip, err)
			}
			t.Logf("\t%s\tTest 3:\tShould return a signed tip.", success)
		}

		t.Logf("\tTest 4:\tWhen reading rewards.")
		{
			var rw struct {
				Total float64 `json:"total"`
			}

			w := request(lt.public, http.MethodGet, "/v1/rewards", "")
			if err := json.NewDecoder(w.Body).Decode(&rw); err != nil || rw.Total != 15 {
				t.Fatalf("\t%s\tTest 4:\tShould have a total of 15, got %v %v.", failed, rw.Total, err)
			}
			t.Logf("\t%s\tTest 4:\tShould have a total of 15.", success)

			w = request(lt.public, http.MethodGet, "/v1/rewards/carol", "")
			if err := json.NewDecoder(w.Body).Decode(&rw); err != nil || rw.Total != 10 {
				t.Fatalf("\t%s\tTest 4:\tShould have 10 for carol, got %v %v.", failed, rw.Total, err)
			}
			t.Logf("\t%s\tTest 4:\tShould have 10 for carol.", success)

			var profile state.Profile
			w = request(lt.public, http.MethodGet, "/v1/profile/bob", "")
			if err := json.NewDecoder(w.Body).Decode(&profile); err != nil || profile.Reports != 1 || profile.TotalReward != 5 {
				t.Fatalf("\t%s\tTest 4:\tShould build bob's profile, got %+v %v.", failed, profile, err)
			}
			t.Logf("\t%s\tTest 4:\tShould build bob's profile.", success)

			var reports []database.Block
			w = request(lt.public, http.MethodGet, "/v1/reports/bob", "")
			if err := json.NewDecoder(w.Body).Decode(&reports); err != nil || len(reports) != 1 {
				t.Fatalf("\t%s\tTest 4:\tShould list bob's reports, got %d %v.", failed, len(reports), err)
			}
			t.Logf("\t%s\tTest 4:\tShould list bob's reports.", success)

			var balances map[string]float64
			w = request(lt.private, http.MethodGet, "/v1/balances", "")
			if err := json.NewDecoder(w.Body).Decode(&balances); err != nil || balances["bob"] != 5 || balances["carol"] != 10 {
				t.Fatalf("\t%s\tTest 4:\tShould list balances, got %v %v.", failed, balances, err)
			}
			t.Logf("\t%s\tTest 4:\tShould list balances.", success)
		}
	}
}

func Test_Model(t *testing.T) {
	lt := newLedgerTests(t)

	const reading = `{"water_supplied_litres":1020,"water_consumed_litres":610,"flowrate_lps":12.2,"pressure_psi":31}`

	t.Log("Given the need to predict leaks from zone readings.")
	{
		t.Logf("\tTest 0:\tWhen no model was trained.")
		{
			w := request(lt.public, http.MethodPost, "/v1/predict", reading)
			if w.Code != http.StatusServiceUnavailable {
				t.Fatalf("\t%s\tTest 0:\tShould receive a status code of 503 for the response : %v", failed, w.Code)
			}
			t.Logf("\t%s\tTest 0:\tShould receive a status code of 503 for the response.", success)
		}

		t.Logf("\tTest 1:\tWhen uploading training data.")
		{
			var data strings.Builder
			data.WriteString("water_supplied_litres,water_consumed_litres,flowrate_lps,pressure_psi,leak\n")
			for i := 0; i < 20; i++ {
				j := float64(i % 5)
				fmt.Fprintf(&data, "%v,%v,%v,%v,0\n", 1000+j*10, 980+j*10, 8+j*0.1, 50+j)
				fmt.Fprintf(&data, "%v,%v,%v,%v,1\n", 1000+j*10, 600+j*10, 12+j*0.1, 30+j)
			}

			var body bytes.Buffer
			mw := multipart.NewWriter(&body)
			fw, err := mw.CreateFormFile("file", "readings.csv")
			if err != nil {
				t.Fatalf("\t%s\tTest 1:\tShould be able to create the form : %v", failed, err)
			}
			fw.Write([]byte(data.String()))
			mw.Close()

			r := httptest.NewRequest(http.MethodPost, "/v1/retrain", &body)
			r.Header.Set("Content-Type", mw.FormDataContentType())
			w := httptest.NewRecorder()
			lt.private.ServeHTTP(w, r)

			if w.Code != http.StatusOK {
				t.Fatalf("\t%s\tTest 1:\tShould receive a status code of 200 for the response : %v %s", failed, w.Code, w.Body.String())
			}
			t.Logf("\t%s\tTest 1:\tShould receive a status code of 200 for the response.", success)

			w = request(lt.public, http.MethodPost, "/v1/predict", reading)
			var p leak.Prediction
			if err := json.NewDecoder(w.Body).Decode(&p); err != nil || p.Prediction != 1 || p.Result != "Leak Detected" {
				t.Fatalf("\t%s\tTest 1:\tShould detect a leak, got %+v %v.", failed, p, err)
			}
			t.Logf("\t%s\tTest 1:\tShould detect a leak.", success)

			w = request(lt.public, http.MethodPost, "/v1/predict", `{"water_supplied_litres":1020}`)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("\t%s\tTest 1:\tShould reject a partial reading : %v", failed, w.Code)
			}
			t.Logf("\t%s\tTest 1:\tShould reject a partial reading.", success)
		}

		t.Logf("\tTest 2:\tWhen uploading without a file.")
		{
			w := request(lt.private, http.MethodPost, "/v1/retrain", "")
			if w.Code != http.StatusBadRequest {
				t.Fatalf("\t%s\tTest 2:\tShould receive a status code of 400 for the response : %v", failed, w.Code)
			}
			t.Logf("\t%s\tTest 2:\tShould receive a status code of 400 for the response.", success)
		}
	}
}

func Test_Events(t *testing.T) {
	lt := newLedgerTests(t)

	srv := httptest.NewServer(lt.public)
	defer srv.Close()
	defer lt.evts.Shutdown()

	t.Log("Given the need to stream new blocks to clients.")
	{
		t.Logf("\tTest 0:\tWhen a client is connected to the events socket.")
		{
			url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/events"
			conn, _, err := websocket.DefaultDialer.Dial(url, nil)
			if err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould be able to connect : %v", failed, err)
			}
			defer conn.Close()
			t.Logf("\t%s\tTest 0:\tShould be able to connect.", success)

			block, err := lt.state.SubmitReport(database.CitizenReport{Recipient: "bob"})
			if err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould be able to submit a report : %v", failed, err)
			}

			conn.SetReadDeadline(time.Now().Add(5 * time.Second))
			var ev events.Event
			if err := conn.ReadJSON(&ev); err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould receive an event : %v", failed, err)
			}

			if ev.Seq == 0 || !strings.HasPrefix(ev.Message, "viewer: block: ") || !strings.Contains(ev.Message, block.Hash) {
				t.Fatalf("\t%s\tTest 0:\tShould receive the numbered block event, got %+v.", failed, ev)
			}
			t.Logf("\t%s\tTest 0:\tShould receive the block event.", success)
		}
	}
}

func Test_ScheduleVerify(t *testing.T) {
	lt := newLedgerTests(t)

	t.Log("Given the need to verify the chain on operator request.")
	{
		t.Logf("\tTest 0:\tWhen an operator schedules a verification.")
		{
			w := request(lt.private, http.MethodPost, "/v1/ledger/verify", "")
			if w.Code != http.StatusAccepted {
				t.Fatalf("\t%s\tTest 0:\tShould receive a status code of 202 for the response : %v", failed, w.Code)
			}
			t.Logf("\t%s\tTest 0:\tShould receive a status code of 202 for the response.", success)

			select {
			case s := <-lt.checks:
				if !strings.Contains(s, "chain valid") {
					t.Fatalf("\t%s\tTest 0:\tShould verify the chain in the background, got %q.", failed, s)
				}
			case <-time.After(5 * time.Second):
				t.Fatalf("\t%s\tTest 0:\tShould verify the chain in the background.", failed)
			}
			t.Logf("\t%s\tTest 0:\tShould verify the chain in the background.", success)
		}

		t.Logf("\tTest 1:\tWhen the public API is asked to schedule one.")
		{
			w := request(lt.public, http.MethodPost, "/v1/ledger/verify", "")
			if w.Code == http.StatusAccepted {
				t.Fatalf("\t%s\tTest 1:\tShould not be served on the public host.", failed)
			}
			t.Logf("\t%s\tTest 1:\tShould not be served on the public host.", success)
		}
	}
}
