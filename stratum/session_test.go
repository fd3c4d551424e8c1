package stratum

import (
	"encoding/json"
	"testing"

	"github.com/boomstarternetwork/btcminer/bitcoin"
	"github.com/boomstarternetwork/btcminer/engine"
)

func newTestSession() *Session {
	return NewSession("user", "pass", bitcoin.SHA256d.HashFunc(), 1)
}

func rawParams(t *testing.T, params []interface{}) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(params)
	if err != nil {
		t.Fatalf("marshal params: %v", err)
	}
	return b
}

// S3: a notification with an unrecognized method must be ignored rather
// than treated as an error or crashing the session.
func TestHandleNotification_UnknownMethodIgnored(t *testing.T) {
	s := newTestSession()
	s.pool = engine.NewPool(nil, 4, bitcoin.SHA256d.HashFunc(), 1)

	l := line{
		Method: "mining.set_extranonce",
		Params: rawParams(t, []interface{}{"aabbcc", 4}),
	}

	// Must not panic; there is no job to observe changing since the pool
	// starts with none.
	s.handleNotification(l)
}

// S4: a malformed mining.notify (8 params instead of 9) must be dropped
// without affecting the pool's current job.
func TestHandleNotification_MalformedNotify(t *testing.T) {
	s := newTestSession()
	s.pool = engine.NewPool(nil, 4, bitcoin.SHA256d.HashFunc(), 1)

	validParams := []interface{}{
		"job-1",
		"0000000000000000000000000000000000000000000000000000000000000000",
		"01",
		"01",
		[]interface{}{},
		"00000001",
		"1d00ffff",
		"5f5e1000",
		true,
	}
	l := line{Method: methodNotify, Params: rawParams(t, validParams)}
	s.handleNotification(l)

	malformed := line{Method: methodNotify, Params: rawParams(t, validParams[:8])}
	s.handleNotification(malformed)

	if _, err := engine.ParseNotify(validParams[:8]); err == nil {
		t.Fatal("expected malformed params to fail ParseNotify")
	}
	if got := s.pool.CurrentJobID(); got != "job-1" {
		t.Fatalf("current job = %q after malformed notify, want job-1", got)
	}
}

// S6: a submit response must be routed to the pending entry, logged as
// accepted or rejected, and removed from the pending map either way.
func TestHandleResponse_SubmitRouting(t *testing.T) {
	s := newTestSession()

	s.pendingMu.Lock()
	s.pending[42] = &pendingRequest{method: methodSubmit, jobID: "job-1", nonce: "00000001"}
	s.pendingMu.Unlock()

	id := uint32(42)
	l := line{
		ID:     &id,
		Result: rawParams(t, []interface{}{true}),
	}
	s.handleResponse(l)

	s.pendingMu.Lock()
	_, stillPending := s.pending[42]
	s.pendingMu.Unlock()

	if stillPending {
		t.Fatal("expected pending entry to be removed after response routing")
	}
}

func TestHandleResponse_UnknownIDIgnored(t *testing.T) {
	s := newTestSession()

	id := uint32(999)
	l := line{ID: &id, Result: rawParams(t, []interface{}{true})}

	// Must not panic when no pending request matches.
	s.handleResponse(l)
}

func TestIsJobLive(t *testing.T) {
	s := newTestSession()
	s.pool = engine.NewPool(nil, 4, bitcoin.SHA256d.HashFunc(), 1)

	if s.isJobLive("job-1") {
		t.Fatal("expected no job to be live before any SetJob")
	}

	params := []interface{}{
		"job-1",
		"0000000000000000000000000000000000000000000000000000000000000000",
		"01",
		"01",
		[]interface{}{},
		"00000001",
		"1d00ffff",
		"5f5e1000",
		true,
	}
	job, err := engine.ParseNotify(params)
	if err != nil {
		t.Fatalf("ParseNotify: %v", err)
	}
	s.pool.SetJob(job)

	if !s.isJobLive("job-1") {
		t.Error("expected job-1 to be live after SetJob")
	}
	if s.isJobLive("job-0") {
		t.Error("expected job-0 to not be live")
	}
}

func TestHandleResponse_RoutesToHandshakeWaiter(t *testing.T) {
	s := newTestSession()

	done := make(chan rpcResponse, 1)
	s.pendingMu.Lock()
	s.pending[7] = &pendingRequest{method: methodSubscribe, done: done}
	s.pendingMu.Unlock()

	id := uint32(7)
	l := line{ID: &id, Result: rawParams(t, []interface{}{[]interface{}{}, "aabbccdd", 4})}
	s.handleResponse(l)

	select {
	case res := <-done:
		var result []interface{}
		if err := json.Unmarshal(res.Result, &result); err != nil {
			t.Fatalf("unmarshal result: %v", err)
		}
		if len(result) != 3 {
			t.Fatalf("result length = %d, want 3", len(result))
		}
	default:
		t.Fatal("expected handshake waiter to receive the response")
	}
}
