// Package stratum implements the Stratum v1 session: connect, subscribe,
// authorize, dispatch incoming notifications and responses, and submit
// shares the mining engine finds.
package stratum

import (
	"bufio"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/boomstarternetwork/btcminer/bitcoin"
	"github.com/boomstarternetwork/btcminer/engine"
)

// Transport is the minimal connection surface the session needs: a
// single reader, a single writer, and a way to force both to unblock. A
// net.Conn satisfies it directly; RunWithTransport accepts any other
// implementation.
type Transport interface {
	io.Reader
	io.Writer
	io.Closer
}

// errCodeJobNotFound mirrors common pool behavior for a submit against a
// job the pool no longer recognizes; it is informational only, same as
// every other submit rejection.
const errCodeJobNotFound = 21

// handshakeTimeout bounds how long Run waits for the subscribe/authorize
// responses before giving up and returning a startup error.
const handshakeTimeout = 30 * time.Second

// pendingRequest tracks one outstanding request this session issued,
// keyed by its id, so the response (which only carries the id back) can
// be routed to the right handler or logged with the right context.
type pendingRequest struct {
	method      string
	done        chan rpcResponse // non-nil for handshake requests awaited synchronously
	jobID       string           // submit bookkeeping
	extraNonce2 string
	nonce       string
	submittedAt time.Time
}

// Session owns the TCP connection and drives one mining engine Pool
// against it. Only the session's own goroutines read and write the socket
// (one reader; writers serialized by writeMu); workers never touch it.
type Session struct {
	user       string
	password   string
	hashFunc   bitcoin.HashFunc
	numWorkers int

	conn    Transport
	writeMu sync.Mutex

	requestID atomic.Uint32

	pendingMu sync.Mutex
	pending   map[uint32]*pendingRequest

	pool *engine.Pool

	log *logrus.Entry
}

// NewSession constructs a Session bound to the given credentials and
// proof-of-work function. The connection is established by Run.
func NewSession(user, password string, hashFunc bitcoin.HashFunc, numWorkers int) *Session {
	if numWorkers < 1 {
		numWorkers = 1
	}
	return &Session{
		user:       user,
		password:   password,
		hashFunc:   hashFunc,
		numWorkers: numWorkers,
		pending:    map[uint32]*pendingRequest{},
		log:        logrus.WithField("component", "stratum"),
	}
}

// Close forces the read loop to wake from its blocking read and return,
// giving Run's caller a way to request a clean shutdown (e.g. on
// SIGINT/SIGTERM) without waiting on pool-side disconnect.
func (s *Session) Close() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}

// Run dials the pool over TCP and drives the session against it. See
// RunWithTransport for the part that doesn't need a real socket.
func (s *Session) Run(addr string) error {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return fmt.Errorf("stratum: dial %s: %w", addr, err)
	}
	return s.RunWithTransport(conn)
}

// RunWithTransport performs the subscribe/authorize handshake over an
// already-established Transport, starts the mining engine, and blocks
// until a fatal transport error occurs or the read loop ends. It always
// leaves the pool stopped and the transport closed before returning.
func (s *Session) RunWithTransport(t Transport) error {
	s.conn = t
	defer t.Close()

	readErrCh := make(chan error, 1)
	go func() { readErrCh <- s.readLoop() }()

	extranonce1, extranonce2Size, err := s.subscribe()
	if err != nil {
		return err
	}

	if err := s.authorize(); err != nil {
		return err
	}

	s.pool = engine.NewPool(extranonce1, extranonce2Size, s.hashFunc, s.numWorkers)
	s.pool.Start()
	defer s.pool.Stop()

	go s.drainSolutions()

	return <-readErrCh
}

// subscribe sends mining.subscribe and parses the [subscriptions,
// extranonce1, extranonce2_size] response per §4.1/§8.
func (s *Session) subscribe() ([]byte, int, error) {
	res, err := s.callAndWait(methodSubscribe, []interface{}{"btcminer/1.0"})
	if err != nil {
		return nil, 0, fmt.Errorf("stratum: subscribe: %w", err)
	}
	if res.Error != nil {
		return nil, 0, fmt.Errorf("stratum: subscribe rejected: %s", res.Error.Message)
	}

	var result []interface{}
	if err := json.Unmarshal(res.Result, &result); err != nil || len(result) < 3 {
		return nil, 0, fmt.Errorf("stratum: subscribe result malformed: %v", err)
	}

	extranonce1Hex, ok := result[1].(string)
	if !ok {
		return nil, 0, errors.New("stratum: subscribe result extranonce1 not a string")
	}
	extranonce1, err := hex.DecodeString(extranonce1Hex)
	if err != nil {
		return nil, 0, fmt.Errorf("stratum: subscribe result extranonce1 invalid hex: %w", err)
	}

	extranonce2SizeF, ok := result[2].(float64)
	if !ok {
		return nil, 0, errors.New("stratum: subscribe result extranonce2_size not a number")
	}

	s.log.WithFields(logrus.Fields{
		"extranonce1":      extranonce1Hex,
		"extranonce2_size": int(extranonce2SizeF),
	}).Info("subscribed")

	return extranonce1, int(extranonce2SizeF), nil
}

// authorize sends mining.authorize and expects a boolean true result.
func (s *Session) authorize() error {
	res, err := s.callAndWait(methodAuthorize, []interface{}{s.user, s.password})
	if err != nil {
		return fmt.Errorf("stratum: authorize: %w", err)
	}
	if res.Error != nil {
		return fmt.Errorf("stratum: authorize rejected: %s", res.Error.Message)
	}

	var ok bool
	if err := json.Unmarshal(res.Result, &ok); err != nil || !ok {
		return errors.New("stratum: authorize result not true")
	}

	s.log.Info("authorized")
	return nil
}

// callAndWait sends a request and blocks until its response arrives or
// handshakeTimeout elapses. Used only for the two handshake steps, which
// happen before any share traffic and so can afford to block the caller.
func (s *Session) callAndWait(method string, params []interface{}) (rpcResponse, error) {
	id := s.nextID()
	done := make(chan rpcResponse, 1)

	s.pendingMu.Lock()
	s.pending[id] = &pendingRequest{method: method, done: done}
	s.pendingMu.Unlock()

	if err := s.send(id, method, params); err != nil {
		s.pendingMu.Lock()
		delete(s.pending, id)
		s.pendingMu.Unlock()
		return rpcResponse{}, err
	}

	select {
	case res := <-done:
		return res, nil
	case <-time.After(handshakeTimeout):
		s.pendingMu.Lock()
		delete(s.pending, id)
		s.pendingMu.Unlock()
		return rpcResponse{}, fmt.Errorf("timed out waiting for %s response", method)
	}
}

// isJobLive reports whether jobID is still the job the pool is actively
// searching. A share can legitimately lag behind a newer notify (the
// worker found it just before preemption), so this only affects how the
// submission is logged, never whether it's sent.
func (s *Session) isJobLive(jobID string) bool {
	return s.pool != nil && s.pool.CurrentJobID() == jobID
}

// Submit sends a mining.submit for a found share and records it in the
// pending map so the response handler can log accept/reject. Per
// spec.md §4.1's "submitted share's job_id must match a job still
// considered valid" language, a share for a job that has already been
// superseded is still submitted — only the log framing differs.
func (s *Session) Submit(share engine.Share) error {
	if !s.isJobLive(share.JobID) {
		s.log.WithField("job_id", share.JobID).Info("submitting share for a superseded job")
	}

	id := s.nextID()

	s.pendingMu.Lock()
	s.pending[id] = &pendingRequest{
		method:      methodSubmit,
		jobID:       share.JobID,
		extraNonce2: share.ExtraNonce2,
		nonce:       share.Nonce,
		submittedAt: time.Now(),
	}
	s.pendingMu.Unlock()

	params := []interface{}{s.user, share.JobID, share.ExtraNonce2, share.Ntime, share.Nonce}
	return s.send(id, methodSubmit, params)
}

// drainSolutions is the single consumer of the pool's solution channel,
// issuing one mining.submit per share in the order found.
func (s *Session) drainSolutions() {
	for share := range s.pool.Solutions() {
		if err := s.Submit(share); err != nil {
			s.log.WithError(err).Error("failed to submit share")
			return
		}
	}
}

func (s *Session) nextID() uint32 {
	return s.requestID.Add(1)
}

// send serializes and writes one JSON-RPC request line. Writes are
// serialized with writeMu since both the handshake and concurrent share
// submissions share the one socket.
func (s *Session) send(id uint32, method string, params []interface{}) error {
	req := rpcRequest{ID: &id, Method: method, Params: params}

	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("stratum: marshal %s: %w", method, err)
	}
	data = append(data, '\n')

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	for written := 0; written < len(data); {
		n, err := s.conn.Write(data[written:])
		if err != nil {
			return fmt.Errorf("stratum: write %s: %w", method, err)
		}
		written += n
	}
	return nil
}

// readLoop is the session's sole reader: it reads newline-delimited JSON
// lines and dispatches each as a notification or a response. A fatal
// transport error ends the loop and is returned to Run.
func (s *Session) readLoop() error {
	r := bufio.NewReaderSize(s.conn, 64*1024)
	for {
		raw, err := r.ReadBytes('\n')
		if err != nil {
			if len(raw) == 0 {
				return fmt.Errorf("stratum: read: %w", err)
			}
		}
		if len(raw) == 0 {
			continue
		}

		var l line
		if err := json.Unmarshal(raw, &l); err != nil {
			s.log.WithError(err).Warn("dropping malformed JSON line")
			continue
		}

		switch {
		case l.isNotification():
			s.handleNotification(l)
		case l.isResponse():
			s.handleResponse(l)
		default:
			s.log.Warn("dropping unclassifiable JSON line")
		}
	}
}

// handleNotification dispatches mining.notify / mining.set_difficulty /
// unrecognized methods per §4.3.
func (s *Session) handleNotification(l line) {
	var params []interface{}
	if len(l.Params) > 0 {
		if err := json.Unmarshal(l.Params, &params); err != nil {
			s.log.WithError(err).Warn("dropping notification with malformed params")
			return
		}
	}

	switch l.Method {
	case methodNotify:
		job, err := engine.ParseNotify(params)
		if err != nil {
			s.log.WithError(err).Warn("dropping malformed mining.notify; current job unchanged")
			return
		}
		s.log.WithFields(logrus.Fields{
			"job_id":     job.ID,
			"clean_jobs": job.CleanJobs,
		}).Info("new job")
		if s.pool != nil {
			s.pool.SetJob(job)
		}

	case methodSetDifficulty:
		s.log.WithField("params", params).Info("difficulty update")

	default:
		s.log.WithField("method", l.Method).Warn("unsupported method")
	}
}

// handleResponse routes a server response to either a blocked handshake
// waiter or the submit-result logger, per §4.3/§6.
func (s *Session) handleResponse(l line) {
	if l.ID == nil {
		return
	}
	id := *l.ID

	s.pendingMu.Lock()
	pr, ok := s.pending[id]
	if ok {
		delete(s.pending, id)
	}
	s.pendingMu.Unlock()

	if !ok {
		s.log.WithField("id", id).Warn("response with no matching pending request")
		return
	}

	res := rpcResponse{ID: id, Result: l.Result, Error: l.Error}

	if pr.done != nil {
		pr.done <- res
		return
	}

	s.logSubmitResult(pr, res)
}

func (s *Session) logSubmitResult(pr *pendingRequest, res rpcResponse) {
	logEntry := s.log.WithFields(logrus.Fields{
		"job_id":      pr.jobID,
		"extranonce2": pr.extraNonce2,
		"nonce":       pr.nonce,
		"round_trip":  time.Since(pr.submittedAt),
	})

	if res.Error != nil {
		logEntry = logEntry.WithField("err_code", res.Error.Code)
		if res.Error.Code == errCodeJobNotFound {
			logEntry.Warn("share rejected: job not found")
		} else {
			logEntry.Warn("share rejected")
		}
		return
	}

	var accepted bool
	if err := json.Unmarshal(res.Result, &accepted); err != nil || !accepted {
		logEntry.Warn("share rejected")
		return
	}

	logEntry.Info("share accepted")
}
