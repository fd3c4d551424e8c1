package engine

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/boomstarternetwork/btcminer/bitcoin"
)

// preemptionCheckInterval is how many nonces a worker hashes between
// checks of the current-job pointer, per §4.5's "periodically (e.g. every
// 4096 iterations)".
const preemptionCheckInterval = 4096

// hashrateWindow is how often the pool sums and resets per-worker hash
// counters and logs a hashrate line.
const hashrateWindow = 5 * time.Second

// solutionQueueLen bounds how far workers can get ahead of the session
// draining solutions, per §5's "small queue length, e.g. 16".
const solutionQueueLen = 16

// ErrExtraNonce2Exhausted is returned when the extranonce2 counter has
// wrapped past its representable range for the assigned width. The worker
// that receives it logs it and exits; since the counter is shared and
// only grows, every other worker exits the same way at its next
// reservation. The error is not passed to the Stratum session, which
// keeps its connection open.
var ErrExtraNonce2Exhausted = errors.New("engine: extranonce2 counter exhausted")

// Pool is the mining engine: a fixed set of worker goroutines searching
// the nonce space in parallel against the current Job, preempting on new
// work, and reporting aggregate hashrate.
type Pool struct {
	extranonce1     []byte
	extranonce2Size int
	hashFunc        bitcoin.HashFunc
	numWorkers      int

	currentJob         atomic.Pointer[Job]
	extranonce2Counter atomic.Uint64

	solutions chan Share
	stopCh    chan struct{}
	wg        sync.WaitGroup

	hashCounters []atomic.Uint64

	log *logrus.Entry
}

// NewPool builds a worker pool bound to the session's extranonce1 /
// extranonce2 width and proof-of-work function. numWorkers is clamped to
// at least 1.
func NewPool(extranonce1 []byte, extranonce2Size int, hashFunc bitcoin.HashFunc, numWorkers int) *Pool {
	if numWorkers < 1 {
		numWorkers = 1
	}
	return &Pool{
		extranonce1:     extranonce1,
		extranonce2Size: extranonce2Size,
		hashFunc:        hashFunc,
		numWorkers:      numWorkers,
		solutions:       make(chan Share, solutionQueueLen),
		stopCh:          make(chan struct{}),
		hashCounters:    make([]atomic.Uint64, numWorkers),
		log:             logrus.WithField("component", "engine"),
	}
}

// Solutions returns the channel workers publish found shares on. The
// caller (the Stratum session) is the single consumer.
func (p *Pool) Solutions() <-chan Share {
	return p.solutions
}

// SetJob atomically publishes a new Job for workers to pick up. Workers
// observe the new pointer at their next preemption check (at most
// preemptionCheckInterval nonces away) and restart against it immediately;
// clean_jobs does not need a separate hard-abort path because the pointer
// swap already causes abandonment within that window.
func (p *Pool) SetJob(j *Job) {
	p.currentJob.Store(j)
}

// CurrentJobID returns the job id workers are currently searching
// against, or "" if no job has been published yet.
func (p *Pool) CurrentJobID() string {
	j := p.currentJob.Load()
	if j == nil {
		return ""
	}
	return j.ID
}

// Start spawns the worker goroutines and the hashrate reporter.
func (p *Pool) Start() {
	for i := 0; i < p.numWorkers; i++ {
		p.wg.Add(1)
		go p.runWorker(i)
	}
	go p.reportHashrate()
}

// Stop signals all workers to abandon their search and waits for them to
// exit.
func (p *Pool) Stop() {
	close(p.stopCh)
	p.wg.Wait()
}

func (p *Pool) runWorker(id int) {
	defer p.wg.Done()

	log := p.log.WithField("worker", id)

	for {
		select {
		case <-p.stopCh:
			return
		default:
		}

		job := p.currentJob.Load()
		if job == nil {
			select {
			case <-p.stopCh:
				return
			case <-time.After(100 * time.Millisecond):
			}
			continue
		}

		if p.searchJob(id, job, log) {
			return
		}
	}
}

// searchJob reserves an extranonce2 value and searches the full nonce
// range against it. It returns true if the pool was told to stop.
func (p *Pool) searchJob(id int, job *Job, log *logrus.Entry) bool {
	extranonce2, err := p.reserveExtraNonce2()
	if err != nil {
		log.WithError(err).Error("failed to reserve extranonce2, stopping worker")
		return true
	}

	coinbase := job.buildCoinbase(p.extranonce1, extranonce2)
	fields := job.staticHeaderFields(coinbase, p.hashFunc)

	target, err := bitcoin.TargetFromBits(job.NBits())
	if err != nil {
		log.WithError(err).Error("invalid job nbits, abandoning job")
		return false
	}

	counter := &p.hashCounters[id]

	var nonce uint32
	for {
		if nonce%preemptionCheckInterval == 0 {
			select {
			case <-p.stopCh:
				return true
			default:
			}
			if p.currentJob.Load() != job {
				return false
			}
		}

		fields.Nonce = nonce
		header := bitcoin.BuildHeader(fields)
		digest := p.hashFunc(header[:])
		counter.Add(1)

		var digestArr [32]byte
		copy(digestArr[:], digest)

		if bitcoin.HashMeetsTarget(digestArr, target) {
			share := newShare(job.ID, extranonce2, job.NtimeHex(), nonce)
			log.WithFields(logrus.Fields{
				"job_id": job.ID,
				"nonce":  share.Nonce,
			}).Info("found share")

			select {
			case p.solutions <- share:
			case <-p.stopCh:
				return true
			}
			return false
		}

		if nonce == 0xffffffff {
			// Nonce space exhausted for this extranonce2; the caller
			// loops back to reserve a fresh one.
			return false
		}
		nonce++
	}
}

// reserveExtraNonce2 atomically increments the shared counter and
// serializes it little-endian, padded/truncated to extranonce2Size. This
// guarantees no two workers ever hash the same coinbase.
func (p *Pool) reserveExtraNonce2() ([]byte, error) {
	v := p.extranonce2Counter.Add(1) - 1

	if p.extranonce2Size < 8 {
		maxValue := uint64(1)<<(8*uint(p.extranonce2Size)) - 1
		if v > maxValue {
			return nil, fmt.Errorf("%w: width %d bytes", ErrExtraNonce2Exhausted, p.extranonce2Size)
		}
	}

	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, v)

	out := make([]byte, p.extranonce2Size)
	copy(out, buf[:min(p.extranonce2Size, 8)])
	return out, nil
}

// HashrateSnapshot sums and resets all worker hash counters, returning the
// total hashes performed since the last call. Safe to call concurrently
// with running workers: each counter is read and zeroed with one atomic
// swap, so no increment is lost; one that lands after a counter's swap is
// counted in the next snapshot.
func (p *Pool) HashrateSnapshot() uint64 {
	var total uint64
	for i := range p.hashCounters {
		total += p.hashCounters[i].Swap(0)
	}
	return total
}

func (p *Pool) reportHashrate() {
	ticker := time.NewTicker(hashrateWindow)
	defer ticker.Stop()

	start := time.Now()

	for {
		select {
		case <-p.stopCh:
			return
		case now := <-ticker.C:
			elapsed := now.Sub(start)
			start = now

			hashes := p.HashrateSnapshot()
			rate := float64(hashes) / elapsed.Seconds()
			unit := "H/s"

			if rate >= 1000 {
				rate /= 1000
				unit = "KH/s"
			}
			if rate >= 1000 {
				rate /= 1000
				unit = "MH/s"
			}

			p.log.Infof("hash rate: %.2f %s", rate, unit)
		}
	}
}
