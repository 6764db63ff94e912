package tracer

import (
	"fmt"
	"sync"
	"time"

	"github.com/achilleasa/restir/log"
)

type cpuTracer struct {
	logger log.Logger

	sync.Mutex
	wg sync.WaitGroup

	// The tracer id.
	id string

	// A channel for receiving block requests from the pool.
	blockReqChan chan BlockRequest

	// A channel for signaling the worker to exit.
	closeChan chan struct{}

	// Statistics collected since the last reset.
	stats *Stats
}

// Create a new cpu tracer backed by a single worker go-routine.
func NewCPUTracer(id string) Tracer {
	tr := &cpuTracer{
		logger:       log.New(fmt.Sprintf("cpu tracer (%s)", id)),
		id:           id,
		blockReqChan: make(chan BlockRequest, 1),
		stats:        &Stats{},
	}
	tr.startWorker()
	return tr
}

// Get tracer id.
func (tr *cpuTracer) Id() string {
	return tr.id
}

// All cpu workers are assumed to run at the same speed.
func (tr *cpuTracer) Speed() uint32 {
	return 1
}

// Enqueue block request. The call blocks if the worker has not yet picked
// up the previously queued request.
func (tr *cpuTracer) Enqueue(blockReq BlockRequest) {
	tr.Lock()
	closed := tr.closeChan == nil
	tr.Unlock()

	if closed {
		blockReq.ErrChan <- ErrTracerClosed
		return
	}
	tr.blockReqChan <- blockReq
}

// Retrieve statistics collected since the last reset.
func (tr *cpuTracer) Stats() *Stats {
	return tr.stats
}

// Clear collected statistics.
func (tr *cpuTracer) ResetStats() {
	*tr.stats = Stats{}
}

// Shutdown the worker.
func (tr *cpuTracer) Close() {
	tr.Lock()
	defer tr.Unlock()

	// If the worker is running shut it down
	if tr.closeChan != nil {
		tr.closeChan <- struct{}{}

		// wait for worker to ack close and shutdown channel
		<-tr.closeChan
		close(tr.closeChan)
		tr.closeChan = nil
	}
	tr.wg.Wait()
}

// Spawn a go-routine to process block requests.
func (tr *cpuTracer) startWorker() {
	// Worker already running
	if tr.closeChan != nil {
		return
	}

	tr.closeChan = make(chan struct{})
	readyChan := make(chan struct{})
	tr.wg.Add(1)
	go func() {
		defer tr.wg.Done()
		var blockReq BlockRequest
		close(readyChan)
		for {
			select {
			case blockReq = <-tr.blockReqChan:
				startTime := time.Now()
				if err := tr.runBlock(&blockReq); err != nil {
					blockReq.ErrChan <- err
					continue
				}

				// Update stats before signaling so the pool observes them
				tr.stats.BlockH = blockReq.BlockH
				tr.stats.RenderTime += time.Since(startTime)
				tr.stats.Blocks++

				blockReq.DoneChan <- blockReq.BlockH
			case <-tr.closeChan:
				// Ack close
				tr.closeChan <- struct{}{}
				return
			}
		}
	}()

	// Wait for go-routine to start
	<-readyChan
}

func (tr *cpuTracer) runBlock(blockReq *BlockRequest) (err error) {
	if blockReq.Kernel == nil {
		return ErrNoKernel
	}

	// A panicking kernel must not take the worker down with it.
	defer func() {
		if r := recover(); r != nil {
			tr.logger.Errorf("kernel panic while processing rows %d-%d: %v", blockReq.BlockY, blockReq.BlockY+blockReq.BlockH, r)
			err = fmt.Errorf("%w: %v", ErrKernelPanic, r)
		}
	}()

	return blockReq.Kernel(blockReq)
}
