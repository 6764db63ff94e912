package tracer

import (
	"fmt"
	"sync"
	"time"

	"github.com/achilleasa/restir/log"
)

// Per-tracer statistics for the last scheduled frame.
type TracerStat struct {
	// The tracer id.
	Id string

	// The block height and the percentage of total frame area it represents.
	BlockH       uint32
	FramePercent float32

	// Time spent on blocks assigned to this tracer.
	RenderTime time.Duration
}

// A Pool splits kernels into row blocks and dispatches them to a set of
// tracers. Each Run call acts as a barrier: it returns only after every
// tracer has finished its block.
type Pool struct {
	logger log.Logger

	sync.Mutex

	tracers   []Tracer
	scheduler BlockScheduler

	frameH          uint32
	blockAssignment []uint32
}

// Create a pool from a list of tracers.
func NewPool(scheduler BlockScheduler, tracers ...Tracer) (*Pool, error) {
	if len(tracers) == 0 {
		return nil, ErrNoTracers
	}
	if scheduler == nil {
		scheduler = NaiveScheduler()
	}
	return &Pool{
		logger:    log.New("tracer pool"),
		tracers:   tracers,
		scheduler: scheduler,
	}, nil
}

// Create a pool of numWorkers cpu tracers.
func NewCPUPool(numWorkers int, scheduler BlockScheduler) (*Pool, error) {
	if numWorkers < 1 {
		numWorkers = 1
	}
	tracers := make([]Tracer, numWorkers)
	for idx := range tracers {
		tracers[idx] = NewCPUTracer(fmt.Sprintf("cpu-%d", idx))
	}
	return NewPool(scheduler, tracers...)
}

// Get the number of attached tracers.
func (p *Pool) Size() int {
	return len(p.tracers)
}

// Recalculate the block assignment for a new frame using the statistics
// collected while rendering the previous one.
func (p *Pool) BeginFrame(frameH uint32) {
	p.Lock()
	defer p.Unlock()

	p.reschedule(frameH)
	for _, tr := range p.tracers {
		tr.ResetStats()
	}
}

func (p *Pool) reschedule(frameH uint32) {
	p.frameH = frameH
	p.blockAssignment = append(p.blockAssignment[:0], p.scheduler.Schedule(p.tracers, frameH)...)
	p.logger.Debugf("block assignment for %d rows: %v", frameH, p.blockAssignment)
}

// Run kernel over a frameW x frameH frame and wait for all blocks to complete.
// If any block fails, the first reported error is returned once all other
// blocks have completed.
func (p *Pool) Run(kernel Kernel, frameW, frameH uint32) error {
	if frameW == 0 || frameH == 0 {
		return ErrEmptyFrame
	}

	p.Lock()
	defer p.Unlock()

	if len(p.tracers) == 0 {
		return ErrNoTracers
	}
	if p.blockAssignment == nil || p.frameH != frameH {
		p.reschedule(frameH)
	}

	doneChan := make(chan uint32, len(p.tracers))
	errChan := make(chan error, len(p.tracers))

	pending := 0
	var blockY uint32
	for idx, tr := range p.tracers {
		blockH := p.blockAssignment[idx]
		if blockH == 0 {
			continue
		}
		tr.Enqueue(BlockRequest{
			FrameW:   frameW,
			FrameH:   frameH,
			BlockY:   blockY,
			BlockH:   blockH,
			Kernel:   kernel,
			DoneChan: doneChan,
			ErrChan:  errChan,
		})
		blockY += blockH
		pending++
	}

	var firstErr error
	for ; pending > 0; pending-- {
		select {
		case <-doneChan:
		case err := <-errChan:
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// Get per-tracer statistics for the current frame.
func (p *Pool) Stats() []TracerStat {
	p.Lock()
	defer p.Unlock()

	stats := make([]TracerStat, len(p.tracers))
	for idx, tr := range p.tracers {
		var blockH uint32
		if idx < len(p.blockAssignment) {
			blockH = p.blockAssignment[idx]
		}
		stats[idx] = TracerStat{
			Id:         tr.Id(),
			BlockH:     blockH,
			RenderTime: tr.Stats().RenderTime,
		}
		if p.frameH != 0 {
			stats[idx].FramePercent = 100.0 * float32(blockH) / float32(p.frameH)
		}
	}
	return stats
}

// Shutdown all attached tracers.
func (p *Pool) Close() {
	p.Lock()
	defer p.Unlock()

	for _, tr := range p.tracers {
		tr.Close()
	}
	p.tracers = nil
}
