package tracer

import "time"

// A kernel processes rows [BlockY, BlockY+BlockH) of a frame. Kernels
// must only write to pixels inside their block.
type Kernel func(blockReq *BlockRequest) error

// A unit of work that is processed by a tracer.
type BlockRequest struct {
	// Frame dimensions.
	FrameW uint32
	FrameH uint32

	// Block start row and height.
	BlockY uint32
	BlockH uint32

	// The kernel to run for this block.
	Kernel Kernel

	// A channel to signal on block completion with the number of completed rows.
	DoneChan chan<- uint32

	// A channel to signal if an error occurs.
	ErrChan chan<- error
}

// Tracer statistics.
type Stats struct {
	// The rendered block height
	BlockH uint32

	// Total time spent on blocks since the last stats reset.
	RenderTime time.Duration

	// Number of processed blocks since the last stats reset.
	Blocks uint32
}

type Tracer interface {
	// Get tracer id.
	Id() string

	// Get the computation speed estimate relative to a single cpu worker.
	Speed() uint32

	// Enqueue block request.
	Enqueue(BlockRequest)

	// Retrieve statistics collected since the last reset.
	Stats() *Stats

	// Clear collected statistics.
	ResetStats()

	// Shutdown and cleanup tracer.
	Close()
}

// Wrap a per-pixel function into a kernel that visits the block pixels in
// row-major order.
func PixelKernel(fn func(x, y uint32) error) Kernel {
	return func(blockReq *BlockRequest) error {
		lastRow := blockReq.BlockY + blockReq.BlockH
		for y := blockReq.BlockY; y < lastRow; y++ {
			for x := uint32(0); x < blockReq.FrameW; x++ {
				if err := fn(x, y); err != nil {
					return err
				}
			}
		}
		return nil
	}
}
