package tracer

import "errors"

var (
	ErrNoTracers    = errors.New("tracer: no tracers attached to pool")
	ErrTracerClosed = errors.New("tracer: tracer has been closed")
	ErrNoKernel     = errors.New("tracer: block request has no kernel")
	ErrKernelPanic  = errors.New("tracer: kernel panicked")
	ErrEmptyFrame   = errors.New("tracer: frame has zero width or height")
)
