package restir

import "errors"

var (
	ErrMissingInput     = errors.New("restir: missing required input buffer")
	ErrInputSize        = errors.New("restir: input buffer size does not match frame dimensions")
	ErrNoScene          = errors.New("restir: no scene defined")
	ErrSceneNotCompiled = errors.New("restir: scene has not been compiled")
	ErrNoPool           = errors.New("restir: no tracer pool supplied")
)
