package renderer

import "errors"

var (
	ErrSceneNotDefined  = errors.New("renderer: no scene defined")
	ErrCameraNotDefined = errors.New("renderer: no camera defined")
	ErrInvalidFrameSize = errors.New("renderer: invalid frame size")
	ErrUnknownMotion    = errors.New("renderer: unknown camera motion")
	ErrSizeMismatch     = errors.New("renderer: buffer size does not match frame size")
)
