package scene

import "errors"

var (
	ErrDuplicateMaterial   = errors.New("scene: material already added")
	ErrUnknownMaterial     = errors.New("scene: primitive references unknown material; ensure that the material is added to the scene before adding the primitive")
	ErrDegeneratePrimitive = errors.New("scene: primitive has zero area")
	ErrInvalidLight        = errors.New("scene: light has no emitted power")
	ErrEmptyScene          = errors.New("scene: scene contains no primitives")
	ErrUnknownScene        = errors.New("scene: unknown scene name")
)
