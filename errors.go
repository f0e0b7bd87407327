package pngopt

import "github.com/pkg/errors"

// Sentinel errors returned at the library boundary, per spec.md §6.
var (
	ErrIoError                = errors.New("pngopt: I/O error")
	ErrNotPng                 = errors.New("pngopt: not a PNG file")
	ErrCorruptFile            = errors.New("pngopt: corrupt PNG file")
	ErrInvalidDepth           = errors.New("pngopt: invalid bit depth for color type")
	ErrInvalidColorType       = errors.New("pngopt: invalid color type")
	ErrChannelDependencyError = errors.New("pngopt: channel dependency error")
	ErrDeflateError           = errors.New("pngopt: DEFLATE encode error")
	ErrCannotImprove          = errors.New("pngopt: no candidate improved on the input size")
	ErrTimeout                = errors.New("pngopt: operation timed out")
)
