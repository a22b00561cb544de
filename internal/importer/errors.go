package importer

import "errors"

// Sentinel errors.
var (
	ErrDecode = errors.New("decode master file")
)
