package cache

import "errors"

var (
	ErrSessionOpen        = errors.New("cache has an open session")
	ErrDuplicateCache     = errors.New("cache name already exists in collection")
	ErrCorruptAsset       = errors.New("corrupt cache asset")
	ErrChecksumMismatch   = errors.New("cache asset checksum mismatch")
	ErrUnsupportedVersion = errors.New("unsupported cache asset version")
)
