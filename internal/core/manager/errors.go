package manager

import "errors"

var (
	ErrRunning           = errors.New("manager session is running")
	ErrComponentNotFound = errors.New("observed component not found")
	ErrNoAdapter         = errors.New("no adapter supports component class")
	ErrCacheNotFound     = errors.New("cache not found in collection")
	ErrIncompatibleCache = errors.New("cache is incompatible with component")
	ErrInvalidToken      = errors.New("cache session not granted")
	ErrInvalidConfig     = errors.New("invalid manager config")
)
