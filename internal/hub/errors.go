package hub

import "errors"

// Hub-specific error types
var (
	ErrHubAlreadyRunning = errors.New("hub is already running")
	ErrHubNotRunning     = errors.New("hub is not running")
	ErrLaneExists        = errors.New("connection already has a lane")
	ErrLaneNotFound      = errors.New("connection has no lane")
	ErrLaneClosed        = errors.New("lane is closed")
)
