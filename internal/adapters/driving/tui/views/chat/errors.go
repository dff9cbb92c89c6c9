package chat

import "errors"

// ErrNoChatService is returned when no chat service is configured.
var ErrNoChatService = errors.New("chat service not available")
