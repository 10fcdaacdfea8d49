package dispatcher

import (
	"context"

	"github.com/garyjia/landrecords/internal/domain/entity"
)

// ExecutionRequest is one approved mutation handed to a handler
type ExecutionRequest struct {
	Key       entity.ActionKey
	EntityID  string
	Payload   entity.Payload
	RequestID string
	ActorID   string
}

// ExecutionResult describes what a handler changed.
// SessionStatus, when set, is the status the caller must write to SessionID;
// the dispatcher never writes session status itself.
type ExecutionResult struct {
	Key           entity.ActionKey       `json:"key"`
	EntityID      string                 `json:"entity_id"`
	Details       map[string]interface{} `json:"details,omitempty"`
	SessionID     string                 `json:"session_id,omitempty"`
	SessionStatus entity.SessionStatus   `json:"session_status,omitempty"`
}

// Handler performs one kind of business mutation
type Handler interface {
	Handle(ctx context.Context, req ExecutionRequest) (*ExecutionResult, error)
}

// HandlerFunc adapts a function to Handler
type HandlerFunc func(ctx context.Context, req ExecutionRequest) (*ExecutionResult, error)

// Handle calls f
func (f HandlerFunc) Handle(ctx context.Context, req ExecutionRequest) (*ExecutionResult, error) {
	return f(ctx, req)
}

// HandlerInfo contains handler metadata for debugging
type HandlerInfo struct {
	Key         entity.ActionKey
	Name        string
	Handler     Handler
	Description string
}
