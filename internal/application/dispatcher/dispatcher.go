// Package dispatcher executes approved business mutations atomically.
package dispatcher

import (
	"context"
	"fmt"
	"sort"

	"github.com/garyjia/landrecords/internal/application/billing"
	"github.com/garyjia/landrecords/internal/application/port"
	"github.com/garyjia/landrecords/internal/domain/apperr"
	"github.com/garyjia/landrecords/internal/domain/entity"
)

// Dispatcher routes an (entity type, action type) pair to its handler
type Dispatcher interface {
	// Execute runs the mutation inside the transaction carried by ctx, or a new
	// one. Handler failures come back as EXECUTION_FAILED wrapping the cause.
	// A failed wizard execution still returns a result carrying the FAILED
	// session instruction.
	Execute(ctx context.Context, entityType entity.EntityType, actionType entity.ActionType, entityID string, payload entity.Payload, requestID, actorID string) (*ExecutionResult, error)

	// Supports reports whether a handler is registered for key
	Supports(key entity.ActionKey) bool

	// ListHandlers returns the registered handlers ordered by key
	ListHandlers() []HandlerInfo
}

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// Repositories bundles the stores the built-in handlers mutate
type Repositories struct {
	Parcels      port.ParcelRepository
	Owners       port.OwnerRepository
	Leases       port.LeaseRepository
	Encumbrances port.EncumbranceRepository
	Sessions     port.WizardSessionRepository
	Promotions   port.PromotionRepository
}

// actionDispatcher is the concrete implementation of Dispatcher
type actionDispatcher struct {
	handlers  map[entity.ActionKey]HandlerInfo
	txManager port.TransactionManager
	logger    Logger
}

// Option configures the dispatcher
type Option func(*actionDispatcher)

// WithLogger sets a logger for the dispatcher
func WithLogger(logger Logger) Option {
	return func(d *actionDispatcher) {
		d.logger = logger
	}
}

// WithHandler registers or replaces the handler for key
func WithHandler(key entity.ActionKey, name string, h Handler) Option {
	return func(d *actionDispatcher) {
		d.handlers[key] = HandlerInfo{Key: key, Name: name, Handler: h}
	}
}

// NewDispatcher creates a dispatcher with the built-in handler table
func NewDispatcher(repos Repositories, bills billing.Generator, txManager port.TransactionManager, opts ...Option) Dispatcher {
	d := &actionDispatcher{
		handlers:  make(map[entity.ActionKey]HandlerInfo),
		txManager: txManager,
	}

	m := &mutations{repos: repos, bills: bills}
	w := &wizardExecutor{repos: repos, bills: bills, mutations: m}
	builtin := []HandlerInfo{
		{Key: entity.KeyCreateOwner, Name: "create-owner", Handler: HandlerFunc(m.createOwner), Description: "register an owner, optionally linked to a parcel"},
		{Key: entity.KeyUpdateOwner, Name: "update-owner", Handler: HandlerFunc(m.updateOwner), Description: "amend owner details"},
		{Key: entity.KeyTransferOwnership, Name: "transfer-ownership", Handler: HandlerFunc(m.transferOwnership), Description: "retire current owners and link the new one"},
		{Key: entity.KeyAddParcelOwner, Name: "add-parcel-owner", Handler: HandlerFunc(m.addParcelOwner), Description: "link a co-owner"},
		{Key: entity.KeySubdivideParcel, Name: "subdivide-parcel", Handler: HandlerFunc(m.subdivideParcel), Description: "split a parcel into children"},
		{Key: entity.KeyDeleteParcel, Name: "delete-parcel", Handler: HandlerFunc(m.deleteParcel), Description: "soft-delete a parcel"},
		{Key: entity.KeyCreateEncumbrance, Name: "create-encumbrance", Handler: HandlerFunc(m.createEncumbrance), Description: "register an encumbrance"},
		{Key: entity.KeyUpdateLease, Name: "update-lease", Handler: HandlerFunc(m.updateLease), Description: "amend lease terms and regenerate bills"},
		{Key: entity.KeyExecuteWizard, Name: "execute-wizard", Handler: HandlerFunc(w.execute), Description: "create parcel, owners, lease and bills from a wizard session"},
	}
	for _, info := range builtin {
		d.handlers[info.Key] = info
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

// Execute implements Dispatcher
func (d *actionDispatcher) Execute(ctx context.Context, entityType entity.EntityType, actionType entity.ActionType, entityID string, payload entity.Payload, requestID, actorID string) (*ExecutionResult, error) {
	key := entity.ActionKey{Entity: entityType, Action: actionType}

	info, ok := d.handlers[key]
	if !ok {
		return nil, apperr.Unsupported("dispatch", "no handler for %s", key)
	}
	if payload == nil {
		return nil, apperr.Validation("dispatch", "payload is required for %s", key)
	}
	if payload.Key() != key {
		return nil, apperr.Validation("dispatch", "payload %s does not match action %s", payload.Key(), key)
	}
	if err := payload.Validate(); err != nil {
		return failedResult(key, payload), apperr.ExecutionFailed("dispatch "+key.String(), err)
	}

	req := ExecutionRequest{
		Key:       key,
		EntityID:  entityID,
		Payload:   payload,
		RequestID: requestID,
		ActorID:   actorID,
	}

	d.logInfo("Executing action",
		"action", key.String(),
		"entity_id", entityID,
		"request_id", requestID,
		"handler_name", info.Name,
	)

	var result *ExecutionResult
	err := d.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		var execErr error
		result, execErr = d.safeExecute(txCtx, req, info)
		return execErr
	})
	if err != nil {
		d.logError("Action execution failed",
			"action", key.String(),
			"entity_id", entityID,
			"request_id", requestID,
			"handler_name", info.Name,
			"error", err,
		)
		return failedResult(key, payload), apperr.ExecutionFailed("dispatch "+key.String(), err)
	}

	if result == nil {
		result = &ExecutionResult{}
	}
	result.Key = key
	if result.EntityID == "" {
		result.EntityID = entityID
	}

	d.logInfo("Action executed",
		"action", key.String(),
		"entity_id", result.EntityID,
		"request_id", requestID,
	)
	return result, nil
}

// failedResult carries the FAILED instruction for wizard executions
func failedResult(key entity.ActionKey, payload entity.Payload) *ExecutionResult {
	wp, ok := payload.(entity.WizardPayload)
	if !ok {
		return nil
	}
	return &ExecutionResult{
		Key:           key,
		EntityID:      wp.SessionID,
		SessionID:     wp.SessionID,
		SessionStatus: entity.SessionFailed,
	}
}

// Supports implements Dispatcher
func (d *actionDispatcher) Supports(key entity.ActionKey) bool {
	_, ok := d.handlers[key]
	return ok
}

// ListHandlers implements Dispatcher
func (d *actionDispatcher) ListHandlers() []HandlerInfo {
	result := make([]HandlerInfo, 0, len(d.handlers))
	for _, h := range d.handlers {
		result = append(result, HandlerInfo{
			Key:         h.Key,
			Name:        h.Name,
			Description: h.Description,
			// Handler is not copied to avoid exposing internal details
		})
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Key.String() < result[j].Key.String()
	})
	return result
}

// safeExecute runs a handler with panic recovery
func (d *actionDispatcher) safeExecute(ctx context.Context, req ExecutionRequest, info HandlerInfo) (result *ExecutionResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
			d.logError("Handler panic recovered",
				"action", req.Key.String(),
				"handler_name", info.Name,
				"panic", r,
			)
		}
	}()

	return info.Handler.Handle(ctx, req)
}

func (d *actionDispatcher) logInfo(msg string, keysAndValues ...interface{}) {
	if d.logger != nil {
		d.logger.Info(msg, keysAndValues...)
	}
}

func (d *actionDispatcher) logError(msg string, keysAndValues ...interface{}) {
	if d.logger != nil {
		d.logger.Error(msg, keysAndValues...)
	}
}
