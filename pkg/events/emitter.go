// Package events publishes branch lifecycle events so downstream systems
// (cache invalidation, dashboards) can react to branch changes.
package events

import (
	"context"
	"encoding/json"

	"github.com/Gobusters/ectologger"

	"github.com/wisercms/wiser-api/pkg/kafka"
	"github.com/wisercms/wiser-api/pkg/models"
	"github.com/wisercms/wiser-api/pkg/tracing"
)

// SchemaVersion is the current event schema version
const SchemaVersion = "1.0"

// Emitter publishes branch lifecycle events. Emission is best-effort: a
// branch operation never fails because its event could not be delivered.
type Emitter struct {
	producer *kafka.Producer
	logger   ectologger.Logger
}

// NewEmitter creates a new event emitter
func NewEmitter(producer *kafka.Producer, logger ectologger.Logger) *Emitter {
	return &Emitter{
		producer: producer,
		logger:   logger,
	}
}

// EmitBranchCreated emits a branch.created event.
func (e *Emitter) EmitBranchCreated(ctx context.Context, branch *models.Tenant) {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitBranchCreated")
	defer span.End()

	event := &kafka.BranchEvent{
		EventType:  "branch.created",
		TenantID:   branch.TenantID,
		BranchID:   branch.ID,
		BranchName: branch.Name,
		Database:   branch.Database.DatabaseName,
	}

	if err := e.producer.PublishBranchEvent(ctx, event); err != nil {
		e.logger.WithContext(ctx).WithError(err).Error("Failed to emit branch.created event")
	}
}

// EmitBranchMerged emits a branch.merged event carrying the merge outcome.
func (e *Emitter) EmitBranchMerged(ctx context.Context, branch *models.Tenant, result *models.MergeResult) {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitBranchMerged")
	defer span.End()

	data, _ := json.Marshal(map[string]any{
		"schema_version":     SchemaVersion,
		"successful_changes": result.SuccessfulChanges,
		"errors":             result.Errors,
	})

	event := &kafka.BranchEvent{
		EventType:  "branch.merged",
		TenantID:   branch.TenantID,
		BranchID:   branch.ID,
		BranchName: branch.Name,
		Database:   branch.Database.DatabaseName,
		Data:       data,
	}

	if err := e.producer.PublishBranchEvent(ctx, event); err != nil {
		e.logger.WithContext(ctx).WithError(err).Error("Failed to emit branch.merged event")
	}
}
