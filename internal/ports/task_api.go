package ports

import (
	"context"

	"fieldsync-agent/internal/domain"
)

// Port: the remote task/status API the sync drainer replays against.
//
// Replayed calls carry an idempotency key (the OfflineAction id) so that an
// ack lost after server-side success does not create duplicate state on the
// next attempt. The server honoring the Idempotency-Key header is a required
// contract of this interface.
type TaskAPI interface {
	// Fetch the authoritative task list (reconciliation input).
	FetchTasks(ctx context.Context) ([]*domain.DeliveryTask, error)

	// Submit a task status update.
	UpdateStatus(ctx context.Context, idempotencyKey string, p domain.StatusUpdatePayload) error

	// Upload the aggregated proof-of-delivery bundle: each photo as a
	// document attachment, then one status update carrying notes/damage.
	UploadPOD(ctx context.Context, idempotencyKey string, p domain.PODUploadPayload) error

	// Submit an e-CMR signature.
	SignECMR(ctx context.Context, idempotencyKey string, p domain.ECMRSignPayload) error

	// Report the driver's position for a task.
	UpdateLocation(ctx context.Context, idempotencyKey string, p domain.LocationUpdatePayload) error
}
