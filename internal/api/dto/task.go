package dto

import (
	"time"

	"fieldsync-agent/internal/domain"
)

type TaskResponse struct {
	ID           int               `json:"id"`
	OrderID      int               `json:"order_id"`
	OrderNumber  string            `json:"order_number"`
	Kind         domain.TaskKind   `json:"kind"`
	Status       domain.TaskStatus `json:"status"`
	Address      string            `json:"address"`
	City         string            `json:"city"`
	ContactName  string            `json:"contact_name,omitempty"`
	ContactPhone string            `json:"contact_phone,omitempty"`
	PODPhotos    []string          `json:"pod_photos,omitempty"`
	PODSignature string            `json:"pod_signature,omitempty"`
	CompletedAt  *time.Time        `json:"completed_at,omitempty"`
	ECMRSignedAt *time.Time        `json:"ecmr_signed_at,omitempty"`
}

type ListTasksResponse struct {
	Tasks []TaskResponse `json:"tasks"`
}

func FromTask(t *domain.DeliveryTask) TaskResponse {
	return TaskResponse{
		ID:           t.ID,
		OrderID:      t.OrderID,
		OrderNumber:  t.OrderNumber,
		Kind:         t.Kind,
		Status:       t.Status,
		Address:      t.Address,
		City:         t.City,
		ContactName:  t.ContactName,
		ContactPhone: t.ContactPhone,
		PODPhotos:    t.PODPhotos,
		PODSignature: t.PODSignature,
		CompletedAt:  t.CompletedAt,
		ECMRSignedAt: t.ECMRSignedAt,
	}
}
