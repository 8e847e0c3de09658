package dto

import "fieldsync-agent/internal/domain"

type StatusUpdateRequest struct {
	Status domain.TaskStatus `json:"status"`
	Notes  string            `json:"notes,omitempty"`
	Lat    *float64          `json:"lat,omitempty"`
	Lng    *float64          `json:"lng,omitempty"`
}

type AddPhotoRequest struct {
	URI string `json:"uri"`
}

type LocationRequest struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type SignECMRRequest struct {
	Signature string `json:"signature"`
}

type ConnectivityRequest struct {
	Online bool `json:"online"`
}

type IssueRequest struct {
	Reason string `json:"reason"`
}

type NotesRequest struct {
	Notes       string `json:"notes,omitempty"`
	Damaged     bool   `json:"damaged,omitempty"`
	DamageNotes string `json:"damage_notes,omitempty"`
}

type SignatureRequest struct {
	Signature string `json:"signature"`
}
