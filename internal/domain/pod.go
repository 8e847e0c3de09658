package domain

// The signature/notes/damage half of a proof-of-delivery submission,
// produced by the capture wizard's confirm step. Photos are not carried
// here: they accumulate on the task itself during the photos step.
type PODBundle struct {
	Signature   string `json:"signature,omitempty"`
	Notes       string `json:"notes,omitempty"`
	Damaged     bool   `json:"damaged,omitempty"`
	DamageNotes string `json:"damage_notes,omitempty"`
}
