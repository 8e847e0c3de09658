package handlers

import (
	"log"
	"net/http"

	"fieldsync-agent/internal/api/dto"
	"fieldsync-agent/internal/domain"
	"fieldsync-agent/internal/engine"
)

// SyncHandler exposes the connectivity signal, the drain trigger and the
// queue/dead-letter views.
type SyncHandler struct {
	Engine *engine.Engine
}

func (h *SyncHandler) State(w http.ResponseWriter, r *http.Request) {
	res := dto.StateResponse{
		Online:        h.Engine.Online(),
		IsSyncing:     h.Engine.IsSyncing(),
		QueueLength:   h.Engine.QueueLen(),
		DeadLetterLen: len(h.Engine.DeadLetter()),
		LastSyncAt:    h.Engine.LastSyncAt(),
	}
	if current := h.Engine.CurrentTask(); current != nil {
		res.CurrentTaskID = current.ID
	}
	writeJSON(w, r, http.StatusOK, res)
}

// Connectivity feeds an online/offline transition from the device's
// connectivity monitor into the engine. A false->true edge drains the queue
// before responding.
func (h *SyncHandler) Connectivity(w http.ResponseWriter, r *http.Request) {
	var req dto.ConnectivityRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid json body")
		return
	}

	if err := h.Engine.SetOnline(r.Context(), req.Online); err != nil {
		// The flag flipped and queued work survives; the drain failure
		// is already routed to the error sink.
		log.Printf("connectivity drain failed: %v", err)
	}
	h.State(w, r)
}

// Sync triggers a manual drain pass (retry affordance in the UI).
func (h *SyncHandler) Sync(w http.ResponseWriter, r *http.Request) {
	res, err := h.Engine.Sync(r.Context())
	if err != nil {
		log.Printf("manual sync failed: %v", err)
		writeError(w, r, http.StatusInternalServerError, "sync failed")
		return
	}

	writeJSON(w, r, http.StatusOK, dto.SyncResponse{
		Skipped:      res.Skipped,
		Attempted:    res.Attempted,
		Synced:       res.Synced,
		Failed:       res.Failed,
		DeadLettered: res.DeadLettered,
	})
}

func (h *SyncHandler) Queue(w http.ResponseWriter, r *http.Request) {
	writeActions(w, r, h.Engine.Queue())
}

func (h *SyncHandler) DeadLetter(w http.ResponseWriter, r *http.Request) {
	writeActions(w, r, h.Engine.DeadLetter())
}

func (h *SyncHandler) RequeueDeadLetter(w http.ResponseWriter, r *http.Request) {
	if err := h.Engine.RequeueDeadLetter(r.Context()); err != nil {
		log.Printf("requeue dead letter failed: %v", err)
		writeError(w, r, http.StatusInternalServerError, "internal server error")
		return
	}
	writeActions(w, r, h.Engine.Queue())
}

func (h *SyncHandler) ClearDeadLetter(w http.ResponseWriter, r *http.Request) {
	if err := h.Engine.ClearDeadLetter(r.Context()); err != nil {
		log.Printf("clear dead letter failed: %v", err)
		writeError(w, r, http.StatusInternalServerError, "internal server error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeActions(w http.ResponseWriter, r *http.Request, actions []*domain.OfflineAction) {
	res := dto.ListActionsResponse{Actions: make([]dto.ActionResponse, 0, len(actions))}
	for _, a := range actions {
		res.Actions = append(res.Actions, dto.FromAction(a))
	}
	writeJSON(w, r, http.StatusOK, res)
}
