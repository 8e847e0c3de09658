package handlers

import (
	"log"
	"net/http"

	"fieldsync-agent/internal/api/dto"
	"fieldsync-agent/internal/domain"
	"fieldsync-agent/internal/engine"
	"fieldsync-agent/internal/ports"
)

// TaskHandler exposes the task store operations to the UI layer. Mutations
// are optimistic: they return as soon as the engine has queued and persisted
// the change, never waiting on the network.
type TaskHandler struct {
	Engine *engine.Engine
	API    ports.TaskAPI
}

func (h *TaskHandler) List(w http.ResponseWriter, r *http.Request) {
	tasks := h.Engine.Tasks()

	res := dto.ListTasksResponse{Tasks: make([]dto.TaskResponse, 0, len(tasks))}
	for _, t := range tasks {
		res.Tasks = append(res.Tasks, dto.FromTask(t))
	}
	writeJSON(w, r, http.StatusOK, res)
}

func (h *TaskHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := taskID(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	task := h.Engine.Task(id)
	if task == nil {
		writeError(w, r, http.StatusNotFound, "task not found")
		return
	}
	writeJSON(w, r, http.StatusOK, dto.FromTask(task))
}

// Refresh pulls the authoritative task list from the remote API and feeds it
// through the engine's reconciliation. The one handler that does block on
// the network, by design: the UI calls it from pull-to-refresh.
func (h *TaskHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.API.FetchTasks(r.Context())
	if err != nil {
		log.Printf("refresh tasks failed: %v", err)
		writeError(w, r, http.StatusBadGateway, "task fetch failed")
		return
	}

	if err := h.Engine.SetTasks(r.Context(), tasks); err != nil {
		log.Printf("set tasks failed: %v", err)
		writeError(w, r, http.StatusInternalServerError, "internal server error")
		return
	}

	h.List(w, r)
}

func (h *TaskHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, err := taskID(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	var req dto.StatusUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid json body")
		return
	}
	if !req.Status.Valid() {
		writeError(w, r, http.StatusBadRequest, "unknown status")
		return
	}

	err = h.Engine.UpdateTaskStatus(r.Context(), id, domain.StatusChange{
		Status: req.Status,
		Notes:  req.Notes,
		Lat:    req.Lat,
		Lng:    req.Lng,
	})
	if err != nil {
		writeEngineError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, dto.FromTask(h.Engine.Task(id)))
}

func (h *TaskHandler) AddPhoto(w http.ResponseWriter, r *http.Request) {
	id, err := taskID(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	var req dto.AddPhotoRequest
	if err := decodeJSON(r, &req); err != nil || req.URI == "" {
		writeError(w, r, http.StatusBadRequest, "invalid json body")
		return
	}

	if err := h.Engine.AddPodPhoto(r.Context(), id, req.URI); err != nil {
		writeEngineError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, dto.FromTask(h.Engine.Task(id)))
}

func (h *TaskHandler) ReportLocation(w http.ResponseWriter, r *http.Request) {
	id, err := taskID(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	var req dto.LocationRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid json body")
		return
	}

	if err := h.Engine.ReportLocation(r.Context(), id, req.Lat, req.Lng); err != nil {
		writeEngineError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (h *TaskHandler) SignECMR(w http.ResponseWriter, r *http.Request) {
	id, err := taskID(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	var req dto.SignECMRRequest
	if err := decodeJSON(r, &req); err != nil || req.Signature == "" {
		writeError(w, r, http.StatusBadRequest, "invalid json body")
		return
	}

	if err := h.Engine.SignECMR(r.Context(), id, req.Signature); err != nil {
		writeEngineError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, dto.FromTask(h.Engine.Task(id)))
}

func (h *TaskHandler) SetCurrent(w http.ResponseWriter, r *http.Request) {
	id, err := taskID(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.Engine.SetCurrentTask(id); err != nil {
		writeEngineError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *TaskHandler) ClearCurrent(w http.ResponseWriter, r *http.Request) {
	if err := h.Engine.SetCurrentTask(0); err != nil {
		writeError(w, r, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
