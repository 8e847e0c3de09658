package handlers

import (
	"net/http"
	"sync"

	"fieldsync-agent/internal/api/dto"
	"fieldsync-agent/internal/engine"
	"fieldsync-agent/internal/pod"
)

// PODHandler drives the proof-of-delivery capture wizard over HTTP. One
// wizard session exists per task at a time; the session lives until the
// driver submits, reports an issue, or abandons it.
type PODHandler struct {
	Engine *engine.Engine

	mu       sync.Mutex
	sessions map[int]*pod.Wizard
}

func NewPODHandler(e *engine.Engine) *PODHandler {
	return &PODHandler{
		Engine:   e,
		sessions: make(map[int]*pod.Wizard),
	}
}

func (h *PODHandler) session(taskID int) *pod.Wizard {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.sessions[taskID]
}

type wizardState struct {
	Step    pod.Step    `json:"step"`
	Summary pod.Summary `json:"summary"`
}

func stateOf(w *pod.Wizard) wizardState {
	return wizardState{Step: w.Step(), Summary: w.Summary()}
}

// Start opens a capture session for a task. An existing session for the
// same task is replaced: abandoning a half-finished wizard and starting
// over is the normal recovery path on a device.
func (h *PODHandler) Start(w http.ResponseWriter, r *http.Request) {
	id, err := taskID(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if h.Engine.Task(id) == nil {
		writeError(w, r, http.StatusNotFound, "task not found")
		return
	}

	h.mu.Lock()
	wiz := pod.NewWizard(h.Engine, id)
	h.sessions[id] = wiz
	h.mu.Unlock()

	writeJSON(w, r, http.StatusCreated, stateOf(wiz))
}

func (h *PODHandler) State(w http.ResponseWriter, r *http.Request) {
	id, err := taskID(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	wiz := h.session(id)
	if wiz == nil {
		writeError(w, r, http.StatusNotFound, "no capture session")
		return
	}
	writeJSON(w, r, http.StatusOK, stateOf(wiz))
}

// step runs one wizard operation and writes the resulting wizard state.
func (h *PODHandler) step(w http.ResponseWriter, r *http.Request, fn func(*pod.Wizard) error) {
	id, err := taskID(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	wiz := h.session(id)
	if wiz == nil {
		writeError(w, r, http.StatusNotFound, "no capture session")
		return
	}

	if err := fn(wiz); err != nil {
		writeError(w, r, http.StatusConflict, err.Error())
		return
	}
	writeJSON(w, r, http.StatusOK, stateOf(wiz))
}

func (h *PODHandler) Arrive(w http.ResponseWriter, r *http.Request) {
	h.step(w, r, func(wiz *pod.Wizard) error {
		return wiz.RecordArrival(r.Context())
	})
}

// Issue reports a failed pickup/delivery and closes the session.
func (h *PODHandler) Issue(w http.ResponseWriter, r *http.Request) {
	var req dto.IssueRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid json body")
		return
	}

	h.step(w, r, func(wiz *pod.Wizard) error {
		if err := wiz.ReportIssue(r.Context(), req.Reason); err != nil {
			return err
		}
		h.mu.Lock()
		delete(h.sessions, wiz.TaskID())
		h.mu.Unlock()
		return nil
	})
}

func (h *PODHandler) AddPhoto(w http.ResponseWriter, r *http.Request) {
	var req dto.AddPhotoRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid json body")
		return
	}

	h.step(w, r, func(wiz *pod.Wizard) error {
		return wiz.AddPhoto(r.Context(), req.URI)
	})
}

func (h *PODHandler) SetNotes(w http.ResponseWriter, r *http.Request) {
	var req dto.NotesRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid json body")
		return
	}

	h.step(w, r, func(wiz *pod.Wizard) error {
		return wiz.SetNotes(req.Notes, req.Damaged, req.DamageNotes)
	})
}

func (h *PODHandler) SetSignature(w http.ResponseWriter, r *http.Request) {
	var req dto.SignatureRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid json body")
		return
	}

	h.step(w, r, func(wiz *pod.Wizard) error {
		wiz.SetSignature(req.Signature)
		return nil
	})
}

func (h *PODHandler) Next(w http.ResponseWriter, r *http.Request) {
	h.step(w, r, func(wiz *pod.Wizard) error { return wiz.Next() })
}

func (h *PODHandler) Back(w http.ResponseWriter, r *http.Request) {
	h.step(w, r, func(wiz *pod.Wizard) error { return wiz.Back() })
}

// Submit completes the task with the accumulated bundle and closes the
// session. Returns as soon as the engine has committed the mutation; the
// upload itself rides the offline queue.
func (h *PODHandler) Submit(w http.ResponseWriter, r *http.Request) {
	h.step(w, r, func(wiz *pod.Wizard) error {
		if err := wiz.Submit(r.Context()); err != nil {
			return err
		}
		h.mu.Lock()
		delete(h.sessions, wiz.TaskID())
		h.mu.Unlock()
		return nil
	})
}
