package api

import (
	"net/http"

	"fieldsync-agent/internal/api/handlers"
	"fieldsync-agent/internal/engine"
	"fieldsync-agent/internal/ports"
)

// NewRouter wires HTTP handlers with their dependencies and returns an http.Handler.
// This is the local API composition root for the UI layer (handlers stay
// unaware of concrete adapters; the remote API only appears behind its port).
func NewRouter(e *engine.Engine, taskAPI ports.TaskAPI) http.Handler {
	mux := http.NewServeMux()

	taskHandler := &handlers.TaskHandler{Engine: e, API: taskAPI}
	podHandler := handlers.NewPODHandler(e)
	syncHandler := &handlers.SyncHandler{Engine: e}

	mux.HandleFunc("/health", handlers.Health)

	mux.HandleFunc("GET /tasks", taskHandler.List)
	mux.HandleFunc("POST /tasks/refresh", taskHandler.Refresh)
	mux.HandleFunc("GET /tasks/{id}", taskHandler.Get)
	mux.HandleFunc("POST /tasks/{id}/status", taskHandler.UpdateStatus)
	mux.HandleFunc("POST /tasks/{id}/photos", taskHandler.AddPhoto)
	mux.HandleFunc("POST /tasks/{id}/location", taskHandler.ReportLocation)
	mux.HandleFunc("POST /tasks/{id}/ecmr", taskHandler.SignECMR)
	mux.HandleFunc("POST /tasks/{id}/current", taskHandler.SetCurrent)
	mux.HandleFunc("DELETE /tasks/current", taskHandler.ClearCurrent)

	mux.HandleFunc("POST /tasks/{id}/pod", podHandler.Start)
	mux.HandleFunc("GET /tasks/{id}/pod", podHandler.State)
	mux.HandleFunc("POST /tasks/{id}/pod/arrive", podHandler.Arrive)
	mux.HandleFunc("POST /tasks/{id}/pod/issue", podHandler.Issue)
	mux.HandleFunc("POST /tasks/{id}/pod/photos", podHandler.AddPhoto)
	mux.HandleFunc("POST /tasks/{id}/pod/notes", podHandler.SetNotes)
	mux.HandleFunc("POST /tasks/{id}/pod/signature", podHandler.SetSignature)
	mux.HandleFunc("POST /tasks/{id}/pod/next", podHandler.Next)
	mux.HandleFunc("POST /tasks/{id}/pod/back", podHandler.Back)
	mux.HandleFunc("POST /tasks/{id}/pod/submit", podHandler.Submit)

	mux.HandleFunc("GET /state", syncHandler.State)
	mux.HandleFunc("POST /connectivity", syncHandler.Connectivity)
	mux.HandleFunc("POST /sync", syncHandler.Sync)
	mux.HandleFunc("GET /queue", syncHandler.Queue)
	mux.HandleFunc("GET /deadletter", syncHandler.DeadLetter)
	mux.HandleFunc("POST /deadletter/requeue", syncHandler.RequeueDeadLetter)
	mux.HandleFunc("DELETE /deadletter", syncHandler.ClearDeadLetter)

	return loggingMiddleware(mux)
}
