package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"

	"fieldsync-agent/internal/domain"
)

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("encode failed: method=%s path=%s err=%v", r.Method, r.URL.Path, err)
	}
}

func writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	writeJSON(w, r, status, map[string]string{"error": msg})
}

// decodeJSON reads a single strict JSON object from the request body.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	defer r.Body.Close()
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return errors.New("body must contain only one JSON object")
	}
	return nil
}

// writeEngineError maps an engine mutation failure onto its HTTP status:
// unknown task is 404, rejected status edge is 409, anything else (in
// practice a persistence failure) is a 500.
func writeEngineError(w http.ResponseWriter, r *http.Request, err error) {
	var unknown *domain.UnknownTaskError
	if errors.As(err, &unknown) {
		writeError(w, r, http.StatusNotFound, unknown.Error())
		return
	}
	var invalid *domain.InvalidTransitionError
	if errors.As(err, &invalid) {
		writeError(w, r, http.StatusConflict, invalid.Error())
		return
	}
	log.Printf("engine mutation failed: %v", err)
	writeError(w, r, http.StatusInternalServerError, "internal server error")
}

// taskID extracts the {id} path segment as a positive integer.
func taskID(r *http.Request) (int, error) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil || id <= 0 {
		return 0, errors.New("invalid task id")
	}
	return id, nil
}
