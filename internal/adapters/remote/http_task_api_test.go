package remote

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"fieldsync-agent/internal/domain"
	"fieldsync-agent/internal/ports"
)

func newClient(t *testing.T, handler http.Handler) *HTTPTaskAPI {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewHTTPTaskAPI(srv.URL, "test-token")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return client
}

func TestUpdateStatusSendsIdempotencyKey(t *testing.T) {
	var gotKey, gotAuth, gotPath string
	var gotBody map[string]any

	client := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("Idempotency-Key")
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusOK)
	}))

	err := client.UpdateStatus(context.Background(), "1773500000000-0000", domain.StatusUpdatePayload{
		Task:   10,
		Status: domain.StatusArrived,
		Notes:  "gate B",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if gotKey != "1773500000000-0000" {
		t.Fatalf("idempotency key = %q", gotKey)
	}
	if gotAuth != "Bearer test-token" {
		t.Fatalf("authorization = %q", gotAuth)
	}
	if gotPath != "/driver/tasks/10/status" {
		t.Fatalf("path = %q", gotPath)
	}
	if gotBody["status"] != "arrived" || gotBody["notes"] != "gate B" {
		t.Fatalf("body = %v", gotBody)
	}
}

func TestRetryOnServerError(t *testing.T) {
	var calls atomic.Int32

	client := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))

	err := client.UpdateLocation(context.Background(), "k1", domain.LocationUpdatePayload{
		Task: 10, Lat: 33.45, Lng: -112.07, RecordedAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := calls.Load(); got != 2 {
		t.Fatalf("server calls = %d, want 2 (one retry)", got)
	}
}

func TestDefinitiveRejectionIsNotRetried(t *testing.T) {
	var calls atomic.Int32

	client := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, `{"error":"task already completed"}`, http.StatusUnprocessableEntity)
	}))

	err := client.UpdateStatus(context.Background(), "k1", domain.StatusUpdatePayload{
		Task: 10, Status: domain.StatusArrived,
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if !ports.IsRejected(err) {
		t.Fatalf("error = %v, want a rejection", err)
	}
	if got := calls.Load(); got != 1 {
		t.Fatalf("server calls = %d, want 1 (no retry on 4xx)", got)
	}
}

func TestServerErrorStaysTransient(t *testing.T) {
	client := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))

	err := client.SignECMR(context.Background(), "k1", domain.ECMRSignPayload{
		Task: 10, Signature: "Jon Doe", SignedAt: time.Now(),
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if ports.IsRejected(err) {
		t.Fatalf("error = %v, want transient", err)
	}
}

func TestUploadPODSendsPhotosThenStatus(t *testing.T) {
	photoPath := filepath.Join(t.TempDir(), "pod1.jpg")
	if err := os.WriteFile(photoPath, []byte("jpeg-bytes"), 0o600); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	type call struct {
		path       string
		key        string
		collection string
		filename   string
		status     string
	}
	var calls []call

	client := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c := call{path: r.URL.Path, key: r.Header.Get("Idempotency-Key")}

		if r.URL.Path == "/driver/tasks/7/documents" {
			if err := r.ParseMultipartForm(1 << 20); err != nil {
				t.Errorf("parse multipart: %v", err)
			}
			c.collection = r.FormValue("collection")
			c.filename = r.FormValue("filename")
			file, header, err := r.FormFile("file")
			if err != nil {
				t.Errorf("form file: %v", err)
			} else {
				file.Close()
				if header.Filename != "pod1.jpg" {
					t.Errorf("file part name = %q", header.Filename)
				}
			}
		} else {
			var body map[string]any
			_ = json.NewDecoder(r.Body).Decode(&body)
			c.status, _ = body["status"].(string)
		}

		calls = append(calls, c)
		w.WriteHeader(http.StatusOK)
	}))

	err := client.UploadPOD(context.Background(), "act-1", domain.PODUploadPayload{
		Task:        7,
		PhotoURIs:   []string{"file://" + photoPath},
		Signature:   "Jon Doe",
		Notes:       "left at dock 3",
		CompletedAt: time.Date(2026, 3, 14, 16, 20, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(calls) != 2 {
		t.Fatalf("server calls = %d, want 2 (photo then status)", len(calls))
	}
	if calls[0].path != "/driver/tasks/7/documents" || calls[0].key != "act-1:photo:0" {
		t.Fatalf("first call = %+v", calls[0])
	}
	if calls[0].collection != "pod" || calls[0].filename != "pod1.jpg" {
		t.Fatalf("document fields = %+v", calls[0])
	}
	if calls[1].path != "/driver/tasks/7/status" || calls[1].key != "act-1:status" {
		t.Fatalf("second call = %+v", calls[1])
	}
	if calls[1].status != "completed" {
		t.Fatalf("status submission = %q, want completed", calls[1].status)
	}
}

func TestFetchTasksDecodesList(t *testing.T) {
	client := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/driver/tasks" {
			t.Errorf("path = %q", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"tasks":[
			{"id":7,"order_id":70,"order_number":"ORD-70","kind":"delivery","status":"pending"},
			{"id":11,"order_id":110,"order_number":"ORD-110","kind":"pickup","status":"en_route"}
		]}`))
	}))

	tasks, err := client.FetchTasks(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tasks) != 2 {
		t.Fatalf("task count = %d, want 2", len(tasks))
	}
	if tasks[0].ID != 7 || tasks[0].Status != domain.StatusPending {
		t.Fatalf("task[0] = %+v", tasks[0])
	}
	if tasks[1].Kind != domain.KindPickup {
		t.Fatalf("task[1] kind = %s", tasks[1].Kind)
	}
}
