package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/marmos91/execgate/pkg/backpressure"
	"github.com/marmos91/execgate/pkg/cache"
	"github.com/marmos91/execgate/pkg/store/memory"
	"github.com/marmos91/execgate/pkg/types"
)

func TestLiveness_ReturnsOK(t *testing.T) {
	handler := NewHealthHandler(nil, nil)
	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()

	handler.Liveness(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status %d, got %d", http.StatusOK, w.Code)
	}

	var resp response
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	if resp.Status != "healthy" {
		t.Errorf("Expected status 'healthy', got '%s'", resp.Status)
	}

	data, ok := resp.Data.(map[string]interface{})
	if !ok {
		t.Fatalf("Expected Data to be a map, got %T", resp.Data)
	}

	if data["service"] != "execgate" {
		t.Errorf("Expected service 'execgate', got '%s'", data["service"])
	}
}

func TestReadiness_NotInitialized_Returns503(t *testing.T) {
	handler := NewHealthHandler(nil, nil)
	req := httptest.NewRequest("GET", "/health/ready", nil)
	w := httptest.NewRecorder()

	handler.Readiness(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected status %d, got %d", http.StatusServiceUnavailable, w.Code)
	}
}

func TestReadiness_Initialized_ReturnsOK(t *testing.T) {
	c := cache.New(memory.New(), cache.Config{}, nil)
	manager := backpressure.New(nil)
	handler := NewHealthHandler(c, manager)

	req := httptest.NewRequest("GET", "/health/ready", nil)
	w := httptest.NewRecorder()

	handler.Readiness(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status %d, got %d", http.StatusOK, w.Code)
	}
}

func TestStatus_ReturnsAdmissionSnapshot(t *testing.T) {
	c := cache.New(memory.New(), cache.Config{}, nil)
	manager := backpressure.New(nil)
	handler := NewStatusHandler(c, manager)

	var id types.ObjectID
	id[0] = 1
	c.WriteObjectEntry(id, 1, types.NewObjectEntry([]byte("x")))
	manager.UpdateHighestCertifiedCheckpoint(3)
	manager.UpdateHighestExecutedCheckpoint(1)
	manager.SetBackpressure(true)

	req := httptest.NewRequest("GET", "/status", nil)
	w := httptest.NewRecorder()

	handler.Status(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status %d, got %d", http.StatusOK, w.Code)
	}

	var resp struct {
		Status string         `json:"status"`
		Data   StatusResponse `json:"data"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	if resp.Status != "ok" {
		t.Errorf("Expected status 'ok', got '%s'", resp.Status)
	}
	if resp.Data.Watermarks.Certified != 3 || resp.Data.Watermarks.Executed != 1 {
		t.Errorf("Unexpected watermarks: %+v", resp.Data.Watermarks)
	}
	if !resp.Data.Backpressure {
		t.Error("Expected backpressure to be reported active")
	}
	if resp.Data.Cache.DirtyEntries != 1 {
		t.Errorf("Expected 1 dirty entry, got %d", resp.Data.Cache.DirtyEntries)
	}
}

func TestStatus_NotInitialized_Returns503(t *testing.T) {
	handler := NewStatusHandler(nil, nil)
	req := httptest.NewRequest("GET", "/status", nil)
	w := httptest.NewRecorder()

	handler.Status(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected status %d, got %d", http.StatusServiceUnavailable, w.Code)
	}
}
