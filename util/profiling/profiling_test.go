package profiling

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHandlerServesMetrics(t *testing.T) {
	server := httptest.NewServer(newHandler())
	defer server.Close()

	response, err := http.Get(server.URL + "/metrics")
	if err != nil {
		t.Fatalf("TestHandlerServesMetrics: %+v", err)
	}
	defer response.Body.Close()
	if response.StatusCode != http.StatusOK {
		t.Fatalf("TestHandlerServesMetrics: expected status %d, got %d", http.StatusOK, response.StatusCode)
	}
}

func TestHandlerRedirectsRoot(t *testing.T) {
	recorder := httptest.NewRecorder()
	newHandler().ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/", nil))
	if recorder.Code != http.StatusSeeOther {
		t.Fatalf("TestHandlerRedirectsRoot: expected status %d, got %d", http.StatusSeeOther, recorder.Code)
	}
}
