package metrics

import (
	"encoding/json"
	"net/http/httptest"
	"testing"
)

func TestHandlerSummarizesRegistry(t *testing.T) {
	m := New()
	m.ObservePass("success", 0.1)
	m.ObservePass("error", 0.2)
	m.SetGraphSize(3, 12, 7)
	m.AddRosterAnomalies(2)
	m.IncFlagRepair()
	m.IncMutation("leave_team", "success")
	m.IncMutation("leave_team", "error")
	m.IncHTTPRequest("GET", "/api/v1/teams", 200)
	m.IncHTTPRequest("GET", "/api/v1/teams", 404)

	rec := httptest.NewRecorder()
	m.Handler()(rec, httptest.NewRequest("GET", "/metrics", nil))

	if rec.Code != 200 {
		t.Fatalf("status = %d", rec.Code)
	}
	var s Summary
	if err := json.Unmarshal(rec.Body.Bytes(), &s); err != nil {
		t.Fatalf("decoding summary: %v", err)
	}

	if s.Reconciliation.TotalPasses != 2 || s.Reconciliation.FailedPasses != 1 {
		t.Errorf("passes = %+v", s.Reconciliation)
	}
	if s.Reconciliation.RosterAnomalies != 2 || s.Reconciliation.FlagRepairs != 1 {
		t.Errorf("anomalies/repairs = %+v", s.Reconciliation)
	}
	if s.Graph.Teams != 3 || s.Graph.Users != 12 || s.Graph.Patients != 7 {
		t.Errorf("graph = %+v", s.Graph)
	}
	if s.Mutations.Total != 2 || s.Mutations.Errors != 1 {
		t.Errorf("mutations = %+v", s.Mutations)
	}
	if s.HTTP.TotalRequests != 2 || s.HTTP.ErrorRate != 0.5 {
		t.Errorf("http = %+v", s.HTTP)
	}
}

func TestDBPoolCollector(t *testing.T) {
	m := New()
	m.RegisterDBPoolCollector(func() (total, idle, acquired int32) {
		return 10, 4, 6
	})

	rec := httptest.NewRecorder()
	m.Handler()(rec, httptest.NewRequest("GET", "/metrics", nil))

	var s Summary
	if err := json.Unmarshal(rec.Body.Bytes(), &s); err != nil {
		t.Fatalf("decoding summary: %v", err)
	}
	if s.DB.TotalConns != 10 || s.DB.IdleConns != 4 || s.DB.AcquiredConns != 6 {
		t.Errorf("db = %+v", s.DB)
	}
}
