package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestChannelURLDerivation(t *testing.T) {
	cases := []struct {
		base string
		want string
	}{
		{"http://localhost:8000", "ws://localhost:8000/ws/p1"},
		{"https://agency.example.com", "wss://agency.example.com/ws/p1"},
		{"http://localhost:8000/api/", "ws://localhost:8000/api/ws/p1"},
	}
	for _, tc := range cases {
		api := NewAPI(tc.base, nil)
		got, err := api.ChannelURL("p1")
		if err != nil {
			t.Fatalf("channel url for %s: %v", tc.base, err)
		}
		if got != tc.want {
			t.Fatalf("channel url for %s: got %s want %s", tc.base, got, tc.want)
		}
	}

	api := NewAPI("ftp://bad", nil)
	if _, err := api.ChannelURL("p1"); err == nil {
		t.Fatalf("expected error for non-http scheme")
	}
}

func TestStartCollaboration(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/start-collaboration" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var body struct {
			ProjectGoal    string   `json:"project_goal"`
			SelectedAgents []string `json:"selected_agents"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if body.ProjectGoal != "launch" || len(body.SelectedAgents) != 2 {
			t.Errorf("unexpected body: %+v", body)
		}
		json.NewEncoder(w).Encode(map[string]string{"project_id": "p-123"})
	}))
	defer srv.Close()

	api := NewAPI(srv.URL, srv.Client())
	projectID, err := api.StartCollaboration(context.Background(), "launch", []string{"a", "b"})
	if err != nil {
		t.Fatalf("start collaboration: %v", err)
	}
	if projectID != "p-123" {
		t.Fatalf("unexpected project id: %s", projectID)
	}
}

func TestErrorBodySurfaced(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{"error": "select between 2 and 5 agents"})
	}))
	defer srv.Close()

	api := NewAPI(srv.URL, srv.Client())
	_, err := api.StartCollaboration(context.Background(), "goal", []string{"only_one"})
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(err.Error(), "select between 2 and 5 agents") {
		t.Fatalf("server detail not surfaced: %v", err)
	}
}

func TestVideoStatusDecoding(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/video-status/p1" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]string{
			"status":       "completed",
			"download_url": "/video/p1",
		})
	}))
	defer srv.Close()

	api := NewAPI(srv.URL, srv.Client())
	status, err := api.VideoStatus(context.Background(), "p1")
	if err != nil {
		t.Fatalf("video status: %v", err)
	}
	if status.Status != "completed" || status.DownloadURL != "/video/p1" {
		t.Fatalf("unexpected status: %+v", status)
	}
}
