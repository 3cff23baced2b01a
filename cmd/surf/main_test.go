package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/goccy/go-json"

	"github.com/risksurface/surf/pkg/api"
)

func TestPredictionsFetchMarshalsBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/analysis/predictions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		w.Header().Set("Last-Modified", "Tue, 25 Aug 2026 10:00:00 GMT")
		w.Write([]byte(`{"selected":true,"project":{"fullName":"acme/api"},"predictions":{"hotspots":3}}`))
	}))
	defer srv.Close()

	fetch := predictionsFetch(api.New(srv.URL))
	body, lastModified, err := fetch(context.Background(), "")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if lastModified != "Tue, 25 Aug 2026 10:00:00 GMT" {
		t.Errorf("lastModified = %q", lastModified)
	}
	var preds api.Predictions
	if err := json.Unmarshal(body, &preds); err != nil {
		t.Fatalf("unmarshal body: %v", err)
	}
	if !preds.Selected || preds.Project.FullName != "acme/api" {
		t.Errorf("preds = %+v", preds)
	}
}

func TestRunRobotFetchesAllViews(t *testing.T) {
	var selected string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/api/projects/selected":
			var body struct {
				FullName string `json:"fullName"`
			}
			json.NewDecoder(r.Body).Decode(&body)
			selected = body.FullName
			w.Write([]byte(`{"success":true}`))
		case strings.HasPrefix(r.URL.Path, "/api/analysis/"):
			resp := map[string]any{
				"selected": true,
				"project":  map[string]any{"fullName": selected},
				"analysis": map[string]any{"healthScore": 70},
			}
			json.NewEncoder(w).Encode(resp)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	out := captureStdout(t, func() {
		if err := runRobot(api.New(srv.URL), "acme/api", ""); err != nil {
			t.Fatalf("runRobot: %v", err)
		}
	})

	var result struct {
		Project string                     `json:"project"`
		Views   map[string]json.RawMessage `json:"views"`
	}
	if err := json.Unmarshal(out, &result); err != nil {
		t.Fatalf("output not JSON: %v\n%s", err, out)
	}
	if result.Project != "acme/api" {
		t.Errorf("project = %q", result.Project)
	}
	if len(result.Views) != len(api.Tabs) {
		t.Errorf("got %d views, want %d", len(result.Views), len(api.Tabs))
	}
}

func TestRunRobotRejectsIdentityMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/projects/selected" {
			w.Write([]byte(`{"success":true}`))
			return
		}
		w.Write([]byte(`{"selected":true,"project":{"fullName":"other/repo"},"analysis":{}}`))
	}))
	defer srv.Close()

	err := runRobot(api.New(srv.URL), "acme/api", "dashboard")
	if err == nil || !strings.Contains(err.Error(), "other/repo") {
		t.Fatalf("expected identity mismatch error, got %v", err)
	}
}

func captureStdout(t *testing.T, fn func()) []byte {
	t.Helper()
	old := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	os.Stdout = w
	defer func() { os.Stdout = old }()

	fn()
	w.Close()
	var buf bytes.Buffer
	buf.ReadFrom(r)
	return buf.Bytes()
}
