package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/ayusman/palak/internal/app"
	"github.com/ayusman/palak/internal/blink"
	"github.com/ayusman/palak/internal/store"
)

func TestAPI_BlinkWorkflow(t *testing.T) {
	tmpDir := t.TempDir()
	s, err := store.New(filepath.Join(tmpDir, "test.db"))
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	defer s.Close()

	cfg := blink.DefaultConfig()
	cfg.WindowSize = 1
	a, err := app.New(app.Config{Store: s, PluginDir: filepath.Join(tmpDir, "plugins"), Blink: cfg})
	if err != nil {
		t.Fatalf("app.New() error = %v", err)
	}
	defer a.Close()

	hub := NewBlinkHub(a.Snapshot, nil)
	a.AddSink(hub)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	srv := New(Config{
		Store:        s,
		Counter:      a,
		Reconfigurer: a,
		Hub:          hub,
	})
	ts := httptest.NewServer(srv)
	defer ts.Close()
	client := ts.Client()

	// 1. Bind an action to blinks
	resp, err := client.Post(ts.URL+"/api/actions", "application/json",
		bytes.NewBufferString(`{"plugin_name":"keyboard","action_name":"press","config":{"key":"space"}}`))
	if err != nil {
		t.Fatalf("POST /api/actions error = %v", err)
	}
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("POST status = %d, want %d", resp.StatusCode, http.StatusCreated)
	}
	resp.Body.Close()

	// 2. Watch the count over the websocket
	conn := dialHub(t, ts)
	if u := readUpdate(t, conn); u.Count != 0 {
		t.Fatalf("expected initial count 0, got %d", u.Count)
	}
	waitClients(t, hub, 1)

	a.ProcessEyeFrame(&blink.EyeFrame{Left: 0.10, Right: 0.10})
	a.ProcessEyeFrame(&blink.EyeFrame{Left: 0.02, Right: 0.02})

	if u := readUpdate(t, conn); u.Count != 1 || !u.BlinkOccurred {
		t.Fatalf("expected blink update with count 1, got %+v", u)
	}

	// 3. Read the count over REST
	resp, err = client.Get(ts.URL + "/api/count")
	if err != nil {
		t.Fatalf("GET /api/count error = %v", err)
	}
	var snap struct {
		Count      uint64 `json:"count"`
		State      string `json:"state"`
		Calibrated bool   `json:"calibrated"`
	}
	json.NewDecoder(resp.Body).Decode(&snap)
	resp.Body.Close()
	if snap.Count != 1 || snap.State != "closed" || !snap.Calibrated {
		t.Errorf("unexpected snapshot %+v", snap)
	}

	// 4. Retune the detector; the count must survive
	req, _ := http.NewRequest(http.MethodPut, ts.URL+"/api/config", bytes.NewBufferString(`{"closure_ratio":0.5}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err = client.Do(req)
	if err != nil {
		t.Fatalf("PUT /api/config error = %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("PUT status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	resp.Body.Close()

	if got := a.BlinkConfig().ClosureRatio; got != 0.5 {
		t.Errorf("expected live closure ratio 0.5, got %v", got)
	}
	persisted, err := s.Settings().BlinkConfig()
	if err != nil || persisted.ClosureRatio != 0.5 {
		t.Errorf("expected persisted closure ratio 0.5, got %+v (err %v)", persisted, err)
	}
	if a.Snapshot().Count != 1 {
		t.Errorf("expected count to survive reconfigure, got %d", a.Snapshot().Count)
	}

	a.ProcessEyeFrame(&blink.EyeFrame{Left: 0.10, Right: 0.10})
	a.ProcessEyeFrame(&blink.EyeFrame{Left: 0.02, Right: 0.02})

	deadline := time.Now().Add(2 * time.Second)
	for {
		u := readUpdate(t, conn)
		if u.Count == 2 && u.BlinkOccurred {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("never saw second blink, last update %+v", u)
		}
	}
}
