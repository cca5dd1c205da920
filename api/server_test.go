package api

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"go-metronome/midi/fake"
	"go-metronome/patterns"
	"go-metronome/sequencer"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testServer struct {
	srv    *Server
	engine *sequencer.Engine
	ports  *fake.Ports
	store  *patterns.Store
	events *sequencer.Fanout
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ports := fake.New([]string{"Synth:Port 0"}, []string{"Keys:Port 0"})
	cfg := sequencer.DefaultConfig()
	cfg.OutputConn = "synth"
	cfg.Tempo = sequencer.TempoMax
	cfg.Resolution = sequencer.MaxResolution
	e := sequencer.New(cfg, ports)
	t.Cleanup(func() { e.Close() })

	store, err := patterns.Open(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	if _, err := store.Seed(context.Background()); err != nil {
		t.Fatalf("seed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	events := sequencer.NewFanout(e.Notifications())
	go events.Run(ctx)

	srv := New(e, Options{Store: store, Instrument: sequencer.DefaultInstrument, Events: events})
	return &testServer{srv: srv, engine: e, ports: ports, store: store, events: events}
}

func (ts *testServer) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	ts.srv.Handler().ServeHTTP(w, req)
	return w
}

func decodeState(t *testing.T, w *httptest.ResponseRecorder) StateResponse {
	t.Helper()
	var st StateResponse
	if err := json.Unmarshal(w.Body.Bytes(), &st); err != nil {
		t.Fatalf("decode state: %v (%s)", err, w.Body.String())
	}
	return st
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)
	for _, path := range []string{"/health", "/api/v1/health"} {
		w := ts.do(t, http.MethodGet, path, "")
		if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "healthy") {
			t.Errorf("%s: %d %s", path, w.Code, w.Body.String())
		}
	}
}

func TestTransport(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodPost, "/api/v1/play", "")
	if w.Code != http.StatusOK {
		t.Fatalf("play: %d %s", w.Code, w.Body.String())
	}
	if st := decodeState(t, w); !st.Playing || !st.Connected {
		t.Errorf("after play: %+v", st)
	}

	w = ts.do(t, http.MethodPost, "/api/v1/stop", "")
	if st := decodeState(t, w); st.Playing {
		t.Errorf("after stop: %+v", st)
	}

	w = ts.do(t, http.MethodPost, "/api/v1/cont", "")
	if st := decodeState(t, w); !st.Playing {
		t.Errorf("after cont: %+v", st)
	}
	ts.do(t, http.MethodPost, "/api/v1/stop", "")
}

func TestPlayWithoutDevice(t *testing.T) {
	ts := newTestServer(t)
	ts.engine.SetOutputConn("nowhere")
	w := ts.do(t, http.MethodPost, "/api/v1/play", "")
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("play without device: %d, want 503", w.Code)
	}
}

func TestTempo(t *testing.T) {
	ts := newTestServer(t)
	w := ts.do(t, http.MethodPut, "/api/v1/tempo", `{"bpm": 120}`)
	st := decodeState(t, w)
	if st.Tempo != 120 || st.TempoName != "Allegro" {
		t.Errorf("tempo = %d %q", st.Tempo, st.TempoName)
	}

	w = ts.do(t, http.MethodPut, "/api/v1/tempo", `{"bpm": 9000}`)
	if st := decodeState(t, w); st.Tempo != sequencer.TempoMax {
		t.Errorf("tempo not clamped: %d", st.Tempo)
	}

	if w := ts.do(t, http.MethodPut, "/api/v1/tempo", `{"bpm": "fast"}`); w.Code != http.StatusBadRequest {
		t.Errorf("bad body: %d", w.Code)
	}
}

func TestTimeSignature(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodPut, "/api/v1/timesig", `{"numerator": 7, "denominator": 8}`)
	if st := decodeState(t, w); st.Numerator != 7 || st.Denominator != 8 {
		t.Errorf("signature = %d/%d", st.Numerator, st.Denominator)
	}

	if w := ts.do(t, http.MethodPut, "/api/v1/timesig", `{"numerator": 3, "denominator": 5}`); w.Code != http.StatusBadRequest {
		t.Errorf("invalid signature: %d, want 400", w.Code)
	}

	ts.do(t, http.MethodPost, "/api/v1/play", "")
	defer ts.do(t, http.MethodPost, "/api/v1/stop", "")
	if w := ts.do(t, http.MethodPut, "/api/v1/timesig", `{"numerator": 3, "denominator": 4}`); w.Code != http.StatusConflict {
		t.Errorf("change while playing: %d, want 409", w.Code)
	}
}

func TestPatterns(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodGet, "/api/v1/patterns", "")
	var list struct {
		Patterns []string `json:"patterns"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &list); err != nil {
		t.Fatal(err)
	}
	if len(list.Patterns) != len(patterns.Samples()) {
		t.Errorf("listed %d patterns, want %d", len(list.Patterns), len(patterns.Samples()))
	}

	body := `{"figure": 4, "rows": [{"key": 36, "cells": ["f", "", "p", ""]}, {"key": 42, "cells": ["5", "5", "5", "9"]}]}`
	w = ts.do(t, http.MethodPut, "/api/v1/patterns/Mine", body)
	if w.Code != http.StatusOK {
		t.Fatalf("put: %d %s", w.Code, w.Body.String())
	}

	w = ts.do(t, http.MethodGet, "/api/v1/patterns/mine", "")
	var got PatternJSON
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if got.Name != "Mine" || got.Figure != 4 || len(got.Rows) != 2 || got.Rows[0].Name != "Bass Drum 1" {
		t.Errorf("get = %+v", got)
	}

	if w := ts.do(t, http.MethodPut, "/api/v1/patterns/Bad", `{"rows": [{"key": 36, "cells": ["x"]}]}`); w.Code != http.StatusBadRequest {
		t.Errorf("invalid cell: %d, want 400", w.Code)
	}

	w = ts.do(t, http.MethodPut, "/api/v1/pattern-mode", `{"enabled": true}`)
	if st := decodeState(t, w); !st.PatternMode {
		t.Error("pattern mode not enabled")
	}

	w = ts.do(t, http.MethodPost, "/api/v1/patterns/Mine/select", "")
	if st := decodeState(t, w); st.Pattern != "Mine" {
		t.Errorf("selected = %q", st.Pattern)
	}

	if w := ts.do(t, http.MethodDelete, "/api/v1/patterns/Mine", ""); w.Code != http.StatusNoContent {
		t.Errorf("delete: %d", w.Code)
	}
	if w := ts.do(t, http.MethodGet, "/api/v1/patterns/Mine", ""); w.Code != http.StatusNotFound {
		t.Errorf("get deleted: %d, want 404", w.Code)
	}
}

func TestExportSMF(t *testing.T) {
	ts := newTestServer(t)
	name := "Rock"

	w := ts.do(t, http.MethodGet, "/api/v1/patterns/"+name+"/smf?bars=2", "")
	if w.Code != http.StatusOK {
		t.Fatalf("smf: %d %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "audio/midi" {
		t.Errorf("content type %q", ct)
	}
	if !strings.HasPrefix(w.Body.String(), "MThd") {
		t.Error("body is not a MIDI file")
	}

	if w := ts.do(t, http.MethodGet, "/api/v1/patterns/"+name+"/smf?bars=0", ""); w.Code != http.StatusBadRequest {
		t.Errorf("bars=0: %d", w.Code)
	}
}

func TestPorts(t *testing.T) {
	ts := newTestServer(t)
	w := ts.do(t, http.MethodGet, "/api/v1/ports", "")
	if !strings.Contains(w.Body.String(), "Synth:Port 0") || !strings.Contains(w.Body.String(), "Keys:Port 0") {
		t.Errorf("ports = %s", w.Body.String())
	}
}

func TestEventStream(t *testing.T) {
	ts := newTestServer(t)
	hs := httptest.NewServer(ts.srv.Handler())
	defer hs.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	// headers are only written with the first event
	if err := ts.engine.Start(); err != nil {
		t.Fatal(err)
	}
	defer ts.engine.Stop()

	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, hs.URL+"/api/v1/events", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	defer resp.Body.Close()

	sc := bufio.NewScanner(resp.Body)
	for sc.Scan() {
		if sc.Text() == "event:position" {
			return
		}
	}
	t.Fatalf("no position event: %v", sc.Err())
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{sequencer.ErrInvalidWhilePlaying, http.StatusConflict},
		{patterns.ErrExists, http.StatusConflict},
		{sequencer.ErrInvalidConfiguration, http.StatusBadRequest},
		{patterns.ErrInvalid, http.StatusBadRequest},
		{patterns.ErrNotFound, http.StatusNotFound},
		{sequencer.ErrDeviceUnavailable, http.StatusServiceUnavailable},
		{context.Canceled, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
