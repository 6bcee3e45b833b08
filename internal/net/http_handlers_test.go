package net

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"

	"agent-arena/server/internal/game"
	"agent-arena/server/internal/net/ws"
	"agent-arena/server/internal/storage"
	"agent-arena/server/internal/storage/memory"
)

func newTestHandler(t *testing.T) (http.Handler, *memory.Store) {
	t.Helper()
	store := memory.New()
	logger := log.New(io.Discard, "", 0)
	engine := game.New(store, nil, game.DefaultConfig(), game.Deps{Logger: logger})
	engine.Initialize(context.Background())
	hub := ws.NewHub(logger)
	wsHandler := ws.NewHandler(hub, engine, store, logger)
	return NewHTTPHandler(engine, store, wsHandler, HTTPHandlerConfig{Logger: logger}), store
}

func TestHealthEndpoint(t *testing.T) {
	handler, _ := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.Code)
	}
	if body := resp.Body.String(); body != "ok" {
		t.Fatalf("expected body %q, got %q", "ok", body)
	}
}

func TestRegisterAgentIssuesAPIKey(t *testing.T) {
	handler, store := newTestHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/agents", bytes.NewReader([]byte(`{"nickname":"quizbot"}`)))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", resp.Code, resp.Body.String())
	}

	var payload struct {
		ID       int64  `json:"id"`
		Nickname string `json:"nickname"`
		APIKey   string `json:"api_key"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to decode registration payload: %v", err)
	}
	if payload.ID == 0 || payload.Nickname != "quizbot" || payload.APIKey == "" {
		t.Fatalf("incomplete registration payload: %+v", payload)
	}

	agent, err := store.GetAgentByAPIKey(context.Background(), payload.APIKey)
	if err != nil {
		t.Fatalf("issued key does not resolve: %v", err)
	}
	if agent.ID != payload.ID {
		t.Fatalf("key resolves to agent %d, want %d", agent.ID, payload.ID)
	}
}

func TestRegisterAgentRejectsDuplicateNickname(t *testing.T) {
	handler, _ := newTestHandler(t)

	for i, want := range []int{http.StatusCreated, http.StatusConflict} {
		req := httptest.NewRequest(http.MethodPost, "/agents", bytes.NewReader([]byte(`{"nickname":"quizbot"}`)))
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, req)
		if resp.Code != want {
			t.Fatalf("request %d: expected status %d, got %d", i, want, resp.Code)
		}
	}
}

// brokenStore simulates a backend failure on agent creation.
type brokenStore struct {
	storage.Store
}

func (brokenStore) CreateAgent(context.Context, string, string) (storage.Agent, error) {
	return storage.Agent{}, errors.New("disk I/O error")
}

func TestRegisterAgentReportsBackendFailure(t *testing.T) {
	store := brokenStore{Store: memory.New()}
	logger := log.New(io.Discard, "", 0)
	engine := game.New(store, nil, game.DefaultConfig(), game.Deps{Logger: logger})
	engine.Initialize(context.Background())
	hub := ws.NewHub(logger)
	wsHandler := ws.NewHandler(hub, engine, store, logger)
	handler := NewHTTPHandler(engine, store, wsHandler, HTTPHandlerConfig{Logger: logger})

	req := httptest.NewRequest(http.MethodPost, "/agents", bytes.NewReader([]byte(`{"nickname":"quizbot"}`)))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusInternalServerError {
		t.Fatalf("expected status 500, got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestRegisterAgentRequiresNickname(t *testing.T) {
	handler, _ := newTestHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/agents", bytes.NewReader([]byte(`{"nickname":"  "}`)))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", resp.Code)
	}
}

func TestStateEndpointReturnsSnapshot(t *testing.T) {
	handler, _ := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/state", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.Code)
	}

	var payload map[string]any
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to decode state payload: %v", err)
	}
	if phase, ok := payload["phase"].(string); !ok || phase != "selecting" {
		t.Fatalf("expected selecting phase, got %v", payload["phase"])
	}
	if _, ok := payload["agents"]; !ok {
		t.Fatalf("state payload missing agents: %s", resp.Body.String())
	}
}

func TestLeaderboardOrdersByScore(t *testing.T) {
	handler, store := newTestHandler(t)
	ctx := context.Background()

	low, _ := store.CreateAgent(ctx, "low", "key-low")
	high, _ := store.CreateAgent(ctx, "high", "key-high")
	if err := store.UpdateAgentScore(ctx, low.ID, 10); err != nil {
		t.Fatalf("UpdateAgentScore: %v", err)
	}
	if err := store.UpdateAgentScore(ctx, high.ID, 50); err != nil {
		t.Fatalf("UpdateAgentScore: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/leaderboard", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.Code)
	}

	var payload struct {
		Leaderboard []struct {
			Rank     int    `json:"rank"`
			Nickname string `json:"nickname"`
			Score    int    `json:"score"`
		} `json:"leaderboard"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to decode leaderboard: %v", err)
	}
	if len(payload.Leaderboard) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(payload.Leaderboard))
	}
	if payload.Leaderboard[0].Nickname != "high" || payload.Leaderboard[0].Rank != 1 {
		t.Fatalf("unexpected first entry: %+v", payload.Leaderboard[0])
	}
	if payload.Leaderboard[1].Nickname != "low" || payload.Leaderboard[1].Rank != 2 {
		t.Fatalf("unexpected second entry: %+v", payload.Leaderboard[1])
	}
}

func TestVoteOncePerVoter(t *testing.T) {
	handler, store := newTestHandler(t)
	ctx := context.Background()

	questionID, err := store.CreateQuestion(ctx, storage.NewQuestion{Text: "Robots dream", RoundNumber: 1})
	if err != nil {
		t.Fatalf("CreateQuestion: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/questions/1/vote", bytes.NewReader([]byte(`{"type":"thumbs_up"}`)))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", resp.Code, resp.Body.String())
	}

	var payload struct {
		QuestionID int64 `json:"question_id"`
		Likes      int   `json:"likes"`
		Dislikes   int   `json:"dislikes"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to decode vote payload: %v", err)
	}
	if payload.QuestionID != questionID || payload.Likes != 1 || payload.Dislikes != 0 {
		t.Fatalf("unexpected vote payload: %+v", payload)
	}

	cookies := resp.Result().Cookies()
	if len(cookies) == 0 {
		t.Fatal("expected a voter cookie on first vote")
	}

	// Same voter again: rejected.
	repeat := httptest.NewRequest(http.MethodPost, "/questions/1/vote", bytes.NewReader([]byte(`{"type":"thumbs_down"}`)))
	for _, cookie := range cookies {
		repeat.AddCookie(cookie)
	}
	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, repeat)
	if resp.Code != http.StatusConflict {
		t.Fatalf("expected status 409 for repeat vote, got %d", resp.Code)
	}

	// Vote tallies roll up onto the question record.
	questions, err := store.TopQuestions(ctx, 0)
	if err != nil {
		t.Fatalf("TopQuestions: %v", err)
	}
	if len(questions) != 1 || questions[0].Likes != 1 || questions[0].Dislikes != 0 {
		t.Fatalf("unexpected rollup: %+v", questions)
	}
}

func TestVoteValidation(t *testing.T) {
	handler, store := newTestHandler(t)
	if _, err := store.CreateQuestion(context.Background(), storage.NewQuestion{Text: "Edge cases", RoundNumber: 1}); err != nil {
		t.Fatalf("CreateQuestion: %v", err)
	}

	cases := []struct {
		name string
		path string
		body string
		want int
	}{
		{"bad vote type", "/questions/1/vote", `{"type":"sideways"}`, http.StatusBadRequest},
		{"malformed path", "/questions/abc/vote", `{"type":"thumbs_up"}`, http.StatusNotFound},
		{"missing suffix", "/questions/1", `{"type":"thumbs_up"}`, http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, tc.path, bytes.NewReader([]byte(tc.body)))
			resp := httptest.NewRecorder()
			handler.ServeHTTP(resp, req)
			if resp.Code != tc.want {
				t.Fatalf("expected status %d, got %d", tc.want, resp.Code)
			}
		})
	}
}

func TestRoundHistoryEndpoint(t *testing.T) {
	handler, store := newTestHandler(t)
	ctx := context.Background()

	for round := 1; round <= 3; round++ {
		err := store.CreateRound(ctx, storage.NewRound{
			RoundNumber: round,
			QuestionID:  int64(round),
			OCount:      1,
			XCount:      2,
			Outcome:     "O",
		})
		if err != nil {
			t.Fatalf("CreateRound: %v", err)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/rounds?limit=2", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.Code)
	}

	var payload struct {
		Rounds []struct {
			RoundNumber int    `json:"round_number"`
			Outcome     string `json:"outcome"`
		} `json:"rounds"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to decode rounds payload: %v", err)
	}
	if len(payload.Rounds) != 2 {
		t.Fatalf("expected 2 rounds, got %d", len(payload.Rounds))
	}
	if payload.Rounds[0].RoundNumber != 3 {
		t.Fatalf("expected newest round first, got %d", payload.Rounds[0].RoundNumber)
	}
}

func TestAdminNextRound(t *testing.T) {
	handler, _ := newTestHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/admin/next-round", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.Code)
	}

	get := httptest.NewRequest(http.MethodGet, "/admin/next-round", nil)
	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, get)
	if resp.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected status 405 for GET, got %d", resp.Code)
	}
}
