// Package net wires the HTTP surface: agent registration, read-only game
// queries, human voting, the admin controls, and the websocket endpoints.
package net

import (
	"encoding/json"
	"errors"
	"log"
	nethttp "net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"agent-arena/server/internal/game"
	"agent-arena/server/internal/net/ws"
	"agent-arena/server/internal/storage"
)

const (
	defaultLeaderboardLimit  = 10
	defaultTopQuestionLimit  = 10
	defaultRoundHistoryLimit = 20
	maxListLimit             = 100

	voterCookieName = "voter_key"
)

// HTTPHandlerConfig carries optional collaborators for the HTTP surface.
type HTTPHandlerConfig struct {
	Logger *log.Logger
}

// NewHTTPHandler builds the full route table.
func NewHTTPHandler(engine *game.Engine, store storage.Store, wsHandler *ws.Handler, cfg HTTPHandlerConfig) nethttp.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}

	mux := nethttp.NewServeMux()

	mux.HandleFunc("/health", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("ok"))
	})

	mux.HandleFunc("/state", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if r.Method != nethttp.MethodGet {
			httpError(w, "method not allowed", nethttp.StatusMethodNotAllowed)
			return
		}
		writeJSON(w, engine.GameState())
	})

	mux.HandleFunc("/leaderboard", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if r.Method != nethttp.MethodGet {
			httpError(w, "method not allowed", nethttp.StatusMethodNotAllowed)
			return
		}
		agents, err := store.TopAgents(r.Context(), listLimit(r, defaultLeaderboardLimit))
		if err != nil {
			logger.Printf("[http] leaderboard query failed: %v", err)
			httpError(w, "internal error", nethttp.StatusInternalServerError)
			return
		}
		entries := make([]leaderboardEntry, 0, len(agents))
		for rank, agent := range agents {
			entries = append(entries, leaderboardEntry{
				Rank:           rank + 1,
				ID:             agent.ID,
				Nickname:       agent.Nickname,
				Score:          agent.Score,
				Level:          agent.Level,
				Wins:           agent.Wins,
				Losses:         agent.Losses,
				QuestionsAsked: agent.QuestionsAsked,
				IsConnected:    agent.IsConnected,
			})
		}
		writeJSON(w, leaderboardResponse{Leaderboard: entries})
	})

	mux.HandleFunc("/questions/top", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if r.Method != nethttp.MethodGet {
			httpError(w, "method not allowed", nethttp.StatusMethodNotAllowed)
			return
		}
		questions, err := store.TopQuestions(r.Context(), listLimit(r, defaultTopQuestionLimit))
		if err != nil {
			logger.Printf("[http] top questions query failed: %v", err)
			httpError(w, "internal error", nethttp.StatusInternalServerError)
			return
		}
		entries := make([]questionEntry, 0, len(questions))
		for _, question := range questions {
			entries = append(entries, questionEntry{
				ID:          question.ID,
				Text:        question.Text,
				RoundNumber: question.RoundNumber,
				Likes:       question.Likes,
				Dislikes:    question.Dislikes,
			})
		}
		writeJSON(w, questionsResponse{Questions: entries})
	})

	mux.HandleFunc("/rounds", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if r.Method != nethttp.MethodGet {
			httpError(w, "method not allowed", nethttp.StatusMethodNotAllowed)
			return
		}
		rounds, err := store.RoundHistory(r.Context(), listLimit(r, defaultRoundHistoryLimit))
		if err != nil {
			logger.Printf("[http] round history query failed: %v", err)
			httpError(w, "internal error", nethttp.StatusInternalServerError)
			return
		}
		entries := make([]roundEntry, 0, len(rounds))
		for _, round := range rounds {
			entries = append(entries, roundEntry{
				RoundNumber:     round.RoundNumber,
				QuestionID:      round.QuestionID,
				MakerAgentID:    round.MakerAgentID,
				OCount:          round.OCount,
				XCount:          round.XCount,
				Outcome:         round.Outcome,
				DurationSeconds: round.DurationSeconds,
				PlayedAt:        round.CreatedAt.UnixMilli(),
			})
		}
		writeJSON(w, roundsResponse{Rounds: entries})
	})

	mux.HandleFunc("/agents", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if r.Method != nethttp.MethodPost {
			httpError(w, "method not allowed", nethttp.StatusMethodNotAllowed)
			return
		}
		defer r.Body.Close()

		var req registerRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, "invalid payload", nethttp.StatusBadRequest)
			return
		}
		req.Nickname = strings.TrimSpace(req.Nickname)
		if req.Nickname == "" {
			httpError(w, "nickname is required", nethttp.StatusBadRequest)
			return
		}

		apiKey := uuid.NewString()
		agent, err := store.CreateAgent(r.Context(), req.Nickname, apiKey)
		if err != nil {
			logger.Printf("[http] agent registration failed for %q: %v", req.Nickname, err)
			if errors.Is(err, storage.ErrConflict) {
				httpError(w, "nickname unavailable", nethttp.StatusConflict)
			} else {
				httpError(w, "internal error", nethttp.StatusInternalServerError)
			}
			return
		}

		logger.Printf("[http] registered agent %s (id %d)", agent.Nickname, agent.ID)
		data, err := json.Marshal(registerResponse{
			ID:       agent.ID,
			Nickname: agent.Nickname,
			APIKey:   apiKey,
		})
		if err != nil {
			httpError(w, "failed to encode", nethttp.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(nethttp.StatusCreated)
		w.Write(data)
	})

	mux.HandleFunc("/questions/", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		questionID, ok := voteQuestionID(r.URL.Path)
		if !ok {
			httpError(w, "not found", nethttp.StatusNotFound)
			return
		}
		if r.Method != nethttp.MethodPost {
			httpError(w, "method not allowed", nethttp.StatusMethodNotAllowed)
			return
		}
		defer r.Body.Close()

		var req voteRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, "invalid payload", nethttp.StatusBadRequest)
			return
		}
		voteType := storage.VoteType(req.Type)
		if voteType != storage.VoteThumbsUp && voteType != storage.VoteThumbsDown {
			httpError(w, "vote type must be thumbs_up or thumbs_down", nethttp.StatusBadRequest)
			return
		}

		voterKey := ensureVoterCookie(w, r)
		created, err := store.CreateVote(r.Context(), storage.Vote{
			QuestionID: questionID,
			VoterKey:   voterKey,
			Type:       voteType,
		})
		if err != nil {
			logger.Printf("[http] vote insert failed for question %d: %v", questionID, err)
			httpError(w, "internal error", nethttp.StatusInternalServerError)
			return
		}
		if !created {
			httpError(w, "already voted on this question", nethttp.StatusConflict)
			return
		}

		counts, err := store.VoteCounts(r.Context(), questionID)
		if err != nil {
			logger.Printf("[http] vote count query failed for question %d: %v", questionID, err)
			httpError(w, "internal error", nethttp.StatusInternalServerError)
			return
		}
		if err := store.UpdateQuestionVotes(r.Context(), questionID, counts.Likes, counts.Dislikes); err != nil {
			if !errors.Is(err, storage.ErrNotFound) {
				logger.Printf("[http] vote rollup failed for question %d: %v", questionID, err)
			}
		}

		writeJSON(w, voteResponse{
			QuestionID: questionID,
			Likes:      counts.Likes,
			Dislikes:   counts.Dislikes,
		})
	})

	mux.HandleFunc("/admin/next-round", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if r.Method != nethttp.MethodPost {
			httpError(w, "method not allowed", nethttp.StatusMethodNotAllowed)
			return
		}
		logger.Printf("[http] admin forced next round")
		engine.ForceNextRound()
		writeJSON(w, statusResponse{Status: "ok"})
	})

	mux.HandleFunc("/ws", wsHandler.HandleAgent)
	mux.HandleFunc("/spectator", wsHandler.HandleSpectator)

	return mux
}

type registerRequest struct {
	Nickname string `json:"nickname"`
}

type registerResponse struct {
	ID       int64  `json:"id"`
	Nickname string `json:"nickname"`
	APIKey   string `json:"api_key"`
}

type leaderboardEntry struct {
	Rank           int    `json:"rank"`
	ID             int64  `json:"id"`
	Nickname       string `json:"nickname"`
	Score          int    `json:"score"`
	Level          int    `json:"level"`
	Wins           int    `json:"wins"`
	Losses         int    `json:"losses"`
	QuestionsAsked int    `json:"questions_asked"`
	IsConnected    bool   `json:"is_connected"`
}

type leaderboardResponse struct {
	Leaderboard []leaderboardEntry `json:"leaderboard"`
}

type questionEntry struct {
	ID          int64  `json:"id"`
	Text        string `json:"text"`
	RoundNumber int    `json:"round_number"`
	Likes       int    `json:"likes"`
	Dislikes    int    `json:"dislikes"`
}

type questionsResponse struct {
	Questions []questionEntry `json:"questions"`
}

type roundEntry struct {
	RoundNumber     int    `json:"round_number"`
	QuestionID      int64  `json:"question_id"`
	MakerAgentID    *int64 `json:"maker_agent_id"`
	OCount          int    `json:"o_count"`
	XCount          int    `json:"x_count"`
	Outcome         string `json:"outcome"`
	DurationSeconds int    `json:"duration_seconds"`
	PlayedAt        int64  `json:"played_at"`
}

type roundsResponse struct {
	Rounds []roundEntry `json:"rounds"`
}

type voteRequest struct {
	Type string `json:"type"`
}

type voteResponse struct {
	QuestionID int64 `json:"question_id"`
	Likes      int   `json:"likes"`
	Dislikes   int   `json:"dislikes"`
}

type statusResponse struct {
	Status string `json:"status"`
}

// voteQuestionID parses /questions/{id}/vote.
func voteQuestionID(path string) (int64, bool) {
	rest, ok := strings.CutPrefix(path, "/questions/")
	if !ok {
		return 0, false
	}
	idPart, ok := strings.CutSuffix(rest, "/vote")
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseInt(idPart, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// ensureVoterCookie returns the caller's voter key, minting and setting a
// fresh one when the request carries none.
func ensureVoterCookie(w nethttp.ResponseWriter, r *nethttp.Request) string {
	if cookie, err := r.Cookie(voterCookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	key := uuid.NewString()
	nethttp.SetCookie(w, &nethttp.Cookie{
		Name:     voterCookieName,
		Value:    key,
		Path:     "/",
		Expires:  time.Now().Add(365 * 24 * time.Hour),
		HttpOnly: true,
	})
	return key
}

func listLimit(r *nethttp.Request, fallback int) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return fallback
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return fallback
	}
	if limit > maxListLimit {
		return maxListLimit
	}
	return limit
}

func writeJSON(w nethttp.ResponseWriter, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		httpError(w, "failed to encode", nethttp.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}

func httpError(w nethttp.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
