package server

import (
	"encoding/json"
	"net/http"

	"tradeagent/internal/agent"
	"tradeagent/internal/conversation"

	"github.com/google/uuid"
)

// HistoryPair is one [human, assistant] exchange as the client sends it
type HistoryPair [2]string

type chatRequest struct {
	Input       string        `json:"input"`
	ChatHistory []HistoryPair `json:"chat_history"`
	Avatar      string        `json:"avatar,omitempty"`
}

type chatResponse struct {
	Output      string        `json:"output"`
	ChatHistory []HistoryPair `json:"chat_history"`
}

type avatarsResponse struct {
	Avatars []agent.Persona `json:"avatars"`
}

type errorResponse struct {
	Detail string `json:"detail"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Input == "" {
		writeError(w, http.StatusBadRequest, "input is required")
		return
	}

	persona := req.Avatar
	if persona == "" {
		persona = s.cfg.DefaultPersona
	}
	loop, err := s.factory.CreateLoop(persona)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	state := conversation.FromTurns(uuid.NewString(), turnsOf(req.ChatHistory))
	output, err := loop.Invoke(r.Context(), req.Input, state.Turns())
	if err != nil {
		s.log.Error("chat failed: %v", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	_ = state.Append(r.Context(), req.Input, output)

	writeJSON(w, http.StatusOK, chatResponse{Output: output, ChatHistory: pairsOf(state.Turns())})
}

func (s *Server) handleAvatars(w http.ResponseWriter, r *http.Request) {
	personas, err := agent.ListPersonas(s.cfg.AvatarsDir)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, avatarsResponse{Avatars: personas})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"sessions": s.SessionCount(),
	})
}

func turnsOf(pairs []HistoryPair) []conversation.Turn {
	turns := make([]conversation.Turn, 0, len(pairs))
	for _, p := range pairs {
		turns = append(turns, conversation.Turn{Human: p[0], Assistant: p[1]})
	}
	return turns
}

func pairsOf(turns []conversation.Turn) []HistoryPair {
	pairs := make([]HistoryPair, 0, len(turns))
	for _, t := range turns {
		pairs = append(pairs, HistoryPair{t.Human, t.Assistant})
	}
	return pairs
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, errorResponse{Detail: detail})
}
