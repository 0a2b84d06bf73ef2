package status

import (
	"encoding/json"
	"errors"
	"lobby-autohost/applog"
	"lobby-autohost/lobby"
	"lobby-autohost/util"
	"net/http"

	"go.uber.org/zap"
)

type errorResponse struct {
	Error string `json:"error"`
}

type balanceRequest struct {
	Shuffle *bool `json:"shuffle"`
}

type swapRequest struct {
	A string `json:"a"`
	B string `json:"b"`
}

type moveRequest struct {
	Player string `json:"player"`
	Team   int    `json:"team"`
}

func writeJson(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, lobby.ErrRatingsPending):
		return http.StatusAccepted
	case errors.Is(err, lobby.ErrNoLobby):
		return http.StatusNotFound
	case errors.Is(err, lobby.ErrNotHost):
		return http.StatusForbidden
	case errors.Is(err, lobby.ErrAlreadyBalancing):
		return http.StatusConflict
	case errors.Is(err, lobby.ErrInvalidSwapTarget), errors.Is(err, lobby.ErrUnknownTeam):
		return http.StatusBadRequest
	case errors.Is(err, lobby.ErrStopped):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeResult(w http.ResponseWriter, r *http.Request, err error) {
	if err == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	code := statusOf(err)
	if code >= http.StatusInternalServerError {
		applog.Warn("Status API request failed",
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	}
	writeJson(w, code, errorResponse{Error: err.Error()})
}

func decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if r.ContentLength == 0 {
		return true
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJson(w, http.StatusBadRequest, errorResponse{Error: "bad json"})
		return false
	}
	return true
}

func healthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	state, err := s.controller.View(r.Context())
	if err != nil {
		writeResult(w, r, err)
		return
	}
	if !state.Ready {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) getLobby(w http.ResponseWriter, r *http.Request) {
	state, err := s.controller.View(r.Context())
	if err != nil {
		writeResult(w, r, err)
		return
	}
	writeJson(w, http.StatusOK, state)
}

func (s *Server) postBalance(w http.ResponseWriter, r *http.Request) {
	var req balanceRequest
	if !decode(w, r, &req) {
		return
	}

	if util.PtrValueOrDef(req.Shuffle, false) {
		writeResult(w, r, s.controller.Shuffle(r.Context()))
		return
	}
	writeResult(w, r, s.controller.Balance(r.Context()))
}

func (s *Server) postShuffle(w http.ResponseWriter, r *http.Request) {
	writeResult(w, r, s.controller.Shuffle(r.Context()))
}

func (s *Server) postSwap(w http.ResponseWriter, r *http.Request) {
	var req swapRequest
	if !decode(w, r, &req) {
		return
	}
	if req.A == "" || req.B == "" {
		writeJson(w, http.StatusBadRequest, errorResponse{Error: "both players are required"})
		return
	}
	writeResult(w, r, s.controller.Swap(r.Context(), req.A, req.B))
}

func (s *Server) postMove(w http.ResponseWriter, r *http.Request) {
	var req moveRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Player == "" {
		writeJson(w, http.StatusBadRequest, errorResponse{Error: "player is required"})
		return
	}
	writeResult(w, r, s.controller.Move(r.Context(), req.Player, req.Team))
}

func (s *Server) postLeave(w http.ResponseWriter, r *http.Request) {
	writeResult(w, r, s.controller.Abandon(r.Context()))
}
