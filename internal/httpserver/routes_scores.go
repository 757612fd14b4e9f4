package httpserver

import (
	"net/http"
	"strconv"

	"github.com/rs/zerolog/log"
)

// handleLeaderboard returns the top finished games (?limit=n, default 20).
func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	rows, err := s.scores.Leaderboard(r.Context(), queryInt(r, "limit"))
	if err != nil {
		log.Error().Err(err).Msg("leaderboard")
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

// handleMyScores lists the signed-in player's recent results.
func (s *Server) handleMyScores(w http.ResponseWriter, r *http.Request) {
	me := userFrom(r.Context())
	out, err := s.scores.ForUser(r.Context(), me.ID, queryInt(r, "limit"))
	if err != nil {
		log.Error().Err(err).Str("user", me.ID).Msg("user scores")
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// queryInt returns 0 for missing or malformed values.
func queryInt(r *http.Request, key string) int {
	n, _ := strconv.Atoi(r.URL.Query().Get(key))
	return n
}
