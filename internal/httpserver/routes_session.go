// internal/httpserver/routes_session.go
//
// HTTP routes for game sessions, mounted under /session:
//   - POST /session/new               → create a session (round 1, target 50)
//   - GET  /session/{id}              → current state
//   - POST /session/{id}/game         → start a new game (round 1, total 0)
//   - POST /session/{id}/round        → advance the round and fetch a new target
//   - POST /session/{id}/round/retry  → refetch the target after a failed round
//   - POST /session/{id}/guess        → score a guess
//   - POST /session/{id}/finish       → record the game total and start over
//
// Sessions live in the in-memory store; only finished games are persisted.

package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/bullseye/internal/game"
	"github.com/robalobadob/bullseye/internal/randomapi"
	"github.com/robalobadob/bullseye/internal/scores"
	"github.com/robalobadob/bullseye/internal/store"
)

type ctxSessionKey struct{}

func sessionFrom(ctx context.Context) *game.Session {
	s, _ := ctx.Value(ctxSessionKey{}).(*game.Session)
	return s
}

// mountSessions registers all /session routes.
func (s *Server) mountSessions(r chi.Router) {
	r.Route("/session", func(r chi.Router) {
		r.Post("/new", s.handleNewSession)
		r.Route("/{id}", func(r chi.Router) {
			r.Use(s.loadSession)
			r.Get("/", s.handleGetSession)
			r.Post("/game", s.handleNewGame)
			r.Post("/round", s.handleNewRound)
			r.Post("/round/retry", s.handleRetryRound)
			r.Post("/guess", s.handleGuess)
			r.Post("/finish", s.handleFinish)
		})
	})
}

// loadSession resolves {id} into the request context or 404s.
func (s *Server) loadSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, err := s.store.Get(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			if !errors.Is(err, store.ErrNotFound) {
				log.Error().Err(err).Msg("load session")
			}
			writeError(w, http.StatusNotFound, "session_not_found")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxSessionKey{}, sess)))
	})
}

func (s *Server) handleNewSession(w http.ResponseWriter, r *http.Request) {
	sess := game.New(s.source, game.WithFallback(s.cfg.Fallback))
	if err := s.store.Save(r.Context(), sess); err != nil {
		log.Error().Err(err).Msg("save session")
		writeError(w, http.StatusInternalServerError, "save_failed")
		return
	}
	writeJSON(w, http.StatusCreated, sess.Snapshot())
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, sessionFrom(r.Context()).Snapshot())
}

func (s *Server) handleNewGame(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())
	sess.StartNewGame()
	writeJSON(w, http.StatusOK, sess.Snapshot())
}

// roundRes is returned by the round endpoints.
type roundRes struct {
	State    game.State `json:"state"`
	Fallback bool       `json:"fallback"`
}

func (s *Server) handleNewRound(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())
	res, err := sess.NextRound(r.Context())
	s.writeRound(w, sess, res, err)
}

func (s *Server) handleRetryRound(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())
	res, err := sess.Retry(r.Context())
	s.writeRound(w, sess, res, err)
}

func (s *Server) writeRound(w http.ResponseWriter, sess *game.Session, res game.RoundResult, err error) {
	if err != nil {
		status, code := roundErrorStatus(err)
		log.Warn().Err(err).Str("sessionId", sess.ID).Int("round", res.Round).Msg("round not ready")
		writeJSON(w, status, map[string]any{"error": code, "state": sess.Snapshot()})
		return
	}
	writeJSON(w, http.StatusOK, roundRes{State: sess.Snapshot(), Fallback: res.Fallback})
}

// roundErrorStatus maps round failures onto HTTP status + error code.
func roundErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, game.ErrFetchInFlight):
		return http.StatusConflict, "round_in_flight"
	case errors.Is(err, game.ErrNothingToRetry):
		return http.StatusConflict, "nothing_to_retry"
	case errors.Is(err, game.ErrRoundSuperseded):
		return http.StatusConflict, "round_superseded"
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return http.StatusGatewayTimeout, "target_timeout"
	case errors.Is(err, randomapi.ErrDecode):
		return http.StatusBadGateway, "target_malformed"
	case errors.Is(err, randomapi.ErrEmptyResult):
		return http.StatusBadGateway, "target_empty"
	default:
		return http.StatusBadGateway, "target_unavailable"
	}
}

// guessReq/Res payloads for POST /session/{id}/guess.
type guessReq struct {
	Guess *int `json:"guess"`
}
type guessRes struct {
	Difference int `json:"difference"`
	ScoreRound int `json:"scoreRound"`
	ScoreTotal int `json:"scoreTotal"`
	Round      int `json:"round"`
}

func (s *Server) handleGuess(w http.ResponseWriter, r *http.Request) {
	var req guessReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Guess == nil {
		writeError(w, http.StatusBadRequest, "bad_json")
		return
	}
	sess := sessionFrom(r.Context())
	diff, err := sess.Check(*req.Guess)
	switch {
	case errors.Is(err, game.ErrGuessOutOfRange):
		writeError(w, http.StatusBadRequest, "guess_out_of_range")
		return
	case errors.Is(err, game.ErrRoundPending):
		writeError(w, http.StatusConflict, "round_pending")
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, "guess_failed")
		return
	}
	st := sess.Snapshot()
	writeJSON(w, http.StatusOK, guessRes{
		Difference: diff,
		ScoreRound: st.ScoreRound,
		ScoreTotal: st.ScoreTotal,
		Round:      st.Round,
	})
}

// handleFinish persists the current game total and resets the session.
// Signed-in players get the result attributed to their account.
func (s *Server) handleFinish(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())
	var saved scores.Result
	err := sess.FinishGame(func(st game.State) error {
		res := scores.Result{SessionID: st.ID, Rounds: st.Round, ScoreTotal: st.ScoreTotal}
		if me := userFrom(r.Context()); me != nil {
			res.UserID = me.ID
		}
		var err error
		saved, err = s.scores.Record(r.Context(), res)
		return err
	})
	switch {
	case errors.Is(err, game.ErrNothingToFinish):
		writeError(w, http.StatusConflict, "nothing_to_record")
		return
	case err != nil:
		log.Error().Err(err).Str("sessionId", sess.ID).Msg("record result")
		writeError(w, http.StatusInternalServerError, "record_failed")
		return
	}
	writeJSON(w, http.StatusOK, saved)
}
