// Package httpserver exposes the game API as JSON over HTTP. It is a
// thin adapter: request decoding, identity resolution and sentinel
// error mapping; all behavior lives in the services.
package httpserver

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/kmatveev/daily-sudoku/internal/errs"
	"github.com/kmatveev/daily-sudoku/internal/grid"
	"github.com/kmatveev/daily-sudoku/internal/model"
	"github.com/kmatveev/daily-sudoku/internal/service"
)

// Server wires services into HTTP handlers.
type Server struct {
	auth       service.AuthService
	timer      service.TimerService
	completion service.CompletionService
	migration  service.MigrationService
	signKey    []byte
	log        *zap.Logger
}

// New constructs a Server with injected services.
func New(auth service.AuthService, timer service.TimerService, completion service.CompletionService, migration service.MigrationService, signKey []byte, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{auth: auth, timer: timer, completion: completion, migration: migration, signKey: signKey, log: log}
}

// Routes returns the complete handler chain.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/register", s.handleRegister)
	mux.HandleFunc("POST /api/auth/login", s.handleLogin)
	mux.HandleFunc("GET /api/puzzle/today", s.handleToday)
	mux.HandleFunc("POST /api/puzzle/validate", s.handleValidateRules)
	mux.HandleFunc("POST /api/puzzle/check", s.handleCheckSolution)
	mux.HandleFunc("POST /api/puzzle/complete", s.handleComplete)
	mux.HandleFunc("POST /api/timer/start", s.handleTimerStart)
	mux.HandleFunc("POST /api/timer/pause", s.handleTimerPause)
	mux.HandleFunc("POST /api/timer/resume", s.handleTimerResume)
	mux.HandleFunc("GET /api/timer/elapsed", s.handleTimerElapsed)
	mux.HandleFunc("GET /api/leaderboard", s.handleLeaderboard)

	var h http.Handler = mux
	h = Identify(s.signKey)(h)
	h = Logging(s.log)(h)
	h = Recover(s.log)(h)
	return h
}

// --- Auth ---

type registerRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "empty username/password")
		return
	}
	userID, err := s.auth.Register(r.Context(), req.Username, req.Password)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"userId": userID})
}

type loginRequest struct {
	Username   string          `json:"username"`
	Password   string          `json:"password"`
	GuestState json.RawMessage `json:"guestState,omitempty"`
}

// handleLogin authenticates and, when the client hands over cached
// guest state, runs the one-shot migration before responding. Migration
// never fails the login.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request")
		return
	}
	tokens, user, err := s.auth.LoginWithIP(r.Context(), req.Username, req.Password, clientIP(r))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	resp := map[string]any{
		"userId":      user.ID.String(),
		"accessToken": tokens.AccessToken,
		"expiresAt":   tokens.ExpiresAt.Format(time.RFC3339),
	}
	if len(req.GuestState) > 0 {
		mig := s.migration.Migrate(r.Context(), user.ID, req.GuestState)
		resp["migration"] = map[string]any{
			"completedCount":  mig.CompletedCount,
			"inProgressCount": mig.InProgressCount,
			"highestRank":     mig.HighestRank,
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// --- Puzzle ---

func (s *Server) handleToday(w http.ResponseWriter, r *http.Request) {
	p, err := s.completion.TodayPuzzle(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id":         p.ID.String(),
		"puzzleDate": p.PuzzleDate.Format("2006-01-02"),
		"clues":      p.Clues,
		"difficulty": p.Difficulty,
	})
}

type gridRequest struct {
	PuzzleID string     `json:"puzzleId,omitempty"`
	Grid     model.Grid `json:"grid"`
}

// handleValidateRules answers the client's live rule self-check. It
// never touches the datastore, so no admission control applies.
func (s *Server) handleValidateRules(w http.ResponseWriter, r *http.Request) {
	var req gridRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request")
		return
	}
	if !grid.IsValidPartialGrid(req.Grid) {
		writeError(w, http.StatusBadRequest, errs.ErrInvalidGrid.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"isValid": grid.IsValidSudoku(req.Grid)})
}

// handleCheckSolution compares a full grid against the stored solution.
// The response carries the boolean outcome only.
func (s *Server) handleCheckSolution(w http.ResponseWriter, r *http.Request) {
	var req gridRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request")
		return
	}
	puzzleID, err := uuid.FromString(req.PuzzleID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad puzzle id")
		return
	}
	token := clientIP(r)
	if id, ok := UserIDFromCtx(r.Context()); ok {
		token = id.String()
	}
	correct, err := s.completion.ValidateSolution(r.Context(), token, puzzleID, req.Grid)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"correct": correct})
}

type completeRequest struct {
	PuzzleID       string          `json:"puzzleId"`
	Entries        model.Grid      `json:"entries"`
	CompletionData json.RawMessage `json:"completionData,omitempty"`
}

func (s *Server) handleComplete(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserIDFromCtx(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req completeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request")
		return
	}
	puzzleID, err := uuid.FromString(req.PuzzleID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad puzzle id")
		return
	}
	res, err := s.completion.CompletePuzzle(r.Context(), userID, puzzleID, req.Entries, req.CompletionData)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"completionSeconds": res.CompletionSeconds,
		"rank":              res.Rank,
		"flaggedForReview":  res.FlaggedForReview,
	})
}

// --- Timer ---

type timerRequest struct {
	PuzzleID string `json:"puzzleId"`
}

func (s *Server) timerIDs(w http.ResponseWriter, r *http.Request) (uuid.UUID, uuid.UUID, bool) {
	userID, ok := UserIDFromCtx(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return uuid.Nil, uuid.Nil, false
	}
	var req timerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request")
		return uuid.Nil, uuid.Nil, false
	}
	puzzleID, err := uuid.FromString(req.PuzzleID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad puzzle id")
		return uuid.Nil, uuid.Nil, false
	}
	return userID, puzzleID, true
}

func (s *Server) handleTimerStart(w http.ResponseWriter, r *http.Request) {
	userID, puzzleID, ok := s.timerIDs(w, r)
	if !ok {
		return
	}
	sess, err := s.timer.Start(r.Context(), userID, puzzleID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeSession(w, sess)
}

func (s *Server) handleTimerPause(w http.ResponseWriter, r *http.Request) {
	userID, puzzleID, ok := s.timerIDs(w, r)
	if !ok {
		return
	}
	sess, err := s.timer.Pause(r.Context(), userID, puzzleID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeSession(w, sess)
}

func (s *Server) handleTimerResume(w http.ResponseWriter, r *http.Request) {
	userID, puzzleID, ok := s.timerIDs(w, r)
	if !ok {
		return
	}
	sess, err := s.timer.Resume(r.Context(), userID, puzzleID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeSession(w, sess)
}

func (s *Server) handleTimerElapsed(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromCtx(r.Context())
	puzzleID, err := uuid.FromString(r.URL.Query().Get("puzzleId"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad puzzle id")
		return
	}
	secs, err := s.timer.Elapsed(r.Context(), userID, puzzleID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"elapsedSeconds": secs})
}

// --- Leaderboard ---

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	puzzleID, err := uuid.FromString(r.URL.Query().Get("puzzleId"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad puzzle id")
		return
	}
	entries, err := s.completion.Leaderboard(r.Context(), puzzleID, 0)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	out := make([]map[string]any, 0, len(entries))
	for _, e := range entries {
		out = append(out, map[string]any{
			"userId":            e.UserID.String(),
			"rank":              e.Rank,
			"completionSeconds": e.CompletionSeconds,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": out})
}

// --- Helpers ---

func writeSession(w http.ResponseWriter, sess *model.Session) {
	writeJSON(w, http.StatusOK, map[string]any{
		"puzzleId":          sess.PuzzleID.String(),
		"startedAt":         sess.StartedAt.Format(time.RFC3339),
		"isComplete":        sess.IsComplete,
		"completionSeconds": sess.CompletionSeconds,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"error": msg})
}

// writeServiceError maps sentinels to statuses. Unexpected errors are
// logged with context and surface as a generic failure.
func (s *Server) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, errs.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, "unauthorized")
	case errors.Is(err, errs.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, errs.ErrInvalidGrid):
		writeError(w, http.StatusBadRequest, errs.ErrInvalidGrid.Error())
	case errors.Is(err, errs.ErrRateLimited):
		writeError(w, http.StatusTooManyRequests, "rate limited")
	case errors.Is(err, errs.ErrDuplicateSubmission):
		writeError(w, http.StatusConflict, "already completed")
	case errors.Is(err, errs.ErrTimerNotStarted):
		writeError(w, http.StatusConflict, "timer not started")
	case errors.Is(err, errs.ErrAlreadyExists):
		writeError(w, http.StatusConflict, "already exists")
	default:
		s.log.Error("request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// clientIP extracts the caller address for guest rate-limit tokens.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(first)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
