package httpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/kmatveev/daily-sudoku/internal/errs"
	"github.com/kmatveev/daily-sudoku/internal/model"
	"github.com/kmatveev/daily-sudoku/internal/service"
)

type fakeAuth struct {
	tokens model.Tokens
	user   model.User
	err    error
}

var _ service.AuthService = (*fakeAuth)(nil)

func (f *fakeAuth) Register(context.Context, string, string) (string, error) {
	return f.user.ID.String(), f.err
}

func (f *fakeAuth) LoginWithIP(context.Context, string, string, string) (model.Tokens, model.User, error) {
	return f.tokens, f.user, f.err
}

type fakeTimer struct {
	session *model.Session
	elapsed *int64
	err     error
}

var _ service.TimerService = (*fakeTimer)(nil)

func (f *fakeTimer) Start(context.Context, uuid.UUID, uuid.UUID) (*model.Session, error) {
	return f.session, f.err
}
func (f *fakeTimer) Pause(context.Context, uuid.UUID, uuid.UUID) (*model.Session, error) {
	return f.session, f.err
}
func (f *fakeTimer) Resume(context.Context, uuid.UUID, uuid.UUID) (*model.Session, error) {
	return f.session, f.err
}
func (f *fakeTimer) Elapsed(context.Context, uuid.UUID, uuid.UUID) (*int64, error) {
	return f.elapsed, f.err
}
func (f *fakeTimer) Submit(context.Context, uuid.UUID, uuid.UUID, []byte) (*model.Session, error) {
	return f.session, f.err
}

type fakeCompletion struct {
	correct bool
	result  *model.CompletionResult
	today   *model.PuzzleSummary
	entries []model.LeaderboardEntry
	err     error
}

var _ service.CompletionService = (*fakeCompletion)(nil)

func (f *fakeCompletion) ValidateSolution(context.Context, string, uuid.UUID, model.Grid) (bool, error) {
	return f.correct, f.err
}
func (f *fakeCompletion) CompletePuzzle(context.Context, uuid.UUID, uuid.UUID, model.Grid, []byte) (*model.CompletionResult, error) {
	return f.result, f.err
}
func (f *fakeCompletion) TodayPuzzle(context.Context) (*model.PuzzleSummary, error) {
	return f.today, f.err
}
func (f *fakeCompletion) Leaderboard(context.Context, uuid.UUID, int) ([]model.LeaderboardEntry, error) {
	return f.entries, f.err
}

type fakeMigration struct {
	res   *model.MigrationResult
	calls int
}

var _ service.MigrationService = (*fakeMigration)(nil)

func (f *fakeMigration) Migrate(context.Context, uuid.UUID, []byte) *model.MigrationResult {
	f.calls++
	return f.res
}

var testKey = []byte("server-test-key")

func newServer(auth service.AuthService, timer service.TimerService, completion service.CompletionService, migration service.MigrationService) http.Handler {
	return New(auth, timer, completion, migration, testKey, zap.NewNop()).Routes()
}

func authed(t *testing.T, req *http.Request, userID uuid.UUID) *http.Request {
	t.Helper()
	req.Header.Set("Authorization", "Bearer "+signToken(t, testKey, userID.String()))
	return req
}

func TestHandleCheckSolution_ResponseCarriesOnlyOutcome(t *testing.T) {
	t.Parallel()

	for _, correct := range []bool{true, false} {
		h := newServer(&fakeAuth{}, &fakeTimer{}, &fakeCompletion{correct: correct}, &fakeMigration{})

		body := `{"puzzleId":"` + uuid.Must(uuid.NewV4()).String() + `","grid":[[1]]}`
		req := httptest.NewRequest(http.MethodPost, "/api/puzzle/check", strings.NewReader(body))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
		}
		var resp map[string]any
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode: %v", err)
		}
		// regardless of outcome only the boolean leaves the server
		if len(resp) != 1 {
			t.Fatalf("payload must carry the outcome only, got %v", resp)
		}
		if got, ok := resp["correct"].(bool); !ok || got != correct {
			t.Fatalf("want correct=%v, got %v", correct, resp)
		}
	}
}

func TestHandleValidateRules_NoAuthRequired(t *testing.T) {
	t.Parallel()
	h := newServer(&fakeAuth{}, &fakeTimer{}, &fakeCompletion{}, &fakeMigration{})

	g := make([][]int, 9)
	for i := range g {
		g[i] = make([]int, 9)
	}
	g[0][0], g[0][1] = 5, 5 // row conflict
	body, _ := json.Marshal(map[string]any{"grid": g})

	req := httptest.NewRequest(http.MethodPost, "/api/puzzle/validate", strings.NewReader(string(body)))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
	var resp struct {
		IsValid bool `json:"isValid"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.IsValid {
		t.Fatalf("conflicting grid should be invalid")
	}
}

func TestHandleTimerStart_RequiresIdentity(t *testing.T) {
	t.Parallel()
	h := newServer(&fakeAuth{}, &fakeTimer{}, &fakeCompletion{}, &fakeMigration{})

	body := `{"puzzleId":"` + uuid.Must(uuid.NewV4()).String() + `"}`
	req := httptest.NewRequest(http.MethodPost, "/api/timer/start", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("guest timer start: want 401, got %d", rec.Code)
	}
}

func TestHandleComplete_ErrorMapping(t *testing.T) {
	t.Parallel()

	cases := []struct {
		err  error
		want int
	}{
		{errs.ErrDuplicateSubmission, http.StatusConflict},
		{errs.ErrTimerNotStarted, http.StatusConflict},
		{errs.ErrRateLimited, http.StatusTooManyRequests},
		{errs.ErrInvalidGrid, http.StatusBadRequest},
		{errs.ErrNotFound, http.StatusNotFound},
	}
	userID := uuid.Must(uuid.NewV4())
	for _, tc := range cases {
		h := newServer(&fakeAuth{}, &fakeTimer{}, &fakeCompletion{err: tc.err}, &fakeMigration{})

		body := `{"puzzleId":"` + uuid.Must(uuid.NewV4()).String() + `","entries":[[1]]}`
		req := authed(t, httptest.NewRequest(http.MethodPost, "/api/puzzle/complete", strings.NewReader(body)), userID)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		if rec.Code != tc.want {
			t.Fatalf("%v: want %d, got %d", tc.err, tc.want, rec.Code)
		}
	}
}

func TestHandleLogin_RunsMigrationOnlyWithGuestState(t *testing.T) {
	t.Parallel()

	userID := uuid.Must(uuid.NewV4())
	auth := &fakeAuth{user: model.User{ID: userID}, tokens: model.Tokens{AccessToken: "tok"}}

	mig := &fakeMigration{res: &model.MigrationResult{CompletedCount: 1, HighestRank: 4}}
	h := newServer(auth, &fakeTimer{}, &fakeCompletion{}, mig)

	// without guest state migration does not run
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(`{"username":"u","password":"p"}`))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || mig.calls != 0 {
		t.Fatalf("plain login: status=%d migrations=%d", rec.Code, mig.calls)
	}

	// with guest state it runs once and its summary is returned
	body := `{"username":"u","password":"p","guestState":{"completed":{}}}`
	req = httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(body))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || mig.calls != 1 {
		t.Fatalf("login with cache: status=%d migrations=%d", rec.Code, mig.calls)
	}
	var resp struct {
		Migration struct {
			CompletedCount int `json:"completedCount"`
			HighestRank    int `json:"highestRank"`
		} `json:"migration"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Migration.CompletedCount != 1 || resp.Migration.HighestRank != 4 {
		t.Fatalf("migration summary missing: %s", rec.Body.String())
	}
}

func TestRecover_ConvertsPanicToInternalError(t *testing.T) {
	t.Parallel()

	h := Recover(zap.NewNop())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("want 500, got %d", rec.Code)
	}
}
