package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quiz-portal/internal/app"
	"quiz-portal/internal/domain"
	"quiz-portal/internal/infra/memory"
	"quiz-portal/internal/pocketbase"
	"quiz-portal/internal/security"
)

type harness struct {
	pb     *fakePocketBase
	server *httptest.Server
	feed   *app.LeaderboardFeed
	clock  *clockwork.FakeClock
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Code    string          `json:"code"`
}

func newHarness(t *testing.T, sec security.Config) *harness {
	t.Helper()
	pb := newFakePocketBase(t)
	pb.addUser("student1", "student@example.com", "student")
	pb.addUser("admin1", "admin@example.com", "admin")
	pb.seed("questions",
		map[string]any{"id": "q1", "question": "2 + 2?", "question_type": "Single Choice", "answers": []string{"3", "4"}, "correct_answers": []string{"4"}, "category": "excel"},
		map[string]any{"id": "q2", "question": "Pick evens", "question_type": "Multiple Choice", "answers": []string{"1", "2", "4"}, "correct_answers": []string{"2", "4"}, "category": "excel"},
	)
	pb.seed("quizzes", map[string]any{
		"id": "quiz1", "title": "Excel basics", "category": "excel", "duration_minutes": 10,
		"is_active": true, "questions_list": []string{"q1", "q2"},
	})

	clock := clockwork.NewFakeClockAt(time.Now().Truncate(time.Second))
	client := pocketbase.New(pb.URL())
	service := app.NewPortal(client, app.WithClock(clock))
	store := memory.NewSessionStore(time.Hour, time.Hour, clock)
	quizzes := memory.NewQuizRepository(memory.LoaderFunc(service.LoadQuiz), time.Minute, clock)
	feed := app.NewLeaderboardFeed(app.NewRankings(service, clock), app.WithFeedClock(clock))

	srv, err := NewServer(Options{
		Backend:       func(auth *pocketbase.AuthStore) app.Backend { return client.WithAuth(auth) },
		Tokens:        store,
		Runner:        app.NewQuizRunner(quizzes, store, clock, nil),
		Feed:          feed,
		QuizCache:     quizzes,
		Security:      sec,
		SessionSecret: "test-secret-test-secret-test-sec",
		PocketBaseURL: pb.URL(),
		Clock:         clock,
	})
	require.NoError(t, err)
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)
	return &harness{pb: pb, server: ts, feed: feed, clock: clock}
}

// browser keeps cookies like a real one so the session survives requests.
func (h *harness) browser(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &http.Client{Jar: jar}
}

func (h *harness) do(t *testing.T, c *http.Client, method, path string, body any) (int, envelope) {
	t.Helper()
	var r io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(context.Background(), method, h.server.URL+path, r)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	var env envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	return resp.StatusCode, env
}

func (h *harness) login(t *testing.T, c *http.Client, email string) {
	t.Helper()
	status, env := h.do(t, c, http.MethodPost, "/api/auth/login", loginRequest{Email: email, Password: "secret"})
	require.Equal(t, http.StatusOK, status, env.Error)
	require.True(t, env.Success)
}

func decodeData[T any](t *testing.T, env envelope) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(env.Data, &out))
	return out
}

func TestAnonymousSession(t *testing.T) {
	h := newHarness(t, security.DefaultConfig())
	c := h.browser(t)

	status, env := h.do(t, c, http.MethodGet, "/api/auth/me", nil)
	require.Equal(t, http.StatusOK, status)
	me := decodeData[meResponse](t, env)
	assert.False(t, me.IsAuthenticated)
	assert.Nil(t, me.User)
	assert.Equal(t, "/login", me.InitialRoute)

	status, env = h.do(t, c, http.MethodGet, "/api/quizzes", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, domain.CodeAuthRequired, env.Code)
	assert.False(t, env.Success)
}

func TestLoginFailureKeepsSessionAnonymous(t *testing.T) {
	h := newHarness(t, security.DefaultConfig())
	c := h.browser(t)

	status, env := h.do(t, c, http.MethodPost, "/api/auth/login", loginRequest{Email: "student@example.com", Password: "wrong"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, domain.CodeLoginFailed, env.Code)
	assert.Equal(t, "Failed to authenticate.", env.Error)

	_, env = h.do(t, c, http.MethodGet, "/api/auth/me", nil)
	assert.False(t, decodeData[meResponse](t, env).IsAuthenticated)
}

func TestLoginPersistsAcrossRequests(t *testing.T) {
	h := newHarness(t, security.DefaultConfig())
	c := h.browser(t)
	h.login(t, c, "student@example.com")

	_, env := h.do(t, c, http.MethodGet, "/api/auth/me", nil)
	me := decodeData[meResponse](t, env)
	require.True(t, me.IsAuthenticated)
	assert.Equal(t, "student1", me.User.ID)
	assert.Equal(t, "/user/dashboard", me.InitialRoute)
	assert.False(t, me.IsAdmin)

	status, env := h.do(t, c, http.MethodGet, "/api/quizzes", nil)
	require.Equal(t, http.StatusOK, status)
	quizzes := decodeData[[]domain.Quiz](t, env)
	require.Len(t, quizzes, 1)
	assert.Equal(t, "Excel basics", quizzes[0].Title)

	// another browser does not share the session
	status, _ = h.do(t, h.browser(t), http.MethodGet, "/api/quizzes", nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = h.do(t, c, http.MethodPost, "/api/auth/logout", nil)
	require.Equal(t, http.StatusOK, status)
	status, _ = h.do(t, c, http.MethodGet, "/api/quizzes", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestAdminRoutesRejectStudents(t *testing.T) {
	h := newHarness(t, security.DefaultConfig())
	student := h.browser(t)
	h.login(t, student, "student@example.com")

	status, env := h.do(t, student, http.MethodGet, "/api/users", nil)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, domain.CodeAccessDenied, env.Code)

	status, env = h.do(t, student, http.MethodPost, "/api/navigation/switch", switchRequest{Interface: app.InterfaceAdmin})
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, domain.CodeAccessDenied, env.Code)

	admin := h.browser(t)
	h.login(t, admin, "admin@example.com")
	status, env = h.do(t, admin, http.MethodGet, "/api/users", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, decodeData[[]domain.User](t, env), 2)
}

func TestQuizSessionFlow(t *testing.T) {
	h := newHarness(t, security.DefaultConfig())
	c := h.browser(t)
	h.login(t, c, "student@example.com")

	status, env := h.do(t, c, http.MethodGet, "/api/session/quiz", nil)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, domain.CodeNoActiveQuiz, env.Code)

	status, env = h.do(t, c, http.MethodPost, "/api/session/quiz", startQuizRequest{QuizID: "quiz1"})
	require.Equal(t, http.StatusOK, status, env.Error)
	view := decodeData[app.QuizView](t, env)
	require.Len(t, view.Quiz.Questions, 2)
	assert.Equal(t, "10:00", view.RemainingTime)
	assert.False(t, view.CanSubmit)
	assert.NotContains(t, string(env.Data), "correct_answers")

	_, env = h.do(t, c, http.MethodPut, "/api/session/quiz/answers/q1", answerRequest{Answer: domain.SingleAnswer("4")})
	assert.Equal(t, 1, decodeData[app.QuizView](t, env).Answered)
	assert.NotContains(t, string(env.Data), "correct_answers")

	_, env = h.do(t, c, http.MethodGet, "/api/session/quiz", nil)
	assert.NotContains(t, string(env.Data), "correct_answers")

	status, env = h.do(t, c, http.MethodPut, "/api/session/quiz/answers/q1", map[string]any{"answer": true})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, domain.CodeValidation, env.Code)

	_, env = h.do(t, c, http.MethodPost, "/api/session/quiz/next", nil)
	assert.Equal(t, 1, decodeData[app.QuizView](t, env).CurrentIndex)

	_, env = h.do(t, c, http.MethodPost, "/api/session/quiz/flag/q2", nil)
	assert.Equal(t, []string{"q2"}, decodeData[app.QuizView](t, env).Flagged)

	_, env = h.do(t, c, http.MethodPut, "/api/session/quiz/answers/q2", answerRequest{Answer: domain.MultiAnswer("4", "2")})
	assert.True(t, decodeData[app.QuizView](t, env).CanSubmit)

	h.clock.Advance(90 * time.Second)
	status, env = h.do(t, c, http.MethodPost, "/api/session/quiz/submit", nil)
	require.Equal(t, http.StatusOK, status, env.Error)
	sub := decodeData[domain.Submission](t, env)
	assert.Equal(t, "quiz1", sub.Quiz)
	assert.Equal(t, "student1", sub.User)
	assert.Equal(t, 100, sub.ScoreValue())
	assert.Equal(t, 90, sub.Duration)
	assert.Len(t, h.pb.all("submissions"), 1)

	status, _ = h.do(t, c, http.MethodGet, "/api/session/quiz", nil)
	assert.Equal(t, http.StatusConflict, status)
}

func TestInputScreening(t *testing.T) {
	h := newHarness(t, security.DefaultConfig())
	c := h.browser(t)
	h.login(t, c, "student@example.com")

	status, env := h.do(t, c, http.MethodGet, "/api/questions/search?q=%3Cscript%3Ealert(1)%3C%2Fscript%3E", nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, domain.CodeValidation, env.Code)
	assert.Contains(t, env.Error, "xss")

	status, _ = h.do(t, c, http.MethodGet, "/api/questions/search?q=evens", nil)
	assert.Equal(t, http.StatusOK, status)
}

func TestNavigationIsKeptInTheCookie(t *testing.T) {
	h := newHarness(t, security.DefaultConfig())
	pb := h.pb
	pb.addUser("teacher1", "teacher@example.com", "teacher")
	c := h.browser(t)
	h.login(t, c, "teacher@example.com")

	_, env := h.do(t, c, http.MethodGet, "/api/auth/me", nil)
	me := decodeData[meResponse](t, env)
	assert.True(t, me.ShowRoleSelection)
	assert.Equal(t, "/role-selection", me.InitialRoute)

	_, env = h.do(t, c, http.MethodPost, "/api/navigation/visit", visitRequest{Path: "/user/quizzes", Name: "Quizzes"})
	assert.True(t, env.Success)

	status, env := h.do(t, c, http.MethodPost, "/api/navigation/switch", switchRequest{Interface: app.InterfaceAdmin})
	require.Equal(t, http.StatusOK, status, env.Error)
	nav := decodeData[navigationResponse](t, env)
	assert.Equal(t, "Admin Dashboard", nav.CurrentInterfaceName)
	require.NotNil(t, nav.Restorable)
	assert.Equal(t, app.InterfaceUser, nav.Restorable.Interface)

	_, env = h.do(t, c, http.MethodGet, "/api/navigation", nil)
	nav = decodeData[navigationResponse](t, env)
	assert.Equal(t, app.InterfaceAdmin, nav.Active)
	assert.Len(t, nav.History[app.InterfaceUser], 1)
}

func TestSessionTimeoutLogsOut(t *testing.T) {
	sec := security.DefaultConfig()
	sec.Session.AutoExtend = false
	h := newHarness(t, sec)
	c := h.browser(t)
	h.login(t, c, "student@example.com")

	h.clock.Advance(25 * time.Minute)
	_, env := h.do(t, c, http.MethodGet, "/api/auth/session", nil)
	status := decodeData[sessionStatus](t, env)
	assert.True(t, status.ShouldWarn)
	assert.Equal(t, 5*60, status.RemainingSeconds)

	h.clock.Advance(6 * time.Minute)
	_, env = h.do(t, c, http.MethodGet, "/api/auth/me", nil)
	assert.False(t, decodeData[meResponse](t, env).IsAuthenticated)
}

func TestSessionStatusCountsIdleTime(t *testing.T) {
	h := newHarness(t, security.DefaultConfig())
	c := h.browser(t)
	h.login(t, c, "student@example.com")

	h.clock.Advance(26 * time.Minute)
	_, env := h.do(t, c, http.MethodGet, "/api/auth/session", nil)
	status := decodeData[sessionStatus](t, env)
	assert.Equal(t, 4*60, status.RemainingSeconds)
	assert.True(t, status.ShouldWarn)

	// polling the status is not activity
	h.clock.Advance(time.Minute)
	_, env = h.do(t, c, http.MethodGet, "/api/auth/session", nil)
	assert.Equal(t, 3*60, decodeData[sessionStatus](t, env).RemainingSeconds)

	_, env = h.do(t, c, http.MethodGet, "/api/auth/me", nil)
	require.True(t, decodeData[meResponse](t, env).IsAuthenticated)
	_, env = h.do(t, c, http.MethodGet, "/api/auth/session", nil)
	status = decodeData[sessionStatus](t, env)
	assert.Equal(t, 30*60, status.RemainingSeconds)
	assert.False(t, status.ShouldWarn)
}

func TestRateLimitAnswers429(t *testing.T) {
	sec := security.DefaultConfig()
	sec.RateLimit.MaxRequests = 2
	h := newHarness(t, sec)
	c := h.browser(t)

	for range 2 {
		status, _ := h.do(t, c, http.MethodGet, "/api/auth/me", nil)
		require.Equal(t, http.StatusOK, status)
	}
	req, err := http.NewRequest(http.MethodGet, h.server.URL+"/api/auth/me", nil)
	require.NoError(t, err)
	resp, err := c.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "5", resp.Header.Get("Retry-After"))
}

func TestLeaderboardFallsBackToComputing(t *testing.T) {
	h := newHarness(t, security.DefaultConfig())
	h.pb.seed("submissions", map[string]any{
		"id": "s1", "user": "student1", "quiz": "quiz1", "score": 80, "total_questions": 2,
		"status": "completed", "completed_at": "2025-03-10 12:00:00.000Z",
	})
	c := h.browser(t)
	h.login(t, c, "student@example.com")

	status, env := h.do(t, c, http.MethodGet, "/api/leaderboards/overall", nil)
	require.Equal(t, http.StatusOK, status, env.Error)
	snap := decodeData[domain.LeaderboardSnapshot](t, env)
	require.Len(t, snap.Rows, 1)
	assert.Equal(t, "student1", snap.Rows[0].UserID)

	status, env = h.do(t, c, http.MethodGet, "/api/leaderboards/bogus", nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, domain.CodeValidation, env.Code)

	require.NoError(t, h.feed.Refresh(context.Background()))
	_, env = h.do(t, c, http.MethodGet, "/api/rankings/me", nil)
	rank := decodeData[rankResponse](t, env)
	assert.True(t, rank.Ranked)
	assert.Equal(t, 1, rank.Rank)

	status, env = h.do(t, c, http.MethodGet, "/api/leaderboards/overall/history", nil)
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Equal(t, domain.CodeServiceUnavailable, env.Code)
}

func TestHealthEndpoints(t *testing.T) {
	h := newHarness(t, security.DefaultConfig())

	resp, err := http.Get(h.server.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get(headerRequestID))

	resp, err = http.Get(h.server.URL + "/ready")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(h.server.URL + "/api/config")
	require.NoError(t, err)
	defer resp.Body.Close()
	var cfg map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&cfg))
	assert.Equal(t, h.pb.URL(), cfg["pocketbaseUrl"])
}

func TestNewServerRequiresCollaborators(t *testing.T) {
	_, err := NewServer(Options{})
	assert.Error(t, err)
}
