package app

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"quiz-portal/internal/domain"
)

// QuizRepository loads quiz content with its questions (from cache/backing store).
type QuizRepository interface {
	GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
}

// ProgressStore persists in-progress quizzes by session key.
type ProgressStore interface {
	SaveProgress(ctx context.Context, key string, p QuizProgress) error
	LoadProgress(ctx context.Context, key string) (QuizProgress, bool, error)
	DeleteProgress(ctx context.Context, key string) error
}

// QuizSubmitter stores a finished attempt. *Portal implements it.
type QuizSubmitter interface {
	SubmitQuiz(ctx context.Context, quizID string, answers map[string]domain.Answer, timeTaken int) (domain.Submission, error)
}

// QuizProgress is the persisted state of a quiz being taken.
type QuizProgress struct {
	Quiz         domain.Quiz              `json:"quiz"`
	CurrentIndex int                      `json:"currentQuestionIndex"`
	Answers      map[string]domain.Answer `json:"userAnswers"`
	Flagged      []string                 `json:"flaggedQuestions"`
	StartedAt    time.Time                `json:"quizStartTime"`
}

// QuizView is what clients render for the quiz being taken.
type QuizView struct {
	QuizProgress
	Progress      int    `json:"progressPercentage"`
	Answered      int    `json:"answeredCount"`
	RemainingTime string `json:"remainingTime"`
	CanSubmit     bool   `json:"canSubmit"`
}

func errNoActiveQuiz() *domain.Error {
	return &domain.Error{Code: domain.CodeNoActiveQuiz, Message: "No quiz in progress", Err: domain.ErrNoActiveQuiz}
}

// QuizSession is one user's attempt at a quiz.
type QuizSession struct {
	mu    sync.RWMutex
	clock clockwork.Clock
	state QuizProgress
}

func newQuizSession(clock clockwork.Clock, state QuizProgress) *QuizSession {
	if state.Answers == nil {
		state.Answers = make(map[string]domain.Answer)
	}
	if state.Flagged == nil {
		state.Flagged = []string{}
	}
	return &QuizSession{clock: clock, state: state}
}

// NewQuizSession starts quiz at the first question with no answers.
func NewQuizSession(clock clockwork.Clock, quiz domain.Quiz) *QuizSession {
	return newQuizSession(clock, QuizProgress{Quiz: quiz, StartedAt: clock.Now()})
}

// Next moves to the following question, stopping at the last one.
func (s *QuizSession) Next() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.CurrentIndex < len(s.state.Quiz.Questions)-1 {
		s.state.CurrentIndex++
	}
	return s.state.CurrentIndex
}

// Previous moves to the preceding question, stopping at the first one.
func (s *QuizSession) Previous() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.CurrentIndex > 0 {
		s.state.CurrentIndex--
	}
	return s.state.CurrentIndex
}

// SaveAnswer records the answer to a question of the quiz, replacing any
// earlier one.
func (s *QuizSession) SaveAnswer(questionID string, answer domain.Answer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.hasQuestionLocked(questionID) {
		return domain.Errorf(domain.CodeValidation, "Question %q is not part of this quiz", questionID)
	}
	s.state.Answers[questionID] = answer
	return nil
}

// Flag marks a question for review. Flagging twice is a no-op.
func (s *QuizSession) Flag(questionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !slices.Contains(s.state.Flagged, questionID) {
		s.state.Flagged = append(s.state.Flagged, questionID)
	}
}

func (s *QuizSession) hasQuestionLocked(id string) bool {
	for _, q := range s.state.Quiz.Questions {
		if q.ID == id {
			return true
		}
	}
	return false
}

// ProgressPercentage is the rounded share of answered questions.
func (s *QuizSession) ProgressPercentage() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Score(len(s.state.Answers), len(s.state.Quiz.Questions))
}

func (s *QuizSession) AnsweredCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.state.Answers)
}

// RemainingSeconds is the time left on the quiz timer, floored at zero.
func (s *QuizSession) RemainingSeconds() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.remainingLocked()
}

func (s *QuizSession) remainingLocked() int {
	left := s.state.Quiz.DurationMinutes*60 - int(s.clock.Since(s.state.StartedAt)/time.Second)
	return max(left, 0)
}

// RemainingTime formats the time left as m:ss.
func (s *QuizSession) RemainingTime() string {
	left := s.RemainingSeconds()
	return fmt.Sprintf("%d:%02d", left/60, left%60)
}

// CanSubmit reports whether every question has an answer.
func (s *QuizSession) CanSubmit() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := len(s.state.Quiz.Questions)
	return n > 0 && len(s.state.Answers) == n
}

// ElapsedSeconds is the time since the quiz started.
func (s *QuizSession) ElapsedSeconds() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int(s.clock.Since(s.state.StartedAt) / time.Second)
}

// Progress returns a copy of the session state.
func (s *QuizSession) Progress() QuizProgress {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := s.state
	out.Answers = make(map[string]domain.Answer, len(s.state.Answers))
	for k, v := range s.state.Answers {
		out.Answers[k] = v
	}
	out.Flagged = slices.Clone(s.state.Flagged)
	return out
}

// View bundles the state with the derived values. Correct answers and
// explanations stay in the persisted progress and are cleared here.
func (s *QuizSession) View() QuizView {
	p := s.Progress()
	p.Quiz.Questions = withoutAnswerKey(p.Quiz.Questions)
	return QuizView{
		QuizProgress:  p,
		Progress:      s.ProgressPercentage(),
		Answered:      s.AnsweredCount(),
		RemainingTime: s.RemainingTime(),
		CanSubmit:     s.CanSubmit(),
	}
}

func withoutAnswerKey(questions []domain.Question) []domain.Question {
	out := make([]domain.Question, len(questions))
	for i, q := range questions {
		q.CorrectAnswers = nil
		q.Explanation = ""
		out[i] = q
	}
	return out
}

// QuizRunner keeps the quiz sessions of logged-in users, keyed by browser
// session. Progress is persisted after Start and SaveAnswer and restored
// from the store when a session is not held in memory.
type QuizRunner struct {
	quizzes  QuizRepository
	progress ProgressStore
	clock    clockwork.Clock
	logger   *slog.Logger

	mu       sync.Mutex
	sessions map[string]*QuizSession
}

func NewQuizRunner(quizzes QuizRepository, progress ProgressStore, clock clockwork.Clock, logger *slog.Logger) *QuizRunner {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &QuizRunner{
		quizzes:  quizzes,
		progress: progress,
		clock:    clock,
		logger:   logger,
		sessions: make(map[string]*QuizSession),
	}
}

// Start loads the quiz and begins a fresh attempt for key, discarding any
// attempt in progress.
func (r *QuizRunner) Start(ctx context.Context, key, quizID string) (*QuizSession, error) {
	if !ValidID(quizID) {
		return nil, invalid(domain.CodeInvalidQuizID, "Invalid quiz ID provided")
	}
	quiz, err := r.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return nil, fail(err, domain.CodeFetchQuizFailed)
	}
	s := NewQuizSession(r.clock, quiz)

	r.mu.Lock()
	r.sessions[key] = s
	r.mu.Unlock()

	r.persist(ctx, key, s)
	return s, nil
}

// Session returns the attempt in progress for key.
func (r *QuizRunner) Session(ctx context.Context, key string) (*QuizSession, error) {
	r.mu.Lock()
	s, ok := r.sessions[key]
	r.mu.Unlock()
	if ok {
		return s, nil
	}

	p, ok, err := r.progress.LoadProgress(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("load quiz progress: %w", err)
	}
	if !ok {
		return nil, errNoActiveQuiz()
	}
	s = newQuizSession(r.clock, p)

	r.mu.Lock()
	if held, ok := r.sessions[key]; ok {
		s = held
	} else {
		r.sessions[key] = s
	}
	r.mu.Unlock()
	return s, nil
}

// SaveAnswer records an answer and persists the progress.
func (r *QuizRunner) SaveAnswer(ctx context.Context, key, questionID string, answer domain.Answer) (*QuizSession, error) {
	s, err := r.Session(ctx, key)
	if err != nil {
		return nil, err
	}
	if err := s.SaveAnswer(questionID, answer); err != nil {
		return nil, err
	}
	r.persist(ctx, key, s)
	return s, nil
}

// Update applies fn to the attempt in progress, such as moving between
// questions or flagging one, and persists the result.
func (r *QuizRunner) Update(ctx context.Context, key string, fn func(*QuizSession)) (*QuizSession, error) {
	s, err := r.Session(ctx, key)
	if err != nil {
		return nil, err
	}
	fn(s)
	r.persist(ctx, key, s)
	return s, nil
}

// Submit hands the answers to submitter with the elapsed seconds and ends
// the attempt. A failed submission keeps the attempt so it can be retried.
func (r *QuizRunner) Submit(ctx context.Context, key string, submitter QuizSubmitter) (domain.Submission, error) {
	s, err := r.Session(ctx, key)
	if err != nil {
		return domain.Submission{}, err
	}
	p := s.Progress()
	sub, err := submitter.SubmitQuiz(ctx, p.Quiz.ID, p.Answers, s.ElapsedSeconds())
	if err != nil {
		return domain.Submission{}, err
	}
	r.Abandon(ctx, key)
	return sub, nil
}

// Abandon drops the attempt for key.
func (r *QuizRunner) Abandon(ctx context.Context, key string) {
	r.mu.Lock()
	delete(r.sessions, key)
	r.mu.Unlock()
	if err := r.progress.DeleteProgress(ctx, key); err != nil {
		r.logger.WarnContext(ctx, "delete quiz progress", "key", key, "error", err)
	}
}

func (r *QuizRunner) persist(ctx context.Context, key string, s *QuizSession) {
	if err := r.progress.SaveProgress(ctx, key, s.Progress()); err != nil {
		r.logger.WarnContext(ctx, "save quiz progress", "key", key, "error", err)
	}
}
