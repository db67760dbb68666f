package app

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"quiz-portal/internal/domain"
	"quiz-portal/internal/pocketbase"
)

const usersPageSize = 50

// NewUser is the payload for creating an account from the admin panel.
type NewUser struct {
	Email           string      `json:"email"`
	Username        string      `json:"username,omitempty"`
	Password        string      `json:"password"`
	PasswordConfirm string      `json:"passwordConfirm"`
	Name            string      `json:"name,omitempty"`
	Role            domain.Role `json:"role,omitempty"`
}

// GetAllUsers returns the first page of 50 users.
func (p *Portal) GetAllUsers(ctx context.Context, filters Filters) ([]domain.User, error) {
	out := []domain.User{}
	q := pocketbase.Query{Filter: BuildFilter(filters)}
	if _, err := p.backend.GetList(ctx, p.users, 1, usersPageSize, q, &out); err != nil {
		return nil, fail(err, domain.CodeFetchUsersFailed)
	}
	return out, nil
}

func (p *Portal) CreateUser(ctx context.Context, u NewUser) (domain.User, error) {
	var out domain.User
	if err := p.backend.Create(ctx, p.users, u, &out); err != nil {
		return domain.User{}, fail(err, domain.CodeCreateUserFailed)
	}
	return out, nil
}

func (p *Portal) UpdateUser(ctx context.Context, id string, fields Fields) (domain.User, error) {
	if !ValidID(id) {
		return domain.User{}, invalid(domain.CodeInvalidUserID, "Invalid user ID provided for update")
	}
	var out domain.User
	if err := p.backend.Update(ctx, p.users, id, fields, &out); err != nil {
		return domain.User{}, fail(err, domain.CodeUpdateUserFailed)
	}
	return out, nil
}

func (p *Portal) DeleteUser(ctx context.Context, id string) error {
	if !ValidID(id) {
		return invalid(domain.CodeInvalidUserID, "Invalid user ID provided for delete")
	}
	if err := p.backend.Delete(ctx, p.users, id); err != nil {
		return fail(err, domain.CodeDeleteUserFailed)
	}
	return nil
}

// ResetUserPassword sets a new password on the user record.
func (p *Portal) ResetUserPassword(ctx context.Context, id, password string) (bool, error) {
	if !ValidID(id) {
		return false, invalid(domain.CodeInvalidUserID, "Invalid user ID provided for password reset")
	}
	body := map[string]string{"password": password, "passwordConfirm": password}
	if err := p.backend.Update(ctx, p.users, id, body, nil); err != nil {
		return false, fail(err, domain.CodeResetPasswordFailed)
	}
	return true, nil
}

// AdminDashboard counts users by role, quizzes, questions and submissions.
// The four collections are read concurrently.
func (p *Portal) AdminDashboard(ctx context.Context) (domain.AdminDashboard, error) {
	var (
		users       []domain.User
		quizzes     []domain.Quiz
		submissions []domain.Submission
		questions   pocketbase.ListMeta
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return p.backend.GetFullList(gctx, p.users, pocketbase.Query{Fields: "id,role"}, &users)
	})
	g.Go(func() error {
		return p.backend.GetFullList(gctx, CollectionQuizzes, pocketbase.Query{Fields: "id,is_active"}, &quizzes)
	})
	g.Go(func() error {
		return p.backend.GetFullList(gctx, CollectionSubmissions, pocketbase.Query{Fields: "id,score,created"}, &submissions)
	})
	g.Go(func() error {
		var items []struct{}
		meta, err := p.backend.GetList(gctx, CollectionQuestions, 1, 1, pocketbase.Query{Fields: "id"}, &items)
		questions = meta
		return err
	})
	if err := g.Wait(); err != nil {
		return domain.AdminDashboard{}, fail(err, domain.CodeFetchDashboardFailed)
	}
	return DashboardOf(users, quizzes, submissions, questions.TotalItems, p.clock.Now()), nil
}

// DashboardOf builds the admin summary from fetched records.
func DashboardOf(users []domain.User, quizzes []domain.Quiz, subs []domain.Submission, questions int, now time.Time) domain.AdminDashboard {
	d := domain.AdminDashboard{
		Users:       len(users),
		UsersByRole: map[domain.Role]int{domain.RoleStudent: 0, domain.RoleTeacher: 0, domain.RoleAdmin: 0},
		Quizzes:     len(quizzes),
		Questions:   questions,
		Submissions: len(subs),
	}
	for _, u := range users {
		role := u.Role
		if role == "" {
			role = domain.RoleStudent
		}
		d.UsersByRole[role]++
	}
	for _, q := range quizzes {
		if q.IsActive {
			d.ActiveQuizzes++
		}
	}
	scores := make([]int, len(subs))
	for i, s := range subs {
		scores[i] = s.ScoreValue()
		if now.Sub(s.Created.Time) < week {
			d.SubmissionsWeek++
		}
	}
	d.AverageScore = Average(scores)
	return d
}
