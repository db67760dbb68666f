package app

import (
	"context"
	"encoding/json"

	"quiz-portal/internal/domain"
)

// Login authenticates against the users collection and persists the auth
// export.
func (p *Portal) Login(ctx context.Context, email, password string) (domain.User, error) {
	resp, err := p.backend.AuthWithPassword(ctx, p.users, email, password)
	if err != nil {
		return domain.User{}, fail(err, domain.CodeLoginFailed)
	}
	var user domain.User
	if err := json.Unmarshal(resp.Record, &user); err != nil {
		return domain.User{}, fail(err, domain.CodeLoginFailed)
	}
	p.saveAuth(ctx)
	return user, nil
}

// Logout clears the auth store and its persisted copy.
func (p *Portal) Logout(ctx context.Context) bool {
	p.backend.AuthStore().Clear()
	if p.persist != nil {
		if err := p.persist.ClearAuth(ctx); err != nil {
			p.logger.WarnContext(ctx, "clear persisted auth", "error", err)
		}
	}
	return true
}

// Register creates a user account. It does not log the user in.
func (p *Portal) Register(ctx context.Context, email, password, passwordConfirm, name string) (domain.User, error) {
	body := map[string]string{
		"email":           email,
		"password":        password,
		"passwordConfirm": passwordConfirm,
		"name":            name,
	}
	var user domain.User
	if err := p.backend.Create(ctx, p.users, body, &user); err != nil {
		return domain.User{}, fail(err, domain.CodeRegisterFailed)
	}
	return user, nil
}

// RefreshAuth renews the token; any failure reports false.
func (p *Portal) RefreshAuth(ctx context.Context) bool {
	if _, err := p.backend.AuthRefresh(ctx, p.users); err != nil {
		p.logger.DebugContext(ctx, "auth refresh failed", "error", err)
		return false
	}
	p.saveAuth(ctx)
	return true
}

// CurrentUser returns the authenticated user, nil when logged out.
func (p *Portal) CurrentUser() *domain.User {
	var user domain.User
	ok, err := p.backend.AuthStore().DecodeRecord(&user)
	if err != nil || !ok {
		return nil
	}
	return &user
}

// IsAuthenticated reports whether a token is held. Expiry is not checked.
func (p *Portal) IsAuthenticated() bool {
	return p.backend.AuthStore().Token() != ""
}

// IsAdmin reports whether the current user has the admin role.
func (p *Portal) IsAdmin() bool {
	user := p.CurrentUser()
	return user != nil && user.Role == domain.RoleAdmin
}

// UpdateProfile updates the current user's record and refreshes the
// cached auth record.
func (p *Portal) UpdateProfile(ctx context.Context, fields Fields) (domain.User, error) {
	user := p.CurrentUser()
	if user == nil || user.ID == "" {
		return domain.User{}, invalid(domain.CodeAuthRequired, domain.ErrNotAuthenticated.Error())
	}
	var raw json.RawMessage
	if err := p.backend.Update(ctx, p.users, user.ID, fields, &raw); err != nil {
		return domain.User{}, fail(err, domain.CodeUpdateUserFailed)
	}
	var updated domain.User
	if err := json.Unmarshal(raw, &updated); err != nil {
		return domain.User{}, fail(err, domain.CodeUpdateUserFailed)
	}
	store := p.backend.AuthStore()
	store.Save(store.Token(), raw)
	p.saveAuth(ctx)
	return updated, nil
}

func (p *Portal) saveAuth(ctx context.Context) {
	if p.persist == nil {
		return
	}
	if err := p.persist.SaveAuth(ctx, p.backend.AuthStore().Export()); err != nil {
		p.logger.WarnContext(ctx, "persist auth", "error", err)
	}
}
