package moderation

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aura-community/backend/internal/audit"
	"github.com/aura-community/backend/internal/feed"
	"github.com/aura-community/backend/internal/models"
	"github.com/aura-community/backend/internal/permissions"
	"github.com/aura-community/backend/internal/settings"
)

// memStore applies a transaction's writes only when fn succeeds.
type memStore struct {
	users    map[uuid.UUID]models.User
	posts    map[uuid.UUID]models.Post
	comments map[uuid.UUID]models.Comment
	settings models.CommunitySettings
	audits   []audit.Entry
}

func newMemStore() *memStore {
	return &memStore{
		users:    map[uuid.UUID]models.User{},
		posts:    map[uuid.UUID]models.Post{},
		comments: map[uuid.UUID]models.Comment{},
		settings: models.CommunitySettings{Name: "Hearth", IsPrivate: true},
	}
}

func (s *memStore) clone() *memStore {
	c := &memStore{
		users:    map[uuid.UUID]models.User{},
		posts:    map[uuid.UUID]models.Post{},
		comments: map[uuid.UUID]models.Comment{},
		settings: s.settings,
		audits:   append([]audit.Entry(nil), s.audits...),
	}
	for k, v := range s.users {
		c.users[k] = v
	}
	for k, v := range s.posts {
		c.posts[k] = v
	}
	for k, v := range s.comments {
		c.comments[k] = v
	}
	return c
}

func (s *memStore) WithTx(_ context.Context, fn func(tx Tx) error) error {
	staged := s.clone()
	if err := fn(memTx{staged}); err != nil {
		return err
	}
	*s = *staged
	return nil
}

type memTx struct{ s *memStore }

func (t memTx) GetUser(_ context.Context, id uuid.UUID) (*models.User, error) {
	u, ok := t.s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &u, nil
}

func (t memTx) SetBan(_ context.Context, id uuid.UUID, at *time.Time, reason string) error {
	u := t.s.users[id]
	u.BannedAt, u.BanReason = at, reason
	t.s.users[id] = u
	return nil
}

func (t memTx) SetRole(_ context.Context, id uuid.UUID, role permissions.Role) error {
	u := t.s.users[id]
	u.Role = role
	t.s.users[id] = u
	return nil
}

func (t memTx) GetPost(_ context.Context, id uuid.UUID) (*models.Post, error) {
	p, ok := t.s.posts[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

func (t memTx) ReplacePost(_ context.Context, p *models.Post) error {
	t.s.posts[p.ID] = *p
	return nil
}

func (t memTx) DeletePost(_ context.Context, id uuid.UUID) error {
	delete(t.s.posts, id)
	return nil
}

func (t memTx) GetComment(_ context.Context, id uuid.UUID) (*models.Comment, error) {
	c, ok := t.s.comments[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &c, nil
}

func (t memTx) ReplaceComment(_ context.Context, c *models.Comment) error {
	t.s.comments[c.ID] = *c
	return nil
}

func (t memTx) DeleteComment(_ context.Context, id uuid.UUID) error {
	delete(t.s.comments, id)
	return nil
}

func (t memTx) GetSettings(context.Context) (*models.CommunitySettings, error) {
	s := t.s.settings
	return &s, nil
}

func (t memTx) SaveSettings(_ context.Context, s *models.CommunitySettings) error {
	t.s.settings = *s
	return nil
}

func (t memTx) Audit(_ context.Context, e audit.Entry) error {
	t.s.audits = append(t.s.audits, e)
	return nil
}

func (s *memStore) addUser(role permissions.Role) permissions.Actor {
	id := uuid.New()
	s.users[id] = models.User{ID: id, Role: role, FullName: role.String()}
	return permissions.Actor{ID: id, Role: role}
}

func TestBanUser(t *testing.T) {
	store := newMemStore()
	svc := NewService(store, nil, nil, nil)
	owner := store.addUser(permissions.RoleOwner)
	admin := store.addUser(permissions.RoleAdmin)
	mod := store.addUser(permissions.RoleModerator)
	member := store.addUser(permissions.RoleMember)

	require.NoError(t, svc.BanUser(context.Background(), admin, member.ID, " spam "))
	banned := store.users[member.ID]
	assert.True(t, banned.IsBanned())
	assert.Equal(t, "spam", banned.BanReason)

	require.Len(t, store.audits, 1)
	e := store.audits[0]
	assert.Equal(t, models.AuditUserBanned, e.Action)
	assert.Equal(t, admin.ID, e.ActorID)
	assert.Equal(t, member.ID, *e.TargetID)
	assert.Equal(t, audit.TargetUser, e.TargetType)

	require.NoError(t, svc.UnbanUser(context.Background(), admin, member.ID))
	unbannedUser := store.users[member.ID]
	assert.False(t, unbannedUser.IsBanned())
	assert.Equal(t, models.AuditUserUnbanned, store.audits[1].Action)

	tests := []struct {
		name   string
		actor  permissions.Actor
		target uuid.UUID
		want   error
	}{
		{"moderator lacks capability", mod, member.ID, permissions.ErrNotAuthorized},
		{"admin cannot ban admin", admin, admin.ID, permissions.ErrNotAuthorized},
		{"nobody bans the owner", admin, owner.ID, permissions.ErrNotAuthorized},
		{"owner cannot ban self", owner, owner.ID, permissions.ErrNotAuthorized},
		{"missing member", admin, uuid.New(), ErrNotFound},
		{"member lacks capability on missing target", member, uuid.New(), permissions.ErrNotAuthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, svc.BanUser(context.Background(), tt.actor, tt.target, ""), tt.want)
		})
	}
	assert.Len(t, store.audits, 2, "failed actions write no audit rows")
}

func TestChangeRole(t *testing.T) {
	store := newMemStore()
	svc := NewService(store, nil, nil, nil)
	owner := store.addUser(permissions.RoleOwner)
	admin := store.addUser(permissions.RoleAdmin)
	member := store.addUser(permissions.RoleMember)

	require.NoError(t, svc.ChangeRole(context.Background(), admin, member.ID, permissions.RoleModerator))
	assert.Equal(t, permissions.RoleModerator, store.users[member.ID].Role)
	change := store.audits[0].Details.(audit.Change)
	assert.Equal(t, permissions.RoleMember, change.Previous)
	assert.Equal(t, permissions.RoleModerator, change.New)

	assert.ErrorIs(t, svc.ChangeRole(context.Background(), admin, member.ID, permissions.RoleAdmin), permissions.ErrNotAuthorized)
	assert.ErrorIs(t, svc.ChangeRole(context.Background(), owner, member.ID, permissions.RoleOwner), permissions.ErrNotAuthorized)
	assert.ErrorIs(t, svc.ChangeRole(context.Background(), owner, member.ID, permissions.RoleNone), ErrInvalidRole)

	require.NoError(t, svc.ChangeRole(context.Background(), owner, member.ID, permissions.RoleAdmin))
	assert.Equal(t, permissions.RoleAdmin, store.users[member.ID].Role)

	// The promoted member now ranks equal to the other admin.
	assert.ErrorIs(t, svc.ChangeRole(context.Background(), admin, member.ID, permissions.RoleMember), permissions.ErrNotAuthorized)
}

func TestEditPost_IsSilentAndAudited(t *testing.T) {
	store := newMemStore()
	svc := NewService(store, nil, nil, nil)
	mod := store.addUser(permissions.RoleModerator)
	author := uuid.New()
	post := models.Post{ID: uuid.New(), AuthorID: author, Title: "Buy cheap pills", Content: json.RawMessage(`"spam"`)}
	store.posts[post.ID] = post

	edited, err := svc.EditPost(context.Background(), mod, post.ID, feed.PostInput{Title: "[removed]", Content: json.RawMessage(`"[removed by moderator]"`)})
	require.NoError(t, err)
	assert.Equal(t, "[removed]", edited.Title)
	assert.False(t, store.posts[post.ID].Edited)
	assert.Equal(t, "[removed by moderator]", store.posts[post.ID].ContentText)

	change := store.audits[0].Details.(audit.Change)
	assert.Equal(t, "Buy cheap pills", change.Previous.(postSnapshot).Title)
	assert.Equal(t, "[removed]", change.New.(postSnapshot).Title)

	_, err = svc.EditPost(context.Background(), mod, post.ID, feed.PostInput{Content: json.RawMessage(`"x"`)})
	var verrs validation.Errors
	assert.True(t, errors.As(err, &verrs))
	assert.Len(t, store.audits, 1)
}

func TestContentActions_Ordering(t *testing.T) {
	store := newMemStore()
	svc := NewService(store, nil, nil, nil)
	mod := store.addUser(permissions.RoleModerator)
	member := store.addUser(permissions.RoleMember)

	_, err := svc.EditPost(context.Background(), member, uuid.New(), feed.PostInput{})
	assert.ErrorIs(t, err, permissions.ErrNotAuthorized, "authorization before not-found")
	_, err = svc.EditPost(context.Background(), mod, uuid.New(), feed.PostInput{})
	assert.ErrorIs(t, err, ErrNotFound, "not-found before validation")

	assert.ErrorIs(t, svc.DeleteComment(context.Background(), member, uuid.New()), permissions.ErrNotAuthorized)
	assert.ErrorIs(t, svc.DeleteComment(context.Background(), mod, uuid.New()), ErrNotFound)
}

func TestDeleteAndEditComment(t *testing.T) {
	store := newMemStore()
	svc := NewService(store, nil, nil, nil)
	mod := store.addUser(permissions.RoleModerator)
	c := models.Comment{ID: uuid.New(), PostID: uuid.New(), AuthorID: uuid.New(), Content: "rude"}
	store.comments[c.ID] = c

	edited, err := svc.EditComment(context.Background(), mod, c.ID, "  polite  ")
	require.NoError(t, err)
	assert.Equal(t, "polite", edited.Content)
	assert.False(t, store.comments[c.ID].Edited)

	require.NoError(t, svc.DeleteComment(context.Background(), mod, c.ID))
	assert.NotContains(t, store.comments, c.ID)
	assert.Equal(t, []models.AuditAction{models.AuditCommentEdited, models.AuditCommentDeleted},
		[]models.AuditAction{store.audits[0].Action, store.audits[1].Action})
}

func TestDeletePost(t *testing.T) {
	store := newMemStore()
	svc := NewService(store, nil, nil, nil)
	admin := store.addUser(permissions.RoleAdmin)
	p := models.Post{ID: uuid.New(), AuthorID: uuid.New(), Title: "Off topic"}
	store.posts[p.ID] = p

	require.NoError(t, svc.DeletePost(context.Background(), admin, p.ID))
	assert.Empty(t, store.posts)
	assert.Equal(t, models.AuditPostDeleted, store.audits[0].Action)
	assert.Equal(t, "Off topic", store.audits[0].Details.(audit.Change).Previous.(postSnapshot).Title)
}

func TestUpdateSettings(t *testing.T) {
	store := newMemStore()
	svc := NewService(store, nil, nil, nil)
	admin := store.addUser(permissions.RoleAdmin)
	mod := store.addUser(permissions.RoleModerator)

	name, public := "  Makers Guild ", false
	saved, err := svc.UpdateSettings(context.Background(), admin, settings.Input{Name: &name, IsPrivate: &public})
	require.NoError(t, err)
	assert.Equal(t, "Makers Guild", saved.Name)
	assert.False(t, saved.IsPrivate)
	assert.Equal(t, "Makers Guild", store.settings.Name)

	change := store.audits[0].Details.(audit.Change)
	assert.Equal(t, "Hearth", change.Previous.(models.CommunitySettings).Name)
	assert.Nil(t, store.audits[0].TargetID)

	_, err = svc.UpdateSettings(context.Background(), mod, settings.Input{Name: &name})
	assert.ErrorIs(t, err, permissions.ErrNotAuthorized)

	blank := "   "
	_, err = svc.UpdateSettings(context.Background(), admin, settings.Input{Name: &blank})
	var verrs validation.Errors
	require.True(t, errors.As(err, &verrs))
	assert.Contains(t, verrs, "name")
	assert.Len(t, store.audits, 1)
}
