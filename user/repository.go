package user

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/KOMKZ/go-yogan-tokenauth/auth"
	"github.com/KOMKZ/go-yogan-tokenauth/database"
	"github.com/KOMKZ/go-yogan-tokenauth/session"
	"gorm.io/gorm"
)

// Repository implements auth.UserDirectory and profile.Source
type Repository struct {
	*database.BaseRepository[Model]
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{BaseRepository: database.NewBaseRepository[Model](db)}
}

// Migrate creates or updates the users table
func (r *Repository) Migrate(ctx context.Context) error {
	return r.DB().WithContext(ctx).AutoMigrate(&Model{})
}

// FindByEmail matches case-insensitively on the trimmed address
func (r *Repository) FindByEmail(ctx context.Context, email string) (*auth.User, error) {
	m, err := r.FindOne(ctx, "email = ?", normalizeEmail(email))
	if err != nil {
		return nil, mapNotFound(err)
	}
	return m.toUser(), nil
}

func (r *Repository) FindByID(ctx context.Context, id int64) (*auth.User, error) {
	m, err := r.BaseRepository.FindByID(ctx, id)
	if err != nil {
		return nil, mapNotFound(err)
	}
	return m.toUser(), nil
}

func (r *Repository) LoadProfile(ctx context.Context, subjectID int64) (session.Profile, error) {
	m, err := r.BaseRepository.FindByID(ctx, subjectID)
	if err != nil {
		return session.Profile{}, mapNotFound(err)
	}
	return m.toProfile(), nil
}

// NewUser is the input of Create
type NewUser struct {
	Email           string
	Nickname        string
	PasswordHash    string
	ProfileImageURL string
	Roles           []string
}

// Create inserts a user with an already hashed password
func (r *Repository) Create(ctx context.Context, in NewUser) (*auth.User, error) {
	m := &Model{
		Email:           normalizeEmail(in.Email),
		Nickname:        in.Nickname,
		PasswordHash:    in.PasswordHash,
		ProfileImageURL: in.ProfileImageURL,
		Roles:           joinRoles(in.Roles),
	}
	if err := r.BaseRepository.Create(ctx, m); err != nil {
		return nil, err
	}
	return m.toUser(), nil
}

// UpdatePassword stores an already hashed password
func (r *Repository) UpdatePassword(ctx context.Context, id int64, hash string) error {
	return r.update(ctx, id, map[string]interface{}{"password": hash})
}

// ProfileUpdate holds the editable profile fields. Nil fields are left as they are.
type ProfileUpdate struct {
	Nickname        *string
	ProfileImageURL *string
}

// UpdateProfile applies in and returns the stored profile
func (r *Repository) UpdateProfile(ctx context.Context, id int64, in ProfileUpdate) (session.Profile, error) {
	cols := map[string]interface{}{}
	if in.Nickname != nil {
		cols["nickname"] = *in.Nickname
	}
	if in.ProfileImageURL != nil {
		cols["profile_image_url"] = *in.ProfileImageURL
	}
	if len(cols) > 0 {
		if err := r.update(ctx, id, cols); err != nil {
			return session.Profile{}, err
		}
	}
	return r.LoadProfile(ctx, id)
}

// Delete removes the user row, returning auth.ErrUserNotFound when none matched
func (r *Repository) Delete(ctx context.Context, id int64) error {
	res := r.DB().WithContext(ctx).Delete(&Model{}, id)
	if res.Error != nil {
		return fmt.Errorf("delete user (id=%d): %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return auth.ErrUserNotFound
	}
	return nil
}

func (r *Repository) update(ctx context.Context, id int64, cols map[string]interface{}) error {
	res := r.DB().WithContext(ctx).Model(&Model{}).Where("id = ?", id).Updates(cols)
	if res.Error != nil {
		return fmt.Errorf("update user (id=%d): %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return auth.ErrUserNotFound
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func mapNotFound(err error) error {
	if errors.Is(err, database.ErrRecordNotFound) {
		return auth.ErrUserNotFound
	}
	return err
}
