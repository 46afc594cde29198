package repositories

import (
	"context"
	"errors"
	"strings"

	"github.com/anonto42/agara/backend/internal/models"
	"gorm.io/gorm"
)

// ProfileRepository defines the interface for profile lookups
type ProfileRepository interface {
	CreateProfile(ctx context.Context, profile *models.Profile) error
	GetProfileByID(ctx context.Context, id string) (*models.Profile, error)
	GetProfilesByUsernames(ctx context.Context, usernames []string) ([]models.Profile, error)
	SearchByUsernamePrefix(ctx context.Context, prefix string, limit int) ([]models.Profile, error)
}

// PostgresProfileRepository implements ProfileRepository for PostgreSQL
type PostgresProfileRepository struct {
	db *gorm.DB
}

// NewPostgresProfileRepository creates a new PostgresProfileRepository
func NewPostgresProfileRepository(db *gorm.DB) *PostgresProfileRepository {
	return &PostgresProfileRepository{db: db}
}

// CreateProfile creates a new profile in PostgreSQL
func (r *PostgresProfileRepository) CreateProfile(ctx context.Context, profile *models.Profile) error {
	return r.db.WithContext(ctx).Create(profile).Error
}

// GetProfileByID retrieves a profile by its auth identity
func (r *PostgresProfileRepository) GetProfileByID(ctx context.Context, id string) (*models.Profile, error) {
	var profile models.Profile
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&profile).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

// GetProfilesByUsernames resolves usernames case-insensitively; unknown names are simply absent
func (r *PostgresProfileRepository) GetProfilesByUsernames(ctx context.Context, usernames []string) ([]models.Profile, error) {
	if len(usernames) == 0 {
		return nil, nil
	}
	lowered := make([]string, len(usernames))
	for i, u := range usernames {
		lowered[i] = strings.ToLower(u)
	}
	var profiles []models.Profile
	err := r.db.WithContext(ctx).Where("LOWER(username) IN ?", lowered).Find(&profiles).Error
	return profiles, err
}

// likeEscaper makes a user-supplied prefix match literally inside LIKE.
var likeEscaper = strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)

// SearchByUsernamePrefix backs the mention autocomplete
func (r *PostgresProfileRepository) SearchByUsernamePrefix(ctx context.Context, prefix string, limit int) ([]models.Profile, error) {
	var profiles []models.Profile
	err := r.db.WithContext(ctx).
		Where(`LOWER(username) LIKE ? ESCAPE '\'`, likeEscaper.Replace(strings.ToLower(prefix))+"%").
		Order("username ASC").
		Limit(limit).
		Find(&profiles).Error
	return profiles, err
}
