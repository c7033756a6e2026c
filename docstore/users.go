package docstore

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/uptrace/bun"

	auth "github.com/jayanthbabu123/water-delivery-app-sub000"
)

// UserModel is the Bun model for user documents.
type UserModel struct {
	bun.BaseModel `bun:"table:users"`

	ID              string     `bun:"id,pk"`
	PhoneNumber     string     `bun:"phone_number,notnull,unique"`
	Role            string     `bun:"role"`
	Name            string     `bun:"name"`
	Email           string     `bun:"email"`
	CommunityID     string     `bun:"community_id"`
	ApartmentNumber string     `bun:"apartment_number"`
	ProfileComplete bool       `bun:"profile_complete,notnull"`
	LastLoginAt     *time.Time `bun:"last_login_at"`
	CreatedAt       time.Time  `bun:"created_at,notnull"`
	UpdatedAt       time.Time  `bun:"updated_at,notnull"`
}

// UserRepository implements auth.DocumentStore and auth.UserWriter using Bun.
type UserRepository struct {
	db  *bun.DB
	now func() time.Time
}

var (
	_ auth.DocumentStore = (*UserRepository)(nil)
	_ auth.UserWriter    = (*UserRepository)(nil)
)

// NewUserRepository creates a new repository.
func NewUserRepository(db *bun.DB) *UserRepository {
	return &UserRepository{db: db, now: time.Now}
}

// Migrate creates the users table.
func (r *UserRepository) Migrate(ctx context.Context) error {
	_, err := r.db.NewCreateTable().
		Model((*UserModel)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create users table")
	}
	return nil
}

// GetUserByID implements auth.DocumentStore.
func (r *UserRepository) GetUserByID(ctx context.Context, id string) (*auth.UserRecord, error) {
	return r.findOne(ctx, "id = ?", id)
}

// FindUserByPhone implements auth.DocumentStore.
func (r *UserRepository) FindUserByPhone(ctx context.Context, phone string) (*auth.UserRecord, error) {
	return r.findOne(ctx, "phone_number = ?", phone)
}

// CreateUser implements auth.DocumentStore. New users have no role and an
// incomplete profile. An empty id is replaced with a random one.
func (r *UserRepository) CreateUser(ctx context.Context, id, phone string) (*auth.UserRecord, error) {
	if strings.TrimSpace(id) == "" {
		id = uuid.NewString()
	}

	record := auth.NewUserRecord(id, phone)
	model := fromUserRecord(record)
	model.CreatedAt = r.now().UTC()
	model.UpdatedAt = model.CreatedAt

	if _, err := r.db.NewInsert().Model(model).Exec(ctx); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create user").
			WithMetadata(map[string]any{"user_id": id})
	}
	return record, nil
}

// UpdateUser implements auth.UserWriter.
func (r *UserRepository) UpdateUser(ctx context.Context, record *auth.UserRecord) error {
	if record == nil || record.UserID == "" {
		return goerrors.New("user record is required", goerrors.CategoryBadInput).
			WithTextCode("USER_RECORD_REQUIRED").
			WithCode(goerrors.CodeBadRequest)
	}

	model := fromUserRecord(record)
	model.UpdatedAt = r.now().UTC()

	res, err := r.db.NewUpdate().
		Model(model).
		Column("role", "name", "email", "community_id", "apartment_number",
			"profile_complete", "last_login_at", "updated_at").
		WherePK().
		Exec(ctx)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to update user").
			WithMetadata(map[string]any{"user_id": record.UserID})
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return auth.ErrUserNotFound.Clone().WithMetadata(map[string]any{"user_id": record.UserID})
	}
	return nil
}

func (r *UserRepository) findOne(ctx context.Context, query string, arg any) (*auth.UserRecord, error) {
	var model UserModel
	err := r.db.NewSelect().
		Model(&model).
		Where(query, arg).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load user")
	}
	return toUserRecord(&model), nil
}

func fromUserRecord(record *auth.UserRecord) *UserModel {
	model := &UserModel{
		ID:          record.UserID,
		PhoneNumber: record.PhoneNumber,
		Role:        record.Role,
		LastLoginAt: record.LastLoginAt,
	}
	if p := record.Profile; p != nil {
		model.Name = p.Name
		model.Email = p.Email
		model.CommunityID = p.CommunityID
		model.ApartmentNumber = p.ApartmentNumber
		model.ProfileComplete = p.IsProfileComplete
	}
	return model
}

func toUserRecord(model *UserModel) *auth.UserRecord {
	record := &auth.UserRecord{
		UserID:      model.ID,
		PhoneNumber: model.PhoneNumber,
		Role:        model.Role,
		Profile: &auth.Profile{
			Name:              model.Name,
			Email:             model.Email,
			CommunityID:       model.CommunityID,
			ApartmentNumber:   model.ApartmentNumber,
			IsProfileComplete: model.ProfileComplete,
		},
	}
	if model.LastLoginAt != nil {
		t := model.LastLoginAt.UTC()
		record.LastLoginAt = &t
	}
	return record
}
