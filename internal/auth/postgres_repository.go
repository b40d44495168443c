package auth

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	db *sqlx.DB
}

// NewPostgresRepository creates a new PostgresRepository.
func NewPostgresRepository(db *sqlx.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// FindUserByID looks up a user by primary key.
func (r *PostgresRepository) FindUserByID(ctx context.Context, id uuid.UUID) (*User, error) {
	const query = `
		SELECT id, federated_id, email, display_name, last_login_at, login_count, created_at, updated_at
		FROM users
		WHERE id = $1
	`
	return r.getUser(ctx, query, id)
}

// FindUserByFederatedID looks up a user by external identity provider subject.
func (r *PostgresRepository) FindUserByFederatedID(ctx context.Context, federatedID string) (*User, error) {
	const query = `
		SELECT id, federated_id, email, display_name, last_login_at, login_count, created_at, updated_at
		FROM users
		WHERE federated_id = $1
	`
	return r.getUser(ctx, query, federatedID)
}

// FindUserByEmail looks up a user by their email address.
func (r *PostgresRepository) FindUserByEmail(ctx context.Context, email string) (*User, error) {
	const query = `
		SELECT id, federated_id, email, display_name, last_login_at, login_count, created_at, updated_at
		FROM users
		WHERE email = $1
	`
	return r.getUser(ctx, query, email)
}

func (r *PostgresRepository) getUser(ctx context.Context, query string, arg any) (*User, error) {
	var row userRow
	if err := r.db.GetContext(ctx, &row, query, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return row.toUser(), nil
}

// CreateUser inserts a new user into the database.
func (r *PostgresRepository) CreateUser(ctx context.Context, user User) (User, error) {
	const query = `
		INSERT INTO users (id, federated_id, email, display_name, last_login_at, login_count, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.db.ExecContext(ctx, query,
		user.ID,
		nullString(user.FederatedID),
		user.Email,
		user.DisplayName,
		user.LastLoginAt,
		user.LoginCount,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		return User{}, err
	}

	return user, nil
}

// RecordUserLogin bumps the login counter and timestamps, linking the
// federated id and refreshing the display name when new values are provided.
func (r *PostgresRepository) RecordUserLogin(ctx context.Context, id uuid.UUID, federatedID, displayName string) error {
	const query = `
		UPDATE users
		SET login_count = login_count + 1,
			last_login_at = $2,
			updated_at = $2,
			federated_id = COALESCE(NULLIF($3, ''), federated_id),
			display_name = COALESCE(NULLIF($4, ''), display_name)
		WHERE id = $1
	`

	_, err := r.db.ExecContext(ctx, query, id, time.Now(), federatedID, displayName)
	return err
}

// CreateSession inserts a new session into the database.
func (r *PostgresRepository) CreateSession(ctx context.Context, session Session) error {
	const query = `
		INSERT INTO sessions (id, user_id, refresh_token, expires_at, device_info, last_used_at, ip_address, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.db.ExecContext(ctx, query,
		session.ID,
		session.UserID,
		session.RefreshToken,
		session.ExpiresAt,
		session.DeviceInfo,
		session.LastUsedAt,
		session.IPAddress,
		session.CreatedAt,
	)
	return err
}

// FindSessionByRefreshToken looks up a session by exact token match.
func (r *PostgresRepository) FindSessionByRefreshToken(ctx context.Context, refreshToken string) (*Session, error) {
	const query = `
		SELECT id, user_id, refresh_token, expires_at, device_info, last_used_at, ip_address, created_at
		FROM sessions
		WHERE refresh_token = $1
	`

	var row sessionRow
	if err := r.db.GetContext(ctx, &row, query, refreshToken); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return row.toSession(), nil
}

// RotateSession replaces the session's refresh token and metadata conditioned
// on the old token still being current. Zero rows affected means a concurrent
// rotation won.
func (r *PostgresRepository) RotateSession(ctx context.Context, id uuid.UUID, oldToken string, rotated SessionRotation) (bool, error) {
	const query = `
		UPDATE sessions
		SET refresh_token = $3, expires_at = $4, device_info = $5, last_used_at = $6, ip_address = $7
		WHERE id = $1 AND refresh_token = $2
	`

	result, err := r.db.ExecContext(ctx, query,
		id,
		oldToken,
		rotated.RefreshToken,
		rotated.ExpiresAt,
		rotated.DeviceInfo,
		rotated.LastUsedAt,
		rotated.IPAddress,
	)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

// DeleteSessionsByUser removes every session owned by the user.
func (r *PostgresRepository) DeleteSessionsByUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	const query = `DELETE FROM sessions WHERE user_id = $1`
	result, err := r.db.ExecContext(ctx, query, userID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// DeleteExpiredSessions removes all sessions past their refresh expiry.
func (r *PostgresRepository) DeleteExpiredSessions(ctx context.Context) (int64, error) {
	const query = `DELETE FROM sessions WHERE expires_at < $1`
	result, err := r.db.ExecContext(ctx, query, time.Now())
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// CreateVerificationCode inserts a new verification code row.
func (r *PostgresRepository) CreateVerificationCode(ctx context.Context, code VerificationCode) error {
	const query = `
		INSERT INTO verification_codes (id, email, code, expires_at, used, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.db.ExecContext(ctx, query,
		code.ID,
		code.Email,
		code.Code,
		code.ExpiresAt,
		code.Used,
		code.CreatedAt,
	)
	return err
}

// ConsumeVerificationCode marks a matching unused, unexpired code as used.
// The used = FALSE predicate makes the update a compare-and-swap, so two
// concurrent verifies elect a single winner.
func (r *PostgresRepository) ConsumeVerificationCode(ctx context.Context, email, code string) (bool, error) {
	const query = `
		UPDATE verification_codes
		SET used = TRUE
		WHERE email = $1 AND code = $2 AND used = FALSE AND expires_at > $3
	`

	result, err := r.db.ExecContext(ctx, query, email, code, time.Now())
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// DeleteExpiredVerificationCodes removes codes past expiry, used or not.
func (r *PostgresRepository) DeleteExpiredVerificationCodes(ctx context.Context) (int64, error) {
	const query = `DELETE FROM verification_codes WHERE expires_at < $1`
	result, err := r.db.ExecContext(ctx, query, time.Now())
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func nullString(value string) sql.NullString {
	return sql.NullString{String: value, Valid: value != ""}
}

// userRow is a database row representation of User.
type userRow struct {
	ID          uuid.UUID      `db:"id"`
	FederatedID sql.NullString `db:"federated_id"`
	Email       string         `db:"email"`
	DisplayName string         `db:"display_name"`
	LastLoginAt time.Time      `db:"last_login_at"`
	LoginCount  int64          `db:"login_count"`
	CreatedAt   time.Time      `db:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at"`
}

func (r *userRow) toUser() *User {
	return &User{
		ID:          r.ID,
		FederatedID: r.FederatedID.String,
		Email:       r.Email,
		DisplayName: r.DisplayName,
		LastLoginAt: r.LastLoginAt,
		LoginCount:  r.LoginCount,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

// sessionRow is a database row representation of Session.
type sessionRow struct {
	ID           uuid.UUID `db:"id"`
	UserID       uuid.UUID `db:"user_id"`
	RefreshToken string    `db:"refresh_token"`
	ExpiresAt    time.Time `db:"expires_at"`
	DeviceInfo   string    `db:"device_info"`
	LastUsedAt   time.Time `db:"last_used_at"`
	IPAddress    string    `db:"ip_address"`
	CreatedAt    time.Time `db:"created_at"`
}

func (r *sessionRow) toSession() *Session {
	return &Session{
		ID:           r.ID,
		UserID:       r.UserID,
		RefreshToken: r.RefreshToken,
		ExpiresAt:    r.ExpiresAt,
		DeviceInfo:   r.DeviceInfo,
		LastUsedAt:   r.LastUsedAt,
		IPAddress:    r.IPAddress,
		CreatedAt:    r.CreatedAt,
	}
}
