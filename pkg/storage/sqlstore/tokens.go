package sqlstore

import (
	"context"
	"database/sql"
	"time"

	"github.com/platinummonkey/taskcore/pkg/model"
)

// Token rows store only the SHA-256 hash of the opaque value; model Token
// fields carry that hash.

func (q *queries) CreateVerificationToken(ctx context.Context, t *model.VerificationToken) error {
	t.CreatedAt = utc(t.CreatedAt)
	err := q.db.QueryRowContext(ctx, `
		INSERT INTO verification_tokens (user_id, token_hash, expires_at, used_at, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, t.UserID, t.Token, t.ExpiresAt.UTC(), nullableTime(t.UsedAt), t.CreatedAt).Scan(&t.ID)
	return translate("create verification token", err)
}

func (q *queries) GetVerificationToken(ctx context.Context, tokenHash string) (*model.VerificationToken, error) {
	var (
		t      model.VerificationToken
		usedAt sql.NullTime
	)
	err := q.db.QueryRowContext(ctx, `
		SELECT id, user_id, token_hash, expires_at, used_at, created_at
		FROM verification_tokens WHERE token_hash = $1
	`, tokenHash).Scan(&t.ID, &t.UserID, &t.Token, &t.ExpiresAt, &usedAt, &t.CreatedAt)
	if err != nil {
		return nil, translate("get verification token", err)
	}
	t.UsedAt = timePtr(usedAt)
	return &t, nil
}

func (q *queries) MarkVerificationTokenUsed(ctx context.Context, id int64, at time.Time) (bool, error) {
	return q.transition(ctx, "mark verification token used",
		"UPDATE verification_tokens SET used_at = $1 WHERE id = $2 AND used_at IS NULL", at, id)
}

func (q *queries) CreateRefreshToken(ctx context.Context, t *model.RefreshToken) error {
	t.CreatedAt = utc(t.CreatedAt)
	err := q.db.QueryRowContext(ctx, `
		INSERT INTO refresh_tokens (user_id, token_hash, expires_at, revoked_at, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, t.UserID, t.Token, t.ExpiresAt.UTC(), nullableTime(t.RevokedAt), t.CreatedAt).Scan(&t.ID)
	return translate("create refresh token", err)
}

func (q *queries) GetRefreshToken(ctx context.Context, tokenHash string) (*model.RefreshToken, error) {
	var (
		t         model.RefreshToken
		revokedAt sql.NullTime
	)
	err := q.db.QueryRowContext(ctx, `
		SELECT id, user_id, token_hash, expires_at, revoked_at, created_at
		FROM refresh_tokens WHERE token_hash = $1
	`, tokenHash).Scan(&t.ID, &t.UserID, &t.Token, &t.ExpiresAt, &revokedAt, &t.CreatedAt)
	if err != nil {
		return nil, translate("get refresh token", err)
	}
	t.RevokedAt = timePtr(revokedAt)
	return &t, nil
}

func (q *queries) RevokeRefreshToken(ctx context.Context, id int64, at time.Time) (bool, error) {
	return q.transition(ctx, "revoke refresh token",
		"UPDATE refresh_tokens SET revoked_at = $1 WHERE id = $2 AND revoked_at IS NULL", at, id)
}

// transition runs a conditional update and reports whether it changed a row.
// Concurrent callers race on the WHERE clause; exactly one sees true.
func (q *queries) transition(ctx context.Context, op, query string, at time.Time, id int64) (bool, error) {
	res, err := q.db.ExecContext(ctx, query, at.UTC(), id)
	if err != nil {
		return false, translate(op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, translate(op, err)
	}
	return n == 1, nil
}

func (q *queries) PurgeTokens(ctx context.Context, cutoff time.Time) (int64, error) {
	cutoff = cutoff.UTC()
	var total int64
	for _, stmt := range []struct{ op, query string }{
		{"purge verification tokens", "DELETE FROM verification_tokens WHERE expires_at < $1 OR (used_at IS NOT NULL AND used_at < $1)"},
		{"purge refresh tokens", "DELETE FROM refresh_tokens WHERE expires_at < $1 OR (revoked_at IS NOT NULL AND revoked_at < $1)"},
	} {
		res, err := q.db.ExecContext(ctx, stmt.query, cutoff)
		if err != nil {
			return total, translate(stmt.op, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return total, translate(stmt.op, err)
		}
		total += n
	}
	return total, nil
}
