package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-access/core"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

type GrantStore struct {
	db   *bun.DB
	repo repository.Repository[*tokenGrantRecord]
}

func (s *GrantStore) Create(ctx context.Context, in core.CreateGrantInput) (core.TokenGrant, error) {
	if s == nil || s.repo == nil {
		return core.TokenGrant{}, fmt.Errorf("sqlstore: grant store is not configured")
	}
	if strings.TrimSpace(in.ClientID) == "" {
		return core.TokenGrant{}, fmt.Errorf("sqlstore: client id is required")
	}
	if err := in.GrantType.Validate(); err != nil {
		return core.TokenGrant{}, err
	}

	record := newTokenGrantRecord(in, time.Now().UTC())
	created, err := s.repo.Create(ctx, record)
	if err != nil {
		return core.TokenGrant{}, err
	}
	return created.toDomain(), nil
}

func (s *GrantStore) Get(ctx context.Context, id string) (core.TokenGrant, error) {
	if s == nil || s.repo == nil {
		return core.TokenGrant{}, fmt.Errorf("sqlstore: grant store is not configured")
	}
	record, err := s.repo.GetByID(ctx, strings.TrimSpace(id))
	if err != nil {
		if isNoRows(err) {
			return core.TokenGrant{}, fmt.Errorf("%w: %s", core.ErrGrantNotFound, id)
		}
		return core.TokenGrant{}, err
	}
	return record.toDomain(), nil
}

func (s *GrantStore) GetByCode(ctx context.Context, code string) (core.TokenGrant, error) {
	return s.getBy(ctx, "code", code)
}

func (s *GrantStore) GetByRefreshToken(ctx context.Context, refreshToken string) (core.TokenGrant, error) {
	if s == nil || s.repo == nil {
		return core.TokenGrant{}, fmt.Errorf("sqlstore: grant store is not configured")
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("refresh_token", "=", strings.TrimSpace(refreshToken)),
		repository.SelectBy("is_revoked", "=", false),
		repository.SelectPaginate(1, 0),
	)
	if err != nil {
		return core.TokenGrant{}, err
	}
	if len(records) == 0 {
		return core.TokenGrant{}, fmt.Errorf("%w: refresh token", core.ErrGrantNotFound)
	}
	return records[0].toDomain(), nil
}

func (s *GrantStore) getBy(ctx context.Context, column string, value string) (core.TokenGrant, error) {
	if s == nil || s.repo == nil {
		return core.TokenGrant{}, fmt.Errorf("sqlstore: grant store is not configured")
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return core.TokenGrant{}, fmt.Errorf("%w: %s", core.ErrGrantNotFound, column)
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectBy(column, "=", value),
		repository.SelectPaginate(1, 0),
	)
	if err != nil {
		return core.TokenGrant{}, err
	}
	if len(records) == 0 {
		return core.TokenGrant{}, fmt.Errorf("%w: %s", core.ErrGrantNotFound, column)
	}
	return records[0].toDomain(), nil
}

// Rotate swaps the token pair behind a refresh token in one guarded
// update. The WHERE clause is the whole concurrency story: the row must
// still carry the presented refresh token and must not be revoked, so
// of any number of concurrent rotations exactly one matches a row.
func (s *GrantStore) Rotate(ctx context.Context, in core.RotateGrantInput) (core.TokenGrant, bool, error) {
	if s == nil || s.db == nil {
		return core.TokenGrant{}, false, fmt.Errorf("sqlstore: grant store is not configured")
	}
	previous := strings.TrimSpace(in.PreviousRefreshToken)
	if previous == "" {
		return core.TokenGrant{}, false, fmt.Errorf("sqlstore: previous refresh token is required")
	}

	result, err := s.db.NewUpdate().
		Model((*tokenGrantRecord)(nil)).
		Set("access_token = ?", in.AccessToken).
		Set("refresh_token = ?", in.RefreshToken).
		Set("updated_at = ?", time.Now().UTC()).
		Where("refresh_token = ?", previous).
		Where("is_revoked = ?", false).
		Exec(ctx)
	if err != nil {
		return core.TokenGrant{}, false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return core.TokenGrant{}, false, err
	}
	if affected == 0 {
		return core.TokenGrant{}, false, nil
	}

	rotated, err := s.GetByRefreshToken(ctx, in.RefreshToken)
	if err != nil {
		return core.TokenGrant{}, false, err
	}
	return rotated, true, nil
}

func (s *GrantStore) MarkCodeUsed(ctx context.Context, id string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: grant store is not configured")
	}
	trimmedID := strings.TrimSpace(id)
	if trimmedID == "" {
		return fmt.Errorf("sqlstore: grant id is required")
	}
	// Burns the code only when it is still unused. Zero rows means a
	// concurrent exchange already won the swap, the same discipline
	// Rotate applies to refresh tokens.
	result, err := s.db.NewUpdate().
		Model((*tokenGrantRecord)(nil)).
		Set("is_code_used = ?", true).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", trimmedID).
		Where("is_code_used = ?", false).
		Exec(ctx)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", core.ErrCodeUsed, trimmedID)
	}
	return nil
}

func (s *GrantStore) Revoke(ctx context.Context, in core.RevokeGrantInput) (int64, error) {
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("sqlstore: grant store is not configured")
	}
	trimmedID := strings.TrimSpace(in.ID)
	trimmedToken := strings.TrimSpace(in.RefreshToken)
	if trimmedID == "" && trimmedToken == "" {
		return 0, fmt.Errorf("sqlstore: grant id or refresh token is required")
	}

	query := s.db.NewUpdate().
		Model((*tokenGrantRecord)(nil)).
		Set("is_revoked = ?", true).
		Set("revoked_at = ?", time.Now().UTC()).
		Set("updated_at = ?", time.Now().UTC()).
		Where("is_revoked = ?", false)
	if trimmedID != "" {
		query = query.Where("id = ?", trimmedID)
	} else {
		query = query.Where("refresh_token = ?", trimmedToken)
	}

	result, err := query.Exec(ctx)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (s *GrantStore) RevokeMany(ctx context.Context, ids []string) (int64, error) {
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("sqlstore: grant store is not configured")
	}
	trimmed := make([]string, 0, len(ids))
	for _, id := range ids {
		if id = strings.TrimSpace(id); id != "" {
			trimmed = append(trimmed, id)
		}
	}
	if len(trimmed) == 0 {
		return 0, nil
	}

	result, err := s.db.NewUpdate().
		Model((*tokenGrantRecord)(nil)).
		Set("is_revoked = ?", true).
		Set("revoked_at = ?", time.Now().UTC()).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id IN (?)", bun.In(trimmed)).
		Where("is_revoked = ?", false).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (s *GrantStore) List(ctx context.Context, filter core.GrantFilter) (core.GrantPage, error) {
	if s == nil || s.repo == nil {
		return core.GrantPage{}, fmt.Errorf("sqlstore: grant store is not configured")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	perPage := filter.PerPage
	if perPage < 1 {
		perPage = 25
	}

	criteria := []repository.SelectCriteria{
		repository.OrderBy("created_at DESC"),
		repository.SelectPaginate(perPage, (page-1)*perPage),
	}
	if trimmed := strings.TrimSpace(filter.PersonID); trimmed != "" {
		criteria = append(criteria, repository.SelectBy("person_id", "=", trimmed))
	}
	if trimmed := strings.TrimSpace(filter.ClientID); trimmed != "" {
		criteria = append(criteria, repository.SelectBy("client_id", "=", trimmed))
	}
	if trimmed := strings.TrimSpace(string(filter.GrantType)); trimmed != "" {
		criteria = append(criteria, repository.SelectBy("grant_type", "=", trimmed))
	}
	if filter.Revoked != nil {
		criteria = append(criteria, repository.SelectBy("is_revoked", "=", *filter.Revoked))
	}
	if filter.CreatedAt != nil {
		criteria = append(criteria, repository.SelectBy("created_at", ">=", filter.CreatedAt.UTC()))
	}

	records, total, err := s.repo.List(ctx, criteria...)
	if err != nil {
		return core.GrantPage{}, err
	}

	items := make([]core.TokenGrant, 0, len(records))
	for _, record := range records {
		items = append(items, record.toDomain())
	}
	return core.GrantPage{
		Items:   items,
		Page:    page,
		PerPage: perPage,
		Total:   total,
		HasNext: page*perPage < total,
	}, nil
}

// DeleteRevokedBefore prunes revoked grants past retention. Live rows
// never match: revocation is a precondition of deletion.
func (s *GrantStore) DeleteRevokedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("sqlstore: grant store is not configured")
	}
	result, err := s.db.NewDelete().
		Model((*tokenGrantRecord)(nil)).
		Where("is_revoked = ?", true).
		Where("revoked_at < ?", cutoff.UTC()).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func isNoRows(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, sql.ErrNoRows) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "not found")
}
