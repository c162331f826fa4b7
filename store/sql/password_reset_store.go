package sqlstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-access/core"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type PasswordResetStore struct {
	db       *bun.DB
	requests repository.Repository[*passwordResetRequestRecord]
}

func NewPasswordResetStore(db *bun.DB) (*PasswordResetStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	return &PasswordResetStore{
		db:       db,
		requests: repository.NewRepository[*passwordResetRequestRecord](db, passwordResetRequestHandlers()),
	}, nil
}

func (s *PasswordResetStore) CreateRequest(ctx context.Context, in core.CreatePasswordResetInput) (core.PasswordResetRequest, error) {
	if s == nil || s.db == nil {
		return core.PasswordResetRequest{}, fmt.Errorf("sqlstore: password reset store is not configured")
	}
	if strings.TrimSpace(in.PersonID) == "" {
		return core.PasswordResetRequest{}, fmt.Errorf("sqlstore: person id is required")
	}
	if strings.TrimSpace(in.Token) == "" {
		return core.PasswordResetRequest{}, fmt.Errorf("sqlstore: reset token is required")
	}

	record := newPasswordResetRequestRecord(in)
	created, err := s.requests.Create(ctx, record)
	if err != nil {
		return core.PasswordResetRequest{}, err
	}
	return created.toDomain(), nil
}

func (s *PasswordResetStore) GetRequestByToken(ctx context.Context, token string) (core.PasswordResetRequest, error) {
	if s == nil || s.db == nil {
		return core.PasswordResetRequest{}, fmt.Errorf("sqlstore: password reset store is not configured")
	}
	records, _, err := s.requests.List(ctx,
		repository.SelectBy("token", "=", strings.TrimSpace(token)),
		repository.SelectPaginate(1, 0),
	)
	if err != nil {
		return core.PasswordResetRequest{}, err
	}
	if len(records) == 0 {
		return core.PasswordResetRequest{}, goerrors.New("password reset request not found", goerrors.CategoryNotFound)
	}
	return records[0].toDomain(), nil
}

func (s *PasswordResetStore) Completed(ctx context.Context, requestID string) (bool, error) {
	if s == nil || s.db == nil {
		return false, fmt.Errorf("sqlstore: password reset store is not configured")
	}
	return s.db.NewSelect().
		Model((*passwordResetRecord)(nil)).
		Where("pwr.request_id = ?", strings.TrimSpace(requestID)).
		Exists(ctx)
}

// Complete records the consumption and swaps the password hash in one
// transaction so a re-used link cannot half-apply.
func (s *PasswordResetStore) Complete(ctx context.Context, in core.CompletePasswordResetInput) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: password reset store is not configured")
	}
	if strings.TrimSpace(in.RequestID) == "" {
		return fmt.Errorf("sqlstore: request id is required")
	}
	if strings.TrimSpace(in.PersonID) == "" {
		return fmt.Errorf("sqlstore: person id is required")
	}
	if strings.TrimSpace(in.PasswordHash) == "" {
		return fmt.Errorf("sqlstore: password hash is required")
	}

	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		exists, err := tx.NewSelect().
			Model((*passwordResetRecord)(nil)).
			Where("pwr.request_id = ?", strings.TrimSpace(in.RequestID)).
			Exists(ctx)
		if err != nil {
			return err
		}
		if exists {
			return goerrors.New("password reset already completed", goerrors.CategoryConflict)
		}

		completion := &passwordResetRecord{
			ID:        uuid.NewString(),
			RequestID: strings.TrimSpace(in.RequestID),
			PersonID:  strings.TrimSpace(in.PersonID),
			RemoteIP:  strings.TrimSpace(in.RemoteIP),
			CreatedAt: time.Now().UTC(),
		}
		if _, err := tx.NewInsert().Model(completion).Exec(ctx); err != nil {
			return err
		}

		res, err := tx.NewUpdate().
			Model((*personRecord)(nil)).
			Set("password_hash = ?", in.PasswordHash).
			Set("updated_at = ?", time.Now().UTC()).
			Where("id = ?", strings.TrimSpace(in.PersonID)).
			Exec(ctx)
		if err != nil {
			return err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return fmt.Errorf("%w: %s", core.ErrPersonNotFound, in.PersonID)
		}
		return nil
	})
}
