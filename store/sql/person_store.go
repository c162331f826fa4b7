package sqlstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-access/core"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

type PersonStore struct {
	db   *bun.DB
	repo repository.Repository[*personRecord]
}

func (s *PersonStore) Create(ctx context.Context, in core.CreatePersonInput) (core.Person, error) {
	if s == nil || s.repo == nil {
		return core.Person{}, fmt.Errorf("sqlstore: person store is not configured")
	}
	if strings.TrimSpace(in.Username) == "" {
		return core.Person{}, fmt.Errorf("sqlstore: username is required")
	}
	if strings.TrimSpace(in.Email) == "" {
		return core.Person{}, fmt.Errorf("sqlstore: email is required")
	}
	if strings.TrimSpace(in.PasswordHash) == "" {
		return core.Person{}, fmt.Errorf("sqlstore: password hash is required")
	}

	record := newPersonRecord(in, time.Now().UTC())
	created, err := s.repo.Create(ctx, record)
	if err != nil {
		return core.Person{}, err
	}
	return created.toDomain(), nil
}

func (s *PersonStore) Get(ctx context.Context, id string) (core.Person, error) {
	if s == nil || s.repo == nil {
		return core.Person{}, fmt.Errorf("sqlstore: person store is not configured")
	}
	record, err := s.repo.GetByID(ctx, strings.TrimSpace(id))
	if err != nil {
		if isNoRows(err) {
			return core.Person{}, fmt.Errorf("%w: %s", core.ErrPersonNotFound, id)
		}
		return core.Person{}, err
	}
	return record.toDomain(), nil
}

// FindByIdentifier matches either the username or the email column,
// which is how login forms address people.
func (s *PersonStore) FindByIdentifier(ctx context.Context, identifier string) (core.Person, error) {
	if s == nil || s.repo == nil {
		return core.Person{}, fmt.Errorf("sqlstore: person store is not configured")
	}
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return core.Person{}, fmt.Errorf("%w: empty identifier", core.ErrPersonNotFound)
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectRawProcessor(func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("?TableAlias.username = ? OR ?TableAlias.email = ?", identifier, identifier)
		}),
		repository.SelectPaginate(1, 0),
	)
	if err != nil {
		return core.Person{}, err
	}
	if len(records) == 0 {
		return core.Person{}, fmt.Errorf("%w: %s", core.ErrPersonNotFound, identifier)
	}
	return records[0].toDomain(), nil
}

func (s *PersonStore) FindByEmail(ctx context.Context, email string) (core.Person, error) {
	if s == nil || s.repo == nil {
		return core.Person{}, fmt.Errorf("sqlstore: person store is not configured")
	}
	email = strings.TrimSpace(email)
	records, _, err := s.repo.List(ctx,
		repository.SelectRawProcessor(func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("LOWER(?TableAlias.email) = LOWER(?)", email)
		}),
		repository.SelectPaginate(1, 0),
	)
	if err != nil {
		return core.Person{}, err
	}
	if len(records) == 0 {
		return core.Person{}, fmt.Errorf("%w: %s", core.ErrPersonNotFound, email)
	}
	return records[0].toDomain(), nil
}

func (s *PersonStore) UpdatePassword(ctx context.Context, personID string, passwordHash string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: person store is not configured")
	}
	trimmedID := strings.TrimSpace(personID)
	if trimmedID == "" {
		return fmt.Errorf("sqlstore: person id is required")
	}
	if strings.TrimSpace(passwordHash) == "" {
		return fmt.Errorf("sqlstore: password hash is required")
	}

	result, err := s.db.NewUpdate().
		Model((*personRecord)(nil)).
		Set("password_hash = ?", passwordHash).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", trimmedID).
		Exec(ctx)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", core.ErrPersonNotFound, trimmedID)
	}
	return nil
}

// MarkEmailVerified consumes a verification token: one update flips the
// flag and clears the token, so a second presentation finds nothing.
func (s *PersonStore) MarkEmailVerified(ctx context.Context, verificationToken string) (core.Person, error) {
	if s == nil || s.db == nil || s.repo == nil {
		return core.Person{}, fmt.Errorf("sqlstore: person store is not configured")
	}
	token := strings.TrimSpace(verificationToken)
	if token == "" {
		return core.Person{}, fmt.Errorf("%w: empty verification token", core.ErrPersonNotFound)
	}

	var verified core.Person
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		record := &personRecord{}
		if err := tx.NewSelect().
			Model(record).
			Where("?TableAlias.email_verification_token = ?", token).
			Limit(1).
			Scan(ctx); err != nil {
			if isNoRows(err) {
				return fmt.Errorf("%w: verification token", core.ErrPersonNotFound)
			}
			return err
		}

		if _, err := tx.NewUpdate().
			Model((*personRecord)(nil)).
			Set("is_email_verified = ?", true).
			Set("email_verification_token = ?", "").
			Set("updated_at = ?", time.Now().UTC()).
			Where("id = ?", record.ID).
			Exec(ctx); err != nil {
			return err
		}

		record.EmailVerified = true
		record.EmailVerificationToken = ""
		verified = record.toDomain()
		return nil
	})
	if err != nil {
		return core.Person{}, err
	}
	return verified, nil
}
