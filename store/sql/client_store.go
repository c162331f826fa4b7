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

type ClientStore struct {
	db   *bun.DB
	repo repository.Repository[*clientRecord]
}

func (s *ClientStore) Create(ctx context.Context, in core.CreateClientInput) (core.Client, error) {
	if s == nil || s.repo == nil {
		return core.Client{}, fmt.Errorf("sqlstore: client store is not configured")
	}
	if strings.TrimSpace(in.ID) == "" {
		return core.Client{}, fmt.Errorf("sqlstore: client id is required")
	}
	if strings.TrimSpace(in.SecretHash) == "" {
		return core.Client{}, fmt.Errorf("sqlstore: secret hash is required")
	}
	if strings.TrimSpace(in.Label) == "" {
		return core.Client{}, fmt.Errorf("sqlstore: label is required")
	}

	// Client ids are caller chosen, not generated, so the insert goes
	// straight through bun instead of the repository id machinery.
	record := newClientRecord(in, time.Now().UTC())
	if _, err := s.db.NewInsert().Model(record).Exec(ctx); err != nil {
		return core.Client{}, err
	}
	return record.toDomain(), nil
}

func (s *ClientStore) Get(ctx context.Context, id string) (core.Client, error) {
	if s == nil || s.repo == nil {
		return core.Client{}, fmt.Errorf("sqlstore: client store is not configured")
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("id", "=", strings.TrimSpace(id)),
		repository.SelectPaginate(1, 0),
	)
	if err != nil {
		return core.Client{}, err
	}
	if len(records) == 0 {
		return core.Client{}, fmt.Errorf("%w: %s", core.ErrClientNotFound, id)
	}
	return records[0].toDomain(), nil
}
