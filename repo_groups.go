package localuser

import (
	"context"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Groups provisions and resolves authorization groups
type Groups interface {
	repository.Repository[*Group]

	// Ensure idempotently provisions a group. A collision on the unique
	// code is treated as success, not an error.
	Ensure(ctx context.Context, code, name string) error
	EnsureTx(ctx context.Context, tx bun.IDB, code, name string) error
	GetByCode(ctx context.Context, code string) (*Group, error)
}

type groups struct {
	repository.Repository[*Group]
	db *bun.DB
}

var _ Groups = (*groups)(nil)

func NewGroupsRepository(db *bun.DB) Groups {
	repo := repository.NewRepository[*Group](db, repository.ModelHandlers[*Group]{
		NewRecord: func() *Group { return &Group{} },
		GetID: func(g *Group) uuid.UUID {
			if g == nil {
				return uuid.Nil
			}
			return g.ID
		},
		SetID: func(g *Group, id uuid.UUID) {
			if g != nil {
				g.ID = id
			}
		},
		GetIdentifier: func() string {
			return "code"
		},
	})

	return &groups{
		Repository: repo,
		db:         db,
	}
}

func (g *groups) Ensure(ctx context.Context, code, name string) error {
	return g.EnsureTx(ctx, g.db, code, name)
}

func (g *groups) EnsureTx(ctx context.Context, tx bun.IDB, code, name string) error {
	record := &Group{
		Code:   code,
		Name:   name,
		Active: true,
	}
	prepareGroupDefaults(record)

	_, err := tx.NewInsert().
		Model(record).
		On("CONFLICT DO NOTHING").
		Exec(ctx)

	if err != nil {
		return wrapInternal(err, "failed to provision group")
	}

	return nil
}

func (g *groups) GetByCode(ctx context.Context, code string) (*Group, error) {
	record := &Group{}
	err := g.db.NewSelect().
		Model(record).
		Where("?TableAlias.code = ?", code).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{"code": code})
		}
		return nil, err
	}

	return record, nil
}
