package repository

import (
	"context"

	"github.com/freeeve/qdice/internal/model"
	"github.com/freeeve/qdice/pkg/dice"
)

// TableRepository persists table state keyed by tag. Get returns nil, nil
// when the tag has never been saved.
type TableRepository interface {
	Get(ctx context.Context, tag string) (*dice.Table, error)
	Save(ctx context.Context, t *dice.Table) error
	List(ctx context.Context) ([]*dice.Table, error)
	Delete(ctx context.Context, tag string) error
}

// UserRepository defines user data operations.
type UserRepository interface {
	FindByID(ctx context.Context, id string) (*model.User, error)
	Upsert(ctx context.Context, provider, providerID, displayName, avatarURL string) (*model.User, error)
	AddPoints(ctx context.Context, id string, delta int) error
}

// ChatLog keeps the most recent chat lines per table.
type ChatLog interface {
	Append(ctx context.Context, tag string, line model.ChatLine) error
	Recent(ctx context.Context, tag string) ([]model.ChatLine, error)
}
