package tournament

import (
	"context"

	"github.com/google/uuid"
	"github.com/koustreak/quizmeet/internal/outcome"
)

// Repository is the storage the service needs. *Store implements it.
type Repository interface {
	Create(ctx context.Context, c Changeset) (Tournament, error)
	Get(ctx context.Context, id uuid.UUID) (Tournament, error)
	List(ctx context.Context, p Page) ([]Tournament, error)
	Between(ctx context.Context, from, to Date) ([]Tournament, error)
	Current(ctx context.Context) ([]Tournament, error)
	Update(ctx context.Context, id uuid.UUID, c Changeset) (Tournament, error)
	Delete(ctx context.Context, id uuid.UUID) (Deleted, error)
}

// Service runs tournament operations and translates every result into an
// envelope.
type Service struct {
	repo Repository
	tr   *outcome.Translator
}

// NewService returns a Service. tr may be nil.
func NewService(repo Repository, tr *outcome.Translator) *Service {
	return &Service{repo: repo, tr: tr}
}

func (s *Service) Create(ctx context.Context, c Changeset) outcome.Envelope[Tournament] {
	return outcome.Translate(s.tr, outcome.From(s.repo.Create(ctx, c)), outcome.OpCreate, Entity)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) outcome.Envelope[Tournament] {
	return outcome.Translate(s.tr, outcome.From(s.repo.Get(ctx, id)), outcome.OpRead, Entity)
}

func (s *Service) List(ctx context.Context, p Page) outcome.Envelope[[]Tournament] {
	return outcome.Translate(s.tr, outcome.From(s.repo.List(ctx, p)), outcome.OpList, Entity)
}

func (s *Service) Between(ctx context.Context, from, to Date) outcome.Envelope[[]Tournament] {
	return outcome.Translate(s.tr, outcome.From(s.repo.Between(ctx, from, to)), outcome.OpList, Entity)
}

func (s *Service) Current(ctx context.Context) outcome.Envelope[[]Tournament] {
	return outcome.Translate(s.tr, outcome.From(s.repo.Current(ctx)), outcome.OpList, Entity)
}

func (s *Service) Update(ctx context.Context, id uuid.UUID, c Changeset) outcome.Envelope[Tournament] {
	return outcome.Translate(s.tr, outcome.From(s.repo.Update(ctx, id, c)), outcome.OpUpdate, Entity)
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) outcome.Envelope[Deleted] {
	return outcome.Translate(s.tr, outcome.From(s.repo.Delete(ctx, id)), outcome.OpDelete, Entity)
}
