// Package attachment binds stored media to owning entities.
//
// Callers may reference either an original or one of its variants; the whole
// family (original plus every variant) is attached together. The main flag of
// each record is decided in this order:
//
//  1. an explicit selection of the record itself;
//  2. an explicit selection of its parent;
//  3. any explicit main selection within the same family;
//  4. false.
package attachment

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ondrasimku/media-pipeline/internal/domain"
	"github.com/ondrasimku/media-pipeline/internal/repository"
)

type Resolver struct {
	repo   *repository.MediaRepository
	logger *slog.Logger
}

func NewResolver(repo *repository.MediaRepository, logger *slog.Logger) *Resolver {
	return &Resolver{
		repo:   repo,
		logger: logger.With("component", "attachment_resolver"),
	}
}

// Resolve returns the records to persist for owner with is_main and the owner
// reference already set. Selections pointing at unknown media are dropped.
func (r *Resolver) Resolve(ctx context.Context, owner domain.Owner, selections []domain.Selection) ([]domain.MediaRecord, error) {
	if len(selections) == 0 {
		return nil, nil
	}

	explicit := make(map[uint]bool, len(selections))
	ids := make([]uint, 0, len(selections))
	for _, sel := range selections {
		if sel.MediaID == 0 {
			return nil, fmt.Errorf("%w: media id is required", domain.ErrInvalidSelection)
		}
		if _, seen := explicit[sel.MediaID]; !seen {
			ids = append(ids, sel.MediaID)
		}
		// later selections of the same id win
		explicit[sel.MediaID] = sel.IsMain
	}

	selected, err := r.repo.FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	if len(selected) < len(ids) {
		r.logDropped(ids, selected)
	}
	if len(selected) == 0 {
		return nil, nil
	}

	rootSet := make(map[uint]struct{}, len(selected))
	roots := make([]uint, 0, len(selected))
	for i := range selected {
		root := selected[i].RootID()
		if _, ok := rootSet[root]; !ok {
			rootSet[root] = struct{}{}
			roots = append(roots, root)
		}
	}

	records, err := r.repo.FindFamilies(ctx, roots)
	if err != nil {
		return nil, err
	}

	familyMain := make(map[uint]bool, len(roots))
	for i := range records {
		if explicit[records[i].ID] {
			familyMain[records[i].RootID()] = true
		}
	}

	ownerType, ownerID := owner.Type, owner.ID
	for i := range records {
		rec := &records[i]
		rec.IsMain = resolveMain(rec, explicit, familyMain)
		rec.OwnerType = &ownerType
		rec.OwnerID = &ownerID
	}
	return records, nil
}

func resolveMain(rec *domain.MediaRecord, explicit map[uint]bool, familyMain map[uint]bool) bool {
	if v, ok := explicit[rec.ID]; ok {
		return v
	}
	if rec.ParentID != nil {
		if v, ok := explicit[*rec.ParentID]; ok {
			return v
		}
	}
	return familyMain[rec.RootID()]
}

func (r *Resolver) logDropped(requested []uint, found []domain.MediaRecord) {
	present := make(map[uint]struct{}, len(found))
	for i := range found {
		present[found[i].ID] = struct{}{}
	}
	var missing []uint
	for _, id := range requested {
		if _, ok := present[id]; !ok {
			missing = append(missing, id)
		}
	}
	r.logger.Warn("Dropping selections for unknown media", "ids", missing)
}
