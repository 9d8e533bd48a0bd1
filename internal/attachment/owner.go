package attachment

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/ondrasimku/media-pipeline/internal/domain"
	"gorm.io/gorm"
)

// OwnerLookup reports whether an entity of one owner type exists.
type OwnerLookup interface {
	Exists(ctx context.Context, id string) (bool, error)
}

type OwnerLookupFunc func(ctx context.Context, id string) (bool, error)

func (f OwnerLookupFunc) Exists(ctx context.Context, id string) (bool, error) {
	return f(ctx, id)
}

// OwnerRegistry maps owner type tags onto the lookup that knows those entities.
type OwnerRegistry struct {
	mu      sync.RWMutex
	lookups map[string]OwnerLookup
}

func NewOwnerRegistry() *OwnerRegistry {
	return &OwnerRegistry{lookups: make(map[string]OwnerLookup)}
}

func (r *OwnerRegistry) Register(ownerType string, lookup OwnerLookup) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lookups[ownerType] = lookup
}

func (r *OwnerRegistry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]string, 0, len(r.lookups))
	for t := range r.lookups {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// Verify fails with domain.ErrUnknownOwnerType or domain.ErrNotFound.
func (r *OwnerRegistry) Verify(ctx context.Context, owner domain.Owner) error {
	r.mu.RLock()
	lookup, ok := r.lookups[owner.Type]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %q", domain.ErrUnknownOwnerType, owner.Type)
	}

	exists, err := lookup.Exists(ctx, owner.ID)
	if err != nil {
		return fmt.Errorf("look up owner %s: %w", owner, err)
	}
	if !exists {
		return fmt.Errorf("%w: owner %s", domain.ErrNotFound, owner)
	}
	return nil
}

// invalidTextRepresentation is raised by postgres when an id cannot be cast
// to the key column type, e.g. "abc" against an integer id.
const invalidTextRepresentation = "22P02"

// TableLookup checks owner existence by primary key in a table of the media database.
// An id the key column cannot represent does not exist.
type TableLookup struct {
	db    *gorm.DB
	table string
}

func NewTableLookup(db *gorm.DB, table string) *TableLookup {
	return &TableLookup{db: db, table: table}
}

func (l *TableLookup) Exists(ctx context.Context, id string) (bool, error) {
	var count int64
	if err := l.db.WithContext(ctx).Table(l.table).Where("id = ?", id).Count(&count).Error; err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == invalidTextRepresentation {
			return false, nil
		}
		return false, err
	}
	return count > 0, nil
}
