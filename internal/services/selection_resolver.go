package services

import (
	"bytes"
	"context"
	"fmt"
	"sort"

	"catalog-service/internal/models"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// SelectionStore is the read side the resolver needs from the data store
type SelectionStore interface {
	FindOwnedProductIDs(ctx context.Context, tenantID string, ids []uuid.UUID) ([]uuid.UUID, error)
	FindProductIDsByFilter(ctx context.Context, tenantID string, filter models.ProductFilter, search *string) ([]uuid.UUID, error)
}

// SelectionResolver turns a logical selection into the concrete, tenant-owned product ids
// it denotes right now. It never writes.
type SelectionResolver struct {
	logger *logrus.Entry
}

func NewSelectionResolver(logger *logrus.Logger) *SelectionResolver {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &SelectionResolver{logger: logger.WithField("component", "selection-resolver")}
}

// Resolve evaluates sel against store for one tenant. The result is de-duplicated and
// sorted ascending by id bytes. Ids the tenant does not own are dropped silently.
func (r *SelectionResolver) Resolve(ctx context.Context, store SelectionStore, tenantID string, sel models.Selection) (*models.ResolvedSelection, error) {
	if tenantID == "" {
		return nil, validationError("tenant id is required")
	}

	var (
		ids []uuid.UUID
		err error
	)

	switch s := sel.(type) {
	case models.ExplicitSelection:
		ids, err = r.resolveExplicit(ctx, store, tenantID, s)
	case models.FilterSelection:
		ids, err = r.resolveFilter(ctx, store, tenantID, s)
	case nil:
		return nil, validationError("selection is required")
	default:
		return nil, validationError("unsupported selection type %T", sel)
	}
	if err != nil {
		return nil, err
	}

	ids = sortUnique(ids)
	r.logger.WithFields(logrus.Fields{
		"tenant_id": tenantID,
		"mode":      models.ModeOf(sel),
		"count":     len(ids),
	}).Debug("Selection resolved")

	return &models.ResolvedSelection{IDs: ids, Count: len(ids)}, nil
}

func (r *SelectionResolver) resolveExplicit(ctx context.Context, store SelectionStore, tenantID string, sel models.ExplicitSelection) ([]uuid.UUID, error) {
	requested := sortUnique(append([]uuid.UUID(nil), sel.IDs...))
	if len(requested) == 0 {
		return []uuid.UUID{}, nil
	}
	owned, err := store.FindOwnedProductIDs(ctx, tenantID, requested)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve explicit selection: %w", mapRepositoryError(err))
	}
	return owned, nil
}

func (r *SelectionResolver) resolveFilter(ctx context.Context, store SelectionStore, tenantID string, sel models.FilterSelection) ([]uuid.UUID, error) {
	matched, err := store.FindProductIDsByFilter(ctx, tenantID, sel.Filter, sel.SearchQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve filter selection: %w", mapRepositoryError(err))
	}
	if len(sel.ExcludeIDs) == 0 {
		return matched, nil
	}

	excluded := make(map[uuid.UUID]struct{}, len(sel.ExcludeIDs))
	for _, id := range sel.ExcludeIDs {
		excluded[id] = struct{}{}
	}
	kept := matched[:0:0]
	for _, id := range matched {
		if _, skip := excluded[id]; !skip {
			kept = append(kept, id)
		}
	}
	return kept, nil
}

// sortUnique sorts ids ascending by byte order and drops repeats in place
func sortUnique(ids []uuid.UUID) []uuid.UUID {
	if len(ids) == 0 {
		return []uuid.UUID{}
	}
	sort.Slice(ids, func(i, j int) bool {
		return bytes.Compare(ids[i][:], ids[j][:]) < 0
	})
	out := ids[:1]
	for _, id := range ids[1:] {
		if id != out[len(out)-1] {
			out = append(out, id)
		}
	}
	return out
}
