package sla

import (
	"context"
	"sort"

	"github.com/spec-kit/sla-service/internal/domain"
)

// EscalationStore lists the levels of one chain. A nil categoryID selects the
// organization-wide chain for the priority.
type EscalationStore interface {
	ListLevels(ctx context.Context, organizationID string, priority domain.TicketPriority, categoryID *string) ([]domain.EscalationLevel, error)
}

// EscalationResolver looks up escalation chains with category fallback.
type EscalationResolver struct {
	store EscalationStore
}

// NewEscalationResolver constructs a resolver over store.
func NewEscalationResolver(store EscalationStore) *EscalationResolver {
	return &EscalationResolver{store: store}
}

// FetchLevels returns the chain for the category, falling back to the
// organization-wide chain when a category is given but has no levels.
// The result is ordered by ascending level.
func (r *EscalationResolver) FetchLevels(ctx context.Context, organizationID string, priority domain.TicketPriority, categoryID *string) ([]domain.EscalationLevel, error) {
	levels, err := r.store.ListLevels(ctx, organizationID, priority, categoryID)
	if err != nil {
		return nil, err
	}
	if len(levels) == 0 && categoryID != nil {
		levels, err = r.store.ListLevels(ctx, organizationID, priority, nil)
		if err != nil {
			return nil, err
		}
	}
	sorted := append([]domain.EscalationLevel(nil), levels...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Level < sorted[j].Level })
	return sorted, nil
}

// NextLevel picks the first level above current, or the first level when
// current is nil. It returns false when the chain is empty or exhausted.
func NextLevel(levels []domain.EscalationLevel, current *int) (domain.EscalationLevel, bool) {
	if len(levels) == 0 {
		return domain.EscalationLevel{}, false
	}
	if current == nil {
		return levels[0], true
	}
	for _, lvl := range levels {
		if lvl.Level > *current {
			return lvl, true
		}
	}
	return domain.EscalationLevel{}, false
}
