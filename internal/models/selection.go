package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SelectionMode is the wire discriminator of a SelectionRequest
type SelectionMode string

const (
	SelectionModeExplicit SelectionMode = "explicit"
	SelectionModeFilter   SelectionMode = "filter"
)

// Selection describes which products of one tenant a bulk operation targets.
// It is either an ExplicitSelection or a FilterSelection.
type Selection interface {
	selectionMode() SelectionMode
}

// ExplicitSelection targets exactly the listed products
type ExplicitSelection struct {
	IDs []uuid.UUID
}

func (ExplicitSelection) selectionMode() SelectionMode { return SelectionModeExplicit }

// FilterSelection targets every product matching Filter and SearchQuery, minus ExcludeIDs
type FilterSelection struct {
	Filter      ProductFilter
	SearchQuery *string
	ExcludeIDs  []uuid.UUID
}

func (FilterSelection) selectionMode() SelectionMode { return SelectionModeFilter }

// ModeOf returns the discriminator of a selection
func ModeOf(sel Selection) SelectionMode {
	return sel.selectionMode()
}

// ProductFilter is a conjunction of product predicates. Unset fields do not constrain.
type ProductFilter struct {
	CategoryIDs  []string        `json:"categoryIds,omitempty"`
	Statuses     []ProductStatus `json:"statuses,omitempty"`
	Brands       []string        `json:"brands,omitempty"`
	Seasons      []string        `json:"seasons,omitempty"`
	Tags         []string        `json:"tags,omitempty"` // all must be present
	MinPrice     *string         `json:"minPrice,omitempty"`
	MaxPrice     *string         `json:"maxPrice,omitempty"`
	CreatedFrom  *time.Time      `json:"createdFrom,omitempty"`
	CreatedTo    *time.Time      `json:"createdTo,omitempty"`
	UpdatedAfter *time.Time      `json:"updatedAfter,omitempty"`
}

// ResolvedSelection is the point-in-time id set a Selection denoted when resolved.
// IDs are de-duplicated and in ascending order.
type ResolvedSelection struct {
	IDs   []uuid.UUID `json:"ids"`
	Count int         `json:"count"`
}

// SelectionRequest is the JSON form of a Selection
type SelectionRequest struct {
	Mode        SelectionMode  `json:"mode" binding:"required"`
	IDs         []string       `json:"ids,omitempty"`
	Filter      *ProductFilter `json:"filter,omitempty"`
	SearchQuery *string        `json:"searchQuery,omitempty"`
	ExcludeIDs  []string       `json:"excludeIds,omitempty"`
}

var ErrInvalidSelection = errors.New("invalid selection")

// ToSelection validates the request and converts it to a Selection
func (r SelectionRequest) ToSelection() (Selection, error) {
	switch r.Mode {
	case SelectionModeExplicit:
		if len(r.IDs) == 0 {
			return nil, fmt.Errorf("%w: explicit selection requires at least one id", ErrInvalidSelection)
		}
		if r.Filter != nil || r.SearchQuery != nil || len(r.ExcludeIDs) > 0 {
			return nil, fmt.Errorf("%w: explicit selection does not accept filter, searchQuery or excludeIds", ErrInvalidSelection)
		}
		ids, err := parseIDs(r.IDs)
		if err != nil {
			return nil, err
		}
		return ExplicitSelection{IDs: ids}, nil
	case SelectionModeFilter:
		if len(r.IDs) > 0 {
			return nil, fmt.Errorf("%w: filter selection does not accept ids", ErrInvalidSelection)
		}
		excluded, err := parseIDs(r.ExcludeIDs)
		if err != nil {
			return nil, err
		}
		sel := FilterSelection{SearchQuery: r.SearchQuery, ExcludeIDs: excluded}
		if r.Filter != nil {
			sel.Filter = *r.Filter
		}
		for _, s := range sel.Filter.Statuses {
			if !s.IsValid() {
				return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidSelection, s)
			}
		}
		return sel, nil
	default:
		return nil, fmt.Errorf("%w: unknown mode %q", ErrInvalidSelection, r.Mode)
	}
}

func parseIDs(raw []string) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, len(raw))
	for _, s := range raw {
		id, err := uuid.Parse(s)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid id %q", ErrInvalidSelection, s)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
