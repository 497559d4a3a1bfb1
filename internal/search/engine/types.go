// Package engine implements tenant-scoped dealer search: a similarity
// scorer, a layered field matcher and a two-tier search orchestrator.
// It has no knowledge of SQL; candidate retrieval goes through Storage.
package engine

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// MatchTier describes how strongly a record matched a term.
// Lower values are more relevant.
type MatchTier int

const (
	TierNone MatchTier = iota
	TierExactPrefix
	TierExactContains
	TierWordBoundary
	TierFuzzy
)

func (t MatchTier) String() string {
	switch t {
	case TierExactPrefix:
		return "exact_prefix"
	case TierExactContains:
		return "exact_contains"
	case TierWordBoundary:
		return "word_boundary"
	case TierFuzzy:
		return "fuzzy"
	default:
		return "none"
	}
}

// better reports whether t is a stronger match than other.
func (t MatchTier) better(other MatchTier) bool {
	if t == TierNone {
		return false
	}
	return other == TierNone || t < other
}

// Record is the searchable projection of a dealer.
type Record struct {
	ID               uuid.UUID
	TenantID         uuid.UUID
	CompanyName      string
	ContactName      *string
	Email            *string
	Phone            *string
	BuyingGroupLabel *string
	Status           string
	Rating           *string
	CreatedAt        time.Time

	// Derived by the storage collaborator when ProjectionWithRelations is requested.
	GroupNames             []string
	ActiveBuyingGroupNames []string
}

// Filters are structural conditions on non-text fields.
// Nil fields are not applied.
type Filters struct {
	Status        *string
	Rating        *string
	BuyingGroupID *uuid.UUID
	GroupID       *uuid.UUID
	HasTradeShows *bool
}

// Merge layers other on top of f; set fields in other win.
func (f Filters) Merge(other Filters) Filters {
	merged := f
	if other.Status != nil {
		merged.Status = other.Status
	}
	if other.Rating != nil {
		merged.Rating = other.Rating
	}
	if other.BuyingGroupID != nil {
		merged.BuyingGroupID = other.BuyingGroupID
	}
	if other.GroupID != nil {
		merged.GroupID = other.GroupID
	}
	if other.HasTradeShows != nil {
		merged.HasTradeShows = other.HasTradeShows
	}
	return merged
}

// Request is a single dealer search.
type Request struct {
	Term     string
	TenantID uuid.UUID
	Filters  Filters
	Page     int
	PageSize int
	// RequireComplete turns a silently capped candidate scan into a TooLarge error.
	RequireComplete bool
}

// Hit is a matched record with the tier it qualified under.
type Hit struct {
	Record Record
	Tier   MatchTier
}

// Pass identifies which strategy produced a result.
type Pass string

const (
	PassListing Pass = "listing"
	PassExact   Pass = "exact"
	PassFuzzy   Pass = "fuzzy"
)

// Result is one page of ranked hits. Total counts every match before paging.
type Result struct {
	Hits  []Hit
	Total int
	Pass  Pass
}

// Field names a searchable record column.
type Field string

const (
	FieldCompanyName      Field = "company_name"
	FieldContactName      Field = "contact_name"
	FieldEmail            Field = "email"
	FieldPhone            Field = "phone"
	FieldBuyingGroupLabel Field = "buying_group_label"
)

// TextMode is how a TextCondition compares its value.
type TextMode int

const (
	// TextPrefix matches fields starting with the value, case-insensitively.
	TextPrefix TextMode = iota
	// TextContains matches fields containing the value, case-insensitively.
	TextContains
	// TextWordPrefix matches a word inside the field starting with the value.
	TextWordPrefix
	// TextDigits matches fields whose digits contain the value's digits.
	TextDigits
)

// TextCondition is one OR'd text predicate pushed down to storage.
type TextCondition struct {
	Field Field
	Mode  TextMode
	Value string
}

// Projection selects which columns storage must populate.
type Projection int

const (
	ProjectionBase Projection = iota
	ProjectionWithRelations
)

// CandidateQuery describes a read against the storage collaborator.
// Limit <= 0 means no limit.
type CandidateQuery struct {
	TenantID   uuid.UUID
	Filters    Filters
	Projection Projection
	Text       []TextCondition
	// RankTerm, when set, puts records whose company or contact name
	// contains it ahead of the others. Counts ignore it.
	RankTerm string
	Limit    int
	Offset   int
}

// Storage is the read-only candidate source. Implementations must scope
// every query to TenantID and order results by the RankTerm bucket, then
// CreatedAt descending, then ID ascending.
type Storage interface {
	FetchCandidates(ctx context.Context, q CandidateQuery) ([]Record, error)
	CountCandidates(ctx context.Context, q CandidateQuery) (int, error)
}
