package service

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"dealer_portal_backend/internal/search/engine"
	"dealer_portal_backend/internal/search/transport"
	"dealer_portal_backend/platform/apperr"
)

const (
	defaultPage     = 1
	defaultPageSize = 20
	maxPageSize     = 100
)

// Searcher runs a dealer search. *engine.Orchestrator satisfies it.
type Searcher interface {
	Search(ctx context.Context, req engine.Request) (engine.Result, error)
}

type Service struct {
	searcher Searcher
}

func New(searcher Searcher) *Service {
	return &Service{searcher: searcher}
}

// ListDealers backs the dealer listing; an empty search term lists by recency.
func (s *Service) ListDealers(ctx context.Context, tenantID uuid.UUID, req transport.DealerListRequest) (*transport.DealerListResponse, error) {
	return s.search(ctx, tenantID, req, engine.Filters{})
}

// DealersByStatus is the "dealers by status" report.
func (s *Service) DealersByStatus(ctx context.Context, tenantID uuid.UUID, status string, req transport.DealerListRequest) (*transport.DealerListResponse, error) {
	status = strings.TrimSpace(status)
	return s.search(ctx, tenantID, req, engine.Filters{Status: &status})
}

// DealersByRating is the "dealers by rating" report.
func (s *Service) DealersByRating(ctx context.Context, tenantID uuid.UUID, rating string, req transport.DealerListRequest) (*transport.DealerListResponse, error) {
	rating = strings.TrimSpace(rating)
	return s.search(ctx, tenantID, req, engine.Filters{Rating: &rating})
}

// DealersByBuyingGroup is the "dealers by buying group" report.
func (s *Service) DealersByBuyingGroup(ctx context.Context, tenantID, buyingGroupID uuid.UUID, req transport.DealerListRequest) (*transport.DealerListResponse, error) {
	return s.search(ctx, tenantID, req, engine.Filters{BuyingGroupID: &buyingGroupID})
}

// DealersWithTradeShows is the "dealers attending trade shows" report.
func (s *Service) DealersWithTradeShows(ctx context.Context, tenantID uuid.UUID, req transport.DealerListRequest) (*transport.DealerListResponse, error) {
	attending := true
	return s.search(ctx, tenantID, req, engine.Filters{HasTradeShows: &attending})
}

func (s *Service) search(ctx context.Context, tenantID uuid.UUID, req transport.DealerListRequest, report engine.Filters) (*transport.DealerListResponse, error) {
	filters, err := filtersFromRequest(req)
	if err != nil {
		return nil, err
	}

	page, pageSize := normalizePaging(req.Page, req.PageSize)
	result, err := s.searcher.Search(ctx, engine.Request{
		Term:     req.Search,
		TenantID: tenantID,
		Filters:  filters.Merge(report),
		Page:     page,
		PageSize: pageSize,
	})
	if err != nil {
		return nil, err
	}

	items := make([]transport.DealerResponse, len(result.Hits))
	for i, hit := range result.Hits {
		items[i] = toDealerResponse(hit)
	}

	return &transport.DealerListResponse{
		Items:      items,
		Total:      result.Total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: (result.Total + pageSize - 1) / pageSize,
		Pass:       string(result.Pass),
	}, nil
}

func filtersFromRequest(req transport.DealerListRequest) (engine.Filters, error) {
	var f engine.Filters
	if v := strings.TrimSpace(req.Status); v != "" {
		f.Status = &v
	}
	if v := strings.TrimSpace(req.Rating); v != "" {
		f.Rating = &v
	}
	if v := strings.TrimSpace(req.BuyingGroupID); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return f, apperr.Validation("invalid buyingGroupId").WithOp("search.filters")
		}
		f.BuyingGroupID = &id
	}
	if v := strings.TrimSpace(req.GroupID); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return f, apperr.Validation("invalid groupId").WithOp("search.filters")
		}
		f.GroupID = &id
	}
	f.HasTradeShows = req.HasTradeShows
	return f, nil
}

func normalizePaging(page, pageSize int) (int, int) {
	if page < 1 {
		page = defaultPage
	}
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return page, pageSize
}

func toDealerResponse(hit engine.Hit) transport.DealerResponse {
	rec := hit.Record
	resp := transport.DealerResponse{
		ID:                     rec.ID.String(),
		CompanyName:            rec.CompanyName,
		ContactName:            rec.ContactName,
		Email:                  rec.Email,
		Phone:                  rec.Phone,
		BuyingGroup:            rec.BuyingGroupLabel,
		Status:                 rec.Status,
		Rating:                 rec.Rating,
		GroupNames:             rec.GroupNames,
		ActiveBuyingGroupNames: rec.ActiveBuyingGroupNames,
		CreatedAt:              rec.CreatedAt,
	}
	if hit.Tier != engine.TierNone {
		resp.MatchTier = hit.Tier.String()
	}
	return resp
}
