package transport

import "time"

// DealerListRequest is the query string of the dealer listing and the
// dashboard report endpoints.
type DealerListRequest struct {
	Search        string `form:"search" validate:"max=100"`
	Page          int    `form:"page" validate:"omitempty,min=1,max=100000"`
	PageSize      int    `form:"pageSize" validate:"omitempty,min=1,max=100"`
	Status        string `form:"status" validate:"omitempty,oneof=active inactive prospect"`
	Rating        string `form:"rating" validate:"omitempty,oneof=A B C D"`
	BuyingGroupID string `form:"buyingGroupId" validate:"omitempty,uuid"`
	GroupID       string `form:"groupId" validate:"omitempty,uuid"`
	HasTradeShows *bool  `form:"hasTradeShows"`
}

type DealerResponse struct {
	ID                     string    `json:"id"`
	CompanyName            string    `json:"companyName"`
	ContactName            *string   `json:"contactName,omitempty"`
	Email                  *string   `json:"email,omitempty"`
	Phone                  *string   `json:"phone,omitempty"`
	BuyingGroup            *string   `json:"buyingGroup,omitempty"`
	Status                 string    `json:"status"`
	Rating                 *string   `json:"rating,omitempty"`
	GroupNames             []string  `json:"groupNames,omitempty"`
	ActiveBuyingGroupNames []string  `json:"activeBuyingGroupNames,omitempty"`
	MatchTier              string    `json:"matchTier,omitempty"` // Which tier matched (debug/highlighting)
	CreatedAt              time.Time `json:"createdAt"`
}

type DealerListResponse struct {
	Items      []DealerResponse `json:"items"`
	Total      int              `json:"total"`
	Page       int              `json:"page"`
	PageSize   int              `json:"pageSize"`
	TotalPages int              `json:"totalPages"`
	Pass       string           `json:"pass"` // "listing", "exact" or "fuzzy"
}
