package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"dealer_portal_backend/platform/apperr"
	"dealer_portal_backend/platform/logger"
	"dealer_portal_backend/platform/phone"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memStorage is an in-memory Storage that evaluates CandidateQuery the way
// the SQL repository does.
type memStorage struct {
	mu         sync.Mutex
	records    []Record
	tradeShows map[uuid.UUID]bool
	fetchErr   error
	countErr   error
	ignoreTID  bool
	queries    []CandidateQuery
}

func (s *memStorage) FetchCandidates(_ context.Context, q CandidateQuery) ([]Record, error) {
	s.mu.Lock()
	s.queries = append(s.queries, q)
	s.mu.Unlock()
	if s.fetchErr != nil {
		return nil, s.fetchErr
	}

	matched := s.filter(q)
	if q.Offset > 0 {
		if q.Offset >= len(matched) {
			return []Record{}, nil
		}
		matched = matched[q.Offset:]
	}
	if q.Limit > 0 && len(matched) > q.Limit {
		matched = matched[:q.Limit]
	}
	return matched, nil
}

func (s *memStorage) CountCandidates(_ context.Context, q CandidateQuery) (int, error) {
	if s.countErr != nil {
		return 0, s.countErr
	}
	return len(s.filter(q)), nil
}

func (s *memStorage) filter(q CandidateQuery) []Record {
	out := make([]Record, 0)
	for _, rec := range s.records {
		if !s.ignoreTID && rec.TenantID != q.TenantID {
			continue
		}
		if q.Filters.Status != nil && rec.Status != *q.Filters.Status {
			continue
		}
		if q.Filters.Rating != nil && (rec.Rating == nil || *rec.Rating != *q.Filters.Rating) {
			continue
		}
		if q.Filters.HasTradeShows != nil && s.tradeShows[rec.ID] != *q.Filters.HasTradeShows {
			continue
		}
		if len(q.Text) > 0 && !anyText(q.Text, rec) {
			continue
		}
		if q.Projection == ProjectionBase {
			rec.GroupNames = nil
			rec.ActiveBuyingGroupNames = nil
		}
		out = append(out, rec)
	}
	slices.SortStableFunc(out, func(a, b Record) int {
		if q.RankTerm != "" {
			an, bn := NameContains(q.RankTerm, a), NameContains(q.RankTerm, b)
			if an != bn {
				if an {
					return -1
				}
				return 1
			}
		}
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID.String(), b.ID.String())
	})
	return out
}

func anyText(conds []TextCondition, rec Record) bool {
	for _, c := range conds {
		var value string
		switch c.Field {
		case FieldCompanyName:
			value = rec.CompanyName
		case FieldContactName:
			value = deref(rec.ContactName)
		case FieldEmail:
			value = deref(rec.Email)
		case FieldPhone:
			value = deref(rec.Phone)
		case FieldBuyingGroupLabel:
			value = deref(rec.BuyingGroupLabel)
		}
		v, t := normalize(value), normalize(c.Value)
		switch c.Mode {
		case TextPrefix:
			if strings.HasPrefix(v, t) {
				return true
			}
		case TextContains:
			if strings.Contains(v, t) {
				return true
			}
		case TextWordPrefix:
			if strings.Contains(v, " "+t) {
				return true
			}
		case TextDigits:
			if phone.ContainsDigits(value, c.Value) {
				return true
			}
		}
	}
	return false
}

var (
	tenantA = uuid.MustParse("11111111-1111-1111-1111-111111111111")
	tenantB = uuid.MustParse("22222222-2222-2222-2222-222222222222")
	epoch   = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
)

func dealer(tenant uuid.UUID, company string, age int) Record {
	return Record{
		ID:          uuid.New(),
		TenantID:    tenant,
		CompanyName: company,
		Status:      "active",
		CreatedAt:   epoch.Add(-time.Duration(age) * time.Hour),
	}
}

func req(term string) Request {
	return Request{Term: term, TenantID: tenantA, Page: 1, PageSize: 20}
}

func companies(hits []Hit) []string {
	out := make([]string, len(hits))
	for i, h := range hits {
		out[i] = h.Record.CompanyName
	}
	return out
}

func TestSearchRejectsInvalidRequests(t *testing.T) {
	store := &memStorage{}
	o := New(store)

	_, err := o.Search(context.Background(), Request{Term: "acme", Page: 1, PageSize: 20})
	assert.True(t, apperr.Is(err, apperr.KindForbidden), "missing tenant: %v", err)

	r := req("acme")
	r.Page = 0
	_, err = o.Search(context.Background(), r)
	assert.True(t, apperr.Is(err, apperr.KindValidation), "page 0: %v", err)

	r = req("acme")
	r.PageSize = -1
	_, err = o.Search(context.Background(), r)
	assert.True(t, apperr.Is(err, apperr.KindValidation), "negative pageSize: %v", err)

	assert.Empty(t, store.queries, "invalid requests must not reach storage")
}

func TestSearchExactPrefixWinsRegardlessOfThreshold(t *testing.T) {
	store := &memStorage{records: []Record{dealer(tenantA, "Acme Corp", 1), dealer(tenantA, "Zenith", 2)}}
	o := New(store, WithThreshold(1.0))

	res, err := o.Search(context.Background(), req("Acme"))
	require.NoError(t, err)
	assert.Equal(t, PassExact, res.Pass)
	require.Len(t, res.Hits, 1)
	assert.Equal(t, "Acme Corp", res.Hits[0].Record.CompanyName)
	assert.Equal(t, TierExactPrefix, res.Hits[0].Tier)
	assert.Equal(t, 1, res.Total)
}

func TestSearchWordBoundaryOnContactSurname(t *testing.T) {
	rec := dealer(tenantA, "Northwind", 1)
	rec.ContactName = strPtr("Donna Skolnick")
	store := &memStorage{records: []Record{rec, dealer(tenantA, "Zenith", 2)}}

	res, err := New(store).Search(context.Background(), req("Skolnick"))
	require.NoError(t, err)
	require.Len(t, res.Hits, 1)
	assert.Equal(t, rec.ID, res.Hits[0].Record.ID)
	assert.Equal(t, TierWordBoundary, res.Hits[0].Tier)
}

func TestSearchFallsBackToFuzzyForTypos(t *testing.T) {
	rec := dealer(tenantA, "Northwind", 1)
	rec.ContactName = strPtr("Skolnick")
	store := &memStorage{records: []Record{rec, dealer(tenantA, "Zenith Ltd", 2)}}

	res, err := New(store).Search(context.Background(), req("Skolnik"))
	require.NoError(t, err)
	assert.Equal(t, PassFuzzy, res.Pass)
	require.Len(t, res.Hits, 1)
	assert.Equal(t, TierFuzzy, res.Hits[0].Tier)

	require.Len(t, store.queries, 2)
	assert.NotEmpty(t, store.queries[0].Text, "exact pass pushes text down")
	assert.Equal(t, "Skolnik", store.queries[0].RankTerm)
	assert.Empty(t, store.queries[1].Text, "fuzzy pass loads structural candidates")
	assert.Equal(t, ProjectionWithRelations, store.queries[1].Projection)
}

func TestSearchFuzzyPassSeesGroupNames(t *testing.T) {
	rec := dealer(tenantA, "Northwind", 1)
	rec.GroupNames = []string{"West Coast Partners"}
	store := &memStorage{records: []Record{rec, dealer(tenantA, "Zenith", 2)}}

	res, err := New(store).Search(context.Background(), req("coast partners"))
	require.NoError(t, err)
	assert.Equal(t, PassFuzzy, res.Pass)
	require.Len(t, res.Hits, 1)
	assert.Equal(t, TierExactContains, res.Hits[0].Tier)
}

func TestSearchSingleCharacter(t *testing.T) {
	skolnick := dealer(tenantA, "Northwind", 3)
	skolnick.ContactName = strPtr("Donna Skolnick")
	store := &memStorage{records: []Record{
		dealer(tenantA, "Smith Co", 1),
		dealer(tenantA, "Glassman", 2),
		skolnick,
	}}

	res, err := New(store).Search(context.Background(), req("s"))
	require.NoError(t, err)
	assert.Equal(t, PassExact, res.Pass)
	assert.ElementsMatch(t, []string{"Smith Co", "Northwind"}, companies(res.Hits))
	assert.Equal(t, 2, res.Total)
}

func TestSearchSingleCharacterNeverGoesFuzzy(t *testing.T) {
	store := &memStorage{records: []Record{dealer(tenantA, "Glassman", 1), dealer(tenantA, "Q", 2)}}

	res, err := New(store, WithExactFirst(false)).Search(context.Background(), req("x"))
	require.NoError(t, err)
	assert.Empty(t, res.Hits)
	assert.Equal(t, 0, res.Total)
	assert.Equal(t, PassExact, res.Pass)
	assert.Len(t, store.queries, 1)
}

func TestSearchExactFirstDisabledGoesStraightToFuzzy(t *testing.T) {
	store := &memStorage{records: []Record{dealer(tenantA, "Acme Corp", 1)}}

	res, err := New(store, WithExactFirst(false)).Search(context.Background(), req("acme"))
	require.NoError(t, err)
	assert.Equal(t, PassFuzzy, res.Pass)
	require.Len(t, res.Hits, 1)
	assert.Equal(t, TierExactPrefix, res.Hits[0].Tier)
	require.Len(t, store.queries, 1)
	assert.Empty(t, store.queries[0].Text)
}

func TestSearchRanksNameHitsAboveNewerFuzzyHits(t *testing.T) {
	older := dealer(tenantA, "Acme Corp", 48)
	newer := dealer(tenantA, "Zenith Ltd", 1)
	newer.Email = strPtr("acne@x")
	store := &memStorage{records: []Record{newer, older}}

	res, err := New(store, WithExactFirst(false)).Search(context.Background(), req("acme"))
	require.NoError(t, err)
	require.Len(t, res.Hits, 2)
	assert.Equal(t, older.ID, res.Hits[0].Record.ID)
	assert.Equal(t, TierExactPrefix, res.Hits[0].Tier)
	assert.Equal(t, newer.ID, res.Hits[1].Record.ID)
	assert.Equal(t, TierFuzzy, res.Hits[1].Tier)
}

func TestSearchPagination(t *testing.T) {
	var records []Record
	for i := range 25 {
		records = append(records, dealer(tenantA, fmt.Sprintf("Acme %02d", i), i))
	}
	store := &memStorage{records: records}
	o := New(store)

	all, err := o.Search(context.Background(), Request{Term: "acme", TenantID: tenantA, Page: 1, PageSize: 100})
	require.NoError(t, err)
	require.Len(t, all.Hits, 25)

	r := req("acme")
	r.Page, r.PageSize = 2, 10
	res, err := o.Search(context.Background(), r)
	require.NoError(t, err)
	assert.Equal(t, 25, res.Total)
	assert.Equal(t, all.Hits[10:20], res.Hits)

	r.Page = 4
	res, err = o.Search(context.Background(), r)
	require.NoError(t, err)
	assert.Empty(t, res.Hits)
	assert.Equal(t, 25, res.Total)
}

func TestSearchIsTenantScoped(t *testing.T) {
	var records []Record
	for _, tenant := range []uuid.UUID{tenantA, tenantB} {
		a := dealer(tenant, "Acme Corp", 1)
		a.ContactName = strPtr("Donna Skolnick")
		records = append(records, a, dealer(tenant, "Smith Co", 2))
	}

	for _, ignore := range []bool{false, true} {
		store := &memStorage{records: records, ignoreTID: ignore}
		o := New(store)
		for _, term := range []string{"", "a", "s", "acme", "Skolnik", "smith co", "zzzz"} {
			res, err := o.Search(context.Background(), req(term))
			require.NoError(t, err, "term %q", term)
			for _, h := range res.Hits {
				assert.Equal(t, tenantA, h.Record.TenantID, "term %q leaked tenant (storage ignores tenant: %v)", term, ignore)
			}
		}
	}
}

func TestSearchEmptyTermListsByRecency(t *testing.T) {
	inactive := dealer(tenantA, "Dormant BV", 0)
	inactive.Status = "inactive"
	store := &memStorage{records: []Record{
		dealer(tenantA, "Older", 10),
		dealer(tenantA, "Newest", 1),
		inactive,
		dealer(tenantB, "Elsewhere", 0),
	}}
	o := New(store)

	res, err := o.Search(context.Background(), req("   "))
	require.NoError(t, err)
	assert.Equal(t, PassListing, res.Pass)
	assert.Equal(t, 3, res.Total)
	assert.Equal(t, []string{"Dormant BV", "Newest", "Older"}, companies(res.Hits))
	for _, h := range res.Hits {
		assert.Equal(t, TierNone, h.Tier)
	}

	active := "active"
	r := req("")
	r.Filters.Status = &active
	r.PageSize = 1
	r.Page = 2
	res, err = o.Search(context.Background(), r)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Total)
	assert.Equal(t, []string{"Older"}, companies(res.Hits))
}

func TestSearchStructuralFilters(t *testing.T) {
	attending := dealer(tenantA, "Acme Expo", 1)
	store := &memStorage{
		records:    []Record{attending, dealer(tenantA, "Acme Home", 2)},
		tradeShows: map[uuid.UUID]bool{attending.ID: true},
	}
	yes := true
	r := req("acme")
	r.Filters.HasTradeShows = &yes

	res, err := New(store).Search(context.Background(), r)
	require.NoError(t, err)
	assert.Equal(t, []string{"Acme Expo"}, companies(res.Hits))
}

func TestSearchStorageFailure(t *testing.T) {
	boom := errors.New("connection reset")
	o := New(&memStorage{fetchErr: boom})

	_, err := o.Search(context.Background(), req("acme"))
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindStorage))
	assert.ErrorIs(t, err, boom)

	o = New(&memStorage{countErr: boom})
	_, err = o.Search(context.Background(), req(""))
	assert.True(t, apperr.Is(err, apperr.KindStorage))
}

func TestSearchCandidateCapAppliesToFuzzyPass(t *testing.T) {
	var records []Record
	for i := range 5 {
		records = append(records, dealer(tenantA, fmt.Sprintf("Acme %d", i), i))
	}
	store := &memStorage{records: records}
	o := New(store, WithCandidateCap(3), WithExactFirst(false))

	res, err := o.Search(context.Background(), req("acme"))
	require.NoError(t, err)
	assert.Equal(t, PassFuzzy, res.Pass)
	assert.Equal(t, 3, res.Total, "overflow is truncated silently")
	assert.Equal(t, 4, store.queries[0].Limit)

	r := req("acme")
	r.RequireComplete = true
	_, err = o.Search(context.Background(), r)
	assert.True(t, apperr.Is(err, apperr.KindTooLarge))
}

func TestSearchExactPassIsNotCapped(t *testing.T) {
	var records []Record
	for i := range 3 {
		rec := dealer(tenantA, fmt.Sprintf("Zenith %d", i), i)
		rec.Email = strPtr(fmt.Sprintf("acme%d@x.io", i))
		records = append(records, rec)
	}
	acme := dealer(tenantA, "Acme Corp", 100)
	records = append(records, acme)
	store := &memStorage{records: records}
	o := New(store, WithCandidateCap(3))

	r := req("acme")
	r.RequireComplete = true
	res, err := o.Search(context.Background(), r)
	require.NoError(t, err)
	assert.Equal(t, PassExact, res.Pass)
	assert.Equal(t, 4, res.Total)
	require.Len(t, res.Hits, 4)
	assert.Equal(t, acme.ID, res.Hits[0].Record.ID, "older name match ranks above newer email matches")
	assert.Equal(t, []string{"Acme Corp", "Zenith 0", "Zenith 1", "Zenith 2"}, companies(res.Hits))

	r.Page, r.PageSize = 2, 2
	res, err = o.Search(context.Background(), r)
	require.NoError(t, err)
	assert.Equal(t, 4, res.Total)
	assert.Equal(t, []string{"Zenith 1", "Zenith 2"}, companies(res.Hits))

	page := store.queries[len(store.queries)-1]
	assert.Equal(t, "acme", page.RankTerm)
	assert.Equal(t, 2, page.Limit)
	assert.Equal(t, 2, page.Offset)
}

func TestSearchExactPassPastLastPage(t *testing.T) {
	store := &memStorage{records: []Record{dealer(tenantA, "Acme Corp", 1)}}

	r := req("acme")
	r.Page = 5
	res, err := New(store).Search(context.Background(), r)
	require.NoError(t, err)
	assert.Equal(t, PassExact, res.Pass, "matches exist, so no fuzzy fallback")
	assert.Equal(t, 1, res.Total)
	assert.Empty(t, res.Hits)
}

func TestSearchKeepsTypedStorageErrors(t *testing.T) {
	o := New(&memStorage{fetchErr: apperr.Forbidden("organization suspended")})

	_, err := o.Search(context.Background(), req("acme"))
	assert.True(t, apperr.Is(err, apperr.KindForbidden))
}

func TestSearchLogsWithoutTermAtInfo(t *testing.T) {
	var buf bytes.Buffer
	store := &memStorage{records: []Record{dealer(tenantA, "Acme Corp", 1)}}
	o := New(store, WithLogger(logger.NewWithWriter("production", &buf)))

	_, err := o.Search(context.Background(), req("acme corp"))
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "dealer_search")
	assert.Contains(t, buf.String(), `"term_length":9`)
	assert.NotContains(t, buf.String(), "acme corp")
}

func TestRankStableByRecencyThenID(t *testing.T) {
	a := dealer(tenantA, "Acme A", 1)
	b := dealer(tenantA, "Acme B", 1)
	c := dealer(tenantA, "Acme C", 5)
	ranked := Rank("acme", []Hit{{Record: c}, {Record: b}, {Record: a}})

	first, second := a, b
	if b.ID.String() < a.ID.String() {
		first, second = b, a
	}
	assert.Equal(t, []uuid.UUID{first.ID, second.ID, c.ID},
		[]uuid.UUID{ranked[0].Record.ID, ranked[1].Record.ID, ranked[2].Record.ID})
}

func TestPageClamps(t *testing.T) {
	hits := make([]Hit, 5)
	assert.Len(t, Page(hits, 1, 2), 2)
	assert.Len(t, Page(hits, 3, 2), 1)
	assert.Empty(t, Page(hits, 4, 2))
	assert.Empty(t, Page(hits, int(^uint(0)>>1), 1<<20))
}

func TestExactConditions(t *testing.T) {
	single := ExactConditions("s", PolicySingleChar)
	assert.Equal(t, []TextCondition{
		{Field: FieldCompanyName, Mode: TextPrefix, Value: "s"},
		{Field: FieldContactName, Mode: TextPrefix, Value: "s"},
		{Field: FieldContactName, Mode: TextWordPrefix, Value: "s"},
	}, single)

	assert.Len(t, ExactConditions("acme", PolicyStandard), 5)

	withDigits := ExactConditions("06-1234", PolicyStandard)
	require.Len(t, withDigits, 6)
	assert.Equal(t, TextCondition{Field: FieldPhone, Mode: TextDigits, Value: "061234"}, withDigits[5])
}

func TestFiltersMerge(t *testing.T) {
	active, inactive, rating := "active", "inactive", "A"
	base := Filters{Status: &active, Rating: &rating}
	merged := base.Merge(Filters{Status: &inactive})

	assert.Equal(t, "inactive", *merged.Status)
	assert.Equal(t, "A", *merged.Rating)
	assert.Equal(t, "active", *base.Status, "merge must not mutate the receiver")
}
