package engine

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"time"

	"dealer_portal_backend/platform/apperr"
	"dealer_portal_backend/platform/logger"
	"dealer_portal_backend/platform/phone"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// DefaultCandidateCap bounds how many candidates one pass may load.
const DefaultCandidateCap = 1000

const (
	msgSearchFailed     = "search failed"
	msgTenantRequired   = "organization required"
	msgInvalidPage      = "page must be a positive integer"
	msgInvalidPageSize  = "pageSize must be a positive integer"
	msgTooManyCandidate = "search matches too many dealers; narrow the filters"
)

// Orchestrator runs tiered dealer searches against a Storage.
type Orchestrator struct {
	storage    Storage
	threshold  float64
	cap        int
	exactFirst bool
	log        *logger.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithThreshold sets the fuzzy similarity threshold.
func WithThreshold(threshold float64) Option {
	return func(o *Orchestrator) {
		if threshold > 0 && threshold <= 1 {
			o.threshold = threshold
		}
	}
}

// WithCandidateCap sets the safety cap on loaded candidates.
func WithCandidateCap(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.cap = n
		}
	}
}

// WithExactFirst controls whether multi-character terms try the pushed-down
// exact pass before the fuzzy scan. Single-character terms always do.
func WithExactFirst(enabled bool) Option {
	return func(o *Orchestrator) {
		o.exactFirst = enabled
	}
}

// WithLogger sets the logger used for search diagnostics.
func WithLogger(log *logger.Logger) Option {
	return func(o *Orchestrator) {
		if log != nil {
			o.log = log
		}
	}
}

// New creates an Orchestrator with dealer defaults.
func New(storage Storage, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		storage:    storage,
		threshold:  DealerThreshold,
		cap:        DefaultCandidateCap,
		exactFirst: true,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Search runs req and returns one ranked page together with the full match count.
func (o *Orchestrator) Search(ctx context.Context, req Request) (Result, error) {
	if err := validateRequest(req); err != nil {
		return Result{}, err
	}

	start := time.Now()
	term := strings.TrimSpace(req.Term)

	var (
		res        Result
		candidates int
		err        error
	)
	switch {
	case term == "":
		res, err = o.list(ctx, req)
		candidates = res.Total
	default:
		res, candidates, err = o.match(ctx, req, term)
	}
	if err != nil {
		o.logFailure(ctx, req.TenantID, res.Pass, err)
		return Result{}, err
	}

	if o.log != nil {
		o.log.SearchExecuted(ctx, logger.SearchEvent{
			TenantID:   req.TenantID.String(),
			Term:       term,
			Pass:       string(res.Pass),
			Candidates: candidates,
			Matches:    len(res.Hits),
			Total:      res.Total,
			LatencyMs:  float64(time.Since(start).Microseconds()) / 1000,
		})
	}
	return res, nil
}

func validateRequest(req Request) error {
	if req.TenantID == uuid.Nil {
		return apperr.Forbidden(msgTenantRequired).WithOp("search.Search")
	}
	if req.Page <= 0 {
		return apperr.Validation(msgInvalidPage).WithOp("search.Search")
	}
	if req.PageSize <= 0 {
		return apperr.Validation(msgInvalidPageSize).WithOp("search.Search")
	}
	return nil
}

// list is the plain structural listing used for an empty term.
func (o *Orchestrator) list(ctx context.Context, req Request) (Result, error) {
	records, total, err := o.pageAndCount(ctx, req, CandidateQuery{
		TenantID:   req.TenantID,
		Filters:    req.Filters,
		Projection: ProjectionBase,
	})
	if err != nil {
		return Result{Pass: PassListing}, storageError("search.list", err)
	}

	hits := make([]Hit, 0, len(records))
	for _, rec := range records {
		if rec.TenantID != req.TenantID {
			continue
		}
		hits = append(hits, Hit{Record: rec, Tier: TierNone})
	}
	return Result{Hits: hits, Total: total, Pass: PassListing}, nil
}

// pageAndCount fetches the requested page of q and counts every row q
// matches, concurrently. A page past the addressable range only counts.
func (o *Orchestrator) pageAndCount(ctx context.Context, req Request, q CandidateQuery) ([]Record, int, error) {
	count := q
	count.RankTerm = ""

	skip, ok := offset(req.Page, req.PageSize)
	if !ok {
		total, err := o.storage.CountCandidates(ctx, count)
		return []Record{}, total, err
	}

	var (
		records []Record
		total   int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		page := q
		page.Limit = req.PageSize
		page.Offset = skip
		var err error
		records, err = o.storage.FetchCandidates(gctx, page)
		return err
	})
	g.Go(func() error {
		var err error
		total, err = o.storage.CountCandidates(gctx, count)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}
	return records, total, nil
}

func (o *Orchestrator) match(ctx context.Context, req Request, term string) (Result, int, error) {
	policy := PolicyFor(term)

	if policy == PolicySingleChar || o.exactFirst {
		res, err := o.exactPass(ctx, req, term, policy)
		if err != nil {
			return res, 0, err
		}
		// One letter never falls back to fuzzy matching.
		if res.Total > 0 || policy == PolicySingleChar {
			return res, res.Total, nil
		}
	}

	hits, scanned, err := o.fuzzyPass(ctx, req, term)
	if err != nil {
		return Result{Pass: PassFuzzy}, scanned, err
	}
	return finish(req, term, hits, PassFuzzy), scanned, nil
}

// exactPass pushes prefix/containment conditions and the name-containment
// ranking key down to storage, which returns one ranked page and the full
// match count. It is never capped.
func (o *Orchestrator) exactPass(ctx context.Context, req Request, term string, policy Policy) (Result, error) {
	records, total, err := o.pageAndCount(ctx, req, CandidateQuery{
		TenantID:   req.TenantID,
		Filters:    req.Filters,
		Projection: ProjectionBase,
		Text:       ExactConditions(term, policy),
		RankTerm:   term,
	})
	if err != nil {
		return Result{Pass: PassExact}, storageError("search.exact", err)
	}

	m := NewMatcher(o.threshold, policy)
	hits := make([]Hit, 0, len(records))
	for _, rec := range records {
		if rec.TenantID != req.TenantID {
			continue
		}
		// Storage is authoritative for this pass; the matcher only labels the tier.
		tier := TierExactContains
		if ok, t := m.Match(term, rec); ok && t != TierFuzzy {
			tier = t
		}
		hits = append(hits, Hit{Record: rec, Tier: tier})
	}
	return Result{Hits: hits, Total: total, Pass: PassExact}, nil
}

// fuzzyPass loads every structurally filtered candidate with its joined
// group names and applies the matcher in memory.
func (o *Orchestrator) fuzzyPass(ctx context.Context, req Request, term string) ([]Hit, int, error) {
	records, err := o.fetch(ctx, req, CandidateQuery{
		TenantID:   req.TenantID,
		Filters:    req.Filters,
		Projection: ProjectionWithRelations,
	})
	if err != nil {
		return nil, len(records), err
	}

	m := NewMatcher(o.threshold, PolicyStandard)
	hits := make([]Hit, 0)
	for _, rec := range records {
		if rec.TenantID != req.TenantID {
			continue
		}
		if ok, tier := m.Match(term, rec); ok {
			hits = append(hits, Hit{Record: rec, Tier: tier})
		}
	}
	return hits, len(records), nil
}

// fetch loads at most cap candidates for the in-memory pass. One extra row
// is requested to detect overflow, which is either truncated or reported
// when the request demands a complete scan.
func (o *Orchestrator) fetch(ctx context.Context, req Request, q CandidateQuery) ([]Record, error) {
	q.Limit = o.cap + 1
	records, err := o.storage.FetchCandidates(ctx, q)
	if err != nil {
		return nil, storageError("search.fetch", err)
	}
	if len(records) > o.cap {
		if req.RequireComplete {
			return nil, apperr.TooLarge(msgTooManyCandidate).WithOp("search.fetch").WithDetails(map[string]int{"cap": o.cap})
		}
		records = records[:o.cap]
	}
	return records, nil
}

func (o *Orchestrator) logFailure(ctx context.Context, tenantID uuid.UUID, pass Pass, err error) {
	if o.log == nil {
		return
	}
	o.log.SearchFailed(ctx, tenantID.String(), string(pass), err)
}

// ExactConditions returns the OR'd text conditions for the exact pass.
func ExactConditions(term string, policy Policy) []TextCondition {
	if policy == PolicySingleChar {
		return []TextCondition{
			{Field: FieldCompanyName, Mode: TextPrefix, Value: term},
			{Field: FieldContactName, Mode: TextPrefix, Value: term},
			{Field: FieldContactName, Mode: TextWordPrefix, Value: term},
		}
	}
	conds := []TextCondition{
		{Field: FieldCompanyName, Mode: TextContains, Value: term},
		{Field: FieldContactName, Mode: TextContains, Value: term},
		{Field: FieldEmail, Mode: TextContains, Value: term},
		{Field: FieldPhone, Mode: TextContains, Value: term},
		{Field: FieldBuyingGroupLabel, Mode: TextContains, Value: term},
	}
	if digits, ok := phone.DigitQuery(term); ok {
		conds = append(conds, TextCondition{Field: FieldPhone, Mode: TextDigits, Value: digits})
	}
	return conds
}

// finish ranks hits and slices out the requested page.
func finish(req Request, term string, hits []Hit, pass Pass) Result {
	ranked := Rank(term, hits)
	return Result{
		Hits:  Page(ranked, req.Page, req.PageSize),
		Total: len(ranked),
		Pass:  pass,
	}
}

// Rank orders hits by name containment first and recency second.
// Ties keep a stable order by id.
func Rank(term string, hits []Hit) []Hit {
	type ranked struct {
		hit  Hit
		name bool
	}
	items := make([]ranked, len(hits))
	for i, h := range hits {
		items[i] = ranked{hit: h, name: NameContains(term, h.Record)}
	}

	slices.SortStableFunc(items, func(a, b ranked) int {
		if a.name != b.name {
			if a.name {
				return -1
			}
			return 1
		}
		if c := b.hit.Record.CreatedAt.Compare(a.hit.Record.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.hit.Record.ID.String(), b.hit.Record.ID.String())
	})

	out := make([]Hit, len(items))
	for i, item := range items {
		out[i] = item.hit
	}
	return out
}

// Page returns hits[(page-1)*pageSize : page*pageSize], clamped.
func Page(hits []Hit, page, pageSize int) []Hit {
	skip, ok := offset(page, pageSize)
	if !ok || skip >= len(hits) {
		return []Hit{}
	}
	end := min(skip+pageSize, len(hits))
	return hits[skip:end]
}

// offset computes (page-1)*pageSize, reporting false when it would overflow.
func offset(page, pageSize int) (int, bool) {
	if page <= 0 || pageSize <= 0 {
		return 0, false
	}
	const maxInt = int(^uint(0) >> 1)
	if page-1 > maxInt/pageSize {
		return 0, false
	}
	return (page - 1) * pageSize, true
}

func storageError(op string, err error) error {
	if apperr.GetKind(err) != apperr.KindUnknown {
		return err
	}
	return apperr.Storage(msgSearchFailed, err).WithOp(op)
}
