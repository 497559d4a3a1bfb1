package search

import (
	apphttp "dealer_portal_backend/internal/http"
	"dealer_portal_backend/internal/search/engine"
	"dealer_portal_backend/internal/search/handler"
	"dealer_portal_backend/internal/search/repository"
	"dealer_portal_backend/internal/search/service"
	"dealer_portal_backend/platform/config"
	"dealer_portal_backend/platform/logger"
	"dealer_portal_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Module struct {
	handler *handler.Handler
}

func NewModule(pool *pgxpool.Pool, val *validator.Validator, cfg config.SearchConfig, log *logger.Logger) *Module {
	repo := repository.New(pool)
	orchestrator := engine.New(repo,
		engine.WithThreshold(cfg.GetSearchFuzzyThreshold()),
		engine.WithCandidateCap(cfg.GetSearchCandidateCap()),
		engine.WithExactFirst(cfg.GetSearchExactFirst()),
		engine.WithLogger(log),
	)
	svc := service.New(orchestrator)
	h := handler.New(svc, val)

	return &Module{handler: h}
}

func (m *Module) Name() string {
	return "search"
}

func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Protected.Group("/dealers"))
	m.handler.RegisterDashboardRoutes(ctx.Protected.Group("/dashboard/dealers"))
}

var _ apphttp.Module = (*Module)(nil)
