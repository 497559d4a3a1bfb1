package repository

import (
	"context"
	"fmt"
	"strings"

	"dealer_portal_backend/internal/search/engine"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository reads dealer search candidates from Postgres.
type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const dealerBaseColumns = `
		d.id, d.organization_id, d.company_name, d.contact_name, d.email, d.phone,
		d.buying_group, d.status, d.rating, d.created_at`

const dealerRelationColumns = `,
		COALESCE((
			SELECT array_agg(g.name ORDER BY g.name)
			FROM dealer_group_members gm
			JOIN dealer_groups g ON g.id = gm.group_id AND g.organization_id = d.organization_id
			WHERE gm.dealer_id = d.id
		), '{}'::text[]) AS group_names,
		COALESCE((
			SELECT array_agg(bg.name ORDER BY bg.name)
			FROM dealer_buying_group_history h
			JOIN buying_groups bg ON bg.id = h.buying_group_id AND bg.organization_id = d.organization_id
			WHERE h.dealer_id = d.id AND h.ended_at IS NULL
		), '{}'::text[]) AS active_buying_group_names`

// dealerScopeWhere binds $1..$6: tenant, status, rating, buying group,
// group membership and trade-show attendance. Nil filters pass through.
const dealerScopeWhere = `
	FROM dealers d
	WHERE d.organization_id = $1
		AND ($2::text IS NULL OR d.status = $2)
		AND ($3::text IS NULL OR d.rating = $3)
		AND ($4::uuid IS NULL OR d.buying_group_id = $4)
		AND ($5::uuid IS NULL OR EXISTS (
			SELECT 1 FROM dealer_group_members gm
			WHERE gm.dealer_id = d.id AND gm.group_id = $5
		))
		AND ($6::boolean IS NULL OR $6 = EXISTS (
			SELECT 1 FROM dealer_trade_show_attendance ta
			WHERE ta.dealer_id = d.id
		))`

const dealerOrderBy = `
	ORDER BY d.created_at DESC, d.id ASC`

var textColumns = map[engine.Field]string{
	engine.FieldCompanyName:      "d.company_name",
	engine.FieldContactName:      "d.contact_name",
	engine.FieldEmail:            "d.email",
	engine.FieldPhone:            "d.phone",
	engine.FieldBuyingGroupLabel: "d.buying_group",
}

func (r *Repository) FetchCandidates(ctx context.Context, q engine.CandidateQuery) ([]engine.Record, error) {
	query, args, err := buildSelect(q)
	if err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("fetch dealer candidates: %w", err)
	}
	defer rows.Close()

	withRelations := q.Projection == engine.ProjectionWithRelations
	items := make([]engine.Record, 0)
	for rows.Next() {
		rec, err := scanRecord(rows, withRelations)
		if err != nil {
			return nil, fmt.Errorf("scan dealer candidate: %w", err)
		}
		items = append(items, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate dealer candidates: %w", err)
	}

	return items, nil
}

func (r *Repository) CountCandidates(ctx context.Context, q engine.CandidateQuery) (int, error) {
	query, args, err := buildCount(q)
	if err != nil {
		return 0, err
	}

	var total int
	if err := r.pool.QueryRow(ctx, query, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("count dealer candidates: %w", err)
	}
	return total, nil
}

func scanRecord(row pgx.Row, withRelations bool) (engine.Record, error) {
	var rec engine.Record
	dest := []any{
		&rec.ID,
		&rec.TenantID,
		&rec.CompanyName,
		&rec.ContactName,
		&rec.Email,
		&rec.Phone,
		&rec.BuyingGroupLabel,
		&rec.Status,
		&rec.Rating,
		&rec.CreatedAt,
	}
	if withRelations {
		dest = append(dest, &rec.GroupNames, &rec.ActiveBuyingGroupNames)
	}
	err := row.Scan(dest...)
	return rec, err
}

func buildSelect(q engine.CandidateQuery) (string, []any, error) {
	args := scopeArgs(q)
	textSQL, args, err := textClause(q.Text, args)
	if err != nil {
		return "", nil, err
	}

	var sb strings.Builder
	sb.WriteString("SELECT")
	sb.WriteString(dealerBaseColumns)
	if q.Projection == engine.ProjectionWithRelations {
		sb.WriteString(dealerRelationColumns)
	}
	sb.WriteString(dealerScopeWhere)
	sb.WriteString(textSQL)
	if term := strings.TrimSpace(q.RankTerm); term != "" {
		args = append(args, escapeLike(term))
		sb.WriteString(rankedOrderBy(len(args)))
	} else {
		sb.WriteString(dealerOrderBy)
	}

	if q.Limit > 0 {
		args = append(args, q.Limit)
		fmt.Fprintf(&sb, "\n\tLIMIT $%d", len(args))
	}
	if q.Offset > 0 {
		args = append(args, q.Offset)
		fmt.Fprintf(&sb, "\n\tOFFSET $%d", len(args))
	}
	return sb.String(), args, nil
}

func buildCount(q engine.CandidateQuery) (string, []any, error) {
	args := scopeArgs(q)
	textSQL, args, err := textClause(q.Text, args)
	if err != nil {
		return "", nil, err
	}
	return "SELECT COUNT(*)" + dealerScopeWhere + textSQL, args, nil
}

func scopeArgs(q engine.CandidateQuery) []any {
	f := q.Filters
	return []any{q.TenantID, f.Status, f.Rating, f.BuyingGroupID, f.GroupID, f.HasTradeShows}
}

// textClause renders OR'd text conditions as one AND'ed group.
func textClause(conds []engine.TextCondition, args []any) (string, []any, error) {
	if len(conds) == 0 {
		return "", args, nil
	}

	parts := make([]string, 0, len(conds))
	for _, cond := range conds {
		column, ok := textColumns[cond.Field]
		if !ok {
			return "", nil, fmt.Errorf("unsupported search field %q", cond.Field)
		}

		switch cond.Mode {
		case engine.TextDigits:
			args = append(args, escapeLike(cond.Value))
			parts = append(parts, fmt.Sprintf(
				`regexp_replace(coalesce(%s, ''), '\D', '', 'g') LIKE '%%' || $%d || '%%' ESCAPE '\'`,
				column, len(args)))
		case engine.TextPrefix, engine.TextContains, engine.TextWordPrefix:
			args = append(args, escapeLike(strings.TrimSpace(cond.Value)))
			parts = append(parts, likeCondition(column, cond, len(args)))
		default:
			return "", nil, fmt.Errorf("unsupported text mode %d", cond.Mode)
		}
	}

	return "\n\t\tAND (\n\t\t\t" + strings.Join(parts, "\n\t\t\tOR ") + "\n\t\t)", args, nil
}

// rankedOrderBy puts company/contact name matches of $argPos first.
func rankedOrderBy(argPos int) string {
	company := likeCondition(textColumns[engine.FieldCompanyName],
		engine.TextCondition{Field: engine.FieldCompanyName, Mode: engine.TextContains}, argPos)
	contact := likeCondition(textColumns[engine.FieldContactName],
		engine.TextCondition{Field: engine.FieldContactName, Mode: engine.TextContains}, argPos)
	return fmt.Sprintf("\n\tORDER BY (%s\n\t\tOR %s) DESC, d.created_at DESC, d.id ASC", company, contact)
}

func likeCondition(column string, cond engine.TextCondition, argPos int) string {
	// Phone numbers are compared raw.
	if cond.Field == engine.FieldPhone {
		return fmt.Sprintf(`coalesce(%s, '') LIKE %s ESCAPE '\'`, column, likePattern(cond.Mode, fmt.Sprintf("$%d", argPos)))
	}
	folded := fmt.Sprintf("lower(dealer_unaccent(coalesce(%s, '')))", column)
	value := fmt.Sprintf("lower(dealer_unaccent($%d))", argPos)
	return fmt.Sprintf(`%s LIKE %s ESCAPE '\'`, folded, likePattern(cond.Mode, value))
}

func likePattern(mode engine.TextMode, value string) string {
	switch mode {
	case engine.TextPrefix:
		return value + " || '%'"
	case engine.TextWordPrefix:
		return "'% ' || " + value + " || '%'"
	default:
		return "'%' || " + value + " || '%'"
	}
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(value string) string {
	return likeEscaper.Replace(value)
}

var _ engine.Storage = (*Repository)(nil)
