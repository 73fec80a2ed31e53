package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mentora-labs/mentora/internal/domain"
	"github.com/mentora-labs/mentora/internal/service"
)

// RecordRepository reads the structured knowledge tables. Rows are
// written by a separate ingestion pipeline; this repository is
// read-only. Filters match case-insensitively as substrings.
type RecordRepository struct {
	db dbtx
}

func NewRecordRepository(pool *pgxpool.Pool) *RecordRepository {
	return &RecordRepository{db: pool}
}

func NewRecordRepositoryWithTx(tx pgx.Tx) *RecordRepository {
	return &RecordRepository{db: tx}
}

// filterClause appends "column ILIKE %value%" to the query for each
// non-empty filter field and returns the final query with its args.
type filterClause struct {
	query string
	args  []any
}

func newFilterClause(query string) *filterClause {
	return &filterClause{query: query}
}

func (f *filterClause) add(column, value string) {
	if value == "" {
		return
	}
	f.args = append(f.args, "%"+value+"%")
	f.query += fmt.Sprintf(" AND %s ILIKE $%d", column, len(f.args))
}

func (f *filterClause) finish(orderBy string, limit int) (string, []any) {
	f.args = append(f.args, limit)
	return fmt.Sprintf("%s ORDER BY %s LIMIT $%d", f.query, orderBy, len(f.args)), f.args
}

func (r *RecordRepository) FindInstitutions(ctx context.Context, filter service.RecordFilter, limit int) ([]domain.DomainRecord, error) {
	clause := newFilterClause(
		`SELECT id, name, country, city, fields, language, tuition_note, ranking
		 FROM institutions WHERE true`)
	clause.add("country", filter.Country)
	clause.add("city", filter.City)
	clause.add("language", filter.Language)
	if filter.Field != "" {
		clause.args = append(clause.args, "%"+filter.Field+"%")
		clause.query += fmt.Sprintf(" AND EXISTS (SELECT 1 FROM unnest(fields) AS f WHERE f ILIKE $%d)", len(clause.args))
	}
	query, args := clause.finish("ranking ASC", limit)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []domain.DomainRecord
	for rows.Next() {
		var inst domain.Institution
		var language, tuition *string
		if err := rows.Scan(&inst.ID, &inst.Name, &inst.Country, &inst.City, &inst.Fields, &language, &tuition, &inst.Ranking); err != nil {
			return nil, err
		}
		if language != nil {
			inst.Language = *language
		}
		if tuition != nil {
			inst.TuitionNote = *tuition
		}
		results = append(results, &inst)
	}
	return results, rows.Err()
}

// FindFundingOffers ranks by amount descending so the most valuable
// offers surface first.
func (r *RecordRepository) FindFundingOffers(ctx context.Context, filter service.RecordFilter, limit int) ([]domain.DomainRecord, error) {
	clause := newFilterClause(
		`SELECT id, name, country, field, amount, currency, deadline, eligibility
		 FROM funding_offers WHERE true`)
	clause.add("country", filter.Country)
	clause.add("field", filter.Field)
	query, args := clause.finish("amount DESC", limit)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []domain.DomainRecord
	for rows.Next() {
		var offer domain.FundingOffer
		var field, deadline, eligibility *string
		if err := rows.Scan(&offer.ID, &offer.Name, &offer.Country, &field, &offer.Amount, &offer.Currency, &deadline, &eligibility); err != nil {
			return nil, err
		}
		if field != nil {
			offer.Field = *field
		}
		if deadline != nil {
			offer.Deadline = *deadline
		}
		if eligibility != nil {
			offer.Eligibility = *eligibility
		}
		results = append(results, &offer)
	}
	return results, rows.Err()
}

func (r *RecordRepository) FindEntryPermitRules(ctx context.Context, filter service.RecordFilter, limit int) ([]domain.DomainRecord, error) {
	clause := newFilterClause(
		`SELECT id, country, visa_type, requirements, processing_time, fee
		 FROM entry_permit_rules WHERE true`)
	clause.add("country", filter.Country)
	query, args := clause.finish("country ASC", limit)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []domain.DomainRecord
	for rows.Next() {
		var rule domain.EntryPermitRule
		var processing, fee *string
		if err := rows.Scan(&rule.ID, &rule.Country, &rule.VisaType, &rule.Requirements, &processing, &fee); err != nil {
			return nil, err
		}
		if processing != nil {
			rule.ProcessingTime = *processing
		}
		if fee != nil {
			rule.Fee = *fee
		}
		results = append(results, &rule)
	}
	return results, rows.Err()
}

func (r *RecordRepository) FindLanguagePrograms(ctx context.Context, filter service.RecordFilter, limit int) ([]domain.DomainRecord, error) {
	clause := newFilterClause(
		`SELECT id, name, country, city, language, duration, price
		 FROM language_programs WHERE true`)
	clause.add("country", filter.Country)
	clause.add("city", filter.City)
	clause.add("language", filter.Language)
	query, args := clause.finish("name ASC", limit)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []domain.DomainRecord
	for rows.Next() {
		var program domain.LanguageProgram
		var duration, price *string
		if err := rows.Scan(&program.ID, &program.Name, &program.Country, &program.City, &program.Language, &duration, &price); err != nil {
			return nil, err
		}
		if duration != nil {
			program.Duration = *duration
		}
		if price != nil {
			program.Price = *price
		}
		results = append(results, &program)
	}
	return results, rows.Err()
}

func (r *RecordRepository) FindCostOfLiving(ctx context.Context, filter service.RecordFilter, limit int) ([]domain.DomainRecord, error) {
	clause := newFilterClause(
		`SELECT id, country, city, monthly_rent, monthly_food, transport, currency
		 FROM cost_of_living WHERE true`)
	clause.add("country", filter.Country)
	clause.add("city", filter.City)
	query, args := clause.finish("city ASC", limit)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []domain.DomainRecord
	for rows.Next() {
		var row domain.CostOfLivingRow
		var rent, food, transport *string
		if err := rows.Scan(&row.ID, &row.Country, &row.City, &rent, &food, &transport, &row.Currency); err != nil {
			return nil, err
		}
		if rent != nil {
			row.MonthlyRent = *rent
		}
		if food != nil {
			row.MonthlyFood = *food
		}
		if transport != nil {
			row.Transport = *transport
		}
		results = append(results, &row)
	}
	return results, rows.Err()
}

func (r *RecordRepository) FindProcessGuides(ctx context.Context, filter service.RecordFilter, limit int) ([]domain.DomainRecord, error) {
	clause := newFilterClause(
		`SELECT id, title, country, steps
		 FROM process_guides WHERE true`)
	clause.add("country", filter.Country)
	query, args := clause.finish("title ASC", limit)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []domain.DomainRecord
	for rows.Next() {
		var guide domain.ProcessGuide
		var country *string
		if err := rows.Scan(&guide.ID, &guide.Title, &country, &guide.Steps); err != nil {
			return nil, err
		}
		if country != nil {
			guide.Country = *country
		}
		results = append(results, &guide)
	}
	return results, rows.Err()
}
