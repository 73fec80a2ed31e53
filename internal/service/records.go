package service

import (
	"context"
	"fmt"

	"github.com/mentora-labs/mentora/internal/domain"
	"github.com/mentora-labs/mentora/internal/telemetry"
)

// RecordFilter narrows structured record lookups. Non-empty fields are
// matched case-insensitively as substrings.
type RecordFilter struct {
	Country  string
	City     string
	Field    string
	Language string
}

// RecordRepositoryInterface reads the structured knowledge store. Rows
// are owned by a separate ingestion subsystem; this core never writes
// them. Each finder applies the filter, caps at limit, and ranks in its
// domain-appropriate order (funding offers by amount descending,
// institutions by ranking).
type RecordRepositoryInterface interface {
	FindInstitutions(ctx context.Context, f RecordFilter, limit int) ([]domain.DomainRecord, error)
	FindFundingOffers(ctx context.Context, f RecordFilter, limit int) ([]domain.DomainRecord, error)
	FindEntryPermitRules(ctx context.Context, f RecordFilter, limit int) ([]domain.DomainRecord, error)
	FindLanguagePrograms(ctx context.Context, f RecordFilter, limit int) ([]domain.DomainRecord, error)
	FindCostOfLiving(ctx context.Context, f RecordFilter, limit int) ([]domain.DomainRecord, error)
	FindProcessGuides(ctx context.Context, f RecordFilter, limit int) ([]domain.DomainRecord, error)
}

// ContextBuilder turns retrieved, rendered records into the specialized
// system-prompt fragment for one intent. External contract; defaults are
// provided per intent.
type ContextBuilder func(entities Entities, rendered string) string

// intentRoute pairs one intent with its retrieval function and context
// builder. Selecting by key replaces chained conditionals and keeps the
// engine from ever reading extraction fields for unrouted intents.
type intentRoute struct {
	fetch func(ctx context.Context, repo RecordRepositoryInterface, e Entities, limit int) ([]domain.DomainRecord, error)
	build ContextBuilder
}

// StructuredContext is the outcome of a structured retrieval hit.
type StructuredContext struct {
	Intent  Intent
	Records []domain.DomainRecord
	Prompt  string
}

// StructuredRetrieverConfig bounds structured retrieval.
type StructuredRetrieverConfig struct {
	RecordLimit int
}

// DefaultStructuredRetrieverConfig returns the default record cap.
func DefaultStructuredRetrieverConfig() StructuredRetrieverConfig {
	return StructuredRetrieverConfig{RecordLimit: 5}
}

// StructuredRetriever maps a recognized intent to domain records and a
// specialized context fragment via the dispatch table.
type StructuredRetriever struct {
	repo   RecordRepositoryInterface
	routes map[Intent]intentRoute
	cfg    StructuredRetrieverConfig
}

// NewStructuredRetriever creates a retriever with the default routes.
func NewStructuredRetriever(repo RecordRepositoryInterface) *StructuredRetriever {
	return NewStructuredRetrieverWithConfig(repo, DefaultStructuredRetrieverConfig())
}

// NewStructuredRetrieverWithConfig creates a retriever with explicit bounds.
func NewStructuredRetrieverWithConfig(repo RecordRepositoryInterface, cfg StructuredRetrieverConfig) *StructuredRetriever {
	if cfg.RecordLimit <= 0 {
		cfg.RecordLimit = DefaultStructuredRetrieverConfig().RecordLimit
	}
	return &StructuredRetriever{
		repo:   repo,
		routes: defaultRoutes(),
		cfg:    cfg,
	}
}

// Retrieve returns the structured context for an intent, or nil when the
// intent has no route or no records match the extracted entities.
func (r *StructuredRetriever) Retrieve(ctx context.Context, intent Intent, entities Entities) (*StructuredContext, error) {
	route, ok := r.routes[intent]
	if !ok {
		return nil, nil
	}

	ctx, span := telemetry.StartSpan(ctx, "StructuredRetriever.Retrieve", telemetry.SpanAttributes{
		Operation: string(intent),
	})
	defer span.End()

	records, err := route.fetch(ctx, r.repo, entities, r.cfg.RecordLimit)
	if err != nil {
		return nil, fmt.Errorf("structured retrieval for %s failed: %w", intent, err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	rendered := domain.RenderRecords(records)
	return &StructuredContext{
		Intent:  intent,
		Records: records,
		Prompt:  route.build(entities, rendered),
	}, nil
}

func entityFilter(e Entities) RecordFilter {
	return RecordFilter{
		Country:  e.Country,
		City:     e.City,
		Field:    e.Field,
		Language: e.Language,
	}
}

func defaultRoutes() map[Intent]intentRoute {
	return map[Intent]intentRoute{
		IntentUniversityRecommendation: {
			fetch: func(ctx context.Context, repo RecordRepositoryInterface, e Entities, limit int) ([]domain.DomainRecord, error) {
				return repo.FindInstitutions(ctx, entityFilter(e), limit)
			},
			build: buildInstitutionContext,
		},
		IntentScholarshipInquiry: {
			fetch: func(ctx context.Context, repo RecordRepositoryInterface, e Entities, limit int) ([]domain.DomainRecord, error) {
				return repo.FindFundingOffers(ctx, entityFilter(e), limit)
			},
			build: buildFundingContext,
		},
		IntentVisaRequirements: {
			fetch: func(ctx context.Context, repo RecordRepositoryInterface, e Entities, limit int) ([]domain.DomainRecord, error) {
				return repo.FindEntryPermitRules(ctx, entityFilter(e), limit)
			},
			build: buildVisaContext,
		},
		IntentLanguagePrograms: {
			fetch: func(ctx context.Context, repo RecordRepositoryInterface, e Entities, limit int) ([]domain.DomainRecord, error) {
				return repo.FindLanguagePrograms(ctx, entityFilter(e), limit)
			},
			build: buildLanguageContext,
		},
		IntentCostOfLiving: {
			fetch: func(ctx context.Context, repo RecordRepositoryInterface, e Entities, limit int) ([]domain.DomainRecord, error) {
				return repo.FindCostOfLiving(ctx, entityFilter(e), limit)
			},
			build: buildCostContext,
		},
		IntentApplicationProcess: {
			fetch: func(ctx context.Context, repo RecordRepositoryInterface, e Entities, limit int) ([]domain.DomainRecord, error) {
				return repo.FindProcessGuides(ctx, entityFilter(e), limit)
			},
			build: buildProcessContext,
		},
	}
}

func buildInstitutionContext(e Entities, rendered string) string {
	intro := "You are advising a student on university selection."
	if e.Country != "" {
		intro += " The student is interested in studying in " + e.Country + "."
	}
	if e.Field != "" {
		intro += " Their field of interest is " + e.Field + "."
	}
	return intro + "\nRecommend from these institutions only:\n" + rendered
}

func buildFundingContext(e Entities, rendered string) string {
	intro := "You are advising a student on scholarships and grants."
	if e.Country != "" {
		intro += " Destination country: " + e.Country + "."
	}
	return intro + "\nBase your answer on these funding offers only:\n" + rendered
}

func buildVisaContext(e Entities, rendered string) string {
	intro := "You are explaining student visa requirements."
	if e.Country != "" {
		intro += " Destination country: " + e.Country + "."
	}
	return intro + "\nUse these entry permit rules only:\n" + rendered
}

func buildLanguageContext(e Entities, rendered string) string {
	intro := "You are advising on preparatory language programs."
	if e.Language != "" {
		intro += " Target language: " + e.Language + "."
	}
	return intro + "\nRecommend from these programs only:\n" + rendered
}

func buildCostContext(e Entities, rendered string) string {
	intro := "You are summarizing cost of living for a student."
	if e.City != "" {
		intro += " City of interest: " + e.City + "."
	} else if e.Country != "" {
		intro += " Country of interest: " + e.Country + "."
	}
	return intro + "\nUse these figures only:\n" + rendered
}

func buildProcessContext(e Entities, rendered string) string {
	intro := "You are walking a student through an application process."
	if e.Country != "" {
		intro += " Destination country: " + e.Country + "."
	}
	return intro + "\nFollow these guides only:\n" + rendered
}
