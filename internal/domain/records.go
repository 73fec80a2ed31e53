package domain

import (
	"fmt"
	"strings"
)

// DomainRecord is a typed, read-only row from the structured knowledge
// store. Records are owned by a separate ingestion subsystem; the core
// only filters and renders them into prompt fragments.
type DomainRecord interface {
	// RecordKind names the variant, e.g. "institution".
	RecordKind() string
	// Render produces the compact one-line form used in prompts.
	Render() string
}

// Institution is a university or college a student can apply to.
type Institution struct {
	ID          string
	Name        string
	Country     string
	City        string
	Fields      []string
	Language    string
	TuitionNote string
	Ranking     int
}

func (i *Institution) RecordKind() string { return "institution" }

func (i *Institution) Render() string {
	parts := []string{i.Name, i.City + ", " + i.Country}
	if len(i.Fields) > 0 {
		parts = append(parts, "Programs: "+strings.Join(i.Fields, ", "))
	}
	if i.Language != "" {
		parts = append(parts, "Language: "+i.Language)
	}
	if i.TuitionNote != "" {
		parts = append(parts, "Tuition: "+i.TuitionNote)
	}
	return strings.Join(parts, " | ")
}

// FundingOffer is a scholarship or grant.
type FundingOffer struct {
	ID          string
	Name        string
	Country     string
	Field       string
	Amount      float64
	Currency    string
	Deadline    string
	Eligibility string
}

func (f *FundingOffer) RecordKind() string { return "funding_offer" }

func (f *FundingOffer) Render() string {
	parts := []string{f.Name, f.Country}
	if f.Amount > 0 {
		parts = append(parts, fmt.Sprintf("Amount: %.0f %s", f.Amount, f.Currency))
	}
	if f.Deadline != "" {
		parts = append(parts, "Deadline: "+f.Deadline)
	}
	if f.Eligibility != "" {
		parts = append(parts, "Eligibility: "+f.Eligibility)
	}
	return strings.Join(parts, " | ")
}

// EntryPermitRule describes visa requirements for a destination country.
type EntryPermitRule struct {
	ID             string
	Country        string
	VisaType       string
	Requirements   string
	ProcessingTime string
	Fee            string
}

func (e *EntryPermitRule) RecordKind() string { return "entry_permit_rule" }

func (e *EntryPermitRule) Render() string {
	parts := []string{e.Country + " " + e.VisaType}
	if e.Requirements != "" {
		parts = append(parts, "Requirements: "+e.Requirements)
	}
	if e.ProcessingTime != "" {
		parts = append(parts, "Processing: "+e.ProcessingTime)
	}
	if e.Fee != "" {
		parts = append(parts, "Fee: "+e.Fee)
	}
	return strings.Join(parts, " | ")
}

// LanguageProgram is a preparatory language course.
type LanguageProgram struct {
	ID       string
	Name     string
	Country  string
	City     string
	Language string
	Duration string
	Price    string
}

func (l *LanguageProgram) RecordKind() string { return "language_program" }

func (l *LanguageProgram) Render() string {
	parts := []string{l.Name, l.City + ", " + l.Country, "Language: " + l.Language}
	if l.Duration != "" {
		parts = append(parts, "Duration: "+l.Duration)
	}
	if l.Price != "" {
		parts = append(parts, "Price: "+l.Price)
	}
	return strings.Join(parts, " | ")
}

// CostOfLivingRow summarizes monthly living costs for a city.
type CostOfLivingRow struct {
	ID          string
	Country     string
	City        string
	MonthlyRent string
	MonthlyFood string
	Transport   string
	Currency    string
}

func (c *CostOfLivingRow) RecordKind() string { return "cost_of_living" }

func (c *CostOfLivingRow) Render() string {
	parts := []string{c.City + ", " + c.Country}
	if c.MonthlyRent != "" {
		parts = append(parts, "Rent: "+c.MonthlyRent+" "+c.Currency)
	}
	if c.MonthlyFood != "" {
		parts = append(parts, "Food: "+c.MonthlyFood+" "+c.Currency)
	}
	if c.Transport != "" {
		parts = append(parts, "Transport: "+c.Transport+" "+c.Currency)
	}
	return strings.Join(parts, " | ")
}

// ProcessGuide is a step-by-step application walkthrough.
type ProcessGuide struct {
	ID      string
	Title   string
	Country string
	Steps   []string
}

func (p *ProcessGuide) RecordKind() string { return "process_guide" }

func (p *ProcessGuide) Render() string {
	parts := []string{p.Title}
	if p.Country != "" {
		parts = append(parts, p.Country)
	}
	if len(p.Steps) > 0 {
		parts = append(parts, "Steps: "+strings.Join(p.Steps, " -> "))
	}
	return strings.Join(parts, " | ")
}

// RenderRecords renders records into the line-per-record block passed to
// context builders.
func RenderRecords(records []DomainRecord) string {
	lines := make([]string, 0, len(records))
	for _, r := range records {
		if r == nil {
			continue
		}
		lines = append(lines, "- "+r.Render())
	}
	return strings.Join(lines, "\n")
}
