package service

import "context"

// Intent is the fixed, small taxonomy the extractor classifies into.
type Intent string

const (
	IntentUniversityRecommendation Intent = "university_recommendation"
	IntentScholarshipInquiry       Intent = "scholarship_inquiry"
	IntentVisaRequirements         Intent = "visa_requirements"
	IntentLanguagePrograms         Intent = "language_programs"
	IntentCostOfLiving             Intent = "cost_of_living"
	IntentApplicationProcess       Intent = "application_process"
	IntentLiveSupportRequest       Intent = "live_support_request"
	IntentGeneralQuestion          Intent = "general_question"
)

// Entities are the filters the extractor pulled out of the message.
type Entities struct {
	Country  string
	City     string
	Field    string
	Language string
}

// ExtractionResult is the extractor's classification of one raw message.
// The engine holds it as a pointer: nil means extraction never ran for
// this request (non-routed industry), and no branch may read intent or
// confidence in that case.
type ExtractionResult struct {
	Intent           Intent
	Confidence       float32
	NeedsLiveSupport bool
	Entities         Entities
}

// IntentExtractor classifies a raw message. External collaborator; only
// invoked for industries that opt into structured routing.
type IntentExtractor interface {
	Extract(ctx context.Context, text string) (*ExtractionResult, error)
}
