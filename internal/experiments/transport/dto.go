package transport

import "time"

type VariantRequest struct {
	Headline    string `json:"headline" validate:"max=300"`
	Subline     string `json:"subline" validate:"max=500"`
	VSLURL      string `json:"vslUrl" validate:"omitempty,url,max=1000"`
	PassMessage string `json:"passMessage" validate:"max=1000"`
}

type CreateExperimentRequest struct {
	TestField string           `json:"testField" validate:"required,oneof=headline subline vsl_url pass_message"`
	Variants  []VariantRequest `json:"variants" validate:"required,min=1,max=4,dive"`
}

type VariantResponse struct {
	PageID  string `json:"pageId"`
	Ordinal int    `json:"ordinal"`
}

type ExperimentResponse struct {
	ID           string            `json:"id"`
	FunnelPageID string            `json:"funnelPageId"`
	Status       string            `json:"status"`
	TestField    string            `json:"testField"`
	Variants     []VariantResponse `json:"variants"`
	CreatedAt    time.Time         `json:"createdAt"`
}

// ThankYouResponse is the content rendered after a lead is captured.
type ThankYouResponse struct {
	FunnelPageID    string  `json:"funnelPageId"`
	VariantPageID   string  `json:"variantPageId"`
	ExperimentID    *string `json:"experimentId,omitempty"`
	Headline        string  `json:"headline"`
	Subline         string  `json:"subline"`
	VSLURL          string  `json:"vslUrl"`
	PassMessage     string  `json:"passMessage"`
	LeadMagnetTitle string  `json:"leadMagnetTitle"`
	LeadMagnetURL   *string `json:"leadMagnetUrl,omitempty"`
}
