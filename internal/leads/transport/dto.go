package transport

type CaptureLeadRequest struct {
	FunnelPageID string `json:"funnelPageId" validate:"required,uuid"`
	Email        string `json:"email" validate:"required,max=254"`
	Name         string `json:"name" validate:"omitempty,max=200"`
	UTMSource    string `json:"utmSource" validate:"omitempty,max=200"`
	UTMMedium    string `json:"utmMedium" validate:"omitempty,max=200"`
	UTMCampaign  string `json:"utmCampaign" validate:"omitempty,max=200"`
}

type CaptureLeadResponse struct {
	LeadID  string `json:"leadId"`
	Success bool   `json:"success"`
}

type QualifyLeadRequest struct {
	LeadID  string            `json:"leadId" validate:"required,uuid"`
	Answers map[string]string `json:"answers" validate:"required"`
}

type QualifyLeadResponse struct {
	LeadID      string `json:"leadId"`
	IsQualified bool   `json:"isQualified"`
	Success     bool   `json:"success"`
}
