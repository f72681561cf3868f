package transport

import "time"

type CreateQuestionRequest struct {
	QuestionText     string `json:"questionText" validate:"required,max=500"`
	QualifyingAnswer string `json:"qualifyingAnswer" validate:"required,yesno"`
	IsRequired       *bool  `json:"isRequired"`
}

type CreateFunnelRequest struct {
	Slug              string                  `json:"slug" validate:"required,min=1,max=120"`
	Title             string                  `json:"title" validate:"required,max=200"`
	LeadMagnetTitle   string                  `json:"leadMagnetTitle" validate:"required,max=200"`
	IsPublished       bool                    `json:"isPublished"`
	QuestionSetID     *string                 `json:"questionSetId" validate:"omitempty,uuid"`
	ThankYouHeadline  string                  `json:"thankYouHeadline" validate:"max=300"`
	ThankYouSubline   string                  `json:"thankYouSubline" validate:"max=500"`
	VSLURL            string                  `json:"vslUrl" validate:"omitempty,url,max=1000"`
	PassMessage       string                  `json:"passMessage" validate:"max=1000"`
	LeadMagnetFileKey *string                 `json:"leadMagnetFileKey" validate:"omitempty,max=500"`
	Questions         []CreateQuestionRequest `json:"questions" validate:"max=20,dive"`
}

type QuestionResponse struct {
	ID               string `json:"id"`
	QuestionText     string `json:"questionText"`
	QualifyingAnswer string `json:"qualifyingAnswer"`
	IsRequired       bool   `json:"isRequired"`
	DisplayOrder     int    `json:"displayOrder"`
}

type FunnelResponse struct {
	ID              string             `json:"id"`
	Slug            string             `json:"slug"`
	Title           string             `json:"title"`
	LeadMagnetTitle string             `json:"leadMagnetTitle"`
	IsPublished     bool               `json:"isPublished"`
	Questions       []QuestionResponse `json:"questions"`
	CreatedAt       time.Time          `json:"createdAt"`
}
