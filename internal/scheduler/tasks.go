package scheduler

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const TaskEmailAutomationTrigger = "funnel.email_automation.trigger"

// EmailAutomationPayload carries the lead snapshot the worker needs to pick and address an email.
type EmailAutomationPayload struct {
	LeadID       string `json:"leadId"`
	FunnelPageID string `json:"funnelPageId"`
	UserID       string `json:"userId"`
	Email        string `json:"email"`
	Name         string `json:"name,omitempty"`
	Trigger      string `json:"trigger"`
	IsQualified  *bool  `json:"isQualified,omitempty"`
}

func NewEmailAutomationTask(payload EmailAutomationPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskEmailAutomationTrigger, data), nil
}

func ParseEmailAutomationPayload(task *asynq.Task) (EmailAutomationPayload, error) {
	var payload EmailAutomationPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return EmailAutomationPayload{}, err
	}
	return payload, nil
}
