package scheduler

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	TaskAppointmentReminder = "appointments.reminder"
	TaskTaskReminder        = "tasks.reminder"
	TaskCampaignDispatch    = "campaigns.dispatch"
	TaskTemplateSend        = "campaigns.template_send"
)

type AppointmentReminderPayload struct {
	AppointmentID string `json:"appointmentId"`
}

type TaskReminderPayload struct {
	TaskID string `json:"taskId"`
}

type CampaignDispatchPayload struct {
	CampaignID  string `json:"campaignId"`
	RequestedBy string `json:"requestedBy,omitempty"`
}

// TemplateSendPayload sends one catalogue template to one prospect.
type TemplateSendPayload struct {
	TemplateKey string `json:"templateKey"`
	ProspectID  string `json:"prospectId"`
}

func NewAppointmentReminderTask(payload AppointmentReminderPayload) (*asynq.Task, error) {
	return newTask(TaskAppointmentReminder, payload)
}

func ParseAppointmentReminderPayload(task *asynq.Task) (AppointmentReminderPayload, error) {
	var payload AppointmentReminderPayload
	err := json.Unmarshal(task.Payload(), &payload)
	return payload, err
}

func NewTaskReminderTask(payload TaskReminderPayload) (*asynq.Task, error) {
	return newTask(TaskTaskReminder, payload)
}

func ParseTaskReminderPayload(task *asynq.Task) (TaskReminderPayload, error) {
	var payload TaskReminderPayload
	err := json.Unmarshal(task.Payload(), &payload)
	return payload, err
}

func NewCampaignDispatchTask(payload CampaignDispatchPayload) (*asynq.Task, error) {
	return newTask(TaskCampaignDispatch, payload)
}

func ParseCampaignDispatchPayload(task *asynq.Task) (CampaignDispatchPayload, error) {
	var payload CampaignDispatchPayload
	err := json.Unmarshal(task.Payload(), &payload)
	return payload, err
}

func NewTemplateSendTask(payload TemplateSendPayload) (*asynq.Task, error) {
	return newTask(TaskTemplateSend, payload)
}

func ParseTemplateSendPayload(task *asynq.Task) (TemplateSendPayload, error) {
	var payload TemplateSendPayload
	err := json.Unmarshal(task.Payload(), &payload)
	return payload, err
}

func newTask(typename string, payload interface{}) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(typename, data), nil
}
