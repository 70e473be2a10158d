package scheduler

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"time"

	"premunia_crm_backend/platform/config"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
)

// ReminderScheduler is used by the tasks and appointments services.
type ReminderScheduler interface {
	ScheduleAppointmentReminder(ctx context.Context, payload AppointmentReminderPayload, runAt time.Time) error
	ScheduleTaskReminder(ctx context.Context, payload TaskReminderPayload, runAt time.Time) error
}

// CampaignEnqueuer is used by the campaigns service on launch and for
// templates started by a trigger.
type CampaignEnqueuer interface {
	EnqueueCampaignDispatch(ctx context.Context, payload CampaignDispatchPayload) error
	ScheduleTemplateSend(ctx context.Context, payload TemplateSendPayload, runAt time.Time) error
}

type Client struct {
	client *asynq.Client
	queue  string
}

func NewClient(cfg config.SchedulerConfig) (*Client, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	return &Client{
		client: asynq.NewClient(opt),
		queue:  queueName(cfg),
	}, nil
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// ScheduleAppointmentReminder enqueues a reminder at runAt. The worker
// re-reads the appointment when it fires and drops stale reminders.
func (c *Client) ScheduleAppointmentReminder(ctx context.Context, payload AppointmentReminderPayload, runAt time.Time) error {
	task, err := NewAppointmentReminderTask(payload)
	if err != nil {
		return err
	}
	return c.enqueue(ctx, task, asynq.ProcessAt(runAt))
}

func (c *Client) ScheduleTaskReminder(ctx context.Context, payload TaskReminderPayload, runAt time.Time) error {
	task, err := NewTaskReminderTask(payload)
	if err != nil {
		return err
	}
	return c.enqueue(ctx, task, asynq.ProcessAt(runAt))
}

// EnqueueCampaignDispatch runs the dispatch once per campaign at a time.
func (c *Client) EnqueueCampaignDispatch(ctx context.Context, payload CampaignDispatchPayload) error {
	task, err := NewCampaignDispatchTask(payload)
	if err != nil {
		return err
	}
	err = c.enqueue(ctx, task, asynq.TaskID("campaign-dispatch:"+payload.CampaignID), asynq.MaxRetry(3), asynq.Timeout(30*time.Minute))
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		return nil
	}
	return err
}

// ScheduleTemplateSend queues a triggered template. A prospect receives each
// template at most once.
func (c *Client) ScheduleTemplateSend(ctx context.Context, payload TemplateSendPayload, runAt time.Time) error {
	task, err := NewTemplateSendTask(payload)
	if err != nil {
		return err
	}
	taskID := "template-send:" + payload.TemplateKey + ":" + payload.ProspectID
	err = c.enqueue(ctx, task, asynq.TaskID(taskID), asynq.ProcessAt(runAt), asynq.MaxRetry(5))
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		return nil
	}
	return err
}

func (c *Client) enqueue(ctx context.Context, task *asynq.Task, opts ...asynq.Option) error {
	if c == nil || c.client == nil {
		return nil
	}
	opts = append(opts, asynq.Queue(c.queue))
	_, err := c.client.EnqueueContext(ctx, task, opts...)
	return err
}

func queueName(cfg config.SchedulerConfig) string {
	if queue := cfg.GetAsynqQueueName(); queue != "" {
		return queue
	}
	return "default"
}

func redisClientOpt(redisURL string, tlsInsecure bool) (asynq.RedisClientOpt, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return asynq.RedisClientOpt{}, err
	}

	var tlsConfig *tls.Config
	if opt.TLSConfig != nil {
		clone := opt.TLSConfig.Clone()
		if tlsInsecure {
			clone.InsecureSkipVerify = true
		}
		tlsConfig = clone
	} else if tlsInsecure {
		tlsConfig = &tls.Config{InsecureSkipVerify: true}
	}

	return asynq.RedisClientOpt{
		Addr:      opt.Addr,
		Password:  opt.Password,
		DB:        opt.DB,
		TLSConfig: tlsConfig,
	}, nil
}
