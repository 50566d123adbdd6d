package db

import (
	"time"

	"gorm.io/datatypes"
)

// Mail server statuses.
const (
	MailServerActive      = "active"
	MailServerCooldown    = "cooldown"
	MailServerDisabled    = "disabled"
	MailServerMaintenance = "maintenance"
)

// Mail statuses.
const (
	MailStatusQueued   = "queued"
	MailStatusSending  = "sending"
	MailStatusSent     = "sent"
	MailStatusFailed   = "failed"
	MailStatusBounced  = "bounced"
	MailStatusRetrying = "retrying"
)

// MailServer 记录发信服务器及其额度使用情况。
type MailServer struct {
	ID       uint   `gorm:"primaryKey" json:"id"`
	ServerID string `gorm:"size:64;not null;uniqueIndex" json:"serverId"`
	Name     string `gorm:"size:64;not null;uniqueIndex" json:"name"`
	Hostname string `gorm:"size:64;not null" json:"hostname"`

	DailyLimit   int `gorm:"not null" json:"dailyLimit"`
	MonthlyLimit int `gorm:"not null" json:"monthlyLimit"`
	DailySent    int `gorm:"not null;default:0" json:"dailySent"`
	MonthlySent  int `gorm:"not null;default:0" json:"monthlySent"`

	LastDailyReset   time.Time `gorm:"not null" json:"lastDailyReset"`
	LastMonthlyReset time.Time `gorm:"not null" json:"lastMonthlyReset"`

	Status   string `gorm:"size:20;not null;default:active;index:idx_mail_servers_status" json:"status"`
	Priority int    `gorm:"not null;default:0;index:idx_mail_servers_priority" json:"priority"`

	LastHealthCheck     *time.Time `json:"lastHealthCheck"`
	ConsecutiveFailures int        `gorm:"not null;default:0" json:"consecutiveFailures"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// MailCampaign 将相关邮件归组统计。
type MailCampaign struct {
	ID          uint    `gorm:"primaryKey" json:"id"`
	CampaignID  string  `gorm:"size:64;not null;uniqueIndex" json:"campaignId"`
	Name        string  `gorm:"size:255;not null" json:"name"`
	Type        string  `gorm:"size:32;not null;index:idx_campaigns_type" json:"type"`
	Description *string `gorm:"type:text" json:"description"`

	Status       string `gorm:"size:20;not null;default:draft;index:idx_campaigns_status" json:"status"`
	TotalMails   int    `gorm:"not null;default:0" json:"totalMails"`
	QueuedCount  int    `gorm:"not null;default:0" json:"queuedCount"`
	SentCount    int    `gorm:"not null;default:0" json:"sentCount"`
	FailedCount  int    `gorm:"not null;default:0" json:"failedCount"`
	BouncedCount int    `gorm:"not null;default:0" json:"bouncedCount"`

	ScheduledAt *time.Time `json:"scheduledAt"`
	StartedAt   *time.Time `json:"startedAt"`
	CompletedAt *time.Time `json:"completedAt"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Mail 是所有邮件的主记录。
type Mail struct {
	ID     uint   `gorm:"primaryKey" json:"id"`
	MailID string `gorm:"size:64;not null;uniqueIndex" json:"mailId"`

	CampaignID *string `gorm:"size:64;index:idx_mails_campaign" json:"campaignId"`
	ServerID   *string `gorm:"size:64;index:idx_mails_server" json:"serverId"`

	ToAddress   string  `gorm:"size:320;not null;index:idx_mails_to_address" json:"toAddress"`
	FromAddress string  `gorm:"size:320;not null" json:"fromAddress"`
	Subject     string  `gorm:"size:998;not null" json:"subject"`
	BodyHTML    *string `gorm:"column:body_html;type:text" json:"bodyHtml"`
	BodyText    *string `gorm:"column:body_text;type:text" json:"bodyText"`

	Attachments   datatypes.JSON `json:"attachments"`
	CustomHeaders datatypes.JSON `json:"customHeaders"`

	Status   string `gorm:"size:20;not null;default:queued;index:idx_mails_status;index:idx_mails_status_created,priority:1" json:"status"`
	Priority int    `gorm:"not null;default:0" json:"priority"`

	SendAttemptCount int        `gorm:"not null;default:0" json:"sendAttemptCount"`
	MaxRetries       int        `gorm:"not null;default:3" json:"maxRetries"`
	LastAttemptAt    *time.Time `json:"lastAttemptAt"`
	SentAt           *time.Time `json:"sentAt"`

	ErrorMessage *string `gorm:"type:text" json:"errorMessage"`
	ErrorCode    *string `gorm:"size:64" json:"errorCode"`

	RecipientName   *string `json:"recipientName"`
	RecipientUserID *string `json:"recipientUserId"`

	Tags     datatypes.JSON `json:"tags"`
	Metadata datatypes.JSON `json:"metadata"`

	CreatedAt time.Time `gorm:"index:idx_mails_created_at;index:idx_mails_status_created,priority:2" json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// MailQueueEntry 对应待发送或延迟发送的邮件。
type MailQueueEntry struct {
	ID       uint    `gorm:"primaryKey" json:"id"`
	QueueID  string  `gorm:"size:64;not null;uniqueIndex" json:"queueId"`
	MailID   string  `gorm:"size:64;not null;uniqueIndex" json:"mailId"`
	ServerID *string `gorm:"size:64" json:"serverId"`

	Status string  `gorm:"size:20;not null;default:queued;index:idx_queue_status" json:"status"`
	Reason *string `gorm:"size:64" json:"reason"`

	QueuedAt            time.Time  `gorm:"not null" json:"queuedAt"`
	ScheduledFor        *time.Time `gorm:"index:idx_queue_scheduled_for" json:"scheduledFor"`
	NextRetryAt         *time.Time `gorm:"index:idx_queue_next_retry" json:"nextRetryAt"`
	ProcessingStartedAt *time.Time `json:"processingStartedAt"`

	RetryCount     int `gorm:"not null;default:0" json:"retryCount"`
	BackoffSeconds int `gorm:"not null;default:0" json:"backoffSeconds"`
	Priority       int `gorm:"not null;default:0;index:idx_queue_priority" json:"priority"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TableName 指定自定义表名。
func (MailQueueEntry) TableName() string {
	return "mail_queue"
}

// MailRetry 记录每一次重试尝试。
type MailRetry struct {
	ID       uint    `gorm:"primaryKey" json:"id"`
	RetryID  string  `gorm:"size:64;not null;uniqueIndex" json:"retryId"`
	MailID   string  `gorm:"size:64;not null;index:idx_retries_mail_id" json:"mailId"`
	ServerID *string `gorm:"size:64" json:"serverId"`

	AttemptNumber int       `gorm:"not null" json:"attemptNumber"`
	AttemptedAt   time.Time `gorm:"not null;index:idx_retries_attempted_at" json:"attemptedAt"`
	Success       bool      `gorm:"not null;default:false" json:"success"`

	ErrorMessage *string `gorm:"type:text" json:"errorMessage"`
	ErrorCode    *string `gorm:"size:64" json:"errorCode"`

	NextRetryAt    *time.Time `json:"nextRetryAt"`
	BackoffApplied int        `gorm:"not null" json:"backoffApplied"`

	CreatedAt time.Time `json:"createdAt"`
}

// MailEvent 记录邮件的每一次状态变化。
type MailEvent struct {
	ID       uint    `gorm:"primaryKey" json:"id"`
	EventID  string  `gorm:"size:64;not null;uniqueIndex" json:"eventId"`
	MailID   string  `gorm:"size:64;not null;index:idx_events_mail_id" json:"mailId"`
	ServerID *string `gorm:"size:64" json:"serverId"`

	EventType string         `gorm:"size:32;not null;index:idx_events_type" json:"eventType"`
	EventData datatypes.JSON `json:"eventData"`

	PreviousStatus *string `gorm:"size:20" json:"previousStatus"`
	NewStatus      *string `gorm:"size:20" json:"newStatus"`
	TriggeredBy    *string `gorm:"size:20" json:"triggeredBy"`

	CreatedAt time.Time `gorm:"index:idx_events_created_at" json:"createdAt"`
}

// MailServerMetric 保存发信服务器按周期聚合的指标。
type MailServerMetric struct {
	ID       uint   `gorm:"primaryKey" json:"id"`
	MetricID string `gorm:"size:64;not null;uniqueIndex" json:"metricId"`
	ServerID string `gorm:"size:64;not null;index:idx_metrics_server_id" json:"serverId"`

	Timestamp   time.Time `gorm:"not null;index:idx_metrics_timestamp" json:"timestamp"`
	PeriodType  string    `gorm:"size:16;not null;index:idx_metrics_period_type" json:"periodType"`
	PeriodStart time.Time `gorm:"not null" json:"periodStart"`
	PeriodEnd   time.Time `gorm:"not null" json:"periodEnd"`

	MailsSent    int `gorm:"not null;default:0" json:"mailsSent"`
	MailsFailed  int `gorm:"not null;default:0" json:"mailsFailed"`
	MailsQueued  int `gorm:"not null;default:0" json:"mailsQueued"`
	MailsBounced int `gorm:"not null;default:0" json:"mailsBounced"`
	MailsRetried int `gorm:"not null;default:0" json:"mailsRetried"`

	AvgLatencyMs int  `gorm:"not null;default:0" json:"avgLatencyMs"`
	MinLatencyMs *int `json:"minLatencyMs"`
	MaxLatencyMs *int `json:"maxLatencyMs"`

	SuccessRate         float64 `gorm:"not null;default:1" json:"successRate"`
	Uptime              int     `gorm:"not null;default:100" json:"uptime"`
	ConsecutiveFailures int     `gorm:"not null;default:0" json:"consecutiveFailures"`

	CreatedAt time.Time `json:"createdAt"`
}

// MailTemplate 是可复用的邮件模板，变量形如 {{name}}。
type MailTemplate struct {
	ID          uint    `gorm:"primaryKey" json:"id"`
	TemplateID  string  `gorm:"size:64;not null;uniqueIndex" json:"templateId"`
	Name        string  `gorm:"size:255;not null" json:"name"`
	Description *string `gorm:"type:text" json:"description"`

	Subject  string  `gorm:"size:998;not null" json:"subject"`
	BodyHTML *string `gorm:"column:body_html;type:text" json:"bodyHtml"`
	BodyText *string `gorm:"column:body_text;type:text" json:"bodyText"`

	Variables datatypes.JSON `json:"variables"`

	Category *string `gorm:"size:32;index:idx_templates_category" json:"category"`
	Version  int     `gorm:"not null;default:1" json:"version"`
	IsActive bool    `gorm:"not null;default:true;index:idx_templates_is_active" json:"isActive"`

	TimesUsed  int        `gorm:"not null;default:0" json:"timesUsed"`
	LastUsedAt *time.Time `json:"lastUsedAt"`

	CreatedBy string    `gorm:"size:255;not null" json:"createdBy"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// MailBounce 记录退信详情。
type MailBounce struct {
	ID       uint   `gorm:"primaryKey" json:"id"`
	BounceID string `gorm:"size:64;not null;uniqueIndex" json:"bounceId"`
	MailID   string `gorm:"size:64;not null;index:idx_bounces_mail_id" json:"mailId"`

	BounceType    string  `gorm:"size:16;not null;index:idx_bounces_type" json:"bounceType"`
	BounceSubType *string `gorm:"size:64" json:"bounceSubType"`
	EmailAddress  string  `gorm:"size:320;not null;index:idx_bounces_email" json:"emailAddress"`

	DiagnosticCode *string `gorm:"type:text" json:"diagnosticCode"`
	Action         *string `gorm:"size:16" json:"action"`
	Status         *string `gorm:"size:16" json:"status"`

	BouncedAt time.Time `gorm:"not null" json:"bouncedAt"`
	CreatedAt time.Time `json:"createdAt"`
}

// MailSuppression 是禁止投递的地址名单（退订、退信、投诉）。
type MailSuppression struct {
	ID            uint   `gorm:"primaryKey" json:"id"`
	SuppressionID string `gorm:"size:64;not null;uniqueIndex" json:"suppressionId"`
	EmailAddress  string `gorm:"size:320;not null;uniqueIndex" json:"emailAddress"`

	Reason string  `gorm:"size:32;not null;index:idx_suppressions_reason" json:"reason"`
	Source *string `gorm:"size:32" json:"source"`
	Notes  *string `gorm:"type:text" json:"notes"`

	IsActive bool `gorm:"not null;default:true;index:idx_suppressions_is_active" json:"isActive"`

	SuppressedAt time.Time `gorm:"not null" json:"suppressedAt"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}
