package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/edublog/internal/config"
	"github.com/edublog/internal/db"
	"github.com/edublog/internal/logger"
)

// Mail send failures.
var (
	ErrInvalidMailRequest  = errors.New("invalid mail request")
	ErrTemplateNotFound    = errors.New("mail template not found")
	ErrServerUnavailable   = errors.New("mail server unavailable")
	ErrServerLimitReached  = errors.New("mail server limit reached")
	ErrRecipientSuppressed = errors.New("recipient suppressed")
	ErrDeliveryFailed      = errors.New("mail delivery failed")
)

// Named mail servers.
const (
	MailServerOne = "mail-server-1"
	MailServerTwo = "mail-server-2"

	mailEventCreated = "created"
	mailEventSending = "sending"
	mailEventSent    = "sent"
	mailEventFailed  = "failed"

	triggeredBySystem = "system"
	triggeredByAPI    = "api"
)

var templateVarPattern = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_.-]+)\s*\}\}`)

// MailServerSeeds 返回需要预置的两台发信服务器，额度取自配置。
func MailServerSeeds(cfg config.MailConfig) []db.MailServerSeed {
	return []db.MailServerSeed{
		{
			ServerID:     "SRV-RESEND-01",
			Name:         MailServerOne,
			Hostname:     "resend",
			DailyLimit:   cfg.Server1DailyLimit,
			MonthlyLimit: cfg.Server1MonthlyLimit,
			Priority:     1,
		},
		{
			ServerID:     "SRV-MAILTRAP-01",
			Name:         MailServerTwo,
			Hostname:     "mailtrap",
			DailyLimit:   cfg.Server2DailyLimit,
			MonthlyLimit: cfg.Server2MonthlyLimit,
			Priority:     2,
		},
	}
}

// SendMailInput represents fields accepted when sending a mail.
type SendMailInput struct {
	To         string                 `json:"to"`
	ToName     string                 `json:"toName"`
	From       string                 `json:"from"`
	Subject    string                 `json:"subject"`
	HTML       string                 `json:"html"`
	Text       string                 `json:"text"`
	TemplateID string                 `json:"templateId"`
	Variables  map[string]interface{} `json:"variables"`
	CampaignID string                 `json:"campaignId"`
	Tags       []string               `json:"tags"`
}

// SendMailResult reports the stored mail after a successful delivery.
type SendMailResult struct {
	MailID            string `json:"mailId"`
	ServerID          string `json:"serverId"`
	Status            string `json:"status"`
	ProviderMessageID string `json:"providerMessageId,omitempty"`
}

// MailService sends mail through the configured servers and keeps the audit trail.
type MailService struct {
	db          *gorm.DB
	log         *slog.Logger
	senders     map[string]Sender
	defaultFrom string
	newMailID   func() (string, error)
	now         func() time.Time
}

// NewMailService creates a MailService. senders is keyed by server hostname.
func NewMailService(gdb *gorm.DB, log *slog.Logger, defaultFrom string, senders map[string]Sender) *MailService {
	if log == nil {
		log = logger.Default()
	}
	if senders == nil {
		senders = map[string]Sender{}
	}
	return &MailService{
		db:          gdb,
		log:         log,
		senders:     senders,
		defaultFrom: strings.TrimSpace(defaultFrom),
		newMailID:   NewMailID,
		now:         time.Now,
	}
}

// Send delivers one mail synchronously through the named server.
func (s *MailService) Send(ctx context.Context, serverName string, input SendMailInput) (*SendMailResult, error) {
	input = s.normalizeInput(input)
	if err := validateMailInput(&input); err != nil {
		return nil, newCodedError(ErrInvalidMailRequest, "", "INVALID_MAIL_REQUEST", err.Error())
	}

	msg := Message{
		From:    input.From,
		To:      input.To,
		ToName:  input.ToName,
		Subject: input.Subject,
		HTML:    input.HTML,
		Text:    input.Text,
		Tags:    input.Tags,
	}
	if input.TemplateID != "" {
		if err := s.applyTemplate(ctx, input, &msg); err != nil {
			return nil, err
		}
	}

	now := s.now().UTC()
	server, err := s.availableServer(ctx, serverName, now)
	if err != nil {
		return nil, err
	}

	sender, ok := s.senders[server.Hostname]
	if !ok {
		s.log.Error("no sender registered for mail server", "server", server.Name, "hostname", server.Hostname)
		return nil, newCodedError(ErrServerUnavailable, "", "SERVER_UNAVAILABLE",
			fmt.Sprintf("Mail server %s is not available", server.Name))
	}

	suppressed, err := s.isSuppressed(ctx, input.To)
	if err != nil {
		return nil, wrapCodedError(ErrStorage, "DB_QUERY_ERROR", "Failed to check suppression list", err)
	}
	if suppressed {
		return nil, newCodedError(ErrRecipientSuppressed, "to", "RECIPIENT_SUPPRESSED",
			"Recipient address is on the suppression list")
	}

	mail, err := s.createMail(ctx, server, input, msg, now)
	if err != nil {
		return nil, err
	}

	receipt, sendErr := sender.Send(ctx, msg)
	finished := s.now().UTC()
	// 投递结果已成定局，客户端断开也要落账，否则计数会被绕过
	bookkeeping := context.WithoutCancel(ctx)
	if sendErr != nil {
		s.log.Warn("mail delivery failed", "mail_id", mail.MailID, "server", server.Name, "error", sendErr)
		s.recordFailure(bookkeeping, mail, server, sendErr, finished)
		return nil, wrapCodedError(ErrDeliveryFailed, "DELIVERY_FAILED", "Failed to deliver mail", sendErr)
	}

	s.recordSuccess(bookkeeping, mail, server, receipt, finished)
	s.log.Info("mail sent", "mail_id", mail.MailID, "server", server.Name, "provider_id", receipt.ProviderMessageID)
	return &SendMailResult{
		MailID:            mail.MailID,
		ServerID:          server.ServerID,
		Status:            db.MailStatusSent,
		ProviderMessageID: receipt.ProviderMessageID,
	}, nil
}

func (s *MailService) normalizeInput(input SendMailInput) SendMailInput {
	input.To = strings.TrimSpace(input.To)
	input.ToName = strings.TrimSpace(input.ToName)
	input.From = strings.TrimSpace(input.From)
	if input.From == "" {
		input.From = s.defaultFrom
	}
	input.Subject = strings.TrimSpace(input.Subject)
	input.TemplateID = strings.TrimSpace(input.TemplateID)
	input.CampaignID = strings.TrimSpace(input.CampaignID)

	tags := make([]string, 0, len(input.Tags))
	for _, tag := range input.Tags {
		if trimmed := strings.TrimSpace(tag); trimmed != "" {
			tags = append(tags, trimmed)
		}
	}
	input.Tags = tags
	return input
}

func validateMailInput(input *SendMailInput) error {
	withoutTemplate := input.TemplateID == ""
	return validation.ValidateStruct(input,
		validation.Field(&input.To,
			validation.Required.Error("recipient address is required"),
			is.EmailFormat.Error("recipient must be a valid email address"),
		),
		validation.Field(&input.From,
			validation.Required.Error("sender address is required"),
			is.EmailFormat.Error("sender must be a valid email address"),
		),
		validation.Field(&input.Subject,
			validation.When(withoutTemplate, validation.Required.Error("subject is required without templateId")),
		),
		validation.Field(&input.HTML,
			validation.When(withoutTemplate && strings.TrimSpace(input.Text) == "",
				validation.Required.Error("html or text is required without templateId")),
		),
	)
}

// applyTemplate 使用模板补全调用方未提供的主题与正文，并累计模板使用次数。
func (s *MailService) applyTemplate(ctx context.Context, input SendMailInput, msg *Message) error {
	var tpl db.MailTemplate
	err := s.db.WithContext(ctx).
		Where("template_id = ? AND is_active = ?", input.TemplateID, true).
		Take(&tpl).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return newCodedError(ErrTemplateNotFound, "templateId", "TEMPLATE_NOT_FOUND",
				fmt.Sprintf("Mail template %s not found", input.TemplateID))
		}
		return wrapCodedError(ErrStorage, "DB_QUERY_ERROR", "Failed to load mail template", err)
	}

	if msg.Subject == "" {
		msg.Subject = renderTemplate(tpl.Subject, input.Variables)
	}
	if msg.HTML == "" && tpl.BodyHTML != nil {
		msg.HTML = renderTemplate(*tpl.BodyHTML, input.Variables)
	}
	if msg.Text == "" && tpl.BodyText != nil {
		msg.Text = renderTemplate(*tpl.BodyText, input.Variables)
	}
	if tpl.Category != nil {
		msg.Category = *tpl.Category
	}

	now := s.now().UTC()
	if err := s.db.WithContext(ctx).Model(&db.MailTemplate{}).
		Where("id = ?", tpl.ID).
		Updates(map[string]interface{}{
			"times_used":   gorm.Expr("times_used + 1"),
			"last_used_at": now,
		}).Error; err != nil {
		s.log.Warn("failed to update template usage", "template_id", tpl.TemplateID, "error", err)
	}
	return nil
}

// renderTemplate replaces {{key}} placeholders; unknown keys are left untouched.
func renderTemplate(text string, vars map[string]interface{}) string {
	if len(vars) == 0 {
		return text
	}
	return templateVarPattern.ReplaceAllStringFunc(text, func(match string) string {
		key := templateVarPattern.FindStringSubmatch(match)[1]
		value, ok := vars[key]
		if !ok || value == nil {
			return match
		}
		return fmt.Sprint(value)
	})
}

// availableServer 查找发信服务器，跨日或跨月时先重置计数，再检查状态与额度。
func (s *MailService) availableServer(ctx context.Context, name string, now time.Time) (*db.MailServer, error) {
	var server db.MailServer
	if err := s.db.WithContext(ctx).Where("name = ?", name).Take(&server).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, newCodedError(ErrServerUnavailable, "", "SERVER_UNAVAILABLE",
				fmt.Sprintf("Mail server %s is not configured", name))
		}
		return nil, wrapCodedError(ErrStorage, "DB_QUERY_ERROR", "Failed to load mail server", err)
	}

	if server.Status != db.MailServerActive {
		return nil, newCodedError(ErrServerUnavailable, "", "SERVER_UNAVAILABLE",
			fmt.Sprintf("Mail server %s is %s", server.Name, server.Status))
	}

	resets := map[string]interface{}{}
	lastDaily := server.LastDailyReset.UTC()
	if lastDaily.Year() != now.Year() || lastDaily.YearDay() != now.YearDay() {
		server.DailySent = 0
		server.LastDailyReset = now
		resets["daily_sent"] = 0
		resets["last_daily_reset"] = now
	}
	lastMonthly := server.LastMonthlyReset.UTC()
	if lastMonthly.Year() != now.Year() || lastMonthly.Month() != now.Month() {
		server.MonthlySent = 0
		server.LastMonthlyReset = now
		resets["monthly_sent"] = 0
		resets["last_monthly_reset"] = now
	}
	if len(resets) > 0 {
		if err := s.db.WithContext(ctx).Model(&db.MailServer{}).Where("id = ?", server.ID).Updates(resets).Error; err != nil {
			return nil, wrapCodedError(ErrStorage, "DB_QUERY_ERROR", "Failed to reset mail server counters", err)
		}
		s.log.Info("mail server counters reset", "server", server.Name, "columns", len(resets))
	}

	if server.DailySent >= server.DailyLimit {
		return nil, newCodedError(ErrServerLimitReached, "", "SERVER_LIMIT_REACHED",
			fmt.Sprintf("Mail server %s reached its daily limit of %d", server.Name, server.DailyLimit))
	}
	if server.MonthlySent >= server.MonthlyLimit {
		return nil, newCodedError(ErrServerLimitReached, "", "SERVER_LIMIT_REACHED",
			fmt.Sprintf("Mail server %s reached its monthly limit of %d", server.Name, server.MonthlyLimit))
	}
	return &server, nil
}

func (s *MailService) isSuppressed(ctx context.Context, address string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&db.MailSuppression{}).
		Where("LOWER(email_address) = ? AND is_active = ?", strings.ToLower(address), true).
		Count(&count).Error
	return count > 0, err
}

func (s *MailService) createMail(ctx context.Context, server *db.MailServer, input SendMailInput, msg Message, now time.Time) (*db.Mail, error) {
	mailID, err := s.newMailID()
	if err != nil {
		return nil, err
	}

	tags, ok := encodeStrings(input.Tags)
	if !ok {
		return nil, newCodedError(ErrInvalidMailRequest, "tags", "INVALID_MAIL_REQUEST", "tags could not be encoded")
	}
	metadata := map[string]interface{}{"source": triggeredByAPI}
	if input.TemplateID != "" {
		metadata["templateId"] = input.TemplateID
	}

	mail := db.Mail{
		MailID:           mailID,
		CampaignID:       optionalText(input.CampaignID),
		ServerID:         &server.ServerID,
		ToAddress:        msg.To,
		FromAddress:      msg.From,
		Subject:          msg.Subject,
		BodyHTML:         optionalText(msg.HTML),
		BodyText:         optionalText(msg.Text),
		Status:           db.MailStatusSending,
		SendAttemptCount: 1,
		LastAttemptAt:    &now,
		RecipientName:    optionalText(msg.ToName),
		Tags:             tags,
		Metadata:         mustJSON(metadata),
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&mail).Error; err != nil {
			return err
		}
		if err := s.recordEvent(tx, &mail, mailEventCreated, "", db.MailStatusQueued, nil, now); err != nil {
			return err
		}
		if err := s.recordEvent(tx, &mail, mailEventSending, db.MailStatusQueued, db.MailStatusSending, nil, now); err != nil {
			return err
		}
		if mail.CampaignID != nil {
			return tx.Model(&db.MailCampaign{}).
				Where("campaign_id = ?", *mail.CampaignID).
				UpdateColumn("total_mails", gorm.Expr("total_mails + 1")).Error
		}
		return nil
	})
	if err != nil {
		s.log.Error("failed to persist mail", "to", msg.To, "error", err)
		return nil, wrapCodedError(ErrStorage, "DB_INSERT_ERROR", "Failed to save mail", err)
	}
	return &mail, nil
}

// recordSuccess 更新邮件、服务器与活动计数；记账失败只记录日志，不影响已完成的投递。
func (s *MailService) recordSuccess(ctx context.Context, mail *db.Mail, server *db.MailServer, receipt SendReceipt, now time.Time) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(mail).Updates(map[string]interface{}{
			"status":     db.MailStatusSent,
			"sent_at":    now,
			"updated_at": now,
		}).Error; err != nil {
			return err
		}
		if err := tx.Model(&db.MailServer{}).Where("id = ?", server.ID).Updates(map[string]interface{}{
			"daily_sent":           gorm.Expr("daily_sent + 1"),
			"monthly_sent":         gorm.Expr("monthly_sent + 1"),
			"consecutive_failures": 0,
			"last_health_check":    now,
			"updated_at":           now,
		}).Error; err != nil {
			return err
		}
		data := map[string]interface{}{"provider": receipt.Provider, "providerMessageId": receipt.ProviderMessageID}
		if err := s.recordEvent(tx, mail, mailEventSent, db.MailStatusSending, db.MailStatusSent, data, now); err != nil {
			return err
		}
		return s.bumpCampaign(tx, mail, "sent_count")
	})
	if err != nil {
		s.log.Error("failed to record mail success", "mail_id", mail.MailID, "error", err)
	}
}

func (s *MailService) recordFailure(ctx context.Context, mail *db.Mail, server *db.MailServer, cause error, now time.Time) {
	message := cause.Error()
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(mail).Updates(map[string]interface{}{
			"status":        db.MailStatusFailed,
			"error_message": message,
			"error_code":    "DELIVERY_FAILED",
			"updated_at":    now,
		}).Error; err != nil {
			return err
		}
		if err := tx.Model(&db.MailServer{}).Where("id = ?", server.ID).Updates(map[string]interface{}{
			"consecutive_failures": gorm.Expr("consecutive_failures + 1"),
			"updated_at":           now,
		}).Error; err != nil {
			return err
		}
		data := map[string]interface{}{"error": message}
		if err := s.recordEvent(tx, mail, mailEventFailed, db.MailStatusSending, db.MailStatusFailed, data, now); err != nil {
			return err
		}
		return s.bumpCampaign(tx, mail, "failed_count")
	})
	if err != nil {
		s.log.Error("failed to record mail failure", "mail_id", mail.MailID, "error", err)
	}
}

func (s *MailService) bumpCampaign(tx *gorm.DB, mail *db.Mail, column string) error {
	if mail.CampaignID == nil {
		return nil
	}
	return tx.Model(&db.MailCampaign{}).
		Where("campaign_id = ?", *mail.CampaignID).
		UpdateColumn(column, gorm.Expr(column+" + 1")).Error
}

func (s *MailService) recordEvent(tx *gorm.DB, mail *db.Mail, eventType, previous, next string, data map[string]interface{}, now time.Time) error {
	triggeredBy := triggeredBySystem
	event := db.MailEvent{
		EventID:     "EVT-" + uuid.NewString(),
		MailID:      mail.MailID,
		ServerID:    mail.ServerID,
		EventType:   eventType,
		NewStatus:   optionalText(next),
		TriggeredBy: &triggeredBy,
		CreatedAt:   now,
	}
	if previous != "" {
		event.PreviousStatus = &previous
	}
	if len(data) > 0 {
		event.EventData = mustJSON(data)
	}
	return tx.Create(&event).Error
}

// ListEvents returns the audit trail of a mail, oldest first.
func (s *MailService) ListEvents(ctx context.Context, mailID string) ([]db.MailEvent, error) {
	var events []db.MailEvent
	if err := s.db.WithContext(ctx).Where("mail_id = ?", mailID).Order("id asc").Find(&events).Error; err != nil {
		return nil, wrapCodedError(ErrStorage, "DB_QUERY_ERROR", "Failed to fetch mail events", err)
	}
	return events, nil
}

func mustJSON(value interface{}) datatypes.JSON {
	raw, err := json.Marshal(value)
	if err != nil {
		return nil
	}
	return datatypes.JSON(raw)
}
