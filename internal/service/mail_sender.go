package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/edublog/internal/logger"
)

// ErrProviderCredentialsMissing 表示发信服务商的密钥未配置。
var ErrProviderCredentialsMissing = errors.New("mail provider credentials missing")

type httpDoer interface {
	Do(*http.Request) (*http.Response, error)
}

// Message is a fully rendered mail ready for delivery.
type Message struct {
	From     string
	To       string
	ToName   string
	Subject  string
	HTML     string
	Text     string
	Tags     []string
	Headers  map[string]string
	Category string
}

// SendReceipt is what a provider reports after accepting a message.
type SendReceipt struct {
	ProviderMessageID string
	Provider          string
}

// Sender delivers a rendered message through one provider.
type Sender interface {
	Send(ctx context.Context, msg Message) (SendReceipt, error)
	Name() string
}

type providerClient struct {
	label   string
	baseURL string
	token   string
	http    httpDoer
	log     *slog.Logger
}

func newProviderClient(label, baseURL, token string, log *slog.Logger) providerClient {
	if log == nil {
		log = logger.Default()
	}
	return providerClient{
		label:   label,
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		token:   strings.TrimSpace(token),
		http:    &http.Client{Timeout: 30 * time.Second},
		log:     log,
	}
}

func (c *providerClient) setHTTPClient(client httpDoer) {
	if client == nil {
		c.http = &http.Client{Timeout: 30 * time.Second}
		return
	}
	c.http = client
}

// post 发送 JSON 请求并返回响应体；非 2xx 时 errMessage 提取服务商返回的错误描述。
func (c *providerClient) post(ctx context.Context, path string, payload interface{}, errMessage func([]byte) string) ([]byte, error) {
	if c.token == "" {
		return nil, ErrProviderCredentialsMissing
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("构造 %s 请求失败: %w", c.label, err)
	}
	c.log.Debug("mail provider request", "provider", c.label, "body", logger.Snippet(string(body)))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("创建 %s 请求失败: %w", c.label, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "edublog-mail/1.0")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("请求 %s 接口失败: %w", c.label, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("读取 %s 响应失败: %w", c.label, err)
	}
	c.log.Debug("mail provider response", "provider", c.label, "status", resp.StatusCode, "body", logger.Snippet(string(respBody)))

	if resp.StatusCode >= http.StatusBadRequest {
		msg := strings.TrimSpace(errMessage(respBody))
		if msg == "" {
			msg = strings.TrimSpace(string(respBody))
		}
		if msg == "" {
			msg = resp.Status
		}
		return nil, fmt.Errorf("%s 接口返回错误：%s", c.label, msg)
	}
	return respBody, nil
}

// ResendSender delivers through the Resend HTTP API.
type ResendSender struct {
	client providerClient
}

// NewResendSender creates a Resend backed sender.
func NewResendSender(baseURL, apiKey string, log *slog.Logger) *ResendSender {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = "https://api.resend.com"
	}
	return &ResendSender{client: newProviderClient("Resend", baseURL, apiKey, log)}
}

// SetHTTPClient swaps the outbound HTTP client.
func (s *ResendSender) SetHTTPClient(client httpDoer) {
	s.client.setHTTPClient(client)
}

// Name identifies the provider.
func (s *ResendSender) Name() string {
	return "resend"
}

type resendTag struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type resendEmailRequest struct {
	From    string            `json:"from"`
	To      []string          `json:"to"`
	Subject string            `json:"subject"`
	HTML    string            `json:"html,omitempty"`
	Text    string            `json:"text,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
	Tags    []resendTag       `json:"tags,omitempty"`
}

// Send posts the message to /emails.
func (s *ResendSender) Send(ctx context.Context, msg Message) (SendReceipt, error) {
	payload := resendEmailRequest{
		From:    msg.From,
		To:      []string{formatAddress(msg.To, msg.ToName)},
		Subject: msg.Subject,
		HTML:    msg.HTML,
		Text:    msg.Text,
		Headers: msg.Headers,
	}
	for _, tag := range msg.Tags {
		payload.Tags = append(payload.Tags, resendTag{Name: "tag", Value: tag})
	}

	body, err := s.client.post(ctx, "/emails", payload, func(raw []byte) string {
		var resp struct {
			Message string `json:"message"`
		}
		_ = json.Unmarshal(raw, &resp)
		return resp.Message
	})
	if err != nil {
		return SendReceipt{}, err
	}

	var created struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(body, &created); err != nil {
		return SendReceipt{}, fmt.Errorf("解析 Resend 响应失败: %w", err)
	}
	return SendReceipt{ProviderMessageID: created.ID, Provider: s.Name()}, nil
}

// MailtrapSender delivers through the Mailtrap Send API.
type MailtrapSender struct {
	client providerClient
}

// NewMailtrapSender creates a Mailtrap backed sender.
func NewMailtrapSender(baseURL, token string, log *slog.Logger) *MailtrapSender {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = "https://send.api.mailtrap.io"
	}
	return &MailtrapSender{client: newProviderClient("Mailtrap", baseURL, token, log)}
}

// SetHTTPClient swaps the outbound HTTP client.
func (s *MailtrapSender) SetHTTPClient(client httpDoer) {
	s.client.setHTTPClient(client)
}

// Name identifies the provider.
func (s *MailtrapSender) Name() string {
	return "mailtrap"
}

type mailtrapAddress struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type mailtrapSendRequest struct {
	From     mailtrapAddress   `json:"from"`
	To       []mailtrapAddress `json:"to"`
	Subject  string            `json:"subject"`
	HTML     string            `json:"html,omitempty"`
	Text     string            `json:"text,omitempty"`
	Category string            `json:"category,omitempty"`
	Headers  map[string]string `json:"headers,omitempty"`
}

// Send posts the message to /api/send.
func (s *MailtrapSender) Send(ctx context.Context, msg Message) (SendReceipt, error) {
	payload := mailtrapSendRequest{
		From:     mailtrapAddress{Email: msg.From},
		To:       []mailtrapAddress{{Email: msg.To, Name: msg.ToName}},
		Subject:  msg.Subject,
		HTML:     msg.HTML,
		Text:     msg.Text,
		Category: msg.Category,
		Headers:  msg.Headers,
	}

	body, err := s.client.post(ctx, "/api/send", payload, func(raw []byte) string {
		var resp struct {
			Errors []string `json:"errors"`
		}
		_ = json.Unmarshal(raw, &resp)
		return strings.Join(resp.Errors, "; ")
	})
	if err != nil {
		return SendReceipt{}, err
	}

	var sent struct {
		Success    bool     `json:"success"`
		MessageIDs []string `json:"message_ids"`
	}
	if err := json.Unmarshal(body, &sent); err != nil {
		return SendReceipt{}, fmt.Errorf("解析 Mailtrap 响应失败: %w", err)
	}
	if !sent.Success {
		return SendReceipt{}, errors.New("Mailtrap 接口未确认发送")
	}
	receipt := SendReceipt{Provider: s.Name()}
	if len(sent.MessageIDs) > 0 {
		receipt.ProviderMessageID = sent.MessageIDs[0]
	}
	return receipt, nil
}

func formatAddress(email, name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return email
	}
	return fmt.Sprintf("%s <%s>", name, email)
}
