package notification

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// SlackNotifier implements the Notifier interface for Slack
type SlackNotifier struct {
	config SlackConfig
	client *http.Client
}

// NewSlackNotifier creates a new Slack notifier
func NewSlackNotifier(config SlackConfig) *SlackNotifier {
	return &SlackNotifier{
		config: config,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

// SlackWebhookPayload represents the payload structure for Slack webhooks
type SlackWebhookPayload struct {
	Channel     string            `json:"channel,omitempty"`
	Username    string            `json:"username,omitempty"`
	IconEmoji   string            `json:"icon_emoji,omitempty"`
	IconURL     string            `json:"icon_url,omitempty"`
	Text        string            `json:"text,omitempty"`
	Attachments []SlackAttachment `json:"attachments,omitempty"`
}

// SlackAttachment represents an attachment in Slack message
type SlackAttachment struct {
	Color      string       `json:"color,omitempty"`
	Title      string       `json:"title,omitempty"`
	Text       string       `json:"text,omitempty"`
	Fields     []SlackField `json:"fields,omitempty"`
	Footer     string       `json:"footer,omitempty"`
	FooterIcon string       `json:"footer_icon,omitempty"`
	Timestamp  int64        `json:"ts,omitempty"`
}

// SlackField represents a field in Slack attachment
type SlackField struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}

// Send sends a notification message to Slack
func (s *SlackNotifier) Send(message *Message) error {
	payload := s.createPayload(message)

	// Marshal payload
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal Slack payload: %w", err)
	}

	// Create HTTP request
	req, err := http.NewRequest(http.MethodPost, s.config.WebhookURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	// Set headers
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)

	client := s.client
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	// Send request
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	// Check response
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("slack webhook returned status %d", resp.StatusCode)
	}

	return nil
}

// ValidateConfig validates the Slack configuration
func (s *SlackNotifier) ValidateConfig(config map[string]interface{}) error {
	webhookURL, ok := config["webhook_url"].(string)
	if !ok || webhookURL == "" {
		return fmt.Errorf("webhook_url is required for Slack")
	}

	return nil
}

// GetChannelType returns the notification channel type
func (s *SlackNotifier) GetChannelType() NotificationChannel {
	return ChannelSlack
}

// createPayload creates a Slack webhook payload from a message
func (s *SlackNotifier) createPayload(message *Message) *SlackWebhookPayload {
	attachment := SlackAttachment{
		Color:     s.getColorForType(message.Type),
		Title:     message.Title,
		Text:      message.Text,
		Footer:    serviceName,
		Timestamp: message.Timestamp.Unix(),
	}

	for _, key := range sortedKeys(message.Fields) {
		attachment.Fields = append(attachment.Fields, SlackField{
			Title: key,
			Value: fmt.Sprintf("%v", message.Fields[key]),
			Short: true,
		})
	}

	if message.RequestID != "" {
		attachment.Fields = append(attachment.Fields, SlackField{
			Title: "Request",
			Value: message.RequestID,
			Short: true,
		})
	}

	payload := &SlackWebhookPayload{
		Attachments: []SlackAttachment{attachment},
		Channel:     s.config.Channel,
		Username:    s.config.Username,
		IconEmoji:   s.config.IconEmoji,
		IconURL:     s.config.IconURL,
	}

	return payload
}

// getColorForType returns an appropriate color for the message type
func (s *SlackNotifier) getColorForType(msgType MessageType) string {
	switch msgType {
	case MessageTypeSuccess:
		return "good"
	case MessageTypeError:
		return "danger"
	case MessageTypeWarning:
		return "warning"
	case MessageTypeInfo:
		return "#36a64f"
	default:
		return "#808080"
	}
}

// CreateSlackOperationSuccessMessage creates a Slack-optimized success message
func CreateSlackOperationSuccessMessage(data *OperationNotificationData) *Message {
	link := ""
	if data.WebViewLink != "" {
		link = fmt.Sprintf("<%s|View File>", data.WebViewLink)
	}

	return &Message{
		Type:      MessageTypeSuccess,
		Title:     fmt.Sprintf(":white_check_mark: Drive %s completed", data.Operation),
		Text:      successText(data, "*%s*"),
		Fields:    successFields(data, link),
		Timestamp: completedAt(data),
		RequestID: data.RequestID,
	}
}

// CreateSlackOperationErrorMessage creates a Slack-optimized error message
func CreateSlackOperationErrorMessage(data *OperationNotificationData) *Message {
	return &Message{
		Type:      MessageTypeError,
		Title:     fmt.Sprintf(":x: Drive %s failed", data.Operation),
		Text:      fmt.Sprintf("The *%s* operation could not be completed", data.Operation),
		Fields:    errorFields(data),
		Timestamp: completedAt(data),
		RequestID: data.RequestID,
	}
}
