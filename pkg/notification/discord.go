package notification

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// DiscordNotifier implements the Notifier interface for Discord
type DiscordNotifier struct {
	config DiscordConfig
	client *http.Client
}

// NewDiscordNotifier creates a new Discord notifier
func NewDiscordNotifier(config DiscordConfig) *DiscordNotifier {
	return &DiscordNotifier{
		config: config,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

// DiscordWebhookPayload represents the payload structure for Discord webhooks
type DiscordWebhookPayload struct {
	Username  string         `json:"username,omitempty"`
	AvatarURL string         `json:"avatar_url,omitempty"`
	Content   string         `json:"content,omitempty"`
	Embeds    []DiscordEmbed `json:"embeds,omitempty"`
}

// DiscordEmbed represents an embed in Discord message
type DiscordEmbed struct {
	Title       string              `json:"title,omitempty"`
	Description string              `json:"description,omitempty"`
	Color       int                 `json:"color,omitempty"`
	Fields      []DiscordEmbedField `json:"fields,omitempty"`
	Footer      *DiscordEmbedFooter `json:"footer,omitempty"`
	Timestamp   string              `json:"timestamp,omitempty"`
}

// DiscordEmbedField represents a field in Discord embed
type DiscordEmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

// DiscordEmbedFooter represents footer in Discord embed
type DiscordEmbedFooter struct {
	Text    string `json:"text"`
	IconURL string `json:"icon_url,omitempty"`
}

// Send sends a notification message to Discord
func (d *DiscordNotifier) Send(message *Message) error {
	payload := d.createPayload(message)

	// Marshal payload
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal Discord payload: %w", err)
	}

	// Create HTTP request
	req, err := http.NewRequest(http.MethodPost, d.config.WebhookURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	// Set headers
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)

	client := d.client
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	// Send request
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	// Check response. Discord answers 204 for webhooks without ?wait=true
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("discord webhook returned status %d", resp.StatusCode)
	}

	return nil
}

// ValidateConfig validates the Discord configuration
func (d *DiscordNotifier) ValidateConfig(config map[string]interface{}) error {
	webhookURL, ok := config["webhook_url"].(string)
	if !ok || webhookURL == "" {
		return fmt.Errorf("webhook_url is required for Discord")
	}

	return nil
}

// GetChannelType returns the notification channel type
func (d *DiscordNotifier) GetChannelType() NotificationChannel {
	return ChannelDiscord
}

// createPayload creates a Discord webhook payload from a message
func (d *DiscordNotifier) createPayload(message *Message) *DiscordWebhookPayload {
	embed := DiscordEmbed{
		Title:       message.Title,
		Description: message.Text,
		Color:       d.getColorForType(message.Type),
		Timestamp:   message.Timestamp.Format(time.RFC3339),
		Footer: &DiscordEmbedFooter{
			Text: serviceName,
		},
	}

	for _, key := range sortedKeys(message.Fields) {
		embed.Fields = append(embed.Fields, DiscordEmbedField{
			Name:   key,
			Value:  fmt.Sprintf("%v", message.Fields[key]),
			Inline: true,
		})
	}

	if message.RequestID != "" {
		embed.Fields = append(embed.Fields, DiscordEmbedField{
			Name:   "Request",
			Value:  message.RequestID,
			Inline: true,
		})
	}

	return &DiscordWebhookPayload{
		Embeds:    []DiscordEmbed{embed},
		Username:  d.config.Username,
		AvatarURL: d.config.AvatarURL,
	}
}

// getColorForType returns an appropriate color for the message type
func (d *DiscordNotifier) getColorForType(msgType MessageType) int {
	switch msgType {
	case MessageTypeSuccess:
		return 0x00FF00
	case MessageTypeError:
		return 0xFF0000
	case MessageTypeWarning:
		return 0xFFFF00
	default:
		return 0x0099FF
	}
}

// CreateDiscordOperationSuccessMessage creates a Discord-optimized success message
func CreateDiscordOperationSuccessMessage(data *OperationNotificationData) *Message {
	link := ""
	if data.WebViewLink != "" {
		link = fmt.Sprintf("[View File](%s)", data.WebViewLink)
	}

	return &Message{
		Type:      MessageTypeSuccess,
		Title:     fmt.Sprintf("✅ Drive %s completed", data.Operation),
		Text:      successText(data, "**%s**"),
		Fields:    successFields(data, link),
		Timestamp: completedAt(data),
		RequestID: data.RequestID,
	}
}

// CreateDiscordOperationErrorMessage creates a Discord-optimized error message
func CreateDiscordOperationErrorMessage(data *OperationNotificationData) *Message {
	return &Message{
		Type:      MessageTypeError,
		Title:     fmt.Sprintf("❌ Drive %s failed", data.Operation),
		Text:      fmt.Sprintf("The **%s** operation could not be completed", data.Operation),
		Fields:    errorFields(data),
		Timestamp: completedAt(data),
		RequestID: data.RequestID,
	}
}
