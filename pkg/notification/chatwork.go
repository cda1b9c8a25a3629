package notification

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultChatworkBaseURL = "https://api.chatwork.com/v2"

// ChatworkNotifier implements the Notifier interface for Chatwork
type ChatworkNotifier struct {
	config ChatworkConfig
	client *http.Client
}

// NewChatworkNotifier creates a new Chatwork notifier
func NewChatworkNotifier(config ChatworkConfig) *ChatworkNotifier {
	if config.BaseURL == "" {
		config.BaseURL = defaultChatworkBaseURL
	}
	return &ChatworkNotifier{
		config: config,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

// Send sends a notification message to Chatwork
func (c *ChatworkNotifier) Send(message *Message) error {
	text := c.formatMessage(message)

	// Prepare API request
	apiURL := fmt.Sprintf("%s/rooms/%s/messages", strings.TrimSuffix(c.config.BaseURL, "/"), url.PathEscape(c.config.RoomID))

	// Prepare form data
	data := url.Values{}
	data.Set("body", text)
	data.Set("self_unread", "0") // Don't mark as unread for sender

	// Create HTTP request
	req, err := http.NewRequest(http.MethodPost, apiURL, strings.NewReader(data.Encode()))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	// Set headers
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("X-ChatWorkToken", c.config.APIToken)

	// Send request
	resp, err := c.httpClient().Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	// Check response
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("chatwork API returned status %d", resp.StatusCode)
	}

	return nil
}

func (c *ChatworkNotifier) httpClient() *http.Client {
	if c.client == nil {
		return &http.Client{Timeout: 30 * time.Second}
	}
	return c.client
}

// ValidateConfig validates the Chatwork configuration
func (c *ChatworkNotifier) ValidateConfig(config map[string]interface{}) error {
	apiToken, ok := config["api_token"].(string)
	if !ok || apiToken == "" {
		return fmt.Errorf("api_token is required for Chatwork")
	}

	roomID, ok := config["room_id"].(string)
	if !ok || roomID == "" {
		return fmt.Errorf("room_id is required for Chatwork")
	}

	return nil
}

// GetChannelType returns the notification channel type
func (c *ChatworkNotifier) GetChannelType() NotificationChannel {
	return ChannelChatwork
}

// formatMessage formats a message for Chatwork
func (c *ChatworkNotifier) formatMessage(message *Message) string {
	var builder strings.Builder

	// === Title Section ===
	emoji := c.getEmojiForType(message.Type)
	builder.WriteString(fmt.Sprintf("[info][title]%s %s[/title]\n", emoji, message.Title))

	builder.WriteString(fmt.Sprintf("⏰ Time: %s\n", message.Timestamp.Format("2006-01-02 15:04:05")))
	builder.WriteString("[hr]\n")

	// === Body Section ===
	if message.Text != "" {
		builder.WriteString(fmt.Sprintf("📝 %s\n", message.Text))
	}

	if len(message.Fields) > 0 {
		builder.WriteString("\n📌 Details:\n")
		for _, key := range sortedKeys(message.Fields) {
			builder.WriteString(fmt.Sprintf("• %s: %v\n", key, message.Fields[key]))
		}
	}

	// === Footer Section ===
	if message.RequestID != "" {
		builder.WriteString("[hr]\n")
		builder.WriteString(fmt.Sprintf("🔎 Request: %s\n", message.RequestID))
	}

	builder.WriteString("[/info]")

	return builder.String()
}

// getEmojiForType returns an appropriate emoji for the message type
func (c *ChatworkNotifier) getEmojiForType(msgType MessageType) string {
	switch msgType {
	case MessageTypeSuccess:
		return "✅"
	case MessageTypeError:
		return "❌"
	case MessageTypeWarning:
		return "⚠️"
	case MessageTypeInfo:
		return "ℹ️"
	default:
		return "📝"
	}
}
