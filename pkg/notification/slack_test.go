package notification

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewSlackNotifier(t *testing.T) {
	config := SlackConfig{
		WebhookURL: "https://hooks.slack.com/test",
		Channel:    "#general",
		Username:   "drive-bot",
		IconEmoji:  ":robot_face:",
		IconURL:    "https://example.com/icon.png",
	}

	notifier := NewSlackNotifier(config)
	assert.NotNil(t, notifier)
	assert.Equal(t, config, notifier.config)
	assert.NotNil(t, notifier.client)
}

func TestSlackNotifier_GetChannelType(t *testing.T) {
	notifier := NewSlackNotifier(SlackConfig{WebhookURL: "https://hooks.slack.com/test"})
	assert.Equal(t, ChannelSlack, notifier.GetChannelType())
}

func TestSlackNotifier_ValidateConfig(t *testing.T) {
	notifier := &SlackNotifier{}

	tests := []struct {
		name        string
		config      map[string]interface{}
		expectError bool
	}{
		{
			name:        "valid config",
			config:      map[string]interface{}{"webhook_url": "https://hooks.slack.com/test"},
			expectError: false,
		},
		{
			name:        "missing webhook_url",
			config:      map[string]interface{}{"channel": "#general"},
			expectError: true,
		},
		{
			name:        "empty webhook_url",
			config:      map[string]interface{}{"webhook_url": ""},
			expectError: true,
		},
		{
			name:        "invalid webhook_url type",
			config:      map[string]interface{}{"webhook_url": 123},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := notifier.ValidateConfig(tt.config)
			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSlackNotifier_Send(t *testing.T) {
	tests := []struct {
		name           string
		message        *Message
		serverResponse int
		expectError    bool
	}{
		{
			name: "successful send",
			message: &Message{
				Type:      MessageTypeSuccess,
				Title:     "Test Title",
				Text:      "Test message",
				Timestamp: time.Now(),
				RequestID: "req-1",
				Fields:    map[string]interface{}{"key1": "value1", "key2": 123},
			},
			serverResponse: http.StatusOK,
		},
		{
			name:           "server error",
			message:        &Message{Type: MessageTypeError, Title: "Error Title", Timestamp: time.Now()},
			serverResponse: http.StatusInternalServerError,
			expectError:    true,
		},
		{
			name:           "bad request",
			message:        &Message{Type: MessageTypeWarning, Title: "Warning Title", Timestamp: time.Now()},
			serverResponse: http.StatusBadRequest,
			expectError:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
				assert.Equal(t, userAgent, r.Header.Get("User-Agent"))
				assert.Equal(t, http.MethodPost, r.Method)

				var payload SlackWebhookPayload
				assert.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
				assert.Len(t, payload.Attachments, 1)
				assert.Equal(t, tt.message.Title, payload.Attachments[0].Title)
				assert.Equal(t, "#test", payload.Channel)

				w.WriteHeader(tt.serverResponse)
			}))
			defer server.Close()

			notifier := NewSlackNotifier(SlackConfig{
				WebhookURL: server.URL,
				Channel:    "#test",
				Username:   "test-bot",
				IconEmoji:  ":test:",
			})

			err := notifier.Send(tt.message)
			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSlackNotifier_Send_NetworkError(t *testing.T) {
	notifier := NewSlackNotifier(SlackConfig{WebhookURL: "http://127.0.0.1:1/invalid"})

	err := notifier.Send(&Message{Type: MessageTypeInfo, Title: "Test", Timestamp: time.Now()})
	assert.Error(t, err)
}

func TestSlackNotifier_createPayload(t *testing.T) {
	notifier := NewSlackNotifier(SlackConfig{WebhookURL: "https://hooks.slack.com/test", Username: "bot"})
	ts := time.Unix(1700000000, 0)

	payload := notifier.createPayload(&Message{
		Type:      MessageTypeError,
		Title:     "Drive upload failed",
		Text:      "boom",
		Timestamp: ts,
		RequestID: "req-9",
		Fields:    map[string]interface{}{"B": 2, "A": "one"},
	})

	assert.Equal(t, "bot", payload.Username)
	attachment := payload.Attachments[0]
	assert.Equal(t, "danger", attachment.Color)
	assert.Equal(t, serviceName, attachment.Footer)
	assert.Equal(t, ts.Unix(), attachment.Timestamp)
	assert.Equal(t, []SlackField{
		{Title: "A", Value: "one", Short: true},
		{Title: "B", Value: "2", Short: true},
		{Title: "Request", Value: "req-9", Short: true},
	}, attachment.Fields)
}

func TestSlackNotifier_getColorForType(t *testing.T) {
	notifier := &SlackNotifier{}
	assert.Equal(t, "good", notifier.getColorForType(MessageTypeSuccess))
	assert.Equal(t, "danger", notifier.getColorForType(MessageTypeError))
	assert.Equal(t, "warning", notifier.getColorForType(MessageTypeWarning))
	assert.Equal(t, "#36a64f", notifier.getColorForType(MessageTypeInfo))
	assert.Equal(t, "#808080", notifier.getColorForType("other"))
}

func TestCreateSlackOperationMessages(t *testing.T) {
	started := time.Now().Add(-2 * time.Second)
	data := &OperationNotificationData{
		Operation:   "upload",
		FileID:      "file-1",
		FileName:    "report.pdf",
		Bytes:       2048,
		WebViewLink: "https://drive.google.com/file/d/file-1/view",
		StartedAt:   started,
		CompletedAt: started.Add(time.Second),
	}

	msg := CreateSlackOperationSuccessMessage(data)
	assert.Equal(t, MessageTypeSuccess, msg.Type)
	assert.Equal(t, "<https://drive.google.com/file/d/file-1/view|View File>", msg.Fields["Google Drive Link"])
	assert.Equal(t, "2.0 KB", msg.Fields["File Size"])
	assert.Contains(t, msg.Text, "*report.pdf*")

	data.ErrorMessage = "quota exceeded"
	msg = CreateSlackOperationErrorMessage(data)
	assert.Equal(t, MessageTypeError, msg.Type)
	assert.Equal(t, "quota exceeded", msg.Fields["Error"])
}
