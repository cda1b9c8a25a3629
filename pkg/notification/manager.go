package notification

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"
)

const (
	serviceName = "Google Drive Storage API"
	userAgent   = "GDrive-Storage-API/1.0"
)

// target pairs a notifier with the events it subscribed to
type target struct {
	config   NotificationConfig
	notifier Notifier
}

// Manager handles multiple notification channels and message formatting
type Manager struct {
	targets map[string]target
	mutex   sync.RWMutex
	pending sync.WaitGroup
}

// NewManager creates a notification manager from the enabled configurations.
// Invalid configurations are rejected.
func NewManager(configs []NotificationConfig) (*Manager, error) {
	m := &Manager{
		targets: make(map[string]target),
	}

	for _, config := range configs {
		if !config.Enabled {
			continue
		}

		notifier, err := createNotifierFromConfig(&config)
		if err != nil {
			return nil, fmt.Errorf("failed to create notifier for config '%s': %w", config.Name, err)
		}
		m.AddNotifier(config, notifier)
	}

	log.Printf("Loaded %d notification channels", len(m.targets))
	return m, nil
}

// AddNotifier adds a notifier instance for a specific configuration
func (m *Manager) AddNotifier(config NotificationConfig, notifier Notifier) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.targets[config.Name] = target{config: config, notifier: notifier}
	log.Printf("Added %s notifier for config '%s'", notifier.GetChannelType(), config.Name)
}

// GetNotifierCount returns the number of active notifiers
func (m *Manager) GetNotifierCount() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	return len(m.targets)
}

// SendOperationNotification sends data to every target subscribed to its outcome,
// formatting the message for each channel
func (m *Manager) SendOperationNotification(data *OperationNotificationData) []NotificationResult {
	m.mutex.RLock()
	targets := make(map[string]target, len(m.targets))
	for name, t := range m.targets {
		if data.Failed() && !t.config.NotifyOnError {
			continue
		}
		if !data.Failed() && !t.config.NotifyOnSuccess {
			continue
		}
		targets[name] = t
	}
	m.mutex.RUnlock()

	var results []NotificationResult
	var wg sync.WaitGroup
	resultChan := make(chan NotificationResult, len(targets))

	// Send notifications concurrently
	for name, t := range targets {
		wg.Add(1)
		go func(name string, n Notifier) {
			defer wg.Done()
			message := createMessageForChannel(n.GetChannelType(), data)
			resultChan <- send(name, n, message)
		}(name, t.notifier)
	}

	wg.Wait()
	close(resultChan)

	for result := range resultChan {
		results = append(results, result)
	}

	return results
}

// Dispatch sends data in the background so the caller never waits on a webhook
func (m *Manager) Dispatch(data *OperationNotificationData) {
	if m.GetNotifierCount() == 0 {
		return
	}

	m.pending.Add(1)
	go func() {
		defer m.pending.Done()
		m.SendOperationNotification(data)
	}()
}

// Wait blocks until every dispatched notification has been delivered or has failed
func (m *Manager) Wait() {
	m.pending.Wait()
}

// TestNotification sends a test notification to a specific channel
func (m *Manager) TestNotification(configName string) error {
	m.mutex.RLock()
	t, ok := m.targets[configName]
	m.mutex.RUnlock()
	if !ok {
		return fmt.Errorf("notification config '%s' not found", configName)
	}

	message := &Message{
		Type:      MessageTypeInfo,
		Title:     "Test Notification",
		Text:      fmt.Sprintf("This is a test notification from the %s via %s", serviceName, t.config.Channel),
		Timestamp: time.Now(),
		Fields: map[string]interface{}{
			"Channel":       t.config.Channel,
			"Configuration": configName,
			"Test Status":   "Success",
		},
	}

	return t.notifier.Send(message)
}

func send(name string, n Notifier, message *Message) NotificationResult {
	result := NotificationResult{
		Channel: n.GetChannelType(),
		SentAt:  time.Now(),
	}

	if err := n.Send(message); err != nil {
		result.Success = false
		result.Error = err.Error()
		log.Printf("Failed to send notification via %s (config: %s): %v", n.GetChannelType(), name, err)
	} else {
		result.Success = true
		log.Printf("Successfully sent notification via %s (config: %s)", n.GetChannelType(), name)
	}

	return result
}

func createMessageForChannel(channel NotificationChannel, data *OperationNotificationData) *Message {
	switch channel {
	case ChannelDiscord:
		if data.Failed() {
			return CreateDiscordOperationErrorMessage(data)
		}
		return CreateDiscordOperationSuccessMessage(data)
	case ChannelSlack:
		if data.Failed() {
			return CreateSlackOperationErrorMessage(data)
		}
		return CreateSlackOperationSuccessMessage(data)
	default:
		if data.Failed() {
			return CreateOperationErrorMessage(data)
		}
		return CreateOperationSuccessMessage(data)
	}
}

// ValidateChannel reports whether channel names a supported notifier
func ValidateChannel(channel string) error {
	switch NotificationChannel(channel) {
	case ChannelChatwork, ChannelDiscord, ChannelSlack:
		return nil
	default:
		return fmt.Errorf("unsupported notification channel: %s", channel)
	}
}

// createNotifierFromConfig creates a notifier instance from configuration
func createNotifierFromConfig(config *NotificationConfig) (Notifier, error) {
	if err := ValidateChannel(config.Channel); err != nil {
		return nil, err
	}

	switch NotificationChannel(config.Channel) {
	case ChannelChatwork:
		var chatworkConfig ChatworkConfig
		if err := decodeConfig(config.Config, &chatworkConfig); err != nil {
			return nil, fmt.Errorf("failed to parse Chatwork config: %w", err)
		}
		notifier := NewChatworkNotifier(chatworkConfig)
		return notifier, notifier.ValidateConfig(config.Config)

	case ChannelDiscord:
		var discordConfig DiscordConfig
		if err := decodeConfig(config.Config, &discordConfig); err != nil {
			return nil, fmt.Errorf("failed to parse Discord config: %w", err)
		}
		notifier := NewDiscordNotifier(discordConfig)
		return notifier, notifier.ValidateConfig(config.Config)

	default:
		var slackConfig SlackConfig
		if err := decodeConfig(config.Config, &slackConfig); err != nil {
			return nil, fmt.Errorf("failed to parse Slack config: %w", err)
		}
		notifier := NewSlackNotifier(slackConfig)
		return notifier, notifier.ValidateConfig(config.Config)
	}
}

// decodeConfig converts a configuration map into a typed channel config
func decodeConfig(config map[string]interface{}, out interface{}) error {
	jsonData, err := json.Marshal(config)
	if err != nil {
		return err
	}
	return json.Unmarshal(jsonData, out)
}
