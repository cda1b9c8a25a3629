package notification

import (
	"fmt"
	"sort"
	"time"
)

// CreateOperationSuccessMessage creates a plain success message for a relay operation
func CreateOperationSuccessMessage(data *OperationNotificationData) *Message {
	return &Message{
		Type:      MessageTypeSuccess,
		Title:     fmt.Sprintf("Drive %s completed", data.Operation),
		Text:      successText(data, "%s"),
		Fields:    successFields(data, data.WebViewLink),
		Timestamp: completedAt(data),
		RequestID: data.RequestID,
	}
}

// CreateOperationErrorMessage creates a plain error message for a relay operation
func CreateOperationErrorMessage(data *OperationNotificationData) *Message {
	return &Message{
		Type:      MessageTypeError,
		Title:     fmt.Sprintf("Drive %s failed", data.Operation),
		Text:      fmt.Sprintf("The %s operation could not be completed", data.Operation),
		Fields:    errorFields(data),
		Timestamp: completedAt(data),
		RequestID: data.RequestID,
	}
}

func successText(data *OperationNotificationData, nameFormat string) string {
	if data.FileName == "" {
		return fmt.Sprintf("The %s operation completed successfully", data.Operation)
	}
	return fmt.Sprintf("The %s operation completed successfully for "+nameFormat, data.Operation, data.FileName)
}

func successFields(data *OperationNotificationData, link string) map[string]interface{} {
	fields := map[string]interface{}{
		"Operation": data.Operation,
		"Duration":  duration(data).String(),
	}
	if data.FileID != "" {
		fields["File ID"] = data.FileID
	}
	if data.FileName != "" {
		fields["File Name"] = data.FileName
	}
	if data.Bytes > 0 {
		fields["File Size"] = formatFileSize(data.Bytes)
	}
	if link != "" {
		fields["Google Drive Link"] = link
	}
	return fields
}

func errorFields(data *OperationNotificationData) map[string]interface{} {
	fields := map[string]interface{}{
		"Operation": data.Operation,
		"Duration":  duration(data).String(),
		"Error":     data.ErrorMessage,
	}
	if data.FileID != "" {
		fields["File ID"] = data.FileID
	}
	return fields
}

func duration(data *OperationNotificationData) time.Duration {
	return completedAt(data).Sub(data.StartedAt).Round(time.Millisecond)
}

func completedAt(data *OperationNotificationData) time.Time {
	if data.CompletedAt.IsZero() {
		return time.Now()
	}
	return data.CompletedAt
}

// formatFileSize formats a file size in bytes to a human-readable string
func formatFileSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

func sortedKeys(fields map[string]interface{}) []string {
	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
