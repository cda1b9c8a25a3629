package relay

import (
	"context"
	"errors"
	"io"
	"log"
	"time"

	"github.com/cyberxapi/gdrive-storage-api/internal/apperr"
	"github.com/cyberxapi/gdrive-storage-api/internal/auth"
	"github.com/cyberxapi/gdrive-storage-api/internal/database"
	"github.com/cyberxapi/gdrive-storage-api/internal/metrics"
	"github.com/cyberxapi/gdrive-storage-api/internal/tracing"
	"github.com/cyberxapi/gdrive-storage-api/pkg/gdrive"
	"github.com/cyberxapi/gdrive-storage-api/pkg/notification"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/api/drive/v3"
)

// Operation names used in history, metrics and notifications
const (
	OpList         = "list"
	OpGetInfo      = "get_info"
	OpUpload       = "upload"
	OpDownload     = "download"
	OpDelete       = "delete"
	OpUpdate       = "update"
	OpCreateFolder = "create_folder"
	OpSearch       = "search"
)

// Provider is the remote storage the relay forwards to
type Provider interface {
	ListFiles(ctx context.Context, folderID string, limit int64) ([]*drive.File, error)
	SearchFiles(ctx context.Context, text string, limit int64) ([]*drive.File, error)
	GetFileInfo(ctx context.Context, fileID string) (*drive.File, error)
	UploadFile(ctx context.Context, req gdrive.UploadRequest) (*drive.File, error)
	DownloadFile(ctx context.Context, fileID string, w io.Writer) (*drive.File, int64, error)
	DeleteFile(ctx context.Context, fileID string) error
	UpdateFile(ctx context.Context, fileID, name string) (*drive.File, error)
	CreateFolder(ctx context.Context, name, parentFolderID string) (*drive.File, error)
}

// HistoryStore persists one record per relayed operation
type HistoryStore interface {
	SaveOperation(history *database.OperationHistory) error
	GetOperationHistory(limit, offset int) ([]database.OperationHistory, error)
	CountOperations() (int64, error)
}

// Notifier delivers operation outcomes without blocking the caller
type Notifier interface {
	Dispatch(data *notification.OperationNotificationData)
}

// Relay authenticates callers and forwards their requests to the provider
type Relay struct {
	gate     *auth.Gate
	provider Provider
	history  HistoryStore
	notifier Notifier
	metrics  *metrics.Metrics
}

// Option configures a Relay
type Option func(*Relay)

// WithHistory records every operation in store
func WithHistory(store HistoryStore) Option {
	return func(r *Relay) {
		r.history = store
	}
}

// WithNotifier sends operation outcomes to notifier
func WithNotifier(notifier Notifier) Option {
	return func(r *Relay) {
		r.notifier = notifier
	}
}

// WithMetrics counts operations in m
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Relay) {
		r.metrics = m
	}
}

// New creates a relay guarded by gate
func New(gate *auth.Gate, provider Provider, opts ...Option) *Relay {
	r := &Relay{
		gate:     gate,
		provider: provider,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Authorize runs the access check alone. It is used when a request fails local
// validation before an operation can be started, so a bad key still wins.
func (r *Relay) Authorize(apiKey string) error {
	return r.gate.Check(apiKey)
}

// operation tracks one relayed call from the gate check to its outcome
type operation struct {
	name      string
	requestID string
	started   time.Time
	span      trace.Span

	fileID   string
	fileName string
	link     string
	bytes    int64
}

func (r *Relay) begin(ctx context.Context, name string) (context.Context, *operation) {
	ctx, span := tracing.Start(ctx, "relay."+name)
	op := &operation{
		name:      name,
		requestID: RequestID(ctx),
		started:   time.Now(),
		span:      span,
	}
	span.SetAttributes(attribute.String("relay.operation", name))
	return ctx, op
}

// finish records the outcome of op and returns err classified for the caller
func (r *Relay) finish(op *operation, err error) error {
	defer op.span.End()

	duration := time.Since(op.started)
	if op.fileID != "" {
		op.span.SetAttributes(attribute.String("drive.file_id", op.fileID))
	}

	if err == nil {
		r.metrics.ObserveOperation(op.name, metrics.OutcomeSuccess, duration)
		r.record(op, database.StatusSuccess, "", duration)
		if notifyOnSuccess[op.name] {
			r.notify(op, "")
		}
		return nil
	}

	classified := classify(err)
	op.span.RecordError(err)
	op.span.SetStatus(codes.Error, classified.Message)

	switch classified.Kind {
	case apperr.KindUnauthorized:
		r.metrics.ObserveOperation(op.name, metrics.OutcomeUnauthorized, duration)
		r.record(op, database.StatusUnauthorized, classified.Message, duration)
	case apperr.KindInvalid:
		r.metrics.ObserveOperation(op.name, metrics.OutcomeInvalid, duration)
		r.record(op, database.StatusFailed, classified.Message, duration)
	default:
		log.Printf("Operation %s failed (request %s): %v", op.name, op.requestID, err)
		r.metrics.ObserveOperation(op.name, metrics.OutcomeFailed, duration)
		r.record(op, database.StatusFailed, classified.Message, duration)
		r.notify(op, classified.Message)
	}

	return classified
}

var notifyOnSuccess = map[string]bool{
	OpUpload:       true,
	OpDelete:       true,
	OpCreateFolder: true,
}

// classify maps any failure onto the relay's error kinds. The missing credential
// error keeps its bare message.
func classify(err error) *apperr.Error {
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		return appErr
	}
	if errors.Is(err, auth.ErrCredentialsMissing) {
		return apperr.Internal(auth.ErrCredentialsMissing)
	}
	return apperr.Internal(err)
}

func (r *Relay) record(op *operation, status, errorMsg string, duration time.Duration) {
	if r.history == nil {
		return
	}

	entry := &database.OperationHistory{
		RequestID:  op.requestID,
		Operation:  op.name,
		FileID:     op.fileID,
		FileName:   op.fileName,
		Status:     status,
		ErrorMsg:   errorMsg,
		Bytes:      op.bytes,
		DurationMs: duration.Milliseconds(),
	}
	if err := r.history.SaveOperation(entry); err != nil {
		log.Printf("Failed to save operation history (request %s): %v", op.requestID, err)
	}
}

func (r *Relay) notify(op *operation, errorMsg string) {
	if r.notifier == nil {
		return
	}

	r.notifier.Dispatch(&notification.OperationNotificationData{
		Operation:    op.name,
		RequestID:    op.requestID,
		FileID:       op.fileID,
		FileName:     op.fileName,
		Bytes:        op.bytes,
		WebViewLink:  op.link,
		ErrorMessage: errorMsg,
		StartedAt:    op.started,
		CompletedAt:  time.Now(),
	})
}

type requestIDKey struct{}

// WithRequestID attaches the caller's request id to ctx
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestID returns the request id attached to ctx, if any
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
