package relay

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/cyberxapi/gdrive-storage-api/internal/apperr"
	"github.com/cyberxapi/gdrive-storage-api/internal/auth"
	"github.com/cyberxapi/gdrive-storage-api/internal/database"
	"github.com/cyberxapi/gdrive-storage-api/internal/metrics"
	"github.com/cyberxapi/gdrive-storage-api/internal/relay/relaytest"
	"github.com/cyberxapi/gdrive-storage-api/pkg/gdrive"
	"github.com/cyberxapi/gdrive-storage-api/pkg/notification"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"
)

const testKey = "secret-key"

type recordingHistory struct {
	mu      sync.Mutex
	entries []database.OperationHistory
	err     error
}

func (h *recordingHistory) SaveOperation(entry *database.OperationHistory) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.err != nil {
		return h.err
	}
	h.entries = append(h.entries, *entry)
	return nil
}

func (h *recordingHistory) GetOperationHistory(limit, offset int) ([]database.OperationHistory, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []database.OperationHistory
	for i := len(h.entries) - 1 - offset; i >= 0 && len(out) < limit; i-- {
		out = append(out, h.entries[i])
	}
	return out, nil
}

func (h *recordingHistory) CountOperations() (int64, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return int64(len(h.entries)), nil
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []*notification.OperationNotificationData
}

func (n *recordingNotifier) Dispatch(data *notification.OperationNotificationData) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, data)
}

type RelayTestSuite struct {
	suite.Suite
	provider *relaytest.Provider
	history  *recordingHistory
	notifier *recordingNotifier
	metrics  *metrics.Metrics
	relay    *Relay
	ctx      context.Context
}

func (s *RelayTestSuite) SetupTest() {
	s.provider = relaytest.NewProvider()
	s.history = &recordingHistory{}
	s.notifier = &recordingNotifier{}
	s.metrics = metrics.New()
	s.relay = New(auth.NewGate(testKey), s.provider,
		WithHistory(s.history),
		WithNotifier(s.notifier),
		WithMetrics(s.metrics),
	)
	s.ctx = WithRequestID(context.Background(), "req-1")
}

func TestRelayTestSuite(t *testing.T) {
	suite.Run(t, new(RelayTestSuite))
}

func (s *RelayTestSuite) assertUnauthorized(err error) {
	var appErr *apperr.Error
	s.Require().True(errors.As(err, &appErr))
	s.Equal(apperr.KindUnauthorized, appErr.Kind)
	s.Equal("Invalid API Key", appErr.Message)
}

func (s *RelayTestSuite) TestBadKeyNeverReachesProvider() {
	for _, key := range []string{"", "wrong", testKey + " "} {
		_, err := s.relay.List(s.ctx, key, "", 10)
		s.assertUnauthorized(err)
		_, err = s.relay.GetInfo(s.ctx, key, "file-1")
		s.assertUnauthorized(err)
		_, err = s.relay.Upload(s.ctx, key, gdrive.UploadRequest{Name: "a", Content: strings.NewReader("x")})
		s.assertUnauthorized(err)
		_, err = s.relay.Download(s.ctx, key, "file-1", &bytes.Buffer{})
		s.assertUnauthorized(err)
		_, err = s.relay.Delete(s.ctx, key, "file-1")
		s.assertUnauthorized(err)
		_, err = s.relay.Update(s.ctx, key, "file-1", "b")
		s.assertUnauthorized(err)
		_, err = s.relay.CreateFolder(s.ctx, key, "f", "")
		s.assertUnauthorized(err)
		_, err = s.relay.Search(s.ctx, key, "q", 10)
		s.assertUnauthorized(err)
		_, err = s.relay.History(s.ctx, key, 10, 0)
		s.assertUnauthorized(err)
	}

	s.Empty(s.provider.Calls())
	s.Empty(s.notifier.sent)
}

func (s *RelayTestSuite) TestEmptyConfiguredKeyRejectsEverything() {
	r := New(auth.NewGate(""), s.provider)
	_, err := r.List(s.ctx, "", "", 10)
	s.assertUnauthorized(err)
	s.Empty(s.provider.Calls())
}

func (s *RelayTestSuite) TestMissingParametersAfterGate() {
	_, err := s.relay.Search(s.ctx, testKey, "", 10)
	s.Equal(apperr.KindInvalid, apperr.KindOf(err))

	_, err = s.relay.CreateFolder(s.ctx, testKey, "", "")
	s.Equal(apperr.KindInvalid, apperr.KindOf(err))

	_, err = s.relay.Upload(s.ctx, testKey, gdrive.UploadRequest{Name: "a"})
	s.Equal(apperr.KindInvalid, apperr.KindOf(err))

	// Bad key still wins over a missing parameter
	_, err = s.relay.Search(s.ctx, "wrong", "", 10)
	s.assertUnauthorized(err)

	s.Empty(s.provider.Calls())
}

func (s *RelayTestSuite) TestListFiltersByFolderAndTrash() {
	s.provider.Add("a.txt", "text/plain", []byte("a"))
	inFolder := s.provider.Add("b.txt", "text/plain", []byte("b"), "folder-x")
	trashed := s.provider.Add("c.txt", "text/plain", []byte("c"), "folder-x")
	s.provider.Trash(trashed)

	all, err := s.relay.List(s.ctx, testKey, "", 10)
	s.Require().NoError(err)
	s.Equal(StatusSuccess, all.Status)
	s.Equal(2, all.Count)

	scoped, err := s.relay.List(s.ctx, testKey, "folder-x", 10)
	s.Require().NoError(err)
	s.Require().Equal(1, scoped.Count)
	s.Equal(inFolder, scoped.Files[0].Id)

	capped, err := s.relay.List(s.ctx, testKey, "", 1)
	s.Require().NoError(err)
	s.Equal(1, capped.Count)
}

func (s *RelayTestSuite) TestListEmptyIsNotNil() {
	result, err := s.relay.List(s.ctx, testKey, "", 10)
	s.Require().NoError(err)
	s.NotNil(result.Files)
	s.Zero(result.Count)
}

func (s *RelayTestSuite) TestUploadThenInfoAndDownload() {
	uploaded, err := s.relay.Upload(s.ctx, testKey, gdrive.UploadRequest{
		Name:     "report.pdf",
		MimeType: "application/pdf",
		FolderID: "folder-1",
		Content:  strings.NewReader("%PDF-1.7 body"),
	})
	s.Require().NoError(err)
	s.Equal("File uploaded successfully", uploaded.Message)
	s.NotEmpty(uploaded.File.WebViewLink)

	info, err := s.relay.GetInfo(s.ctx, testKey, uploaded.File.Id)
	s.Require().NoError(err)
	s.Equal("report.pdf", info.File.Name)
	s.Equal([]string{"folder-1"}, info.File.Parents)

	var buf bytes.Buffer
	download, err := s.relay.Download(s.ctx, testKey, uploaded.File.Id, &buf)
	s.Require().NoError(err)
	s.Equal("%PDF-1.7 body", buf.String())
	s.Equal("application/pdf", download.MimeType)
	s.Equal("report.pdf", download.Name)
	s.Equal(int64(13), download.Size)
}

func (s *RelayTestSuite) TestDownloadDefaultsMimeType() {
	id := s.provider.Add("blob", "", []byte{1, 2, 3})

	var buf bytes.Buffer
	download, err := s.relay.Download(s.ctx, testKey, id, &buf)
	s.Require().NoError(err)
	s.Equal("application/octet-stream", download.MimeType)
}

func (s *RelayTestSuite) TestDeleteThenInfoFails() {
	id := s.provider.Add("gone.txt", "text/plain", []byte("x"))

	deleted, err := s.relay.Delete(s.ctx, testKey, id)
	s.Require().NoError(err)
	s.Equal("File "+id+" deleted successfully", deleted.Message)

	_, err = s.relay.GetInfo(s.ctx, testKey, id)
	s.Require().Error(err)
	s.Equal(apperr.KindInternal, apperr.KindOf(err))
	s.Contains(err.Error(), "File not found")
}

func (s *RelayTestSuite) TestUpdateRenames() {
	id := s.provider.Add("old.txt", "text/plain", nil)

	updated, err := s.relay.Update(s.ctx, testKey, id, "new.txt")
	s.Require().NoError(err)
	s.Equal("File updated successfully", updated.Message)
	s.Equal("new.txt", updated.File.Name)
	s.NotEmpty(updated.File.ModifiedTime)

	unchanged, err := s.relay.Update(s.ctx, testKey, id, "")
	s.Require().NoError(err)
	s.Equal("new.txt", unchanged.File.Name)
}

func (s *RelayTestSuite) TestCreateFolderAndListInside() {
	folder, err := s.relay.CreateFolder(s.ctx, testKey, "Reports", "")
	s.Require().NoError(err)
	s.Equal("Folder created successfully", folder.Message)
	s.Equal("Reports", folder.Folder.Name)

	_, err = s.relay.Upload(s.ctx, testKey, gdrive.UploadRequest{Name: "q1.csv", FolderID: folder.Folder.Id, Content: strings.NewReader("1,2")})
	s.Require().NoError(err)

	listed, err := s.relay.List(s.ctx, testKey, folder.Folder.Id, 10)
	s.Require().NoError(err)
	s.Require().Equal(1, listed.Count)
	s.Equal("q1.csv", listed.Files[0].Name)
}

func (s *RelayTestSuite) TestSearchMatchesSubstring() {
	s.provider.Add("annual report.pdf", "application/pdf", nil)
	s.provider.Add("report-2026.txt", "text/plain", nil)
	s.provider.Add("notes.txt", "text/plain", nil)

	result, err := s.relay.Search(s.ctx, testKey, "report", 10)
	s.Require().NoError(err)
	s.Equal("report", result.Query)
	s.Equal(2, result.Count)
	for _, f := range result.Files {
		s.Contains(f.Name, "report")
	}
}

func (s *RelayTestSuite) TestProviderFailureBecomesInternal() {
	s.provider.Err = errors.New("failed to list files: googleapi: Error 403: Rate Limit Exceeded")

	_, err := s.relay.List(s.ctx, testKey, "", 10)
	s.Require().Error(err)
	s.Equal(apperr.KindInternal, apperr.KindOf(err))
	s.Equal("failed to list files: googleapi: Error 403: Rate Limit Exceeded", err.Error())
}

func (s *RelayTestSuite) TestMissingCredentialsMessage() {
	s.provider.Err = errors.Join(errors.New("failed to get authenticated client"), auth.ErrCredentialsMissing)

	_, err := s.relay.Search(s.ctx, testKey, "x", 10)
	s.Require().Error(err)
	s.Equal("GOOGLE_CREDENTIALS not found in environment variables", err.Error())
}

func (s *RelayTestSuite) TestHistoryRecordsEveryOperation() {
	id := s.provider.Add("a.txt", "text/plain", []byte("abc"))
	_, _ = s.relay.List(s.ctx, testKey, "", 10)
	_, _ = s.relay.Download(s.ctx, testKey, id, &bytes.Buffer{})
	_, _ = s.relay.Delete(s.ctx, "wrong", id)
	_, _ = s.relay.GetInfo(s.ctx, testKey, "missing")

	s.Require().Len(s.history.entries, 4)
	s.Equal(OpList, s.history.entries[0].Operation)
	s.Equal(database.StatusSuccess, s.history.entries[0].Status)
	s.Equal("req-1", s.history.entries[0].RequestID)

	s.Equal(OpDownload, s.history.entries[1].Operation)
	s.Equal(int64(3), s.history.entries[1].Bytes)
	s.Equal("a.txt", s.history.entries[1].FileName)

	s.Equal(database.StatusUnauthorized, s.history.entries[2].Status)
	s.Equal(database.StatusFailed, s.history.entries[3].Status)
	s.Contains(s.history.entries[3].ErrorMsg, "File not found")

	result, err := s.relay.History(s.ctx, testKey, 2, 0)
	s.Require().NoError(err)
	s.Equal(2, result.Count)
	s.Equal(int64(4), result.Total)
	s.Equal(OpGetInfo, result.Operations[0].Operation)
}

func (s *RelayTestSuite) TestHistoryStoreFailureDoesNotChangeResponse() {
	s.history.err = errors.New("database is locked")

	result, err := s.relay.List(s.ctx, testKey, "", 10)
	s.NoError(err)
	s.Equal(StatusSuccess, result.Status)
}

func (s *RelayTestSuite) TestHistoryDisabled() {
	r := New(auth.NewGate(testKey), s.provider)
	_, err := r.History(s.ctx, testKey, 10, 0)
	s.Equal(apperr.KindInternal, apperr.KindOf(err))
}

func (s *RelayTestSuite) TestNotifications() {
	id := s.provider.Add("a.txt", "text/plain", nil)

	_, _ = s.relay.List(s.ctx, testKey, "", 10)
	_, _ = s.relay.Upload(s.ctx, testKey, gdrive.UploadRequest{Name: "up.txt", Content: strings.NewReader("12345")})
	_, _ = s.relay.Delete(s.ctx, testKey, id)
	_, _ = s.relay.CreateFolder(s.ctx, testKey, "Dir", "")
	_, _ = s.relay.GetInfo(s.ctx, testKey, "missing")
	_, _ = s.relay.Delete(s.ctx, "wrong", id)
	_, _ = s.relay.Search(s.ctx, testKey, "", 10)

	s.Require().Len(s.notifier.sent, 4)
	s.Equal(OpUpload, s.notifier.sent[0].Operation)
	s.Equal(int64(5), s.notifier.sent[0].Bytes)
	s.False(s.notifier.sent[0].Failed())
	s.Equal(OpDelete, s.notifier.sent[1].Operation)
	s.Equal(OpCreateFolder, s.notifier.sent[2].Operation)
	s.Equal(OpGetInfo, s.notifier.sent[3].Operation)
	s.True(s.notifier.sent[3].Failed())
	s.Equal("req-1", s.notifier.sent[3].RequestID)
}

func (s *RelayTestSuite) TestMetrics() {
	_, _ = s.relay.Upload(s.ctx, testKey, gdrive.UploadRequest{Name: "up.txt", Content: strings.NewReader("12345")})
	_, _ = s.relay.List(s.ctx, "wrong", "", 10)

	s.NoError(testutil.GatherAndCompare(s.metrics.Registry(), strings.NewReader(`
# HELP gdrive_storage_relay_operations_total Total number of relay operations by outcome.
# TYPE gdrive_storage_relay_operations_total counter
gdrive_storage_relay_operations_total{operation="list",outcome="unauthorized"} 1
gdrive_storage_relay_operations_total{operation="upload",outcome="success"} 1
# HELP gdrive_storage_relay_bytes_total Total bytes moved to or from the provider.
# TYPE gdrive_storage_relay_bytes_total counter
gdrive_storage_relay_bytes_total{direction="upload"} 5
`), "gdrive_storage_relay_operations_total", "gdrive_storage_relay_bytes_total"))
}

func (s *RelayTestSuite) TestAuthorize() {
	s.NoError(s.relay.Authorize(testKey))
	s.assertUnauthorized(s.relay.Authorize("nope"))
}

func TestRequestID(t *testing.T) {
	ctx := WithRequestID(context.Background(), "abc")
	if RequestID(ctx) != "abc" {
		t.Fatalf("expected request id to round trip")
	}
	if RequestID(context.Background()) != "" {
		t.Fatalf("expected empty request id")
	}
}
