package gdrive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
)

// chunkDownloader fetches file content in ranged requests until the provider reports
// that the transfer is complete
type chunkDownloader struct {
	files     *drive.FilesService
	fileID    string
	chunkSize int64
	progress  int64
	total     int64
	done      bool
}

func newChunkDownloader(files *drive.FilesService, fileID string, chunkSize int64) *chunkDownloader {
	if chunkSize <= 0 {
		chunkSize = DefaultDownloadChunkSize
	}
	return &chunkDownloader{
		files:     files,
		fileID:    fileID,
		chunkSize: chunkSize,
		total:     -1,
	}
}

// Done reports whether the whole file has been received
func (d *chunkDownloader) Done() bool {
	return d.done
}

// Progress returns the number of bytes received so far
func (d *chunkDownloader) Progress() int64 {
	return d.progress
}

// NextChunk requests the next byte range and appends it to w
func (d *chunkDownloader) NextChunk(ctx context.Context, w io.Writer) error {
	if d.done {
		return nil
	}

	call := d.files.Get(d.fileID).Context(ctx)
	call.Header().Set("Range", fmt.Sprintf("bytes=%d-%d", d.progress, d.progress+d.chunkSize-1))

	resp, err := call.Download()
	if err != nil {
		// An empty file cannot satisfy any range
		var apiErr *googleapi.Error
		if d.progress == 0 && errors.As(err, &apiErr) && apiErr.Code == http.StatusRequestedRangeNotSatisfiable {
			d.total = 0
			d.done = true
			return nil
		}
		return err
	}
	defer resp.Body.Close()

	n, err := io.Copy(w, resp.Body)
	d.progress += n
	if err != nil {
		return fmt.Errorf("failed to read chunk: %w", err)
	}

	if resp.StatusCode == http.StatusOK {
		// The provider ignored the range and sent the whole body
		d.total = d.progress
		d.done = true
		return nil
	}

	if total, ok := parseContentRangeTotal(resp.Header.Get("Content-Range")); ok {
		d.total = total
	}

	switch {
	case d.total >= 0 && d.progress >= d.total:
		d.done = true
	case d.total < 0 && n < d.chunkSize:
		d.done = true
	case n == 0:
		return fmt.Errorf("download stalled at byte %d", d.progress)
	}

	return nil
}

// parseContentRangeTotal extracts the complete length from "bytes 0-99/1234"
func parseContentRangeTotal(header string) (int64, bool) {
	idx := strings.LastIndex(header, "/")
	if idx < 0 {
		return 0, false
	}
	total, err := strconv.ParseInt(strings.TrimSpace(header[idx+1:]), 10, 64)
	if err != nil {
		return 0, false
	}
	return total, true
}
