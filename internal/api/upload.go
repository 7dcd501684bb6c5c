package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/educonnect/educonnect-client/pkg/logger"
	"github.com/educonnect/educonnect-client/pkg/metrics"
	"go.uber.org/zap"
)

// UploadResult is the data payload of a successful upload: where the file
// landed server-side and a time-limited signed URL to read it back.
type UploadResult struct {
	StoragePath string `json:"storagePath"`
	SignedURL   string `json:"signedUrl"`
}

// Upload sends a file as a multipart form with a single file field, under
// the same credential-attachment and single-retry-on-401 contract as the
// JSON client. The multipart writer owns the Content-Type header (boundary
// included); no JSON default is applied.
//
// The file content is buffered up front so the retried attempt can rebuild
// an identical body.
func Upload(ctx context.Context, c *Client, path, field, filename string, content io.Reader, extraHeaders map[string]string) (Envelope[UploadResult], error) {
	var zero Envelope[UploadResult]

	data, err := io.ReadAll(content)
	if err != nil {
		return zero, fmt.Errorf("failed to read upload content: %w", err)
	}

	start := time.Now()
	env, err := do[UploadResult](ctx, c, requestSpec{
		method:  http.MethodPost,
		path:    path,
		headers: extraHeaders,
		makeBody: func() (io.Reader, string) {
			body := &bytes.Buffer{}
			w := multipart.NewWriter(body)
			part, ferr := w.CreateFormFile(field, filename)
			if ferr == nil {
				_, ferr = part.Write(data)
			}
			if cerr := w.Close(); ferr == nil {
				ferr = cerr
			}
			if ferr != nil {
				// A buffer-backed multipart write cannot realistically fail;
				// surface it through the transport error path if it does.
				logger.Error("Failed to build multipart body", zap.Error(ferr))
			}
			return body, w.FormDataContentType()
		},
	})

	duration := metrics.MeasureDuration(start)
	status := "success"
	if err != nil || env.Error != nil {
		status = "error"
	}
	metrics.UploadTotal.WithLabelValues(status).Inc()
	metrics.UploadDuration.WithLabelValues(status).Observe(duration)

	if err != nil {
		return zero, err
	}

	if env.Error != nil {
		logger.Warn("Upload rejected",
			zap.String("path", path),
			zap.String("file", filename),
			zap.String("message", env.Error.Message))
	}

	return env, nil
}
