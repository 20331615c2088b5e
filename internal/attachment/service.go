// Package attachment hosts uploaded files on the external file host before
// they are linked to a declaration or certificate request.
package attachment

import (
	"context"
	"io"
	"log/slog"
	"strconv"

	"etatcivil/internal/platform/metrics"
	dErrors "etatcivil/pkg/domain-errors"
	"etatcivil/pkg/requestcontext"
)

const uploadFailedMessage = "Le téléversement du fichier a échoué"

// Upload is one file received from a client.
type Upload struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
	Folder      string
}

// Hosted is where the file host stored an upload.
type Hosted struct {
	URL      string
	PublicID string
}

// FileHost stores file bytes and returns a public URL.
type FileHost interface {
	Upload(ctx context.Context, in Upload) (*Hosted, error)
}

type Service struct {
	host    FileHost
	logger  *slog.Logger
	metrics *metrics.Metrics
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func New(host FileHost, opts ...Option) *Service {
	s := &Service{host: host, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Attach checks the size ceiling, then sends the file to the host.
// Oversized files never reach the host.
func (s *Service) Attach(ctx context.Context, in Upload, limit int64) (*Hosted, error) {
	if in.Size > limit {
		s.metrics.IncUpload("too_large")
		return nil, dErrors.New(dErrors.CodePayloadTooLarge,
			"Le fichier dépasse la taille maximale autorisée ("+humanSize(limit)+")")
	}

	hosted, err := s.host.Upload(ctx, in)
	if err != nil {
		s.metrics.IncUpload("failed")
		s.logger.ErrorContext(ctx, "file host upload failed",
			"filename", in.Filename,
			"size", in.Size,
			"request_id", requestcontext.RequestID(ctx),
			"error", err.Error(),
		)
		return nil, dErrors.Wrap(err, dErrors.CodeUploadFailed, uploadFailedMessage)
	}
	if hosted == nil || hosted.URL == "" {
		s.metrics.IncUpload("failed")
		s.logger.ErrorContext(ctx, "file host returned no url",
			"filename", in.Filename,
			"request_id", requestcontext.RequestID(ctx),
		)
		return nil, dErrors.New(dErrors.CodeUploadFailed, uploadFailedMessage)
	}

	s.metrics.IncUpload("ok")
	s.logger.InfoContext(ctx, "file uploaded",
		"filename", in.Filename,
		"public_id", hosted.PublicID,
		"request_id", requestcontext.RequestID(ctx),
	)
	return hosted, nil
}

func humanSize(n int64) string {
	const mib = 1 << 20
	if n >= mib && n%mib == 0 {
		return strconv.FormatInt(n/mib, 10) + " Mo"
	}
	return strconv.FormatInt(n, 10) + " octets"
}
