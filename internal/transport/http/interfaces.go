package http

import (
	"context"
	"io"
	"net/url"

	"gadevtools/internal/exporter"
	"gadevtools/internal/metadata"
	"gadevtools/internal/services"
	"gadevtools/pkg/contracts/domain"
)

// ExportService defines the export operations the handlers need.
type ExportService interface {
	FetchReport(ctx context.Context, query url.Values, accessToken string) (*domain.AnalyticsReport, error)
	Prepare(ctx context.Context, rep *domain.AnalyticsReport, format exporter.Format) (*services.Download, error)
	Write(ctx context.Context, dst io.Writer, d *services.Download) (int, error)
}

// PageRenderer renders site templates.
type PageRenderer interface {
	RenderPage(ctx context.Context, w io.Writer, project, page string, data map[string]interface{}) (bool, error)
	RenderTemplate(ctx context.Context, w io.Writer, name string, data interface{}) error
}

// MetadataService serves the cached Google metadata documents.
type MetadataService interface {
	GroupedColumns(ctx context.Context) ([]metadata.ColumnGroup, error)
	RawColumns(ctx context.Context) ([]byte, error)
	Cubes(ctx context.Context) ([]byte, error)
}

// HealthService reports server health.
type HealthService interface {
	HealthCheck(ctx context.Context) services.HealthStatus
	ReadinessCheck(ctx context.Context) services.HealthStatus
	LivenessCheck(ctx context.Context) services.HealthStatus
	Version() map[string]interface{}
}
