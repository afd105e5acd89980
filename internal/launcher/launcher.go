package launcher

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os/exec"
	"strings"

	"bindery/internal/config"
	"bindery/internal/logging"
)

// Scheme hosts for the desktop applications.
const (
	scanCheckScheme  = "rfs-check-app"
	indexingScheme   = "rfs-indexing-app"
	processingScheme = "rfs-processa-app"
)

// ScanCheckContext carries the fields the scan-validation app needs.
type ScanCheckContext struct {
	BookID   int64
	BookName string
	UserID   int64
}

// IndexingContext carries the fields the indexing app needs.
type IndexingContext struct {
	BookID    int64
	BookName  string
	UserID    int64
	StorageIP string
}

// ProcessingContext carries the fields the processing app needs.
type ProcessingContext struct {
	BatchID   int64
	StorageIP string
}

// Service launches the desktop applications.
type Service interface {
	LaunchScanCheck(ctx context.Context, launch ScanCheckContext)
	LaunchIndexing(ctx context.Context, launch IndexingContext)
	LaunchProcessing(ctx context.Context, launch ProcessingContext)
}

type service struct {
	command string
	logger  *slog.Logger
}

// NewConfiguredService returns the launcher selected by configuration: a
// noop when disabled, otherwise one that renders protocol URLs and hands
// them to the configured command (or just logs them when no command is
// set).
func NewConfiguredService(cfg *config.Config, logger *slog.Logger) Service {
	if cfg == nil || !cfg.Launcher.Enabled {
		return NewNopService()
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &service{
		command: strings.TrimSpace(cfg.Launcher.Command),
		logger:  logger.With(logging.String(logging.FieldComponent, "launcher")),
	}
}

// NewNopService returns a launcher that does nothing.
func NewNopService() Service {
	return nopService{}
}

func (s *service) LaunchScanCheck(ctx context.Context, launch ScanCheckContext) {
	s.launch(ctx, renderURL(scanCheckScheme, "validate", url.Values{
		"bookId":   {fmt.Sprint(launch.BookID)},
		"bookName": {launch.BookName},
		"userId":   {fmt.Sprint(launch.UserID)},
	}))
}

func (s *service) LaunchIndexing(ctx context.Context, launch IndexingContext) {
	s.launch(ctx, renderURL(indexingScheme, "open", url.Values{
		"bookId":    {fmt.Sprint(launch.BookID)},
		"bookName":  {launch.BookName},
		"userId":    {fmt.Sprint(launch.UserID)},
		"storageIp": {launch.StorageIP},
	}))
}

func (s *service) LaunchProcessing(ctx context.Context, launch ProcessingContext) {
	s.launch(ctx, renderURL(processingScheme, "batch", url.Values{
		"batchId":   {fmt.Sprint(launch.BatchID)},
		"storageIp": {launch.StorageIP},
	}))
}

func renderURL(scheme, action string, params url.Values) string {
	u := url.URL{Scheme: scheme, Host: action, RawQuery: params.Encode()}
	return u.String()
}

// launch fires the handoff without waiting on it. Failures are logged and
// swallowed so a missing desktop app never blocks a transition.
func (s *service) launch(ctx context.Context, target string) {
	s.logger.InfoContext(ctx, "desktop handoff", logging.String("url", target))
	if s.command == "" {
		return
	}
	cmd := exec.Command(s.command, target)
	if err := cmd.Start(); err != nil {
		s.logger.WarnContext(ctx, "desktop handoff failed",
			logging.String("url", target), logging.Error(err))
		return
	}
	go func() { _ = cmd.Wait() }()
}

type nopService struct{}

func (nopService) LaunchScanCheck(context.Context, ScanCheckContext)   {}
func (nopService) LaunchIndexing(context.Context, IndexingContext)     {}
func (nopService) LaunchProcessing(context.Context, ProcessingContext) {}
