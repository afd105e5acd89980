package filemover

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"bindery/internal/config"
	"bindery/internal/services"
	"bindery/internal/stagecfg"
)

// Service moves and inspects book folders on the scanning network.
type Service interface {
	// Move relocates a book's folder from one stage directory to another.
	// Statuses without a physical folder make the move a no-op.
	Move(ctx context.Context, bookName, fromStatus, toStatus string) error
	// CountPages returns the number of scanned page files in the book's
	// folder for the given status.
	CountPages(ctx context.Context, bookName, status string) (int, error)
	// CopyPages duplicates a book's page files between stage directories
	// without removing the source.
	CopyPages(ctx context.Context, bookName, fromStatus, toStatus string) error
}

// HTTPDoer describes the HTTP client used by the file-operations service.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

type httpService struct {
	baseURL string
	client  HTTPDoer
}

// NewConfiguredService returns a mover backed by the configured
// file-operations endpoint. An empty base URL selects local mode, where
// every operation succeeds without touching the network.
func NewConfiguredService(cfg *config.Config) Service {
	if cfg == nil || strings.TrimSpace(cfg.FileService.BaseURL) == "" {
		return NewNopService()
	}
	timeout := time.Duration(cfg.FileService.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return NewHTTPService(cfg.FileService.BaseURL, &http.Client{Timeout: timeout})
}

// NewHTTPService constructs an HTTP-backed mover.
func NewHTTPService(baseURL string, client HTTPDoer) Service {
	if client == nil {
		client = http.DefaultClient
	}
	return &httpService{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		client:  client,
	}
}

type moveRequest struct {
	BookName   string `json:"bookName"`
	FromStatus string `json:"fromStatus,omitempty"`
	ToStatus   string `json:"toStatus,omitempty"`
	Status     string `json:"status,omitempty"`
}

func (s *httpService) Move(ctx context.Context, bookName, fromStatus, toStatus string) error {
	if skipFolderOp(fromStatus, toStatus) {
		return nil
	}
	return s.post(ctx, "/api/workflow/move", moveRequest{
		BookName:   bookName,
		FromStatus: fromStatus,
		ToStatus:   toStatus,
	}, nil)
}

func (s *httpService) CopyPages(ctx context.Context, bookName, fromStatus, toStatus string) error {
	if skipFolderOp(fromStatus, toStatus) {
		return nil
	}
	return s.post(ctx, "/api/workflow/copy-tifs", moveRequest{
		BookName:   bookName,
		FromStatus: fromStatus,
		ToStatus:   toStatus,
	}, nil)
}

func (s *httpService) CountPages(ctx context.Context, bookName, status string) (int, error) {
	var result struct {
		Count int `json:"count"`
	}
	err := s.post(ctx, "/api/scan/count-tifs", moveRequest{
		BookName: bookName,
		Status:   status,
	}, &result)
	if err != nil {
		return 0, err
	}
	return result.Count, nil
}

// skipFolderOp reports whether either end of the transition has no physical
// stage folder, making the filesystem side a no-op.
func skipFolderOp(fromStatus, toStatus string) bool {
	return folderForStatus(fromStatus) == "" || folderForStatus(toStatus) == ""
}

func folderForStatus(status string) string {
	key, ok := stagecfg.KeyForStatus(status)
	if !ok {
		return ""
	}
	return stagecfg.FolderFor(key)
}

func (s *httpService) post(ctx context.Context, path string, payload any, result any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return services.Wrap(services.ErrExternalService, "filemover", path, "encode request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return services.Wrap(services.ErrExternalService, "filemover", path, "build request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return services.Wrap(services.ErrExternalService, "filemover", path, "request failed", err)
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return services.Wrap(services.ErrExternalService, "filemover", path,
			fmt.Sprintf("server returned %d: %s", resp.StatusCode, serverError(data)), nil)
	}
	if result != nil && len(data) > 0 {
		if err := json.Unmarshal(data, result); err != nil {
			return services.Wrap(services.ErrExternalService, "filemover", path, "decode response", err)
		}
	}
	return nil
}

// serverError extracts the {error} message the service puts in failure
// bodies, falling back to the raw body.
func serverError(body []byte) string {
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && strings.TrimSpace(payload.Error) != "" {
		return payload.Error
	}
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return "no error detail"
	}
	return trimmed
}

type nopService struct{}

// NewNopService returns a mover whose operations all succeed without side
// effects, for local mode and tests.
func NewNopService() Service {
	return nopService{}
}

func (nopService) Move(context.Context, string, string, string) error { return nil }

func (nopService) CopyPages(context.Context, string, string, string) error { return nil }

func (nopService) CountPages(context.Context, string, string) (int, error) { return 0, nil }
