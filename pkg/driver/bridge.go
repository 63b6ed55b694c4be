package driver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"phototriage/pkg/config"
	errs "phototriage/pkg/errors"
	"phototriage/pkg/logger"
	"phototriage/pkg/models"
)

// Bridge implements PageDriver against a browser-bridge agent: a local
// HTTP service holding an authenticated library tab. The agent owns all
// selector and page-layout knowledge; this client only moves the cursor
// and exchanges JSON.
type Bridge struct {
	httpClient *http.Client
	baseURL    string
	token      string
	settle     time.Duration
	logger     logger.Logger
}

// NewBridge creates a bridge driver from the driver configuration
func NewBridge(cfg *config.DriverConfig, log logger.Logger) *Bridge {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Bridge{
		httpClient: &http.Client{
			Timeout: cfg.CommandTimeout,
		},
		baseURL: cfg.BridgeURL,
		token:   cfg.SessionToken,
		settle:  cfg.SettleDelay,
		logger:  log,
	}
}

// attrsPayload is the bridge's wire form of the focused item
type attrsPayload struct {
	ID             string  `json:"id"`
	Filename       string  `json:"filename"`
	SizeDescriptor *string `json:"size_descriptor"`
	QuotaExempt    bool    `json:"quota_exempt"`
	DateMetadata   *string `json:"date_metadata"`
	Dimensions     string  `json:"dimensions"`
}

// GotoItem puts the bridge tab's focus on the item with the given id
func (b *Bridge) GotoItem(ctx context.Context, id string) error {
	body := map[string]string{"id": id}
	if err := b.command(ctx, http.MethodPost, "/cursor/goto", body, nil, errs.ErrorTypeNavigation); err != nil {
		return err
	}
	return b.waitSettle(ctx)
}

// GotoLibraryRoot puts the focus on the library's natural first item
func (b *Bridge) GotoLibraryRoot(ctx context.Context) error {
	if err := b.command(ctx, http.MethodPost, "/cursor/root", nil, nil, errs.ErrorTypeNavigation); err != nil {
		return err
	}
	return b.waitSettle(ctx)
}

// CurrentAttributes reads the displayed attributes of the focused item
func (b *Bridge) CurrentAttributes(ctx context.Context) (models.Attributes, error) {
	var payload attrsPayload
	if err := b.command(ctx, http.MethodGet, "/cursor/attributes", nil, &payload, errs.ErrorTypeExtraction); err != nil {
		return models.Attributes{}, err
	}

	attrs := models.Attributes{
		ID:             payload.ID,
		Filename:       payload.Filename,
		SizeDescriptor: payload.SizeDescriptor,
		QuotaExempt:    payload.QuotaExempt,
		Dimensions:     payload.Dimensions,
	}
	if payload.DateMetadata != nil {
		parsed, err := time.Parse(time.RFC3339, *payload.DateMetadata)
		if err != nil {
			return models.Attributes{}, errs.NewItem(errs.ErrorTypeExtraction, payload.ID,
				fmt.Sprintf("unparseable date metadata %q", *payload.DateMetadata))
		}
		utc := parsed.UTC()
		attrs.DateMetadata = &utc
	}
	return attrs, nil
}

// SendNext advances the cursor by one item
func (b *Bridge) SendNext(ctx context.Context) error {
	if err := b.command(ctx, http.MethodPost, "/cursor/next", nil, nil, errs.ErrorTypeNavigation); err != nil {
		return err
	}
	return b.waitSettle(ctx)
}

// Download transfers the focused item's binary content. The agent saves
// into its own scratch directory and reports the path; the storage
// manager moves it from there.
func (b *Bridge) Download(ctx context.Context) (string, error) {
	var result struct {
		Path string `json:"path"`
	}
	if err := b.command(ctx, http.MethodPost, "/cursor/download", nil, &result, errs.ErrorTypeDownload); err != nil {
		return "", err
	}
	if result.Path == "" {
		return "", errs.New(errs.ErrorTypeDownload, "bridge reported no download path")
	}
	return result.Path, nil
}

// RequestDelete moves the focused item to the remote trash
func (b *Bridge) RequestDelete(ctx context.Context) error {
	if err := b.command(ctx, http.MethodPost, "/cursor/delete", nil, nil, errs.ErrorTypeDelete); err != nil {
		return err
	}
	return b.waitSettle(ctx)
}

// RemovedItemDate reads the capture date of a trashed item by its old id
func (b *Bridge) RemovedItemDate(ctx context.Context, id string) (time.Time, error) {
	var result struct {
		Date string `json:"date"`
	}
	path := "/trash/" + id + "/date"
	if err := b.command(ctx, http.MethodGet, path, nil, &result, errs.ErrorTypeNavigation); err != nil {
		return time.Time{}, err
	}
	parsed, err := time.Parse(time.RFC3339, result.Date)
	if err != nil {
		return time.Time{}, errs.NewItem(errs.ErrorTypeExtraction, id,
			fmt.Sprintf("unparseable trash date %q", result.Date))
	}
	return parsed.UTC(), nil
}

// WriteDateFields pushes decomposed date components into the edit UI
func (b *Bridge) WriteDateFields(ctx context.Context, id string, components DateComponents) error {
	body := map[string]interface{}{
		"year":   components.Year,
		"month":  int(components.Month),
		"day":    components.Day,
		"hour":   components.Hour,
		"minute": components.Minute,
		"second": components.Second,
		"offset": components.Offset,
	}
	path := "/items/" + id + "/date"
	if err := b.command(ctx, http.MethodPost, path, body, nil, errs.ErrorTypeEditback); err != nil {
		return err
	}
	return b.waitSettle(ctx)
}

// ReadDateFields reads back the currently displayed date components
func (b *Bridge) ReadDateFields(ctx context.Context, id string) (DateComponents, error) {
	var result struct {
		Year   int    `json:"year"`
		Month  int    `json:"month"`
		Day    int    `json:"day"`
		Hour   int    `json:"hour"`
		Minute int    `json:"minute"`
		Second int    `json:"second"`
		Offset string `json:"offset"`
	}
	path := "/items/" + id + "/date"
	if err := b.command(ctx, http.MethodGet, path, nil, &result, errs.ErrorTypeExtraction); err != nil {
		return DateComponents{}, err
	}
	return DateComponents{
		Year:   result.Year,
		Month:  time.Month(result.Month),
		Day:    result.Day,
		Hour:   result.Hour,
		Minute: result.Minute,
		Second: result.Second,
		Offset: result.Offset,
	}, nil
}

// command performs one round-trip to the bridge agent. failType is the
// error type a failure of this operation maps to; authentication and
// status problems override it where they carry more signal.
func (b *Bridge) command(ctx context.Context, method, path string, body interface{}, target interface{}, failType errs.ErrorType) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return errs.New(failType, fmt.Sprintf("failed to encode request: %v", err))
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, b.baseURL+path, reader)
	if err != nil {
		return errs.New(failType, fmt.Sprintf("failed to create request: %v", err))
	}
	req.Header.Set("Content-Type", "application/json")
	if b.token != "" {
		req.Header.Set("Authorization", "Bearer "+b.token)
	}

	start := time.Now()
	b.logger.DebugWithFields("sending bridge command", map[string]interface{}{
		"method": method,
		"path":   path,
	})

	resp, err := b.httpClient.Do(req)
	duration := time.Since(start)
	if err != nil {
		b.logger.ErrorWithFields("bridge command failed", map[string]interface{}{
			"method":   method,
			"path":     path,
			"error":    err.Error(),
			"duration": duration,
		})
		return errs.New(failType, fmt.Sprintf("bridge unreachable: %v", err))
	}
	defer resp.Body.Close()

	b.logger.DebugWithFields("bridge command completed", map[string]interface{}{
		"method":   method,
		"path":     path,
		"status":   resp.StatusCode,
		"duration": duration,
	})

	if err := b.checkStatus(resp, failType); err != nil {
		return err
	}

	if target != nil {
		raw, err := io.ReadAll(resp.Body)
		if err != nil {
			return errs.New(failType, fmt.Sprintf("failed to read response: %v", err))
		}
		if err := json.Unmarshal(raw, target); err != nil {
			preview := string(raw)
			if len(preview) > 200 {
				preview = preview[:200] + "..."
			}
			b.logger.ErrorWithFields("failed to parse bridge response", map[string]interface{}{
				"path":         path,
				"status":       resp.StatusCode,
				"error":        err.Error(),
				"body_preview": preview,
			})
			return errs.New(failType, fmt.Sprintf("failed to parse response: %v", err))
		}
	}

	return nil
}

// checkStatus maps HTTP statuses onto the error taxonomy
func (b *Bridge) checkStatus(resp *http.Response, failType errs.ErrorType) error {
	switch {
	case resp.StatusCode == http.StatusOK:
		return nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		b.logger.WarnWithFields("bridge session rejected", map[string]interface{}{
			"status": resp.StatusCode,
		})
		return errs.New(errs.ErrorTypeSession, "bridge session token rejected")
	case resp.StatusCode == http.StatusNotFound:
		return errs.New(failType, "bridge reported target not found")
	case resp.StatusCode >= 500:
		return errs.New(failType, fmt.Sprintf("bridge server error: status %d", resp.StatusCode))
	default:
		return errs.New(failType, fmt.Sprintf("unexpected bridge status: %d", resp.StatusCode))
	}
}

// waitSettle gives the remote view time to render after a mutation
func (b *Bridge) waitSettle(ctx context.Context) error {
	if b.settle <= 0 {
		return nil
	}
	timer := time.NewTimer(b.settle)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

var _ PageDriver = (*Bridge)(nil)
