package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// DocumentClient removes stored product media through the document-service
type DocumentClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *logrus.Entry
}

// BatchDeleteRequest for removing several objects from one bucket
type BatchDeleteRequest struct {
	Bucket string   `json:"bucket"`
	Paths  []string `json:"paths"`
}

// BatchDeleteResponse from document-service
type BatchDeleteResponse struct {
	Success bool     `json:"success"`
	Deleted int      `json:"deleted"`
	Failed  []string `json:"failed,omitempty"`
	Message *string  `json:"message,omitempty"`
}

// NewDocumentClient creates a new document client
func NewDocumentClient(baseURL string, logger *logrus.Logger) *DocumentClient {
	if baseURL == "" {
		baseURL = "http://document-service:8080"
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	return &DocumentClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: logger.WithField("component", "document-client"),
	}
}

// Remove deletes paths from bucket. Objects that are already gone count as removed.
func (c *DocumentClient) Remove(ctx context.Context, tenantID, bucket string, paths []string) error {
	if len(paths) == 0 {
		return nil
	}

	url := fmt.Sprintf("%s/api/v1/documents/batch-delete", c.baseURL)

	body, err := json.Marshal(BatchDeleteRequest{Bucket: bucket, Paths: paths})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("X-Tenant-ID", tenantID)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("failed to delete documents: %d - %s", resp.StatusCode, string(respBody))
	}
	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	var result BatchDeleteResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	if len(result.Failed) > 0 {
		return fmt.Errorf("document-service could not delete %d of %d objects in %s", len(result.Failed), len(paths), bucket)
	}

	c.logger.WithFields(logrus.Fields{
		"tenant_id": tenantID,
		"bucket":    bucket,
		"deleted":   result.Deleted,
	}).Debug("Removed stored documents")
	return nil
}
