package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// HTTPIndexer pushes documents to the search service over its ingest HTTP
// API: PUT {base}/{collection}/{id} to upsert, DELETE to remove.
type HTTPIndexer struct {
	base   string
	client *http.Client
}

// NewHTTPIndexer creates an indexer against the given base URL
func NewHTTPIndexer(baseURL string) *HTTPIndexer {
	return &HTTPIndexer{
		base:   strings.TrimRight(baseURL, "/"),
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Index upserts one document
func (i *HTTPIndexer) Index(ctx context.Context, doc Document) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode document: %w", err)
	}

	url := fmt.Sprintf("%s/%s/%d", i.base, doc.Collection, doc.ID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	return i.do(req)
}

// Delete removes one document
func (i *HTTPIndexer) Delete(ctx context.Context, collection string, id int64) error {
	url := fmt.Sprintf("%s/%s/%d", i.base, collection, id)
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, url, nil)
	if err != nil {
		return err
	}
	return i.do(req)
}

func (i *HTTPIndexer) do(req *http.Request) error {
	resp, err := i.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 && resp.StatusCode != http.StatusNotFound {
		return fmt.Errorf("search index returned status %d", resp.StatusCode)
	}
	return nil
}
