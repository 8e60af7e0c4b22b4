package uploads

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// StorageClient defines what we need from the storage backend.
type StorageClient interface {
	UploadObject(ctx context.Context, bucket, path, contentType string, body []byte) error
}

// SupabaseClient is a StorageClient backed by the Supabase storage HTTP API.
type SupabaseClient struct {
	BaseURL   string
	SecretKey string
	Client    *http.Client
}

func (c *SupabaseClient) UploadObject(ctx context.Context, bucket, path, contentType string, body []byte) error {
	if c.Client == nil {
		c.Client = &http.Client{Timeout: 30 * time.Second}
	}
	if c.BaseURL == "" {
		return fmt.Errorf("storage: SUPABASE_URL is not set")
	}
	if c.SecretKey == "" {
		return fmt.Errorf("storage: SUPABASE_SECRET_KEY is not set")
	}
	base := strings.TrimRight(c.BaseURL, "/")
	url := fmt.Sprintf("%s/storage/v1/object/%s/%s", base, bucket, path)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	// Match @supabase/supabase-js: both apikey and Authorization Bearer (same key)
	req.Header.Set("apikey", c.SecretKey)
	req.Header.Set("Authorization", "Bearer "+c.SecretKey)
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.Client.Do(req)
	if err != nil {
		return fmt.Errorf("storage request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		bodyStr := string(respBody)
		if resp.StatusCode == 400 || resp.StatusCode == 403 {
			if strings.Contains(bodyStr, "Invalid Compact JWS") || strings.Contains(bodyStr, "Unauthorized") {
				return fmt.Errorf("storage requires the service_role key (secret), not the anon key (raw body: %s)", bodyStr)
			}
		}
		return fmt.Errorf("storage error: status %d body: %s", resp.StatusCode, bodyStr)
	}
	return nil
}

// File is one raw upload from a multipart form.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// Service encapsulates upload logic for listing images and chat attachments.
type Service struct {
	Client StorageClient
	Bucket string
}

// UploadListingImages uploads files under the owner's prefix and returns the
// stable storage paths in submission order. Any failure aborts the whole
// batch — callers run this before writing any listing row.
func (s *Service) UploadListingImages(ctx context.Context, ownerID uuid.UUID, files []File) ([]string, error) {
	paths := make([]string, 0, len(files))
	for _, f := range files {
		path := fmt.Sprintf("%s/%d-%s", ownerID, time.Now().UnixMilli(), sanitizeName(f.Name))
		if err := s.Client.UploadObject(ctx, s.Bucket, path, f.ContentType, f.Data); err != nil {
			return nil, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// sanitizeName keeps storage paths URL-safe.
func sanitizeName(name string) string {
	name = strings.ReplaceAll(name, " ", "_")
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.' || r == '-' || r == '_':
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "file"
	}
	return b.String()
}
