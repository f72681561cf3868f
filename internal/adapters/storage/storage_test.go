package storage

import (
	"context"
	"net/url"
	"strings"
	"testing"
	"time"
)

type testConfig struct {
	endpoint string
	bucket   string
}

func (c testConfig) GetMinIOEndpoint() string          { return c.endpoint }
func (c testConfig) GetMinIOAccessKey() string         { return "access" }
func (c testConfig) GetMinIOSecretKey() string         { return "secret" }
func (c testConfig) GetMinIOUseSSL() bool              { return false }
func (c testConfig) GetMinioBucketLeadMagnets() string { return c.bucket }
func (c testConfig) IsMinIOEnabled() bool              { return c.endpoint != "" }

func TestNewMinIOServiceRequiresConfig(t *testing.T) {
	if _, err := NewMinIOService(testConfig{}); err == nil {
		t.Fatalf("expected error when MinIO is disabled")
	}
	if _, err := NewMinIOService(testConfig{endpoint: "localhost:9000"}); err == nil {
		t.Fatalf("expected error without a bucket")
	}
}

func TestGenerateDownloadURLPresignsOffline(t *testing.T) {
	svc, err := NewMinIOService(testConfig{endpoint: "localhost:9000", bucket: "lead-magnets"})
	if err != nil {
		t.Fatalf("NewMinIOService: %v", err)
	}

	got, err := svc.GenerateDownloadURL(context.Background(), "owner/seo-checklist.pdf", EmailURLTTL)
	if err != nil {
		t.Fatalf("GenerateDownloadURL: %v", err)
	}

	u, err := url.Parse(got.URL)
	if err != nil {
		t.Fatalf("parse url: %v", err)
	}
	if u.Path != "/lead-magnets/owner/seo-checklist.pdf" {
		t.Fatalf("path = %s", u.Path)
	}
	if u.Query().Get("X-Amz-Expires") != "259200" {
		t.Fatalf("expires = %s", u.Query().Get("X-Amz-Expires"))
	}
	if !strings.Contains(u.Query().Get("response-content-disposition"), "seo-checklist.pdf") {
		t.Fatalf("missing content disposition")
	}
	if got.ExpiresAt.Before(time.Now().Add(71 * time.Hour)) {
		t.Fatalf("expiry too early: %v", got.ExpiresAt)
	}
}

func TestGenerateDownloadURLRejectsEmptyKey(t *testing.T) {
	svc, err := NewMinIOService(testConfig{endpoint: "localhost:9000", bucket: "lead-magnets"})
	if err != nil {
		t.Fatalf("NewMinIOService: %v", err)
	}
	if _, err := svc.GenerateDownloadURL(context.Background(), "", ThankYouURLTTL); err == nil {
		t.Fatalf("expected error for empty key")
	}
}
