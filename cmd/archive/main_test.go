package main

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"zoomarchive/internal/auth"
	"zoomarchive/internal/domain"
)

func TestIssueAdminToken(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("ADMIN_JWT_KEY", "k")
	t.Setenv("ADMIN_JWT_ISSUER", "zoomarchive")

	var out bytes.Buffer
	if err := run(context.Background(), []string{"--issue-admin-token", "--subject", "ops", "--ttl", "1h"}, &out); err != nil {
		t.Fatalf("run: %v", err)
	}
	var got struct {
		AccessToken string `json:"access_token"`
		ExpiresAt   string `json:"expires_at"`
	}
	if err := json.Unmarshal(out.Bytes(), &got); err != nil {
		t.Fatalf("decode %q: %v", out.String(), err)
	}
	claims, err := auth.Parse(got.AccessToken, "k", "zoomarchive")
	if err != nil {
		t.Fatalf("issued token does not verify: %v", err)
	}
	if claims.Subject != "ops" {
		t.Errorf("subject = %q", claims.Subject)
	}
}

func TestIssueAdminTokenWithoutKey(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("ADMIN_JWT_KEY", "")
	err := run(context.Background(), []string{"--issue-admin-token"}, &bytes.Buffer{})
	if err == nil || !strings.Contains(err.Error(), "ADMIN_JWT_KEY") {
		t.Fatalf("err = %v", err)
	}
}

func TestRangeRejectedBeforeAnyCall(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	err := run(context.Background(), []string{"--from", "2024-03-05", "--to", "2024-03-01"}, &bytes.Buffer{})
	if !domain.IsKind(err, domain.KindValidation) {
		t.Fatalf("err = %v, want validation error", err)
	}
}

func TestFlagErrors(t *testing.T) {
	if err := run(context.Background(), []string{"--help"}, &bytes.Buffer{}); err != nil {
		t.Errorf("--help: %v", err)
	}
	if err := run(context.Background(), []string{"--bogus"}, &bytes.Buffer{}); err == nil {
		t.Error("unknown flag accepted")
	}
	if err := run(context.Background(), []string{"extra"}, &bytes.Buffer{}); err == nil {
		t.Error("positional argument accepted")
	}
}
