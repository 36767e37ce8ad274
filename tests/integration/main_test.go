//go:build integration
// +build integration

package integration

import (
	"fmt"
	"net/http"
	"testing"
)

func TestBankHealthz(t *testing.T) {
	resp, err := http.Get(fmt.Sprintf("%s/healthz", bankURL()))
	if err != nil {
		t.Fatalf("health check request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status code: %d", resp.StatusCode)
	}
}

func TestSessionHealthz(t *testing.T) {
	base := envOrDefault("INTEGRATION_SESSION_URL", "")
	if base == "" {
		t.Skip("INTEGRATION_SESSION_URL not set")
	}

	resp, err := http.Get(fmt.Sprintf("%s/healthz", base))
	if err != nil {
		t.Fatalf("health check request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status code: %d", resp.StatusCode)
	}
}
