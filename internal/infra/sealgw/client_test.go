package sealgw

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"
)

type roundTripperFunc func(*http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func httpResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     make(http.Header),
	}
}

func TestInvokeSealingSuccess(t *testing.T) {
	var gotPath, gotJobID string
	httpClient := &http.Client{
		Transport: roundTripperFunc(func(req *http.Request) (*http.Response, error) {
			gotPath = req.URL.Path
			body, _ := io.ReadAll(req.Body)
			var parsed struct {
				JobID string `json:"job_id"`
			}
			if err := json.Unmarshal(body, &parsed); err != nil {
				t.Fatalf("invalid request body: %v", err)
			}
			gotJobID = parsed.JobID
			return httpResponse(http.StatusOK, `{"success":true,"sealed_at":"2024-01-01T00:00:05Z","evidence_hash":"abc123"}`), nil
		}),
	}

	client, err := NewClient("https://sealer.example/", time.Second, httpClient)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	result, err := client.InvokeSealing(context.Background(), "job-1")
	if err != nil {
		t.Fatalf("InvokeSealing: %v", err)
	}
	if gotPath != "/v1/seal" {
		t.Fatalf("path = %q, want /v1/seal", gotPath)
	}
	if gotJobID != "job-1" {
		t.Fatalf("job_id = %q, want job-1", gotJobID)
	}
	if !result.Success || result.EvidenceHash != "abc123" {
		t.Fatalf("result = %+v", result)
	}
	want := time.Date(2024, 1, 1, 0, 0, 5, 0, time.UTC)
	if !result.SealedAt.Equal(want) {
		t.Fatalf("sealed_at = %v, want %v", result.SealedAt, want)
	}
}

func TestInvokeSealingRejection(t *testing.T) {
	httpClient := &http.Client{
		Transport: roundTripperFunc(func(req *http.Request) (*http.Response, error) {
			return httpResponse(http.StatusOK, `{"success":false,"error":"signature service unavailable"}`), nil
		}),
	}
	client, err := NewClient("https://sealer.example", time.Second, httpClient)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	result, err := client.InvokeSealing(context.Background(), "job-1")
	if err != nil {
		t.Fatalf("rejection should be a failed result, not an error: %v", err)
	}
	if result.Success {
		t.Fatalf("result marked success: %+v", result)
	}
	if result.ErrorCode != "provider_error" || result.ErrorMessage != "signature service unavailable" {
		t.Fatalf("result = %+v", result)
	}
}

func TestInvokeSealingStatusCodes(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		wantCode string
	}{
		{"server error", http.StatusInternalServerError, "provider_5xx"},
		{"bad gateway", http.StatusBadGateway, "provider_5xx"},
		{"rate limited", http.StatusTooManyRequests, "rate_limited"},
		{"bad request", http.StatusBadRequest, "provider_error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			httpClient := &http.Client{
				Transport: roundTripperFunc(func(req *http.Request) (*http.Response, error) {
					return httpResponse(tt.status, "nope"), nil
				}),
			}
			client, err := NewClient("https://sealer.example", time.Second, httpClient)
			if err != nil {
				t.Fatalf("new client: %v", err)
			}
			result, err := client.InvokeSealing(context.Background(), "job-1")
			if err != nil {
				t.Fatalf("InvokeSealing: %v", err)
			}
			if result.Success || result.ErrorCode != tt.wantCode {
				t.Fatalf("result = %+v, want code %q", result, tt.wantCode)
			}
		})
	}
}

func TestInvokeSealingTransportError(t *testing.T) {
	httpClient := &http.Client{
		Transport: roundTripperFunc(func(req *http.Request) (*http.Response, error) {
			return nil, errors.New("dial failed")
		}),
	}
	client, err := NewClient("https://sealer.example", time.Second, httpClient)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	result, err := client.InvokeSealing(context.Background(), "job-1")
	if err != nil {
		t.Fatalf("transport failure should normalize into the result: %v", err)
	}
	if result.Success || result.ErrorCode != "network" {
		t.Fatalf("result = %+v, want network failure", result)
	}
}

func TestInvokeSealingTimeout(t *testing.T) {
	httpClient := &http.Client{
		Transport: roundTripperFunc(func(req *http.Request) (*http.Response, error) {
			<-req.Context().Done()
			return nil, req.Context().Err()
		}),
	}
	client, err := NewClient("https://sealer.example", 10*time.Millisecond, httpClient)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	result, err := client.InvokeSealing(context.Background(), "job-1")
	if err != nil {
		t.Fatalf("timeout should normalize into the result: %v", err)
	}
	if result.Success || result.ErrorCode != "timeout" {
		t.Fatalf("result = %+v, want timeout failure", result)
	}
}

func TestInvokeSealingInvalidResponses(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", "<html>"},
		{"missing sealed_at", `{"success":true,"evidence_hash":"abc123"}`},
		{"bad sealed_at", `{"success":true,"sealed_at":"yesterday","evidence_hash":"abc123"}`},
		{"missing hash", `{"success":true,"sealed_at":"2024-01-01T00:00:05Z"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			httpClient := &http.Client{
				Transport: roundTripperFunc(func(req *http.Request) (*http.Response, error) {
					return httpResponse(http.StatusOK, tt.body), nil
				}),
			}
			client, err := NewClient("https://sealer.example", time.Second, httpClient)
			if err != nil {
				t.Fatalf("new client: %v", err)
			}
			result, err := client.InvokeSealing(context.Background(), "job-1")
			if err != nil {
				t.Fatalf("InvokeSealing: %v", err)
			}
			if result.Success || result.ErrorCode != "provider_error" {
				t.Fatalf("result = %+v, want provider_error", result)
			}
		})
	}
}

func TestNewClientRequiresBaseURL(t *testing.T) {
	if _, err := NewClient("  ", time.Second, nil); err == nil {
		t.Fatalf("expected error for empty base url")
	}
}
