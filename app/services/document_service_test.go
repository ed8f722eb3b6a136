package services

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPDocumentService_ViewURL(t *testing.T) {
	expires := time.Date(2024, 5, 1, 11, 0, 0, 0, time.UTC)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/documents/url", r.URL.Path)
		assert.Equal(t, "uploads/booking form.pdf", r.URL.Query().Get("reference"))
		assert.Equal(t, "Bearer console-token", r.Header.Get("Authorization"))
		_, _ = io.WriteString(w, `{"data":{"url":"https://cdn.example.com/signed?x=1","expiresAt":"2024-05-01T11:00:00Z"}}`)
	}))
	defer server.Close()

	svc := NewHTTPDocumentService(server.URL, "", time.Second, time.Minute)
	view, err := svc.ViewURL(authedContext("console-token"), "uploads/booking form.pdf")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/signed?x=1", view.URL)
	assert.True(t, expires.Equal(view.ExpiresAt))
}

func TestHTTPDocumentService_ViewURLDefaultsExpiry(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"url":"https://cdn.example.com/a.pdf"}`)
	}))
	defer server.Close()

	svc := NewHTTPDocumentService(server.URL, "/files/exchange", time.Second, 10*time.Minute)
	before := time.Now().UTC()
	view, err := svc.ViewURL(context.Background(), "a.pdf")
	require.NoError(t, err)
	assert.True(t, view.ExpiresAt.After(before.Add(9*time.Minute)))
}

func TestHTTPDocumentService_NotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"message":"no such file"}`)
	}))
	defer server.Close()

	svc := NewHTTPDocumentService(server.URL, "", time.Second, time.Minute)
	_, err := svc.ViewURL(context.Background(), "missing.pdf")
	require.Error(t, err)

	var re *RemoteError
	require.True(t, errors.As(err, &re))
	assert.True(t, re.NotFound())
	assert.Equal(t, "no such file", re.ServerMessage())
}

func TestHTTPDocumentService_EmptyReference(t *testing.T) {
	svc := NewHTTPDocumentService("http://localhost", "", time.Second, time.Minute)
	_, err := svc.ViewURL(context.Background(), "  ")
	assert.ErrorIs(t, err, ErrDocumentReferenceRequired)
}

func TestHTTPDocumentService_OpenSameOrigin(t *testing.T) {
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/documents/url":
			_, _ = io.WriteString(w, `{"url":"`+server.URL+`/files/payment.pdf"}`)
		case "/files/payment.pdf":
			assert.Equal(t, "Bearer console-token", r.Header.Get("Authorization"))
			w.Header().Set("Content-Type", "application/pdf")
			_, _ = io.WriteString(w, "%PDF-1.4")
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	svc := NewHTTPDocumentService(server.URL, "", time.Second, time.Minute)
	doc, err := svc.Open(authedContext("console-token"), "uploads/payment.pdf")
	require.NoError(t, err)
	defer doc.Body.Close()

	body, err := io.ReadAll(doc.Body)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4", string(body))
	assert.Equal(t, "application/pdf", doc.ContentType)
	assert.Equal(t, "payment.pdf", doc.Filename)
}

func TestHTTPDocumentService_OpenForeignOriginDropsBearer(t *testing.T) {
	cdn := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		_, _ = io.WriteString(w, "content")
	}))
	defer cdn.Close()

	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"url":"`+cdn.URL+`/signed/booking.pdf"}`)
	}))
	defer api.Close()

	svc := NewHTTPDocumentService(api.URL, "", time.Second, time.Minute)
	doc, err := svc.Open(authedContext("console-token"), "booking.pdf")
	require.NoError(t, err)
	_ = doc.Body.Close()
}

func TestS3DocumentService_ObjectKey(t *testing.T) {
	svc := &S3DocumentService{bucket: "lead-docs"}

	tests := []struct {
		name      string
		reference string
		want      string
	}{
		{name: "bare key", reference: "conversions/lead-1/pay.pdf", want: "conversions/lead-1/pay.pdf"},
		{name: "leading slash", reference: "/conversions/pay.pdf", want: "conversions/pay.pdf"},
		{name: "s3 uri", reference: "s3://lead-docs/conversions/pay.pdf", want: "conversions/pay.pdf"},
		{name: "virtual host url", reference: "https://lead-docs.s3.amazonaws.com/conversions/pay.pdf", want: "conversions/pay.pdf"},
		{name: "path style url", reference: "http://minio:9000/lead-docs/conversions/pay.pdf", want: "conversions/pay.pdf"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := svc.objectKey(tt.reference)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := svc.objectKey("s3://lead-docs/")
	assert.ErrorIs(t, err, ErrDocumentReferenceRequired)
}

func TestS3DocumentService_ViewURLPresigns(t *testing.T) {
	svc, err := NewS3DocumentService(context.Background(), "http://localhost:9000", "us-east-1", "lead-docs", "test-key", "test-secret", 5*time.Minute)
	require.NoError(t, err)

	view, err := svc.ViewURL(context.Background(), "s3://lead-docs/conversions/pay.pdf")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(view.URL, "http://localhost:9000/lead-docs/conversions/pay.pdf"))
	assert.Contains(t, view.URL, "X-Amz-Signature=")
	assert.Contains(t, view.URL, "X-Amz-Expires=300")
}

func TestDocumentFilename(t *testing.T) {
	assert.Equal(t, "pay.pdf", documentFilename("https://cdn.example.com/a/pay.pdf?sig=1"))
	assert.Equal(t, "form.pdf", documentFilename("uploads/form.pdf"))
	assert.Equal(t, "document", documentFilename("/"))
}
