package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/amirphl/leadflow/utils"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// ErrDocumentReferenceRequired is returned for an empty stored-file reference
var ErrDocumentReferenceRequired = errors.New("document reference is required")

// DocumentURL is a short-lived viewable URL for a stored file
type DocumentURL struct {
	URL       string
	ExpiresAt time.Time
}

// DocumentObject is the body of a stored file
type DocumentObject struct {
	Body        io.ReadCloser
	ContentType string
	Filename    string
	Size        int64
}

// DocumentService exchanges stored-file references for viewable content
type DocumentService interface {
	ViewURL(ctx context.Context, reference string) (*DocumentURL, error)
	Open(ctx context.Context, reference string) (*DocumentObject, error)
}

// HTTPDocumentService asks the lead API to exchange references for signed URLs
type HTTPDocumentService struct {
	BaseURL      string
	ExchangePath string
	HTTPClient   *http.Client
	DefaultTTL   time.Duration
}

func NewHTTPDocumentService(baseURL, exchangePath string, timeout, defaultTTL time.Duration) *HTTPDocumentService {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if exchangePath == "" {
		exchangePath = "/documents/url"
	}
	return &HTTPDocumentService{
		BaseURL:      strings.TrimRight(baseURL, "/"),
		ExchangePath: "/" + strings.TrimLeft(exchangePath, "/"),
		HTTPClient:   &http.Client{Timeout: timeout},
		DefaultTTL:   defaultTTL,
	}
}

type documentURLResp struct {
	URL       string     `json:"url"`
	ExpiresAt *time.Time `json:"expiresAt"`
}

func (s *HTTPDocumentService) ViewURL(ctx context.Context, reference string) (*DocumentURL, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return nil, ErrDocumentReferenceRequired
	}

	endpoint := s.BaseURL + s.ExchangePath + "?reference=" + url.QueryEscape(reference)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, &RemoteError{Operation: "document_url", Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if token := BearerTokenFromContext(ctx); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := s.HTTPClient.Do(req)
	if err != nil {
		return nil, &RemoteError{Operation: "document_url", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &RemoteError{Operation: "document_url", StatusCode: resp.StatusCode, Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &RemoteError{Operation: "document_url", StatusCode: resp.StatusCode, Message: extractServerMessage(body)}
	}

	var out documentURLResp
	if err := json.Unmarshal(unwrapData(body), &out); err != nil {
		return nil, &RemoteError{Operation: "document_url", StatusCode: resp.StatusCode, Err: err}
	}
	if out.URL == "" {
		return nil, &RemoteError{Operation: "document_url", StatusCode: resp.StatusCode, Message: "empty document url"}
	}

	expiresAt := utils.UTCNowAdd(s.DefaultTTL)
	if out.ExpiresAt != nil {
		expiresAt = *out.ExpiresAt
	}
	return &DocumentURL{URL: out.URL, ExpiresAt: expiresAt}, nil
}

func (s *HTTPDocumentService) Open(ctx context.Context, reference string) (*DocumentObject, error) {
	view, err := s.ViewURL(ctx, reference)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, view.URL, nil)
	if err != nil {
		return nil, &RemoteError{Operation: "document_open", Err: err}
	}
	if s.sameOrigin(view.URL) {
		if token := BearerTokenFromContext(ctx); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := s.HTTPClient.Do(req)
	if err != nil {
		return nil, &RemoteError{Operation: "document_open", Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &RemoteError{Operation: "document_open", StatusCode: resp.StatusCode, Message: extractServerMessage(body)}
	}

	return &DocumentObject{
		Body:        resp.Body,
		ContentType: resp.Header.Get("Content-Type"),
		Filename:    documentFilename(reference),
		Size:        resp.ContentLength,
	}, nil
}

func (s *HTTPDocumentService) sameOrigin(raw string) bool {
	target, err := url.Parse(raw)
	if err != nil {
		return false
	}
	base, err := url.Parse(s.BaseURL)
	if err != nil {
		return false
	}
	return target.Host == "" || strings.EqualFold(target.Host, base.Host)
}

// S3DocumentService reads stored conversion documents straight from the bucket
type S3DocumentService struct {
	client    *s3.Client
	presigner *s3.PresignClient
	bucket    string
	urlTTL    time.Duration
}

// NewS3DocumentService builds an S3 (or S3-compatible) document reader
func NewS3DocumentService(ctx context.Context, endpoint, region, bucket, accessKey, secretKey string, urlTTL time.Duration) (*S3DocumentService, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if accessKey != "" && secretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(accessKey, secretKey, ""),
		))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load S3 config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})

	if urlTTL <= 0 {
		urlTTL = 15 * time.Minute
	}

	return &S3DocumentService{
		client:    client,
		presigner: s3.NewPresignClient(client),
		bucket:    bucket,
		urlTTL:    urlTTL,
	}, nil
}

func (s *S3DocumentService) ViewURL(ctx context.Context, reference string) (*DocumentURL, error) {
	key, err := s.objectKey(reference)
	if err != nil {
		return nil, err
	}

	req, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(s.urlTTL))
	if err != nil {
		return nil, &RemoteError{Operation: "document_presign", Err: err}
	}

	return &DocumentURL{URL: req.URL, ExpiresAt: utils.UTCNowAdd(s.urlTTL)}, nil
}

func (s *S3DocumentService) Open(ctx context.Context, reference string) (*DocumentObject, error) {
	key, err := s.objectKey(reference)
	if err != nil {
		return nil, err
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var missing *types.NoSuchKey
		if errors.As(err, &missing) {
			return nil, &RemoteError{Operation: "document_open", StatusCode: http.StatusNotFound, Message: "document not found", Err: err}
		}
		return nil, &RemoteError{Operation: "document_open", Err: err}
	}

	return &DocumentObject{
		Body:        out.Body,
		ContentType: aws.ToString(out.ContentType),
		Filename:    documentFilename(key),
		Size:        aws.ToInt64(out.ContentLength),
	}, nil
}

// objectKey accepts bare keys, s3://bucket/key and full object URLs
func (s *S3DocumentService) objectKey(reference string) (string, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return "", ErrDocumentReferenceRequired
	}
	if strings.HasPrefix(reference, "s3://") {
		rest := strings.TrimPrefix(reference, "s3://")
		_, key, _ := strings.Cut(rest, "/")
		reference = key
	} else if u, err := url.Parse(reference); err == nil && u.Scheme != "" && u.Host != "" {
		reference = strings.TrimPrefix(u.Path, "/")
		reference = strings.TrimPrefix(reference, s.bucket+"/")
	}
	reference = strings.TrimLeft(reference, "/")
	if reference == "" {
		return "", ErrDocumentReferenceRequired
	}
	return reference, nil
}

func documentFilename(reference string) string {
	if u, err := url.Parse(reference); err == nil && u.Path != "" {
		reference = u.Path
	}
	name := path.Base(reference)
	if name == "." || name == "/" {
		return "document"
	}
	return name
}
