package s3replica

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"

	aws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

const mockBucket = "mock-bucket"

// mockS3 is a tiny in-memory S3 subset: GetObject, PutObject and
// ListObjectsV2 with a fixed page size.
type mockS3 struct {
	mu       sync.Mutex
	objects  map[string][]byte
	pageSize int
	failPut  int // status to answer PutObject with, when non-zero
	puts     int
}

func newMockReplica(t *testing.T, prefix string) (*Replica, *mockS3) {
	t.Helper()
	m := &mockS3{objects: make(map[string][]byte), pageSize: 2}
	cfg, err := config.LoadDefaultConfig(context.Background(),
		config.WithRegion("us-east-1"),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider("AKIA", "SECRET", "")),
	)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.HTTPClient = &http.Client{Transport: m}
		o.UsePathStyle = true
		o.BaseEndpoint = aws.String("https://mock.s3.local")
	})
	return NewWithClient(client, mockBucket, prefix), m
}

func (m *mockS3) put(key string, body string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = []byte(body)
}

func (m *mockS3) object(key string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.objects[key]
	return string(b), ok
}

func (m *mockS3) RoundTrip(req *http.Request) (*http.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := strings.TrimPrefix(req.URL.Path, "/"+mockBucket+"/")
	if req.Method == http.MethodGet && req.URL.Query().Get("list-type") == "2" {
		return m.list(req), nil
	}

	switch req.Method {
	case http.MethodGet:
		body, ok := m.objects[key]
		if !ok {
			return xmlResponse(http.StatusNotFound,
				"<Error><Code>NoSuchKey</Code><Message>The specified key does not exist.</Message></Error>"), nil
		}
		return &http.Response{StatusCode: http.StatusOK, Body: io.NopCloser(bytes.NewReader(body)), Header: http.Header{
			"Content-Length": {strconv.Itoa(len(body))},
			"Content-Type":   {"application/json"},
			"Etag":           {`"etag"`},
		}}, nil

	case http.MethodPut:
		m.puts++
		if m.failPut != 0 {
			return xmlResponse(m.failPut,
				"<Error><Code>AccessDenied</Code><Message>Access Denied</Message></Error>"), nil
		}
		body, err := io.ReadAll(req.Body)
		if err != nil {
			return nil, err
		}
		if strings.Contains(req.Header.Get("Content-Encoding"), "aws-chunked") {
			if body, err = decodeChunked(body); err != nil {
				return nil, err
			}
		}
		m.objects[key] = body
		return &http.Response{StatusCode: http.StatusOK, Body: io.NopCloser(bytes.NewReader(nil)),
			Header: http.Header{"Etag": {`"etag"`}}}, nil
	}
	return xmlResponse(http.StatusNotImplemented, "<Error><Code>NotImplemented</Code></Error>"), nil
}

// list pages through sorted keys; the continuation token is the index of
// the first key on the page.
func (m *mockS3) list(req *http.Request) *http.Response {
	prefix := req.URL.Query().Get("prefix")
	var keys []string
	for k := range m.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	start, _ := strconv.Atoi(req.URL.Query().Get("continuation-token"))
	end := min(start+m.pageSize, len(keys))

	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?><ListBucketResult>`)
	if end < len(keys) {
		fmt.Fprintf(&b, "<IsTruncated>true</IsTruncated><NextContinuationToken>%d</NextContinuationToken>", end)
	} else {
		b.WriteString("<IsTruncated>false</IsTruncated>")
	}
	for _, k := range keys[start:end] {
		fmt.Fprintf(&b, "<Contents><Key>%s</Key><Size>%d</Size><LastModified>2024-01-01T00:00:00Z</LastModified></Contents>",
			k, len(m.objects[k]))
	}
	b.WriteString("</ListBucketResult>")
	return xmlResponse(http.StatusOK, b.String())
}

func xmlResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     http.Header{"Content-Type": {"application/xml"}},
	}
}

// decodeChunked strips aws-chunked framing: "<hex>[;ext]\r\n<data>\r\n"
// repeated, ending with a zero-size chunk and optional trailers.
func decodeChunked(b []byte) ([]byte, error) {
	r := bufio.NewReader(bytes.NewReader(b))
	var out bytes.Buffer
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return nil, fmt.Errorf("chunk header: %w", err)
		}
		sizeHex, _, _ := strings.Cut(strings.TrimSpace(line), ";")
		size, err := strconv.ParseInt(sizeHex, 16, 64)
		if err != nil {
			return nil, fmt.Errorf("chunk size %q: %w", sizeHex, err)
		}
		if size == 0 {
			return out.Bytes(), nil
		}
		if _, err := io.CopyN(&out, r, size); err != nil {
			return nil, fmt.Errorf("chunk body: %w", err)
		}
		if _, err := r.Discard(2); err != nil {
			return nil, fmt.Errorf("chunk trailer: %w", err)
		}
	}
}
