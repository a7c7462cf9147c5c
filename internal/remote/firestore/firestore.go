// Package firestore is a replica backed by the Cloud Firestore REST API.
//
// One collection holds one document per entry. MergeSet is a PATCH with an
// update mask naming exactly the written fields, which is how Firestore
// expresses field-level merge. GetAll pages through the collection.
package firestore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"math"
	"net/http"
	"net/url"
	"path"
	"slices"
	"strconv"
	"time"

	"github.com/antonholmquist/jason"

	"github.com/roach88/ecowatch/internal/replication"
)

const (
	// DefaultBaseURL is the public Firestore endpoint.
	DefaultBaseURL = "https://firestore.googleapis.com"

	// DefaultCollection matches the collection the mobile app used.
	DefaultCollection = "species"

	defaultPageSize = 300
	defaultTimeout  = 30 * time.Second
)

// Config holds construction parameters.
type Config struct {
	BaseURL    string // default DefaultBaseURL; point at the emulator for local use
	Project    string
	Database   string // default "(default)"
	Collection string // default DefaultCollection
	Token      string // optional OAuth bearer token
	PageSize   int
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Replica implements replication.Replica.
type Replica struct {
	client   *http.Client
	docsURL  string // .../documents/<collection>
	token    string
	pageSize int
	logger   *slog.Logger
}

// New creates a replica. Project is required.
func New(cfg Config) (*Replica, error) {
	if cfg.Project == "" {
		return nil, fmt.Errorf("firestore project required")
	}
	base := cfg.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("firestore base url: %w", err)
	}
	database := cfg.Database
	if database == "" {
		database = "(default)"
	}
	collection := cfg.Collection
	if collection == "" {
		collection = DefaultCollection
	}
	r := &Replica{
		client:   cfg.HTTPClient,
		token:    cfg.Token,
		pageSize: cfg.PageSize,
		logger:   cfg.Logger,
		docsURL: base + "/v1/projects/" + cfg.Project +
			"/databases/" + database +
			"/documents/" + collection,
	}
	if r.client == nil {
		r.client = &http.Client{Timeout: defaultTimeout}
	}
	if r.pageSize <= 0 {
		r.pageSize = defaultPageSize
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	return r, nil
}

// StatusError is a non-2xx answer from the API.
type StatusError struct {
	StatusCode int
	Status     string // API status such as PERMISSION_DENIED, when reported
	Message    string
}

func (e *StatusError) Error() string {
	if e.Status != "" {
		return fmt.Sprintf("firestore: %d %s: %s", e.StatusCode, e.Status, e.Message)
	}
	return fmt.Sprintf("firestore: http %d", e.StatusCode)
}

// MergeSet patches the named fields of the document at key, creating it if
// needed.
func (r *Replica) MergeSet(ctx context.Context, key string, fields map[string]any) error {
	names := slices.Sorted(maps.Keys(fields))

	encoded := make(map[string]any, len(fields))
	for _, name := range names {
		v, err := encodeValue(fields[name])
		if err != nil {
			return fmt.Errorf("field %s: %w", name, err)
		}
		encoded[name] = v
	}
	body, err := json.Marshal(map[string]any{"fields": encoded})
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}

	q := url.Values{}
	for _, name := range names {
		q.Add("updateMask.fieldPaths", name)
	}
	u := r.docsURL + "/" + url.PathEscape(key) + "?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, u, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := r.do(req)
	if err != nil {
		return err
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	return nil
}

// GetAll lists the collection page by page.
func (r *Replica) GetAll(ctx context.Context) ([]replication.Document, error) {
	var docs []replication.Document
	pageToken := ""
	for {
		q := url.Values{}
		q.Set("pageSize", strconv.Itoa(r.pageSize))
		if pageToken != "" {
			q.Set("pageToken", pageToken)
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.docsURL+"?"+q.Encode(), http.NoBody)
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}
		resp, err := r.do(req)
		if err != nil {
			return nil, err
		}
		page, err := jason.NewObjectFromReader(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("parse list response: %w", err)
		}

		// An empty collection answers {} with no documents key.
		items, _ := page.GetObjectArray("documents")
		for _, item := range items {
			docs = append(docs, r.decodeDocument(item))
		}

		pageToken, _ = page.GetString("nextPageToken")
		if pageToken == "" {
			return docs, nil
		}
	}
}

func (r *Replica) do(req *http.Request) (*http.Response, error) {
	if r.token != "" {
		req.Header.Set("Authorization", "Bearer "+r.token)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("firestore %s: %w", req.Method, err)
	}
	if resp.StatusCode/100 == 2 {
		return resp, nil
	}
	defer resp.Body.Close()

	se := &StatusError{StatusCode: resp.StatusCode}
	if obj, err := jason.NewObjectFromReader(resp.Body); err == nil {
		se.Status, _ = obj.GetString("error", "status")
		se.Message, _ = obj.GetString("error", "message")
	}
	r.logger.Debug("firestore request failed", "method", req.Method, "status", resp.StatusCode, "api_status", se.Status)
	return nil, se
}

// decodeDocument converts a REST document. Values with a type this program
// never writes are dropped.
func (r *Replica) decodeDocument(item *jason.Object) replication.Document {
	name, _ := item.GetString("name")
	doc := replication.Document{Key: path.Base(name), Fields: make(map[string]any)}

	fields, err := item.GetObject("fields")
	if err != nil {
		return doc
	}
	for field, value := range fields.Map() {
		v, ok := decodeValue(value)
		if !ok {
			r.logger.Debug("ignoring unsupported firestore value", "document", doc.Key, "field", field)
			continue
		}
		doc.Fields[field] = v
	}
	return doc
}

// encodeValue wraps a Go value in the REST typed-value form.
func encodeValue(v any) (map[string]any, error) {
	switch x := v.(type) {
	case nil:
		return map[string]any{"nullValue": nil}, nil
	case string:
		return map[string]any{"stringValue": x}, nil
	case bool:
		return map[string]any{"booleanValue": x}, nil
	case int:
		return map[string]any{"integerValue": strconv.Itoa(x)}, nil
	case int32:
		return map[string]any{"integerValue": strconv.FormatInt(int64(x), 10)}, nil
	case int64:
		return map[string]any{"integerValue": strconv.FormatInt(x, 10)}, nil
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return nil, fmt.Errorf("non-finite number %v", x)
		}
		return map[string]any{"doubleValue": x}, nil
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return map[string]any{"integerValue": strconv.FormatInt(i, 10)}, nil
		}
		f, err := x.Float64()
		if err != nil {
			return nil, err
		}
		return map[string]any{"doubleValue": f}, nil
	}
	return nil, fmt.Errorf("unsupported type %T", v)
}

// decodeValue unwraps one typed value. integerValue arrives as a decimal
// string and becomes int64.
func decodeValue(v *jason.Value) (any, bool) {
	obj, err := v.Object()
	if err != nil {
		return nil, false
	}
	if err := obj.GetNull("nullValue"); err == nil {
		return nil, true
	}
	if s, err := obj.GetString("stringValue"); err == nil {
		return s, true
	}
	if b, err := obj.GetBoolean("booleanValue"); err == nil {
		return b, true
	}
	if s, err := obj.GetString("integerValue"); err == nil {
		i, err := strconv.ParseInt(s, 10, 64)
		return i, err == nil
	}
	if f, err := obj.GetFloat64("doubleValue"); err == nil {
		return f, true
	}
	if s, err := obj.GetString("timestampValue"); err == nil {
		return s, true
	}
	return nil, false
}
