// Package s3replica stores one JSON object per entry in an S3-compatible
// bucket (AWS S3 or MinIO).
//
// S3 has no partial object update, so MergeSet is a read-modify-write of
// the whole object. Two concurrent merges of the same key resolve as last
// writer wins.
package s3replica

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"net/http"
	"sort"
	"strings"

	aws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/roach88/ecowatch/internal/replication"
)

const (
	// DefaultPrefix is the key prefix documents live under.
	DefaultPrefix = "species/"

	suffix      = ".json"
	contentType = "application/json"
)

// Config holds construction parameters.
type Config struct {
	Bucket          string
	Region          string // default us-east-1
	Endpoint        string // optional; custom endpoint such as MinIO
	PathStyle       bool
	Prefix          string // default DefaultPrefix
	AccessKeyID     string // optional; falls back to the default credential chain
	SecretAccessKey string
	SessionToken    string
}

// Replica implements replication.Replica on a single bucket.
type Replica struct {
	client *s3.Client
	bucket string
	prefix string
}

// New creates a replica from cfg.
func New(ctx context.Context, cfg Config) (*Replica, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket required")
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if cfg.AccessKeyID != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken)))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.PathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return NewWithClient(client, cfg.Bucket, cfg.Prefix), nil
}

// NewWithClient wraps an existing client. An empty prefix uses
// DefaultPrefix.
func NewWithClient(client *s3.Client, bucket, prefix string) *Replica {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Replica{client: client, bucket: bucket, prefix: prefix}
}

func (r *Replica) objectKey(key string) string {
	return r.prefix + key + suffix
}

// MergeSet reads the current object, overlays fields, and writes it back.
func (r *Replica) MergeSet(ctx context.Context, key string, fields map[string]any) error {
	doc, err := r.get(ctx, r.objectKey(key))
	switch {
	case isNotFound(err):
		doc = make(map[string]any, len(fields))
	case err != nil:
		return fmt.Errorf("read %s: %w", key, err)
	}
	maps.Copy(doc, fields)

	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	objKey := r.objectKey(key)
	_, err = r.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      &r.bucket,
		Key:         &objKey,
		Body:        bytes.NewReader(body),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}

// GetAll lists every object under the prefix and reads each one.
func (r *Replica) GetAll(ctx context.Context) ([]replication.Document, error) {
	var keys []string
	var token *string
	for {
		out, err := r.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            &r.bucket,
			Prefix:            &r.prefix,
			ContinuationToken: token,
		})
		if err != nil {
			return nil, fmt.Errorf("list objects: %w", err)
		}
		for _, obj := range out.Contents {
			k := aws.ToString(obj.Key)
			if strings.HasSuffix(k, suffix) {
				keys = append(keys, k)
			}
		}
		if aws.ToBool(out.IsTruncated) && out.NextContinuationToken != nil {
			token = out.NextContinuationToken
			continue
		}
		break
	}
	sort.Strings(keys)

	docs := make([]replication.Document, 0, len(keys))
	for _, k := range keys {
		fields, err := r.get(ctx, k)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", k, err)
		}
		docs = append(docs, replication.Document{
			Key:    strings.TrimSuffix(strings.TrimPrefix(k, r.prefix), suffix),
			Fields: fields,
		})
	}
	return docs, nil
}

// get reads one object. Numbers decode as json.Number so integer fields
// keep full precision.
func (r *Replica) get(ctx context.Context, objKey string) (map[string]any, error) {
	out, err := r.client.GetObject(ctx, &s3.GetObjectInput{Bucket: &r.bucket, Key: &objKey})
	if err != nil {
		return nil, err
	}
	defer out.Body.Close()

	dec := json.NewDecoder(out.Body)
	dec.UseNumber()
	var doc map[string]any
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode object: %w", err)
	}
	if doc == nil {
		doc = make(map[string]any)
	}
	return doc, nil
}

func isNotFound(err error) bool {
	if err == nil {
		return false
	}
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var status interface{ HTTPStatusCode() int }
	return errors.As(err, &status) && status.HTTPStatusCode() == http.StatusNotFound
}
