// Package gcs wraps the Cloud Storage client with object listing and
// signed-URL helpers for buckets that receive pipeline exports.
package gcs

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/storage"
	"github.com/charmbracelet/log"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// Config describes a storage client before it is connected.
type Config struct {
	// CredentialsFile optionally points at service account JSON
	// credentials. Signed URLs require a key, so ambient credentials
	// without one can list objects but not sign.
	CredentialsFile string
}

// Client wraps a Cloud Storage client.
type Client struct {
	gcs    *storage.Client
	logger *log.Logger
}

// Connect creates the Cloud Storage client.
func Connect(ctx context.Context, cfg Config, logger *log.Logger, opts ...option.ClientOption) (*Client, error) {
	if logger == nil {
		logger = log.Default()
	}
	if cfg.CredentialsFile != "" {
		opts = append([]option.ClientOption{option.WithCredentialsFile(cfg.CredentialsFile)}, opts...)
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("connecting to cloud storage: %w", err)
	}
	return &Client{gcs: client, logger: logger}, nil
}

// Close releases the underlying client.
func (c *Client) Close() error {
	return c.gcs.Close()
}

// ListObjects lists the object names in bucket that begin with prefix.
// With a delimiter the listing is restricted to the "files" directly under
// prefix and the sub-"folders" are returned as prefixes.
func (c *Client) ListObjects(ctx context.Context, bucket, prefix, delimiter string) (names, prefixes []string, err error) {
	it := c.gcs.Bucket(bucket).Objects(ctx, &storage.Query{Prefix: prefix, Delimiter: delimiter})
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			c.logger.Error("Listing objects failed", "op", "list_objects", "bucket", bucket, "prefix", prefix, "error", err)
			return nil, nil, err
		}
		if attrs.Prefix != "" {
			prefixes = append(prefixes, attrs.Prefix)
			continue
		}
		names = append(names, attrs.Name)
	}
	return names, prefixes, nil
}

// SignedURL returns a V4 GET URL for one object, valid for expiry.
func (c *Client) SignedURL(bucket, object string, expiry time.Duration) (string, error) {
	url, err := c.gcs.Bucket(bucket).SignedURL(object, &storage.SignedURLOptions{
		Scheme:  storage.SigningSchemeV4,
		Method:  "GET",
		Expires: time.Now().Add(expiry),
	})
	if err != nil {
		c.logger.Error("Signing URL failed", "op", "signed_url", "bucket", bucket, "object", object, "error", err)
		return "", err
	}
	return url, nil
}

// SignedURLs returns V4 GET URLs for every object in bucket under prefix.
func (c *Client) SignedURLs(ctx context.Context, bucket, prefix string, expiry time.Duration) ([]string, error) {
	names, _, err := c.ListObjects(ctx, bucket, prefix, "")
	if err != nil {
		return nil, err
	}
	urls := make([]string, 0, len(names))
	for _, name := range names {
		url, err := c.SignedURL(bucket, name, expiry)
		if err != nil {
			return nil, err
		}
		urls = append(urls, url)
	}
	return urls, nil
}
