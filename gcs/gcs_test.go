package gcs

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
)

func TestConnect(t *testing.T) {
	ctx := context.Background()
	client, err := Connect(ctx, Config{}, nil, option.WithoutAuthentication())
	require.NoError(t, err)
	require.NotNil(t, client)
	assert.NoError(t, client.Close())
}

func TestConnectInvalidCredentialsFile(t *testing.T) {
	ctx := context.Background()
	client, err := Connect(ctx, Config{CredentialsFile: "/nonexistent/credentials.json"}, nil)
	assert.Error(t, err)
	assert.Nil(t, client)
}

func TestSignedURLWithoutKey(t *testing.T) {
	// Unauthenticated clients have no signing key; signing must fail
	// locally rather than produce an unusable URL.
	ctx := context.Background()
	client, err := Connect(ctx, Config{}, nil, option.WithoutAuthentication())
	require.NoError(t, err)
	defer client.Close()

	url, err := client.SignedURL("my-bucket", "reports/export.csv", 15*time.Minute)
	assert.Error(t, err)
	assert.Empty(t, url)
}
