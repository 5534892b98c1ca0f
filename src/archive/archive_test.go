package archive

import (
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/luminagoods/site/src/config"
	"github.com/luminagoods/site/src/s3dev"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewsletterKey(t *testing.T) {
	at := time.Date(2026, 4, 9, 8, 30, 5, 0, time.UTC)
	key := NewsletterKey("Spring Issue: Kilns & Glazes!", at)

	assert.True(t, strings.HasPrefix(key, "newsletters/2026/2026-04-09T083005Z-spring-issue-kilns-glazes-"), key)
	assert.True(t, strings.HasSuffix(key, ".html"))
	assert.NotEqual(t, key, NewsletterKey("Spring Issue: Kilns & Glazes!", at))

	assert.Contains(t, NewsletterKey("!!!", at), "-issue-")
}

func TestUnconfiguredArchive(t *testing.T) {
	a, err := New(context.Background(), config.ArchiveConfig{})
	require.NoError(t, err)
	assert.Nil(t, a)

	key, err := a.PutNewsletter(context.Background(), "Hi", "<p>hi</p>", time.Now())
	assert.NoError(t, err)
	assert.Empty(t, key)
}

func TestPutNewsletterCreatesBucket(t *testing.T) {
	dir := t.TempDir()
	srv := httptest.NewServer(s3dev.Handler(dir))
	defer srv.Close()

	a, err := New(context.Background(), config.ArchiveConfig{
		Bucket:    "newsletters",
		Region:    "us-east-1",
		Endpoint:  srv.URL,
		AccessKey: "dev",
		SecretKey: "dev",
	})
	require.NoError(t, err)
	require.NotNil(t, a)

	key, err := a.PutNewsletter(context.Background(), "Issue 1", "<p>first</p>", time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	stored, err := os.ReadFile(filepath.Join(dir, "newsletters", strings.ReplaceAll(key, "/", "~")))
	require.NoError(t, err)
	assert.Equal(t, "<p>first</p>", string(stored))
}
