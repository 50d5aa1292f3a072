package assets

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	objects map[string]string
	types   map[string]string
	putErr  error
}

func newMemStore() *memStore {
	return &memStore{objects: map[string]string{}, types: map[string]string{}}
}

func (m *memStore) Put(_ context.Context, key string, r io.Reader, _ int64, contentType string) error {
	if m.putErr != nil {
		return m.putErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.objects[key] = string(data)
	m.types[key] = contentType
	return nil
}

func (m *memStore) PresignedURL(_ context.Context, key string, expiry time.Duration) (string, error) {
	return "https://objects.test/" + key + "?ttl=" + expiry.String(), nil
}

func (m *memStore) Remove(_ context.Context, key string) error {
	delete(m.objects, key)
	return nil
}

func TestUpload(t *testing.T) {
	store := newMemStore()
	svc := NewService(store, time.Hour, zerolog.Nop())
	svc.now = func() time.Time { return time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC) }

	asset, err := svc.Upload(context.Background(), "owner-1", "sec_1", "../notes/plan.pdf", "", strings.NewReader("pdf"), 3)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(asset.ID, "ast_"))
	assert.Equal(t, "plan.pdf", asset.Name)
	assert.Equal(t, "application/pdf", asset.Type)
	assert.Equal(t, int64(3), asset.Size)
	require.NotNil(t, asset.UploadedAt)
	assert.Equal(t, 2025, asset.UploadedAt.Year())

	key := ObjectKey("owner-1", "sec_1", asset.ID, "plan.pdf")
	assert.Equal(t, "pdf", store.objects[key])
	assert.Equal(t, "https://objects.test/"+key+"?ttl=1h0m0s", asset.URL)

	require.NoError(t, svc.Delete(context.Background(), "owner-1", "sec_1", asset))
	assert.Empty(t, store.objects)
}

func TestUploadRejects(t *testing.T) {
	store := newMemStore()
	svc := NewService(store, 0, zerolog.Nop())
	ctx := context.Background()

	_, err := svc.Upload(ctx, "o", "s", "a.txt", "", strings.NewReader(""), 0)
	assert.ErrorIs(t, err, ErrEmptyUpload)

	_, err = svc.Upload(ctx, "o", "s", "a.txt", "", strings.NewReader("x"), MaxUploadBytes+1)
	assert.ErrorIs(t, err, ErrTooLarge)

	store.putErr = errors.New("bucket gone")
	_, err = svc.Upload(ctx, "o", "s", "a.bin", "", strings.NewReader("x"), 1)
	assert.ErrorContains(t, err, "bucket gone")
	assert.Equal(t, DefaultURLExpiry, svc.expiry)
}

func TestRefresh(t *testing.T) {
	svc := NewService(newMemStore(), time.Minute, zerolog.Nop())
	asset, err := svc.Upload(context.Background(), "o", "s", "a.bin", "application/x-custom", strings.NewReader("x"), 1)
	require.NoError(t, err)
	assert.Equal(t, "application/x-custom", asset.Type)

	asset.URL = "stale"
	fresh, err := svc.Refresh(context.Background(), "o", "s", asset)
	require.NoError(t, err)
	assert.Contains(t, fresh.URL, "/o/s/"+asset.ID+"/a.bin")
}

func TestObjectKey(t *testing.T) {
	assert.Equal(t, "team_a/_/ast_1/file", ObjectKey("team/a", "..", "ast_1", ""))
	assert.Equal(t, "o/s/id/x.png", ObjectKey(" o ", "s", "id", `C:\tmp\x.png`))
}
