package service_test

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/dirigovotes/dirigo/internal/model"
	"github.com/dirigovotes/dirigo/internal/repository"
	"github.com/dirigovotes/dirigo/internal/service"
	"github.com/dirigovotes/dirigo/internal/storage"
	"github.com/dirigovotes/dirigo/internal/testutil"
	"github.com/dirigovotes/dirigo/internal/validation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (m *memoryStorage) Save(_ context.Context, path, _ string, body io.Reader) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[path] = data
	return nil
}

func (m *memoryStorage) Delete(_ context.Context, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, path)
	return nil
}

func (m *memoryStorage) URL(_ context.Context, path string) string {
	return "https://cdn.example.com/" + path
}

func (m *memoryStorage) keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.objects))
	for k := range m.objects {
		keys = append(keys, k)
	}
	return keys
}

// upload builds the multipart header a browser would send.
func upload(t *testing.T, filename string, content []byte) *multipart.FileHeader {
	t.Helper()

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("avatar", filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest("POST", "/api/profile/avatar", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	require.NoError(t, req.ParseMultipartForm(1<<20))
	return req.MultipartForm.File["avatar"][0]
}

var pngBytes = append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 64)...)

func TestAvatarUploadReplacesPrevious(t *testing.T) {
	ctx := context.Background()
	database := testutil.NewDB(t)
	user := testutil.CreateUser(t, database, "voter@example.com", model.RoleBasic)
	store := &memoryStorage{objects: map[string][]byte{}}
	avatars := service.NewAvatarService(repository.NewAvatarRepository(database), store)

	first, err := avatars.Upload(ctx, user.ID, upload(t, "me.png", pngBytes))
	require.NoError(t, err)
	assert.Equal(t, "image/png", first.MimeType)
	assert.Equal(t, []string{first.ObjectKey}, store.keys())

	second, err := avatars.Upload(ctx, user.ID, upload(t, "me2.png", pngBytes))
	require.NoError(t, err)
	assert.Equal(t, []string{second.ObjectKey}, store.keys())
	assert.Equal(t, "https://cdn.example.com/"+second.ObjectKey, avatars.URL(ctx, user.ID))

	require.NoError(t, avatars.Delete(ctx, user.ID))
	assert.Empty(t, store.keys())
	assert.Empty(t, avatars.URL(ctx, user.ID))
	assert.NoError(t, avatars.Delete(ctx, user.ID))
}

func TestAvatarUploadRejectsNonImage(t *testing.T) {
	database := testutil.NewDB(t)
	user := testutil.CreateUser(t, database, "voter@example.com", model.RoleBasic)
	avatars := service.NewAvatarService(repository.NewAvatarRepository(database), &memoryStorage{objects: map[string][]byte{}})

	_, err := avatars.Upload(context.Background(), user.ID, upload(t, "me.png", []byte("plain text, not a picture")))
	assert.True(t, validation.IsValidationError(err))
}

func TestAvatarStorageDisabled(t *testing.T) {
	database := testutil.NewDB(t)
	avatars := service.NewAvatarService(repository.NewAvatarRepository(database), nil)

	assert.False(t, avatars.Enabled())
	_, err := avatars.Upload(context.Background(), "someone", upload(t, "me.png", pngBytes))
	assert.ErrorIs(t, err, storage.ErrDisabled)
	assert.ErrorIs(t, avatars.Delete(context.Background(), "someone"), storage.ErrDisabled)
	assert.Empty(t, avatars.URL(context.Background(), "someone"))
}
