package secretstore_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SafeMPC/claim-signer/internal/secretstore"
)

// fakeSecretService is an in-memory stand-in for the external KV service.
type fakeSecretService struct {
	mu      sync.Mutex
	token   string
	secrets map[string]string
}

func (f *fakeSecretService) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+f.token {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		name := strings.TrimPrefix(r.URL.Path, "/v1/secrets/")

		f.mu.Lock()
		defer f.mu.Unlock()

		switch r.Method {
		case http.MethodPut:
			var payload struct {
				Value string `json:"value"`
			}
			if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			f.secrets[name] = payload.Value
			w.WriteHeader(http.StatusNoContent)
		case http.MethodGet:
			value, ok := f.secrets[name]
			if !ok {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]string{"value": value})
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	})
}

func newFakeService(t *testing.T) (*fakeSecretService, *secretstore.HTTPStore) {
	t.Helper()
	fake := &fakeSecretService{token: "test-token", secrets: make(map[string]string)}
	server := httptest.NewServer(fake.handler())
	t.Cleanup(server.Close)
	return fake, secretstore.NewHTTPStore(server.URL, "test-token")
}

func TestPutThenGetReturnsIdenticalValue(t *testing.T) {
	_, store := newFakeService(t)

	require.NoError(t, store.Put(t.Context(), "signer-key", "super-secret"))

	value, err := store.Get(t.Context(), "signer-key")
	require.NoError(t, err)
	assert.Equal(t, "super-secret", value)
}

func TestGetMissingSecret(t *testing.T) {
	_, store := newFakeService(t)

	_, err := store.Get(t.Context(), "does-not-exist")
	assert.Error(t, err)
}

func TestRotateKeepsPreviousNameAddressable(t *testing.T) {
	_, store := newFakeService(t)

	require.NoError(t, store.Put(t.Context(), "signer-key", "old-value"))

	newName, err := store.Rotate(t.Context(), "new-value", "signer-key")
	require.NoError(t, err)
	assert.NotEqual(t, "signer-key", newName)

	// The rotated value lives under the new name.
	rotated, err := store.Get(t.Context(), newName)
	require.NoError(t, err)
	assert.Equal(t, "new-value", rotated)

	// The previous name still resolves to the previous value for rollback.
	previous, err := store.Get(t.Context(), "signer-key")
	require.NoError(t, err)
	assert.Equal(t, "old-value", previous)
}

func TestRejectsWrongBearerToken(t *testing.T) {
	fake := &fakeSecretService{token: "right-token", secrets: make(map[string]string)}
	server := httptest.NewServer(fake.handler())
	t.Cleanup(server.Close)

	store := secretstore.NewHTTPStore(server.URL, "wrong-token")
	err := store.Put(t.Context(), "signer-key", "value")
	assert.Error(t, err)
}
