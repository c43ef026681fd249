package secretstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/pkg/errors"
)

// HTTPStore talks to a bearer-token-authenticated key/value secret service
// over HTTP(S). Secrets are addressed by logical name under /v1/secrets/<name>.
type HTTPStore struct {
	endpoint string
	token    string
	client   *http.Client
}

// NewHTTPStore creates a secret store client for the given endpoint.
func NewHTTPStore(endpoint string, token string) *HTTPStore {
	return &HTTPStore{
		endpoint: endpoint,
		token:    token,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type secretPayload struct {
	Value string `json:"value"`
}

func (s *HTTPStore) secretURL(name string) string {
	return s.endpoint + "/v1/secrets/" + url.PathEscape(name)
}

func (s *HTTPStore) do(ctx context.Context, method string, u string, body interface{}, out interface{}) error {
	var reqBody *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "failed to marshal request body")
		}
		reqBody = bytes.NewReader(raw)
	} else {
		reqBody = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reqBody)
	if err != nil {
		return errors.Wrap(err, "failed to create HTTP request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.token)

	resp, err := s.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "failed to execute HTTP request")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("secret store returned status %d", resp.StatusCode)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return errors.Wrap(err, "failed to decode response body")
		}
	}

	return nil
}

// Put stores value under name, overwriting any existing value for that name.
func (s *HTTPStore) Put(ctx context.Context, name string, value string) error {
	if err := s.do(ctx, http.MethodPut, s.secretURL(name), secretPayload{Value: value}, nil); err != nil {
		return errors.Wrapf(err, "failed to put secret %s", name)
	}
	return nil
}

// Get retrieves the value stored under name.
func (s *HTTPStore) Get(ctx context.Context, name string) (string, error) {
	var payload secretPayload
	if err := s.do(ctx, http.MethodGet, s.secretURL(name), nil, &payload); err != nil {
		return "", errors.Wrapf(err, "failed to get secret %s", name)
	}
	return payload.Value, nil
}

// Rotate writes newValue under a fresh versioned name derived from
// previousName and returns that name. The previous name is left untouched so
// a rollback stays possible for at least one deployment cycle; retiring the
// old version is an explicit operator action, never part of Rotate.
func (s *HTTPStore) Rotate(ctx context.Context, newValue string, previousName string) (string, error) {
	newName := fmt.Sprintf("%s.v%d", previousName, time.Now().Unix())

	if err := s.Put(ctx, newName, newValue); err != nil {
		return "", errors.Wrap(err, "failed to write rotated secret")
	}

	// Read-back check before the new name is handed out as authoritative.
	stored, err := s.Get(ctx, newName)
	if err != nil {
		return "", errors.Wrap(err, "failed to verify rotated secret")
	}
	if stored != newValue {
		return "", errors.New("rotated secret read-back mismatch")
	}

	return newName, nil
}

var _ Store = (*HTTPStore)(nil)
