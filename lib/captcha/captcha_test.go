package captcha

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSecrets map[string]string

func (f fakeSecrets) GetParameters() (map[string]string, error) {
	return f, nil
}

func (f fakeSecrets) GetSecretValue(ctx context.Context, name string) (string, error) {
	v, ok := f[name]
	if !ok {
		return "", errors.New("secret " + name + " not found")
	}
	return v, nil
}

func newVerifier(t *testing.T, handler http.HandlerFunc) *RecaptchaVerifier {
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	v := NewRecaptchaVerifier(fakeSecrets{"GOOGLE_PROJECT_ID": "project", "GOOGLE_RECAPTCHA_KEY": "key"}, logrus.New())
	v.URLFormat = server.URL + "/v1beta1/projects/%s/assessments?key=%s"
	return v
}

func Test_Verify_Valid(t *testing.T) {
	//Arrange
	var received assessmentRequest
	v := newVerifier(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1beta1/projects/project/assessments", r.URL.Path)
		assert.Equal(t, "key", r.URL.Query().Get("key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.Write([]byte(`{"tokenProperties":{"valid":true,"action":"login"},"score":0.9}`))
	})

	//Act
	ok, err := v.Verify(context.Background(), "site", "tok")

	//Assert
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "tok", received.Event.Token)
	assert.Equal(t, "site", received.Event.SiteKey)
}

func Test_Verify_InvalidToken(t *testing.T) {
	v := newVerifier(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"tokenProperties":{"valid":false,"invalidReason":"EXPIRED"}}`))
	})

	ok, err := v.Verify(context.Background(), "site", "tok")

	require.NoError(t, err)
	assert.False(t, ok)
}

func Test_Verify_Non2xx(t *testing.T) {
	v := newVerifier(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"tokenProperties":{"valid":true}}`))
	})

	ok, err := v.Verify(context.Background(), "site", "tok")

	require.NoError(t, err)
	assert.False(t, ok)
}

func Test_Verify_MalformedResponse(t *testing.T) {
	v := newVerifier(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json`))
	})

	ok, err := v.Verify(context.Background(), "site", "tok")

	assert.Error(t, err)
	assert.False(t, ok)
}

func Test_Verify_MissingInputsOrSecrets(t *testing.T) {
	calls := 0
	v := newVerifier(t, func(w http.ResponseWriter, r *http.Request) { calls++ })

	ok, err := v.Verify(context.Background(), "", "tok")
	assert.NoError(t, err)
	assert.False(t, ok)

	v.Secrets = fakeSecrets{}
	ok, err = v.Verify(context.Background(), "site", "tok")
	assert.ErrorContains(t, err, "project id")
	assert.False(t, ok)
	assert.Equal(t, 0, calls)
}
