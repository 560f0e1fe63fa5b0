package delivery

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSenderSignsBody(t *testing.T) {
	t.Parallel()

	var gotSig, gotType string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSig = r.Header.Get(SignatureHeader)
		gotType = r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(srv.Close)

	body := []byte(`{"title":"x"}`)
	require.NoError(t, NewSender(time.Second, "s3cret").Post(context.Background(), srv.URL, body))

	assert.Equal(t, "sha256="+Sign("s3cret", body), gotSig)
	assert.Equal(t, "application/json", gotType)
	assert.Equal(t, body, gotBody)
}

func TestSenderWithoutSecret(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get(SignatureHeader))
	}))
	t.Cleanup(srv.Close)

	require.NoError(t, NewSender(time.Second, "").Post(context.Background(), srv.URL, []byte("{}")))
}

func TestSenderStatusClassification(t *testing.T) {
	t.Parallel()

	tests := []struct {
		status    int
		permanent bool
	}{
		{http.StatusBadRequest, true},
		{http.StatusNotFound, true},
		{http.StatusRequestTimeout, false},
		{http.StatusTooManyRequests, false},
		{http.StatusInternalServerError, false},
		{http.StatusBadGateway, false},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			err := NewSender(time.Second, "").Post(context.Background(), srv.URL, []byte("{}"))
			require.Error(t, err)
			assert.Equal(t, tt.permanent, IsPermanent(err))

			var serr *StatusError
			require.ErrorAs(t, err, &serr)
			assert.Equal(t, tt.status, serr.StatusCode)
		})
	}
}

func TestSenderTransportErrorIsRetryable(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	err := NewSender(time.Second, "").Post(context.Background(), url, []byte("{}"))
	require.Error(t, err)
	assert.False(t, IsPermanent(err))
}
