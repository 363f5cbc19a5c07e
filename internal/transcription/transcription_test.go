package transcription

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"collection-qa-go/internal/config"
	"collection-qa-go/internal/logger"
)

func newTestClient(baseURL string) *Client {
	c := New(config.Transcription{BaseURL: baseURL, APIKey: "tk", TimeoutSeconds: 5}, logger.Discard())
	c.pollInterval = 10 * time.Millisecond
	return c
}

func TestTranscribePollsUntilSuccess(t *testing.T) {
	var polls int32
	mux := http.NewServeMux()
	var srv *httptest.Server
	mux.HandleFunc("/transcribe", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer tk", r.Header.Get("Authorization"))
		assert.Equal(t, "https://cdn.example/call.wav", r.FormValue("callRecordingLink"))
		assert.Equal(t, "PNS", r.FormValue("callType"))
		io.WriteString(w, `{"Code":200,"Status":"OK","Data":{"MediaId":"m-1","Status":"Queued"}}`)
	})
	mux.HandleFunc("/getstatus", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "m-1", r.URL.Query().Get("mediaId"))
		if atomic.AddInt32(&polls, 1) < 3 {
			io.WriteString(w, `{"Code":200,"Data":{"Status":"Processing"}}`)
			return
		}
		io.WriteString(w, `{"Code":200,"Data":{"Status":"Success","TranscriptionTextURL":"`+srv.URL+`/text/m-1"}}`)
	})
	mux.HandleFunc("/text/m-1", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "[00:00.000 --> 00:02.000] Halo")
	})
	srv = httptest.NewServer(mux)
	defer srv.Close()

	text, err := newTestClient(srv.URL).Transcribe(context.Background(), "https://cdn.example/call.wav")
	require.NoError(t, err)
	assert.Equal(t, "[00:00.000 --> 00:02.000] Halo", text)
	assert.Equal(t, int32(3), atomic.LoadInt32(&polls))
}

func TestTranscribeAlreadyAvailable(t *testing.T) {
	mux := http.NewServeMux()
	var srv *httptest.Server
	mux.HandleFunc("/transcribe", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"Code":200,"Data":{"MediaId":"m-2","Status":"Success","TranscriptionURL":"`+srv.URL+`/text"}}`)
	})
	mux.HandleFunc("/getstatus", func(w http.ResponseWriter, r *http.Request) {
		t.Error("status should not be polled")
	})
	mux.HandleFunc("/text", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "ready")
	})
	srv = httptest.NewServer(mux)
	defer srv.Close()

	text, err := newTestClient(srv.URL).Transcribe(context.Background(), "u")
	require.NoError(t, err)
	assert.Equal(t, "ready", text)
}

func TestTranscribeFailedJob(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/transcribe", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"Code":200,"Data":{"MediaId":"m-3","Status":"Queued"}}`)
	})
	mux.HandleFunc("/getstatus", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"Code":200,"Data":{"Status":"Failed"},"Reason":"unsupported codec"}`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	_, err := newTestClient(srv.URL).Transcribe(context.Background(), "u")
	assert.EqualError(t, err, "transcription failed: unsupported codec")
}

func TestTranscribePublishRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"Code":400,"Reason":"bad link"}`)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Transcribe(context.Background(), "u")
	assert.EqualError(t, err, "transcribe publish error: code=400 reason=bad link")
}

func TestTranscribeTimeout(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/transcribe", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"Code":200,"Data":{"MediaId":"m-4","Status":"Queued"}}`)
	})
	mux.HandleFunc("/getstatus", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"Code":200,"Data":{"Status":"Queued"}}`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := newTestClient(srv.URL)
	c.timeout = 100 * time.Millisecond
	_, err := c.Transcribe(context.Background(), "u")
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestTranscribeMockAndUnconfigured(t *testing.T) {
	text, err := New(config.Transcription{Mock: true}, logger.Discard()).Transcribe(context.Background(), "u")
	require.NoError(t, err)
	assert.Equal(t, MockTranscript, text)

	_, err = New(config.Transcription{}, logger.Discard()).Transcribe(context.Background(), "u")
	assert.Error(t, err)
}
