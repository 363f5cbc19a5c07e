// Package transcription turns a call recording URL into transcript text
// through an asynchronous speech-to-text service.
package transcription

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	json "github.com/goccy/go-json"

	"collection-qa-go/internal/config"
	"collection-qa-go/internal/logger"
)

const (
	callType        = "PNS"
	requestTimeout  = 12 * time.Second
	maxRequestRetry = 12 * time.Second
)

// MockTranscript is returned when the client runs in mock mode.
const MockTranscript = "[00:00.000 --> 00:06.000] Selamat pagi, saya Rina dari BFI Finance. Apakah benar dengan Bapak Budi? " +
	"[00:06.000 --> 00:12.000] Iya benar. Angsuran Bapak sebesar Rp 1.250.000 sudah jatuh tempo. " +
	"[00:12.000 --> 00:18.000] Iya mbak, saya bayar tanggal 8."

var ErrTimeout = errors.New("transcription timeout")

type publishResponse struct {
	Code   int    `json:"Code"`
	Status string `json:"Status"`
	Data   struct {
		MediaID          string `json:"MediaId"`
		Status           string `json:"Status"`
		TranscriptionURL string `json:"TranscriptionURL"`
	} `json:"Data"`
	Reason string `json:"Reason,omitempty"`
}

type statusResponse struct {
	Code   int    `json:"Code"`
	Status string `json:"Status"`
	Data   struct {
		Status               string `json:"Status"`
		TranscriptionTextURL string `json:"TranscriptionTextURL"`
	} `json:"Data"`
	Reason string `json:"Reason,omitempty"`
}

type Client struct {
	baseURL      string
	apiKey       string
	pollInterval time.Duration
	timeout      time.Duration
	mock         bool
	http         *http.Client
	log          *logger.Logger
}

func New(cfg config.Transcription, log *logger.Logger) *Client {
	return &Client{
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:       cfg.APIKey,
		pollInterval: time.Duration(cfg.PollIntervalSeconds) * time.Second,
		timeout:      time.Duration(cfg.TimeoutSeconds) * time.Second,
		mock:         cfg.Mock,
		http:         &http.Client{Timeout: requestTimeout},
		log:          log.With("component", "transcription"),
	}
}

// Transcribe publishes audioURL, polls until the job finishes and downloads
// the transcript text.
func (c *Client) Transcribe(ctx context.Context, audioURL string) (string, error) {
	if c.mock {
		return MockTranscript, nil
	}
	if c.baseURL == "" {
		return "", errors.New("transcription.base_url not set")
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	mediaID, ready, err := c.publish(ctx, audioURL)
	if err != nil {
		return "", err
	}
	if ready == "" {
		if ready, err = c.poll(ctx, mediaID); err != nil {
			return "", err
		}
	}
	c.log.WithField("media_id", mediaID).Info("downloading transcript")
	return c.download(ctx, ready)
}

// publish returns either a media id to poll or, when the service already
// has the transcript, its download URL.
func (c *Client) publish(ctx context.Context, audioURL string) (string, string, error) {
	var b bytes.Buffer
	w := multipart.NewWriter(&b)
	_ = w.WriteField("callRecordingLink", audioURL)
	_ = w.WriteField("callType", callType)
	if err := w.Close(); err != nil {
		return "", "", err
	}

	var resp publishResponse
	err := c.doJSON(ctx, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/transcribe", bytes.NewReader(b.Bytes()))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", w.FormDataContentType())
		return req, nil
	}, &resp)
	if err != nil {
		return "", "", err
	}
	if resp.Code != http.StatusOK {
		return "", "", fmt.Errorf("transcribe publish error: code=%d reason=%s", resp.Code, resp.Reason)
	}
	if resp.Data.TranscriptionURL != "" && strings.EqualFold(resp.Data.Status, "success") {
		return resp.Data.MediaID, resp.Data.TranscriptionURL, nil
	}
	if resp.Data.MediaID == "" {
		return "", "", errors.New("transcribe publish returned no media id")
	}
	return resp.Data.MediaID, "", nil
}

func (c *Client) poll(ctx context.Context, mediaID string) (string, error) {
	u := c.baseURL + "/getstatus?" + url.Values{"mediaId": {mediaID}}.Encode()
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return "", ErrTimeout
			}
			return "", ctx.Err()
		case <-ticker.C:
		}

		var s statusResponse
		err := c.doJSON(ctx, func() (*http.Request, error) {
			return http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		}, &s)
		if err != nil {
			c.log.WithError(err).Warn("status check failed")
			continue
		}
		switch s.Data.Status {
		case "Success":
			return s.Data.TranscriptionTextURL, nil
		case "Failed":
			return "", fmt.Errorf("transcription failed: %s", s.Reason)
		}
	}
}

func (c *Client) download(ctx context.Context, u string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("download failed (%d): %s", resp.StatusCode, string(b))
	}
	return string(b), nil
}

// doJSON retries transport errors, 5xx and undecodable bodies. A fresh
// request is built per attempt so the body can be re-read.
func (c *Client) doJSON(ctx context.Context, build func() (*http.Request, error), target any) error {
	var lastErr error
	op := func() error {
		req, err := build()
		if err != nil {
			return backoff.Permanent(err)
		}
		if c.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.apiKey)
		}
		resp, err := c.http.Do(req)
		if err != nil {
			lastErr = err
			return err
		}
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		if resp.StatusCode >= 500 {
			lastErr = fmt.Errorf("server error: %s", string(body))
			return lastErr
		}
		if len(body) == 0 {
			lastErr = errors.New("empty body")
			return lastErr
		}
		if err := json.Unmarshal(body, target); err != nil {
			lastErr = fmt.Errorf("json decode error: %v body=%s", err, string(body))
			return lastErr
		}
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = maxRequestRetry
	if err := backoff.Retry(op, backoff.WithContext(bo, ctx)); err != nil {
		if lastErr != nil {
			return lastErr
		}
		return err
	}
	return nil
}
