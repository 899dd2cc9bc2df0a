package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Compile-time check that Client implements Transcriber.
var _ Transcriber = (*Client)(nil)

const defaultPollInterval = 3 * time.Second

// Client communicates with an AssemblyAI-compatible transcription API:
// upload the audio, create a transcript job, then poll until it completes.
type Client struct {
	baseURL      string
	apiKey       string
	httpClient   *http.Client
	pollInterval time.Duration
}

// New creates a Client targeting the given API base URL (e.g.
// https://api.assemblyai.com/v2) authenticated with apiKey.
func New(baseURL, apiKey string) *Client {
	return &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		apiKey:       apiKey,
		httpClient:   &http.Client{Timeout: 60 * time.Second},
		pollInterval: defaultPollInterval,
	}
}

type uploadResponse struct {
	UploadURL string `json:"upload_url"`
}

type transcriptRequest struct {
	AudioURL string `json:"audio_url"`
}

// transcriptResponse mirrors the transcript job resource. Status moves
// through queued -> processing -> completed|error.
type transcriptResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Text   string `json:"text"`
	Error  string `json:"error"`
}

// Transcribe uploads the audio stream, creates a transcript job, and polls
// until the job completes. The ctx deadline bounds the whole operation.
func (c *Client) Transcribe(ctx context.Context, audio io.Reader) (string, error) {
	uploadURL, err := c.upload(ctx, audio)
	if err != nil {
		return "", err
	}

	jobID, err := c.createJob(ctx, uploadURL)
	if err != nil {
		return "", err
	}

	for {
		job, err := c.getJob(ctx, jobID)
		if err != nil {
			return "", err
		}
		switch job.Status {
		case "completed":
			return job.Text, nil
		case "error":
			return "", fmt.Errorf("transcription job %s failed: %s", jobID, job.Error)
		}

		select {
		case <-ctx.Done():
			return "", fmt.Errorf("waiting for transcription job %s: %w", jobID, ctx.Err())
		case <-time.After(c.pollInterval):
		}
	}
}

func (c *Client) upload(ctx context.Context, audio io.Reader) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/upload", audio)
	if err != nil {
		return "", fmt.Errorf("creating upload request: %w", err)
	}
	req.Header.Set("Authorization", c.apiKey)
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("uploading audio: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("upload: unexpected status %d", resp.StatusCode)
	}

	var result uploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decoding upload response: %w", err)
	}
	if result.UploadURL == "" {
		return "", fmt.Errorf("upload: empty upload_url")
	}
	return result.UploadURL, nil
}

func (c *Client) createJob(ctx context.Context, audioURL string) (string, error) {
	body, err := json.Marshal(transcriptRequest{AudioURL: audioURL})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/transcript", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating transcript request: %w", err)
	}
	req.Header.Set("Authorization", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("creating transcript job: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("transcript: unexpected status %d", resp.StatusCode)
	}

	var result transcriptResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decoding transcript response: %w", err)
	}
	if result.ID == "" {
		return "", fmt.Errorf("transcript: empty job id")
	}
	return result.ID, nil
}

func (c *Client) getJob(ctx context.Context, id string) (transcriptResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/transcript/"+id, nil)
	if err != nil {
		return transcriptResponse{}, fmt.Errorf("creating poll request: %w", err)
	}
	req.Header.Set("Authorization", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return transcriptResponse{}, fmt.Errorf("polling transcript job %s: %w", id, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return transcriptResponse{}, fmt.Errorf("poll %s: unexpected status %d", id, resp.StatusCode)
	}

	var result transcriptResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return transcriptResponse{}, fmt.Errorf("decoding poll response: %w", err)
	}
	return result, nil
}
