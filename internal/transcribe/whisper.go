package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const defaultWhisperURL = "http://127.0.0.1:8080"

// talks to a self-hosted whisper.cpp server (whisper-server)
type WhisperCppTranscriber struct {
	baseURL    string
	httpClient *http.Client
	options    Options
}

func NewWhisperCppTranscriber(opts Options) (*WhisperCppTranscriber, error) {
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = defaultWhisperURL
	}
	if !strings.HasPrefix(baseURL, "http://") && !strings.HasPrefix(baseURL, "https://") {
		return nil, fmt.Errorf("invalid whisper server URL: %s", baseURL)
	}

	return &WhisperCppTranscriber{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			// long files take a while on CPU
			Timeout: 30 * time.Minute,
		},
		options: opts.withDefaults(),
	}, nil
}

// sends one audio file to /inference and parses the verbose_json reply
func (t *WhisperCppTranscriber) Transcribe(ctx context.Context, audioPath string) (*Result, error) {
	body, contentType, err := t.buildForm(audioPath)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/inference", body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("whisper server request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("whisper server error (status %d): %s", resp.StatusCode, truncateString(string(data), 200))
	}

	verbose, err := decodeVerbose(data)
	if err != nil {
		return nil, err
	}

	segments, err := parseVerboseJSONResponse(string(data), verbose.Duration)
	if err != nil {
		return nil, err
	}

	language := t.options.Language
	if t.options.Task == TaskTranslate {
		language = "en"
	} else if verbose.Language != "" {
		language = verbose.Language
	}

	return &Result{
		Segments: segments,
		Language: language,
		Duration: secondsToDuration(verbose.Duration),
	}, nil
}

func (t *WhisperCppTranscriber) buildForm(audioPath string) (io.Reader, string, error) {
	file, err := os.Open(audioPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, "", fmt.Errorf("audio file not found: %s", audioPath)
		}
		return nil, "", fmt.Errorf("failed to open audio file: %w", err)
	}
	defer file.Close()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("file", filepath.Base(audioPath))
	if err != nil {
		return nil, "", fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, "", fmt.Errorf("failed to copy audio data: %w", err)
	}

	fields := [][2]string{
		{"response_format", "verbose_json"},
		{"temperature", "0.0"},
		{"translate", fmt.Sprint(t.options.Task == TaskTranslate)},
	}
	if t.options.Language != "" && t.options.Language != "auto" {
		fields = append(fields, [2]string{"language", t.options.Language})
	}
	if t.options.Prompt != "" {
		fields = append(fields, [2]string{"prompt", t.options.Prompt})
	}
	for _, f := range fields {
		if err := writer.WriteField(f[0], f[1]); err != nil {
			return nil, "", fmt.Errorf("failed to write form field %s: %w", f[0], err)
		}
	}

	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to close form: %w", err)
	}

	return &buf, writer.FormDataContentType(), nil
}

func decodeVerbose(data []byte) (*whisperVerboseResponse, error) {
	var v whisperVerboseResponse
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("failed to parse verbose_json response: %w", err)
	}
	return &v, nil
}
