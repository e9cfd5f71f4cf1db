package transcribe

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/mgpai22/vidsrt/internal/audio"
	"github.com/mgpai22/vidsrt/internal/subtitle"
)

const defaultOpenAIModel = "whisper-1"

// implements Transcriber interface using OpenAI Audio API
type OpenAITranscriber struct {
	client  openai.Client
	model   string
	options Options
}

// segment from a Whisper verbose_json response
type whisperSegment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// verbose_json response, shared by the OpenAI API and whisper.cpp server
type whisperVerboseResponse struct {
	Text     string           `json:"text"`
	Segments []whisperSegment `json:"segments"`
	Language string           `json:"language"`
	Duration float64          `json:"duration"`
}

func NewOpenAITranscriber(apiKey string, opts Options) (*OpenAITranscriber, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key is required")
	}

	reqOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if opts.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(opts.BaseURL))
	}

	model := opts.Model
	if model == "" {
		model = defaultOpenAIModel
	}

	return &OpenAITranscriber{
		client:  openai.NewClient(reqOpts...),
		model:   model,
		options: opts.withDefaults(),
	}, nil
}

// transcribes single audio file
func (t *OpenAITranscriber) Transcribe(ctx context.Context, audioPath string) (*Result, error) {
	file, err := os.Open(audioPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("audio file not found: %s", audioPath)
		}
		return nil, fmt.Errorf("failed to open audio file: %w", err)
	}
	defer file.Close()

	// used only when the response carries no duration
	fallback, _ := audio.WAVDuration(audioPath)

	var raw, text string
	language := t.options.Language

	if t.options.Task == TaskTranslate {
		params := openai.AudioTranslationNewParams{
			File:           file,
			Model:          openai.AudioModel(t.model),
			ResponseFormat: openai.AudioTranslationNewParamsResponseFormatVerboseJSON,
		}
		if t.options.Prompt != "" {
			params.Prompt = openai.String(t.options.Prompt)
		}

		resp, err := t.client.Audio.Translations.New(ctx, params)
		if err != nil {
			return nil, fmt.Errorf("translation failed: %w", err)
		}
		raw, text, language = resp.RawJSON(), resp.Text, "en"
	} else {
		params := openai.AudioTranscriptionNewParams{
			File:                   file,
			Model:                  openai.AudioModel(t.model),
			ResponseFormat:         openai.AudioResponseFormatVerboseJSON,
			TimestampGranularities: []string{"segment"},
			Language:               openai.String(t.options.Language),
		}
		if t.options.Prompt != "" {
			params.Prompt = openai.String(t.options.Prompt)
		}

		resp, err := t.client.Audio.Transcriptions.New(ctx, params)
		if err != nil {
			return nil, fmt.Errorf("transcription failed: %w", err)
		}
		raw, text = resp.RawJSON(), resp.Text
	}

	segments, err := parseVerboseJSONResponse(raw, fallback.Seconds())
	if err != nil {
		text = strings.TrimSpace(text)
		if text == "" {
			return nil, fmt.Errorf("failed to parse transcription: %w", err)
		}
		segments = []subtitle.Segment{{Start: 0, End: fallback.Seconds(), Text: text}}
	}

	return &Result{
		Segments: segments,
		Language: language,
		Duration: fallback,
	}, nil
}

// parses a verbose_json body into segments. A body with text but no
// segments becomes one segment spanning the whole clip.
func parseVerboseJSONResponse(rawJSON string, fallbackDuration float64) ([]subtitle.Segment, error) {
	if rawJSON == "" {
		return nil, fmt.Errorf("empty response")
	}

	var verboseResp whisperVerboseResponse
	if err := json.Unmarshal([]byte(rawJSON), &verboseResp); err != nil {
		return nil, fmt.Errorf("failed to parse verbose_json response: %w", err)
	}

	if len(verboseResp.Segments) == 0 {
		text := strings.TrimSpace(verboseResp.Text)
		if text == "" {
			return nil, fmt.Errorf("no segments or text in response")
		}
		end := fallbackDuration
		if verboseResp.Duration > 0 {
			end = verboseResp.Duration
		}
		return []subtitle.Segment{{Start: 0, End: end, Text: text}}, nil
	}

	segments := make([]subtitle.Segment, 0, len(verboseResp.Segments))
	for _, seg := range verboseResp.Segments {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		segments = append(segments, subtitle.Segment{
			Start: seg.Start,
			End:   seg.End,
			Text:  text,
		})
	}

	return segments, nil
}

func secondsToDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
