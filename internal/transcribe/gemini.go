package transcribe

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	"google.golang.org/genai"

	"github.com/mgpai22/vidsrt/internal/audio"
	"github.com/mgpai22/vidsrt/internal/subtitle"
)

const defaultGeminiModel = "gemini-2.5-flash"

var jsonFenceRegex = regexp.MustCompile("```(?:json)?\\s*")

// implements Transcriber interface using Google Gemini
type GeminiTranscriber struct {
	client  *genai.Client
	model   string
	options Options
}

// segment from Gemini's JSON response
type transcriptSegment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

func NewGeminiTranscriber(ctx context.Context, apiKey string, opts Options) (*GeminiTranscriber, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	model := opts.Model
	if model == "" {
		model = defaultGeminiModel
	}

	return &GeminiTranscriber{
		client:  client,
		model:   model,
		options: opts.withDefaults(),
	}, nil
}

// transcribes single audio file
func (t *GeminiTranscriber) Transcribe(ctx context.Context, audioPath string) (*Result, error) {
	if _, err := os.Stat(audioPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("audio file not found: %s", audioPath)
	}

	uploadedFile, err := t.client.Files.UploadFromPath(ctx, audioPath, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to upload audio file: %w", err)
	}

	defer func() {
		_, _ = t.client.Files.Delete(context.WithoutCancel(ctx), uploadedFile.Name, nil)
	}()

	parts := []*genai.Part{
		genai.NewPartFromText(buildTranscriptionPrompt(t.options)),
		genai.NewPartFromURI(uploadedFile.URI, uploadedFile.MIMEType),
	}
	contents := []*genai.Content{
		genai.NewContentFromParts(parts, genai.RoleUser),
	}

	resp, err := t.client.Models.GenerateContent(ctx, t.model, contents, nil)
	if err != nil {
		return nil, fmt.Errorf("transcription failed: %w", err)
	}

	segments, err := parseTranscriptionResponse(resp)
	if err != nil {
		return nil, fmt.Errorf("failed to parse transcription: %w", err)
	}

	language := t.options.Language
	if t.options.Task == TaskTranslate {
		language = "en"
	}

	duration, _ := audio.WAVDuration(audioPath)

	return &Result{
		Segments: segments,
		Language: language,
		Duration: duration,
	}, nil
}

// creates the prompt for transcription
func buildTranscriptionPrompt(opts Options) string {
	var sb strings.Builder

	sb.WriteString("Generate a detailed transcript of this audio. ")
	sb.WriteString("For each sentence or phrase, provide the start timestamp, end timestamp, and the exact text spoken. ")
	sb.WriteString("Format your response as a JSON array with objects containing 'start', 'end', and 'text' fields, ")
	sb.WriteString("where 'start' and 'end' are timestamps in seconds (as numbers). ")

	if opts.Language != "" {
		fmt.Fprintf(&sb, "The audio is in the language with code %q. ", opts.Language)
	}

	if opts.Task == TaskTranslate {
		sb.WriteString("Translate the text of every segment into English. ")
	}

	if opts.Prompt != "" {
		sb.WriteString(opts.Prompt)
		sb.WriteString(" ")
	}

	sb.WriteString("Return ONLY the JSON array, no other text or markdown formatting.")

	return sb.String()
}

// parses Gemini's response into segments
func parseTranscriptionResponse(resp *genai.GenerateContentResponse) ([]subtitle.Segment, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return nil, fmt.Errorf("empty response from Gemini")
	}

	var sb strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			sb.WriteString(part.Text)
		}
	}

	if sb.Len() == 0 {
		return nil, fmt.Errorf("no text in Gemini response")
	}

	transcript, err := extractTranscriptSegments(cleanJSONResponse(sb.String()))
	if err != nil {
		return nil, err
	}

	segments := make([]subtitle.Segment, 0, len(transcript))
	for _, ts := range transcript {
		text := strings.TrimSpace(ts.Text)
		if text == "" {
			continue
		}
		segments = append(segments, subtitle.Segment{
			Start: ts.Start,
			End:   ts.End,
			Text:  text,
		})
	}

	return segments, nil
}

// extractTranscriptSegments finds the first JSON value in s that holds a
// usable segment array. Models often wrap the array in prose or in an
// object under an arbitrary key, so every '[' and '{' is tried in turn.
func extractTranscriptSegments(s string) ([]transcriptSegment, error) {
	for i := 0; i < len(s); i++ {
		if s[i] != '[' && s[i] != '{' {
			continue
		}

		dec := json.NewDecoder(strings.NewReader(s[i:]))
		var v any
		if err := dec.Decode(&v); err != nil {
			continue
		}

		if segments, ok := findSegments(v); ok {
			return segments, nil
		}

		// skip past the value that was just decoded
		i += int(dec.InputOffset()) - 1
	}

	return nil, fmt.Errorf("no transcript segments in response: %s", truncateString(s, 200))
}

// walks a decoded JSON value looking for a segment array
func findSegments(v any) ([]transcriptSegment, bool) {
	switch val := v.(type) {
	case []any:
		data, err := json.Marshal(val)
		if err != nil {
			return nil, false
		}
		var segments []transcriptSegment
		if err := json.Unmarshal(data, &segments); err != nil {
			return nil, false
		}
		if !validateSegments(segments) {
			return nil, false
		}
		return segments, true

	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if segments, ok := findSegments(val[k]); ok {
				return segments, true
			}
		}
	}

	return nil, false
}

// true when at least one segment carries a timestamp or text
func validateSegments(segments []transcriptSegment) bool {
	for _, seg := range segments {
		if seg.Text != "" || seg.Start != 0 || seg.End != 0 {
			return true
		}
	}
	return false
}

// removes markdown formatting from the response
func cleanJSONResponse(s string) string {
	s = strings.TrimSpace(s)
	s = jsonFenceRegex.ReplaceAllString(s, "")
	s = strings.ReplaceAll(s, "```", "")
	return strings.TrimSpace(s)
}

// truncates a string to maxLen characters
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
