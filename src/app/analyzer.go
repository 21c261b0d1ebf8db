package app

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// FallbackDescription marks a degraded analysis. Callers treat a result
// carrying exactly this description as "analysis unavailable", not an error.
const FallbackDescription = "Failed to generate description."

// Analysis is the normalized content-understanding result.
type Analysis struct {
	Tags        []string `json:"tags"`
	Description string   `json:"description"`
}

// ContentAnalyzer derives tags and a description from a media reference,
// which is either a local file path or an http(s) URL. Analyze never fails
// outward: every internal error degrades to the fallback result.
type ContentAnalyzer interface {
	Analyze(ctx context.Context, source string) Analysis
}

func fallbackAnalysis() Analysis {
	return Analysis{Tags: []string{}, Description: FallbackDescription}
}

// MimeTypeFor classifies a media reference by file extension. Unknown
// extensions come back as application/octet-stream, which the analyzer
// treats as unsupported.
func MimeTypeFor(path string) string {
	switch strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".") {
	case "jpg", "jpeg":
		return "image/jpeg"
	case "png":
		return "image/png"
	case "gif":
		return "image/gif"
	case "mp4":
		return "video/mp4"
	case "txt":
		return "text/plain"
	case "js":
		return "text/javascript"
	case "md":
		return "text/markdown"
	case "html":
		return "text/html"
	case "css":
		return "text/css"
	default:
		return "application/octet-stream"
	}
}

// GeminiAnalyzer talks to a Gemini-style generateContent endpoint. All
// provider coupling stays behind this type; the rest of the pipeline only
// sees Analysis values.
type GeminiAnalyzer struct {
	host         string
	apiKey       string
	model        string
	maxTextBytes int64
	httpClient   *http.Client
}

func NewGeminiAnalyzer(host, apiKey, model string, timeout time.Duration, maxTextBytes int64) *GeminiAnalyzer {
	return &GeminiAnalyzer{
		host:         strings.TrimRight(host, "/"),
		apiKey:       apiKey,
		model:        model,
		maxTextBytes: maxTextBytes,
		httpClient:   &http.Client{Timeout: timeout},
	}
}

type (
	geminiRequest struct {
		Contents         []geminiContent        `json:"contents"`
		GenerationConfig geminiGenerationConfig `json:"generationConfig"`
	}

	geminiContent struct {
		Parts []geminiPart `json:"parts"`
	}

	geminiPart struct {
		Text       string          `json:"text,omitempty"`
		InlineData *geminiBlob     `json:"inline_data,omitempty"`
		FileData   *geminiFileData `json:"file_data,omitempty"`
	}

	geminiBlob struct {
		MimeType string `json:"mime_type"`
		Data     string `json:"data"`
	}

	geminiFileData struct {
		FileURI  string `json:"file_uri"`
		MimeType string `json:"mime_type"`
	}

	geminiGenerationConfig struct {
		ResponseMimeType string          `json:"response_mime_type"`
		ResponseSchema   json.RawMessage `json:"response_schema"`
	}

	geminiResponse struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
	}

	geminiStagedFile struct {
		File struct {
			URI      string `json:"uri"`
			MimeType string `json:"mimeType"`
		} `json:"file"`
	}
)

// analysisSchema is the strict output contract the provider must satisfy:
// a tags array of strings and a description string, both required.
var analysisSchema = json.RawMessage(`{"type":"OBJECT","properties":{"tags":{"type":"ARRAY","items":{"type":"STRING"}},"description":{"type":"STRING"}},"required":["tags","description"]}`)

// Analyze classifies the source, runs the provider request for its media
// kind and normalizes the response. Any failure along the way is logged and
// converted to the fallback result.
func (g *GeminiAnalyzer) Analyze(ctx context.Context, source string) Analysis {
	parts, err := g.buildParts(ctx, source)
	if err != nil {
		log.Printf("error analyzing %s: %v", source, err)
		return fallbackAnalysis()
	}
	raw, err := g.generateContent(ctx, parts)
	if err != nil {
		log.Printf("error analyzing %s: %v", source, err)
		return fallbackAnalysis()
	}
	return normalizeAnalysis(raw)
}

// buildParts forks on the media kind. URL sources are fetched and inlined as
// image data; local files go inline (image), through the provider staging
// area (video) or straight into the prompt text (text).
func (g *GeminiAnalyzer) buildParts(ctx context.Context, source string) ([]geminiPart, error) {
	if strings.HasPrefix(source, "http") {
		data, err := g.fetchRemote(ctx, source)
		if err != nil {
			return nil, err
		}
		return []geminiPart{
			{InlineData: &geminiBlob{MimeType: "image/jpeg", Data: base64.StdEncoding.EncodeToString(data)}},
			{Text: "Describe this image and generate relevant tags."},
		}, nil
	}

	mimeType := MimeTypeFor(source)
	switch {
	case strings.HasPrefix(mimeType, "image/"):
		data, err := os.ReadFile(source)
		if err != nil {
			return nil, err
		}
		return []geminiPart{
			{InlineData: &geminiBlob{MimeType: mimeType, Data: base64.StdEncoding.EncodeToString(data)}},
			{Text: "Describe this image."},
		}, nil
	case strings.HasPrefix(mimeType, "video/"):
		// Video is too large to inline, so it is staged with the provider
		// first and then referenced by URI.
		staged, err := g.stageFile(ctx, source, mimeType)
		if err != nil {
			return nil, err
		}
		return []geminiPart{
			{FileData: staged},
			{Text: "Describe this video."},
		}, nil
	case strings.HasPrefix(mimeType, "text/"):
		stat, err := os.Stat(source)
		if err != nil {
			return nil, err
		}
		if stat.Size() > g.maxTextBytes {
			return nil, fmt.Errorf("%w: text media of %d bytes exceeds the %d byte cap", ErrInvalidInput, stat.Size(), g.maxTextBytes)
		}
		data, err := os.ReadFile(source)
		if err != nil {
			return nil, err
		}
		escaped := strings.ReplaceAll(string(data), "\n", "\\n")
		prompt := fmt.Sprintf("Describe this %s file: %s. Return Array<string> tags and a description.", mimeType, escaped)
		return []geminiPart{{Text: prompt}}, nil
	default:
		return nil, fmt.Errorf("%w: %s", errUnsupportedMedia, mimeType)
	}
}

func (g *GeminiAnalyzer) fetchRemote(ctx context.Context, sourceURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch image: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch image: %s", resp.Status)
	}
	return io.ReadAll(resp.Body)
}

// stageFile uploads raw media bytes to the provider staging area and returns
// the file reference for the analysis request.
func (g *GeminiAnalyzer) stageFile(ctx context.Context, localPath, mimeType string) (*geminiFileData, error) {
	file, err := os.Open(localPath)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	endpoint := fmt.Sprintf("%s/upload/v1beta/files?key=%s", g.host, g.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, file)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mimeType)
	req.Header.Set("X-Goog-Upload-Protocol", "raw")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("staging upload failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("staging upload failed: %s", resp.Status)
	}

	var staged geminiStagedFile
	if err := json.NewDecoder(resp.Body).Decode(&staged); err != nil {
		return nil, fmt.Errorf("staging response malformed: %w", err)
	}
	if staged.File.URI == "" {
		return nil, fmt.Errorf("staging response has no file uri")
	}
	return &geminiFileData{FileURI: staged.File.URI, MimeType: staged.File.MimeType}, nil
}

func (g *GeminiAnalyzer) generateContent(ctx context.Context, parts []geminiPart) ([]byte, error) {
	body, err := json.Marshal(geminiRequest{
		Contents:         []geminiContent{{Parts: parts}},
		GenerationConfig: geminiGenerationConfig{ResponseMimeType: "application/json", ResponseSchema: analysisSchema},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s", g.host, g.model, g.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("provider returned %s", resp.Status)
	}

	var parsed geminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("provider response malformed: %w", err)
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("provider response has no candidates")
	}
	return []byte(parsed.Candidates[0].Content.Parts[0].Text), nil
}

// normalizeAnalysis converts a raw provider result body into the adapter
// contract. The schema marks both fields required, but missing ones are
// still defaulted rather than trusted.
func normalizeAnalysis(raw []byte) Analysis {
	var parsed Analysis
	if err := json.Unmarshal(raw, &parsed); err != nil {
		log.Printf("can not parse analysis result %q: %v", raw, err)
		return fallbackAnalysis()
	}
	if parsed.Tags == nil {
		parsed.Tags = []string{}
	}
	if parsed.Description == "" {
		parsed.Description = FallbackDescription
	}
	return parsed
}
