package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMimeTypeFor(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"photo.jpg", "image/jpeg"},
		{"photo.JPEG", "image/jpeg"},
		{"shot.png", "image/png"},
		{"anim.gif", "image/gif"},
		{"clip.mp4", "video/mp4"},
		{"notes.txt", "text/plain"},
		{"script.js", "text/javascript"},
		{"readme.md", "text/markdown"},
		{"page.html", "text/html"},
		{"style.css", "text/css"},
		{"archive.zip", "application/octet-stream"},
		{"noextension", "application/octet-stream"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, MimeTypeFor(tt.path))
		})
	}
}

func TestNormalizeAnalysis(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want Analysis
	}{
		{
			name: "complete",
			raw:  `{"tags":["cat","sofa"],"description":"A cat on a sofa."}`,
			want: Analysis{Tags: []string{"cat", "sofa"}, Description: "A cat on a sofa."},
		},
		{
			name: "missing tags",
			raw:  `{"description":"A cat."}`,
			want: Analysis{Tags: []string{}, Description: "A cat."},
		},
		{
			name: "missing description",
			raw:  `{"tags":["cat"]}`,
			want: Analysis{Tags: []string{"cat"}, Description: FallbackDescription},
		},
		{
			name: "not json",
			raw:  `oops`,
			want: fallbackAnalysis(),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, normalizeAnalysis([]byte(tt.raw)))
		})
	}
}

func candidateResponse(t *testing.T, payload string) []byte {
	t.Helper()
	body, err := json.Marshal(map[string]any{
		"candidates": []map[string]any{
			{"content": map[string]any{"parts": []map[string]any{{"text": payload}}}},
		},
	})
	require.NoError(t, err)
	return body
}

// providerStub records generateContent request bodies and answers with the
// configured analysis payload.
func providerStub(t *testing.T, payload string) (*httptest.Server, *[]geminiRequest) {
	t.Helper()
	var requests []geminiRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, ":generateContent") {
			t.Errorf("unexpected path %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
			return
		}
		var req geminiRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("bad request body: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		requests = append(requests, req)
		w.Write(candidateResponse(t, payload))
	}))
	t.Cleanup(server.Close)
	return server, &requests
}

func testAnalyzer(host string) *GeminiAnalyzer {
	return NewGeminiAnalyzer(host, "test-key", "test-model", 5*time.Second, 1024)
}

func TestAnalyzeLocalImage(t *testing.T) {
	server, requests := providerStub(t, `{"tags":["duck"],"description":"A duck."}`)
	analyzer := testAnalyzer(server.URL)

	result := analyzer.Analyze(context.Background(), tempMediaFile(t, "pic.png", "png-bytes"))

	assert.Equal(t, Analysis{Tags: []string{"duck"}, Description: "A duck."}, result)
	require.Len(t, *requests, 1)
	parts := (*requests)[0].Contents[0].Parts
	require.Len(t, parts, 2)
	assert.Equal(t, "image/png", parts[0].InlineData.MimeType)
	assert.NotEmpty(t, parts[0].InlineData.Data)
	assert.Equal(t, "Describe this image.", parts[1].Text)
	assert.Equal(t, "application/json", (*requests)[0].GenerationConfig.ResponseMimeType)
}

func TestAnalyzeRemoteURL(t *testing.T) {
	imageServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("jpeg-bytes"))
	}))
	defer imageServer.Close()
	server, requests := providerStub(t, `{"tags":[],"description":"A photo."}`)
	analyzer := testAnalyzer(server.URL)

	result := analyzer.Analyze(context.Background(), imageServer.URL+"/pic.jpg")

	assert.Equal(t, "A photo.", result.Description)
	require.Len(t, *requests, 1)
	parts := (*requests)[0].Contents[0].Parts
	assert.Equal(t, "image/jpeg", parts[0].InlineData.MimeType)
	assert.Equal(t, "Describe this image and generate relevant tags.", parts[1].Text)
}

func TestAnalyzeRemoteFetchFailure(t *testing.T) {
	imageServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer imageServer.Close()
	server, requests := providerStub(t, `{}`)
	analyzer := testAnalyzer(server.URL)

	result := analyzer.Analyze(context.Background(), imageServer.URL+"/gone.jpg")

	assert.Equal(t, fallbackAnalysis(), result)
	assert.Empty(t, *requests)
}

func TestAnalyzeText(t *testing.T) {
	server, requests := providerStub(t, `{"tags":["notes"],"description":"Some notes."}`)
	analyzer := testAnalyzer(server.URL)

	result := analyzer.Analyze(context.Background(), tempMediaFile(t, "notes.txt", "line one\nline two"))

	assert.Equal(t, "Some notes.", result.Description)
	require.Len(t, *requests, 1)
	parts := (*requests)[0].Contents[0].Parts
	require.Len(t, parts, 1)
	assert.Contains(t, parts[0].Text, "text/plain")
	assert.Contains(t, parts[0].Text, `line one\nline two`)
	assert.NotContains(t, parts[0].Text, "line one\nline two")
}

func TestAnalyzeTextOverCap(t *testing.T) {
	server, requests := providerStub(t, `{}`)
	analyzer := testAnalyzer(server.URL)
	oversized := strings.Repeat("x", 2048)

	result := analyzer.Analyze(context.Background(), tempMediaFile(t, "big.txt", oversized))

	assert.Equal(t, fallbackAnalysis(), result)
	assert.Empty(t, *requests)
}

func TestAnalyzeUnsupportedKind(t *testing.T) {
	server, requests := providerStub(t, `{}`)
	analyzer := testAnalyzer(server.URL)

	result := analyzer.Analyze(context.Background(), tempMediaFile(t, "archive.zip", "zip-bytes"))

	assert.Equal(t, fallbackAnalysis(), result)
	assert.Empty(t, *requests)
}

func TestAnalyzeVideoIsStagedFirst(t *testing.T) {
	var stagedBody []byte
	var order []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/upload/"):
			order = append(order, "stage")
			stagedBody, _ = io.ReadAll(r.Body)
			assert.Equal(t, "video/mp4", r.Header.Get("Content-Type"))
			assert.Equal(t, "raw", r.Header.Get("X-Goog-Upload-Protocol"))
			fmt.Fprint(w, `{"file":{"uri":"files/staged-1","mimeType":"video/mp4"}}`)
		case strings.Contains(r.URL.Path, ":generateContent"):
			order = append(order, "generate")
			var req geminiRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				t.Errorf("bad request body: %v", err)
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			parts := req.Contents[0].Parts
			if len(parts) != 2 {
				t.Errorf("expected 2 parts, got %d", len(parts))
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			assert.Equal(t, "files/staged-1", parts[0].FileData.FileURI)
			assert.Equal(t, "Describe this video.", parts[1].Text)
			w.Write(candidateResponse(t, `{"tags":["clip"],"description":"A clip."}`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()
	analyzer := testAnalyzer(server.URL)

	result := analyzer.Analyze(context.Background(), tempMediaFile(t, "clip.mp4", "mp4-bytes"))

	assert.Equal(t, Analysis{Tags: []string{"clip"}, Description: "A clip."}, result)
	assert.Equal(t, []string{"stage", "generate"}, order)
	assert.Equal(t, "mp4-bytes", string(stagedBody))
}

func TestAnalyzeProviderError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()
	analyzer := testAnalyzer(server.URL)

	result := analyzer.Analyze(context.Background(), tempMediaFile(t, "pic.jpg", "jpeg-bytes"))
	assert.Equal(t, fallbackAnalysis(), result)
}

func TestAnalyzeProviderMalformedResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"candidates":[]}`)
	}))
	defer server.Close()
	analyzer := testAnalyzer(server.URL)

	result := analyzer.Analyze(context.Background(), tempMediaFile(t, "pic.jpg", "jpeg-bytes"))
	assert.Equal(t, fallbackAnalysis(), result)
}
