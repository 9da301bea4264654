package jobpostings

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/ledongthuc/pdf"
)

const maxFetchBytes = 2 << 20 // 2MB of page text is enough for any posting

// Fetcher retrieves raw posting text from a URL.
type Fetcher interface {
	FetchText(ctx context.Context, url string) (string, error)
}

// HTTPFetcher fetches posting pages over HTTP and strips markup.
type HTTPFetcher struct {
	client *resty.Client
}

// NewHTTPFetcher constructs an HTTPFetcher.
func NewHTTPFetcher() *HTTPFetcher {
	client := resty.New().
		SetTimeout(30 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond).
		SetHeader("User-Agent", "Mozilla/5.0 (compatible; cvadapt/1.0)")
	return &HTTPFetcher{client: client}
}

// FetchText downloads the page and returns its visible text.
func (f *HTTPFetcher) FetchText(ctx context.Context, url string) (string, error) {
	resp, err := f.client.R().SetContext(ctx).Get(url)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnreachableSource, err)
	}
	if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
		return "", fmt.Errorf("%w: status %d for %s", ErrUnreachableSource, resp.StatusCode(), url)
	}

	body := resp.Body()
	if len(body) > maxFetchBytes {
		body = body[:maxFetchBytes]
	}

	contentType := strings.ToLower(resp.Header().Get("Content-Type"))
	if strings.Contains(contentType, "application/pdf") || bytes.HasPrefix(body, []byte("%PDF")) {
		return PDFText(body)
	}

	text := htmlToText(string(body))
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%w: empty page at %s", ErrUnreachableSource, url)
	}
	return text, nil
}

// PDFText extracts plain text from a PDF payload.
func PDFText(data []byte) (string, error) {
	reader := bytes.NewReader(data)
	pdfReader, err := pdf.NewReader(reader, int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("%w: pdf parse: %v", ErrInvalidInput, err)
	}
	plain, err := pdfReader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("%w: pdf text: %v", ErrInvalidInput, err)
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, plain); err != nil {
		return "", err
	}
	return buf.String(), nil
}

var (
	scriptRe = regexp.MustCompile(`(?is)<(script|style|noscript)[^>]*>.*?</(script|style|noscript)>`)
	tagRe    = regexp.MustCompile(`(?s)<[^>]+>`)
	blankRe  = regexp.MustCompile(`\n{3,}`)
)

// htmlToText strips tags and collapses whitespace. Postings only need the
// visible text, so a full HTML parser is not worth the dependency.
func htmlToText(raw string) string {
	text := scriptRe.ReplaceAllString(raw, " ")
	text = tagRe.ReplaceAllString(text, "\n")
	text = strings.ReplaceAll(text, "&nbsp;", " ")
	text = strings.ReplaceAll(text, "&amp;", "&")
	text = strings.ReplaceAll(text, "&lt;", "<")
	text = strings.ReplaceAll(text, "&gt;", ">")
	text = strings.ReplaceAll(text, "&#39;", "'")
	text = strings.ReplaceAll(text, "&quot;", `"`)

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.Join(strings.Fields(line), " ")
	}
	text = strings.Join(lines, "\n")
	text = blankRe.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}
