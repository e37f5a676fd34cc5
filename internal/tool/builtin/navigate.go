package builtin

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"tradeagent/internal/tool"

	"github.com/PuerkitoBio/goquery"
	"github.com/pkg/errors"
)

const (
	defaultPageTextLimit = 8000
	browserUserAgent     = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.3"
)

// NavigateURLTool fetches a web page and returns its readable text
type NavigateURLTool struct {
	client    *http.Client
	textLimit int
}

func NewNavigateURLTool(timeout time.Duration) *NavigateURLTool {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &NavigateURLTool{
		client:    &http.Client{Timeout: timeout},
		textLimit: defaultPageTextLimit,
	}
}

func (t *NavigateURLTool) Name() string {
	return "NavigateURL"
}

func (t *NavigateURLTool) Description() string {
	return "Navigate to a URL and extract the information on the page as plain text"
}

func (t *NavigateURLTool) Schema() tool.Schema {
	return tool.NewSchema(
		tool.Field{Name: "url", Type: tool.TypeString, Description: "Absolute http or https URL to open", Required: true},
	)
}

func (t *NavigateURLTool) BestPractices() string {
	return ""
}

func (t *NavigateURLTool) Execute(ctx context.Context, args tool.Arguments) (*tool.Result, error) {
	raw := strings.TrimSpace(args.String("url"))
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return &tool.Result{Success: false, Error: fmt.Sprintf("invalid url %q: only absolute http(s) URLs are supported", raw)}, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", browserUserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := t.client.Do(req)
	if err != nil {
		return &tool.Result{Success: false, Error: fmt.Sprintf("failed to fetch %s: %v", u, err)}, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &tool.Result{Success: false, Error: fmt.Sprintf("failed to fetch %s: status %d", u, resp.StatusCode)}, nil
	}

	title, text, err := extractText(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, errors.Wrap(err, "parse page")
	}

	text, truncated := truncateRunes(text, t.textLimit)

	var sb strings.Builder
	if title != "" {
		sb.WriteString("Title: " + title + "\n\n")
	}
	sb.WriteString(text)
	if truncated {
		sb.WriteString("\n... (page truncated)")
	}

	return &tool.Result{
		Success: true,
		Output:  sb.String(),
		Data:    map[string]any{"url": u.String(), "truncated": truncated},
	}, nil
}

// extractText returns the page title and the visible body text with
// whitespace collapsed
func extractText(r io.Reader) (string, string, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return "", "", err
	}
	title := strings.TrimSpace(doc.Find("title").First().Text())
	if title == "" {
		title = strings.TrimSpace(doc.Find("h1").First().Text())
	}
	doc.Find("script, style, noscript, svg, iframe").Remove()

	var lines []string
	doc.Find("body").Each(func(_ int, s *goquery.Selection) {
		for _, line := range strings.Split(s.Text(), "\n") {
			if f := strings.Join(strings.Fields(line), " "); f != "" {
				lines = append(lines, f)
			}
		}
	})
	return title, strings.Join(lines, "\n"), nil
}

// truncateRunes cuts s to at most n characters
func truncateRunes(s string, n int) (string, bool) {
	if len(s) <= n {
		return s, false
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i], true
		}
		count++
	}
	return s, false
}
