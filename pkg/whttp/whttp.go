// Package whttp is a thin wrapper around retryablehttp for JSON-first API
// calls. It collects the response body as a string and, when an upstream
// answers with an HTML error page instead of JSON, extracts the page title
// so callers can log something readable.
package whttp

import (
	"context"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/net/html"
)

type Header struct {
	Name  string
	Value string
}

type Request struct {
	Method  string
	URL     string
	Headers []Header
}

type Response struct {
	StatusCode     int
	ResponseLength int
	Body           string
	// HTMLTitle is the <title> of the body when the body is an HTML
	// document, empty otherwise.
	HTMLTitle string
}

// Send performs the request with the given client and drains the body.
func Send(ctx context.Context, req *Request, client *retryablehttp.Client) (*Response, error) {
	r, err := retryablehttp.NewRequestWithContext(ctx, req.Method, req.URL, nil)
	if err != nil {
		return nil, err
	}

	r.Header.Set("Accept", "application/json, text/html;q=0.5")
	r.Header.Set("Accept-Language", "en")
	for _, h := range req.Headers {
		r.Header.Add(h.Name, h.Value)
	}

	resp, err := client.Do(r)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	res := &Response{
		StatusCode: resp.StatusCode,
		Body:       string(bodyBytes),
	}
	res.ResponseLength = utf8.RuneCountInString(res.Body)

	if looksLikeHTML(res.Body) {
		if title, ok := htmlTitle(res.Body); ok {
			res.HTMLTitle = strings.ToValidUTF8(strings.TrimSpace(strings.ReplaceAll(strings.ReplaceAll(title, "\n", ""), "\r", "")), "")
		}
	}

	return res, nil
}

func looksLikeHTML(body string) bool {
	return strings.HasPrefix(strings.TrimSpace(body), "<")
}

func isTitleElement(n *html.Node) bool {
	return n.Type == html.ElementNode && n.Data == "title"
}

func traverse(n *html.Node) (string, bool) {
	if isTitleElement(n) {
		if n.FirstChild != nil {
			return n.FirstChild.Data, true
		}
		return "", true
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if result, ok := traverse(c); ok {
			return result, ok
		}
	}

	return "", false
}

func htmlTitle(body string) (string, bool) {
	doc, err := html.Parse(strings.NewReader(body))
	if err != nil {
		return "", false
	}
	return traverse(doc)
}
