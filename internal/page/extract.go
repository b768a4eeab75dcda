// Package page turns web pages and local documents into the plain-text page
// content the assistant converses about.
package page

import (
	"fmt"
	"io"
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

var (
	multiNewlinePattern = regexp.MustCompile(`\n{3,}`)
	multiSpacePattern   = regexp.MustCompile(`[ \t]{2,}`)
)

// maxDepth bounds recursion on pathological documents.
const maxDepth = 512

// Page is the extracted content of one document.
type Page struct {
	URL     string
	Title   string
	Content string
}

// Extract converts an HTML document to the text form embedded in the
// conversation. Links are rendered as "[text](href) " with href resolved
// against baseURL.
func Extract(htmlContent, baseURL string) (string, error) {
	p, err := Parse(strings.NewReader(htmlContent), baseURL)
	if err != nil {
		return "", err
	}
	return p.Content, nil
}

// Parse reads an HTML document and returns its title and body text.
func Parse(r io.Reader, pageURL string) (Page, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return Page{}, fmt.Errorf("failed to parse HTML: %w", err)
	}

	e := &extractor{}
	if pageURL != "" {
		if base, err := url.Parse(pageURL); err == nil {
			e.base = base
		}
	}

	body := findElement(doc, "body")
	if body == nil {
		body = doc
	}
	e.walk(body, 0)

	return Page{
		URL:     pageURL,
		Title:   collapse(textOf(findElement(doc, "title"))),
		Content: cleanText(e.sb.String()),
	}, nil
}

type extractor struct {
	sb   strings.Builder
	base *url.URL
}

func (e *extractor) walk(n *html.Node, depth int) {
	if depth > maxDepth {
		return
	}

	switch n.Type {
	case html.TextNode:
		if text := collapse(n.Data); text != "" {
			e.sb.WriteString(text)
			e.sb.WriteString(" ")
		}
		return
	case html.ElementNode:
		switch n.Data {
		case "script", "style", "noscript", "template", "svg", "iframe", "head":
			return
		case "a":
			if href := e.resolve(getAttr(n, "href")); href != "" {
				fmt.Fprintf(&e.sb, "[%s](%s) ", collapse(textOf(n)), href)
				return
			}
		case "img":
			if alt := getAttr(n, "alt"); alt != "" {
				fmt.Fprintf(&e.sb, "[Image: %s] ", alt)
			}
			return
		case "br":
			e.sb.WriteString("\n")
			return
		case "h1", "h2", "h3", "h4", "h5", "h6":
			e.sb.WriteString("\n\n" + strings.Repeat("#", int(n.Data[1]-'0')) + " ")
		case "li":
			e.sb.WriteString("\n- ")
		case "p", "div", "section", "article", "main", "header", "footer", "nav",
			"aside", "blockquote", "pre", "table", "tr", "ul", "ol", "form", "figure":
			e.sb.WriteString("\n\n")
		}
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		e.walk(c, depth+1)
	}

	if n.Type == html.ElementNode {
		switch n.Data {
		case "h1", "h2", "h3", "h4", "h5", "h6", "p", "div", "section", "article",
			"main", "blockquote", "pre", "table", "ul", "ol":
			e.sb.WriteString("\n\n")
		case "tr":
			e.sb.WriteString("\n")
		}
	}
}

// resolve returns the absolute form of href, or "" for in-page and script links.
func (e *extractor) resolve(href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(strings.ToLower(href), "javascript:") {
		return ""
	}
	if e.base == nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return e.base.ResolveReference(ref).String()
}

func findElement(n *html.Node, name string) *html.Node {
	if n.Type == html.ElementNode && n.Data == name {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, name); found != nil {
			return found
		}
	}
	return nil
}

func textOf(n *html.Node) string {
	if n == nil {
		return ""
	}
	var sb strings.Builder
	var visit func(*html.Node)
	visit = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
			return
		}
		if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style") {
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			visit(c)
		}
	}
	visit(n)
	return sb.String()
}

func getAttr(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// cleanText caps blank-line runs at one and trims every line.
func cleanText(s string) string {
	s = multiSpacePattern.ReplaceAllString(s, " ")
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	s = strings.Join(lines, "\n")
	s = multiNewlinePattern.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}
