package content

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/JohannesKaufmann/html-to-markdown/plugin"
	"github.com/ledongthuc/pdf"
	"golang.org/x/net/html"
)

// errNoText is returned by extractors that found a well-formed document with
// nothing readable in it.
var errNoText = errors.New("document contains no extractable text")

// errTooLarge is returned when a document expands beyond the extraction limit.
var errTooLarge = errors.New("document expands beyond the size limit")

// docxMarkupRatio bounds word/document.xml relative to the text limit, since
// most of the XML is markup.
const docxMarkupRatio = 16

// extractPDF returns the plain text of every page, at most limit bytes.
// Pages that fail to decode are skipped.
func extractPDF(data []byte, limit int64) (text string, err error) {
	// The PDF library panics on some malformed cross-reference tables.
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("open PDF: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open PDF: %w", err)
	}

	var sb strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		pageText, perr := page.GetPlainText(nil)
		if perr != nil {
			continue
		}
		if pageText != "" {
			if sb.Len() > 0 {
				sb.WriteString("\n")
			}
			sb.WriteString(pageText)
		}
		if int64(sb.Len()) > limit {
			return "", errTooLarge
		}
	}

	if strings.TrimSpace(sb.String()) == "" {
		return "", errNoText
	}
	return sb.String(), nil
}

// extractDOCX returns the paragraph text of word/document.xml, at most limit
// bytes.
func extractDOCX(data []byte, limit int64) (string, error) {
	archive, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open DOCX: %w", err)
	}

	var body *zip.File
	for _, f := range archive.File {
		if f.Name == "word/document.xml" {
			body = f
			break
		}
	}
	if body == nil {
		return "", fmt.Errorf("open DOCX: word/document.xml not found")
	}

	// archive/zip fails reads past the declared size, so the header is binding.
	if body.UncompressedSize64 > uint64(limit)*docxMarkupRatio {
		return "", errTooLarge
	}

	rc, err := body.Open()
	if err != nil {
		return "", fmt.Errorf("open DOCX body: %w", err)
	}
	defer func() { _ = rc.Close() }()

	var sb strings.Builder
	dec := xml.NewDecoder(rc)
	inText := false
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("parse DOCX body: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				sb.WriteString(" ")
			case "br", "cr":
				sb.WriteString("\n")
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				sb.WriteString("\n")
			}
		case xml.CharData:
			if inText {
				sb.Write(t)
			}
		}
		if int64(sb.Len()) > limit {
			return "", errTooLarge
		}
	}

	if strings.TrimSpace(sb.String()) == "" {
		return "", errNoText
	}
	return sb.String(), nil
}

// chromeTags are removed from the body when no main content element exists.
var chromeTags = map[string]bool{
	"nav": true, "header": true, "footer": true, "aside": true,
	"script": true, "style": true, "noscript": true, "iframe": true,
	"form": true, "button": true,
}

// extractHTML renders the main content of an HTML document as markdown text.
// When conversion fails or yields nothing, the document's text nodes are
// collected instead.
func extractHTML(data []byte) (string, error) {
	doc, err := html.Parse(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("parse HTML: %w", err)
	}

	root := mainContent(doc)

	var rendered strings.Builder
	if err := html.Render(&rendered, root); err == nil {
		converter := md.NewConverter("", true, nil)
		converter.Use(plugin.GitHubFlavored())
		if markdown, err := converter.ConvertString(rendered.String()); err == nil && strings.TrimSpace(markdown) != "" {
			return markdown, nil
		}
	}

	text := textContent(root)
	if strings.TrimSpace(text) == "" {
		return "", errNoText
	}
	return text, nil
}

// mainContent returns the main, article, or role=main element when present;
// otherwise the body with navigation chrome removed.
func mainContent(doc *html.Node) *html.Node {
	for _, match := range []func(*html.Node) bool{
		isElement("main"),
		isElement("article"),
		hasRoleMain,
	} {
		if n := findNode(doc, match); n != nil {
			return n
		}
	}

	removeNodes(doc, func(n *html.Node) bool {
		return n.Type == html.ElementNode && chromeTags[n.Data]
	})

	if body := findNode(doc, isElement("body")); body != nil {
		return body
	}
	return doc
}

func isElement(tag string) func(*html.Node) bool {
	return func(n *html.Node) bool {
		return n.Type == html.ElementNode && n.Data == tag
	}
}

func hasRoleMain(n *html.Node) bool {
	if n.Type != html.ElementNode {
		return false
	}
	for _, a := range n.Attr {
		if a.Key == "role" && a.Val == "main" {
			return true
		}
	}
	return false
}

// findNode returns the first node in document order matching match.
func findNode(n *html.Node, match func(*html.Node) bool) *html.Node {
	if match(n) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findNode(c, match); found != nil {
			return found
		}
	}
	return nil
}

func removeNodes(n *html.Node, match func(*html.Node) bool) {
	var doomed []*html.Node
	var collect func(*html.Node)
	collect = func(node *html.Node) {
		if match(node) {
			doomed = append(doomed, node)
			return
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			collect(c)
		}
	}
	collect(n)

	for _, node := range doomed {
		if node.Parent != nil {
			node.Parent.RemoveChild(node)
		}
	}
}

// textContent concatenates the text nodes under n, skipping scripts and
// styles.
func textContent(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.ElementNode && (node.Data == "script" || node.Data == "style") {
			return
		}
		if node.Type == html.TextNode {
			sb.WriteString(node.Data)
			sb.WriteString(" ")
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}
