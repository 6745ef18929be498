package server

import (
	"bytes"
	"net/http"
	"os"
	"strings"

	"golang.org/x/net/html"

	"github.com/viaduct-dev/viaduct/internal/errors"
)

// handleHTML serves an entry document. Module script src attributes are
// rewritten into servable request paths, inline module bodies go through the
// import rewriter, and the client runtime is injected into head. A missing
// root index falls back to the generated component listing.
func (s *DevServer) handleHTML(w http.ResponseWriter, r *http.Request) {
	requestPath := r.URL.Path
	if requestPath == "/" {
		requestPath = "/index.html"
	}

	filePath := s.resolver.ResolveToFile(requestPath)
	source, err := os.ReadFile(filePath)
	if err != nil {
		if requestPath == "/index.html" {
			s.handleComponentIndex(w, r)
			return
		}
		s.writeError(w, r, requestPath, errors.NewNotFound(requestPath, filePath))
		return
	}

	transformed, err := s.transformHTML(source, requestPath)
	if err != nil {
		// The parser is forgiving; a failure here means truncated input.
		// Serve the document untouched rather than blank the page.
		s.logger.Warn(r.Context(), err, "html transform failed, serving raw",
			"path", requestPath)
		transformed = source
	}
	writeConditional(w, r, contentTypeHTML, transformed)
}

func (s *DevServer) transformHTML(source []byte, requestPath string) ([]byte, error) {
	doc, err := html.Parse(bytes.NewReader(source))
	if err != nil {
		return nil, err
	}

	var head *html.Node
	var traverse func(*html.Node)
	traverse = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "head":
				if head == nil {
					head = n
				}
			case "script":
				s.transformScriptNode(n, requestPath)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			traverse(c)
		}
	}
	traverse(doc)

	if head != nil {
		client := &html.Node{
			Type: html.ElementNode,
			Data: "script",
			Attr: []html.Attribute{
				{Key: "type", Val: "module"},
				{Key: "src", Val: clientScriptPath},
			},
		}
		head.InsertBefore(client, head.FirstChild)
	}

	var buf bytes.Buffer
	if err := html.Render(&buf, doc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// transformScriptNode rewrites one module script in place. Non-module
// scripts pass through untouched.
func (s *DevServer) transformScriptNode(n *html.Node, importer string) {
	isModule := false
	srcIdx := -1
	for i, attr := range n.Attr {
		switch attr.Key {
		case "type":
			if attr.Val == "module" {
				isModule = true
			}
		case "src":
			srcIdx = i
		}
	}
	if !isModule {
		return
	}

	if srcIdx >= 0 {
		rewritten := s.resolver.RewriteSpecifier(n.Attr[srcIdx].Val, importer)
		n.Attr[srcIdx].Val = rewritten
		s.engine.Graph().Record(rewritten, importer)
		return
	}

	if n.FirstChild == nil {
		return
	}
	var body strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			body.WriteString(c.Data)
		}
	}
	code, _ := s.rewriter.Rewrite([]byte(body.String()), importer)
	n.FirstChild.Data = string(code)
	n.FirstChild.Type = html.TextNode
	for c := n.FirstChild.NextSibling; c != nil; {
		next := c.NextSibling
		n.RemoveChild(c)
		c = next
	}
}
