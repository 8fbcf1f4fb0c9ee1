package server

import (
	"bytes"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/yuin/goldmark"
)

const pageTemplateHead = `<!DOCTYPE html>
<html>
  <head>
    <meta charset="utf-8">
    <meta name="viewport" content="width=device-width">
    <title>%s</title>
  </head>
  <body>
`

const pageTemplateFoot = `
  </body>
</html>
`

// RegisterPagesEndpoint registers the markdown content handler. It must be
// registered last: it claims every path no other endpoint owns, and the
// gate decides whether the caller may see it.
func RegisterPagesEndpoint(s *Server) {
	s.Router.PathPrefix("/").HandlerFunc(handlePage(s)).Methods("GET")
}

func handlePage(s *Server) http.HandlerFunc {
	md := goldmark.New()

	return func(w http.ResponseWriter, r *http.Request) {
		source, title, ok := loadPage(s.Config.ContentDir, r.URL.Path)
		if !ok {
			http.NotFound(w, r)
			return
		}

		var body bytes.Buffer
		if err := md.Convert(source, &body); err != nil {
			http.Error(w, "failed to render page", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(strings.Replace(pageTemplateHead, "%s", title, 1)))
		_, _ = w.Write(body.Bytes())
		_, _ = w.Write([]byte(pageTemplateFoot))
	}
}

// loadPage maps a request path to a markdown file under contentDir. "/"
// maps to index.md and "/x/y" to x/y.md, refusing any path that escapes
// the content directory.
func loadPage(contentDir, requestPath string) ([]byte, string, bool) {
	cleaned := path.Clean(requestPath)
	if strings.Contains(cleaned, "..") {
		return nil, "", false
	}

	rel := strings.TrimPrefix(cleaned, "/")
	if rel == "" {
		rel = "index"
	}

	file := filepath.Join(contentDir, filepath.FromSlash(rel)+".md")
	source, err := os.ReadFile(file)
	if err != nil {
		return nil, "", false
	}

	title := filepath.Base(rel)
	return source, title, true
}
