// Package crawl turns a folder of portfolio material into plain-text files
// ready for embedding.
package crawl

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// File is one crawled document.
type File struct {
	Path         string
	Content      string
	ModifiedTime time.Time
}

// skipExt lists binary formats that carry no extractable text.
var skipExt = map[string]bool{
	".zip": true, ".xlsx": true, ".xls": true, ".doc": true, ".ppt": true,
	".gz": true, ".tar": true, ".7z": true, ".rar": true,
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".webp": true, ".ico": true,
	".mp3": true, ".mp4": true, ".mov": true,
}

// skipTags are elements whose content is never visible text.
var skipTags = map[atom.Atom]bool{
	atom.Script:   true,
	atom.Style:    true,
	atom.Noscript: true,
	atom.Meta:     true,
	atom.Link:     true,
	atom.Img:      true,
	atom.Svg:      true,
}

// Walk reads every text-bearing file under root, sorted by path. Files that
// fail to parse are logged and skipped; an unreadable root is an error.
// Hidden files and directories are ignored.
func Walk(root string) ([]File, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("reading crawl root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("crawl root %s is not a directory", root)
	}

	var files []File
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		name := d.Name()
		if path != root && strings.HasPrefix(name, ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		if skipExt[strings.ToLower(filepath.Ext(name))] {
			return nil
		}

		f, err := ReadFile(path)
		if err != nil {
			slog.Warn("skipping unreadable file", "path", path, "error", err)
			return nil
		}
		if f.Content == "" {
			return nil
		}
		files = append(files, f)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", root, err)
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}

// ReadFile extracts the text of a single file based on its extension.
func ReadFile(path string) (File, error) {
	info, err := os.Stat(path)
	if err != nil {
		return File{}, err
	}

	var text string
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		text, err = pdfText(path)
	case ".docx":
		text, err = docxText(path)
	case ".pptx":
		text, err = pptxText(path)
	case ".html", ".htm":
		var b []byte
		if b, err = os.ReadFile(path); err == nil {
			text, err = VisibleText(bytes.NewReader(b))
		}
	default:
		var b []byte
		if b, err = os.ReadFile(path); err == nil {
			text = string(b)
		}
	}
	if err != nil {
		return File{}, err
	}

	return File{
		Path:         path,
		Content:      Collapse(text),
		ModifiedTime: info.ModTime().UTC().Truncate(time.Second),
	}, nil
}

// VisibleText returns the text a browser would render for an HTML document.
func VisibleText(r io.Reader) (string, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return "", fmt.Errorf("parsing html: %w", err)
	}

	var sb strings.Builder
	var visit func(n *html.Node)
	visit = func(n *html.Node) {
		if n.Type == html.ElementNode && (skipTags[n.DataAtom] || hidden(n)) {
			return
		}
		if n.Type == html.CommentNode {
			return
		}
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
			sb.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			visit(c)
		}
	}
	visit(doc)
	return sb.String(), nil
}

// hidden reports whether an element is hidden by the hidden attribute or an
// inline display:none / visibility:hidden style.
func hidden(n *html.Node) bool {
	for _, a := range n.Attr {
		switch strings.ToLower(a.Key) {
		case "hidden":
			return true
		case "style":
			style := strings.ToLower(strings.Join(strings.Fields(a.Val), ""))
			for _, decl := range strings.Split(style, ";") {
				decl = strings.TrimSuffix(decl, "!important")
				if decl == "display:none" || decl == "visibility:hidden" {
					return true
				}
			}
		}
	}
	return false
}

func pdfText(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening pdf: %w", err)
	}
	defer f.Close()

	var pages []string
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			slog.Debug("skipping pdf page", "path", path, "page", i, "error", err)
			continue
		}
		pages = append(pages, text)
	}
	if len(pages) == 0 && r.NumPage() > 0 {
		return "", errors.New("no extractable text in pdf")
	}
	return strings.Join(pages, "\n"), nil
}

// Collapse trims text and squeezes every run of whitespace to one space.
func Collapse(text string) string {
	return strings.Join(strings.Fields(text), " ")
}
