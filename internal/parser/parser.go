package parser

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"html"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"
	"github.com/rs/zerolog/log"
	"github.com/tealeg/xlsx"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"
)

var (
	ErrKnowledgeMissing = errors.New("knowledge file missing")
	ErrNoKnowledge      = errors.New("no knowledge file could be loaded")
)

// Document is one knowledge file read wholesale.
type Document struct {
	Source  string
	Content string
}

// Corpus is the set of knowledge documents loaded at startup.
type Corpus struct {
	Documents []Document
}

// Text joins all documents, separated by a blank line.
func (c *Corpus) Text() string {
	parts := make([]string, 0, len(c.Documents))
	for _, d := range c.Documents {
		parts = append(parts, d.Content)
	}
	return strings.Join(parts, "\n\n")
}

func (c *Corpus) Empty() bool { return c == nil || len(c.Documents) == 0 }

// Load reads every path (glob patterns allowed). A file that cannot be read
// is reported in the returned errors and skipped, so the corpus holds
// whatever did load.
func Load(paths []string) (*Corpus, []error) {
	corpus := &Corpus{}
	var errs []error
	for _, p := range paths {
		matches, _ := filepath.Glob(p)
		if matches == nil {
			matches = []string{p}
		}
		for _, m := range matches {
			content, err := ParseFile(m)
			if err != nil {
				log.Warn().Err(err).Str("path", m).Msg("Skipping knowledge file")
				errs = append(errs, err)
				continue
			}
			if strings.TrimSpace(content) == "" {
				log.Warn().Str("path", m).Msg("Knowledge file is empty")
				continue
			}
			corpus.Documents = append(corpus.Documents, Document{Source: m, Content: content})
		}
	}
	log.Debug().Int("documents", len(corpus.Documents)).Int("errors", len(errs)).Msg("Loaded knowledge")
	return corpus, errs
}

// LoadWithFallback loads paths and, when nothing loaded and builtin is set,
// falls back to the bundled handbook.
func LoadWithFallback(paths []string, builtin bool) (*Corpus, []error) {
	corpus, errs := Load(paths)
	if corpus.Empty() && builtin {
		log.Info().Msg("Using bundled knowledge handbook")
		corpus.Documents = append(corpus.Documents, Document{Source: HandbookSource, Content: Handbook})
	}
	return corpus, errs
}

// ParseFile extracts plain text from a knowledge file based on its extension.
func ParseFile(filePath string) (string, error) {
	if _, err := os.Stat(filePath); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrKnowledgeMissing, filePath)
		}
		return "", err
	}

	ext := strings.ToLower(filepath.Ext(filePath))
	switch ext {
	case ".txt", "":
		return parseText(filePath)
	case ".md", ".markdown":
		return parseMarkdown(filePath)
	case ".pdf":
		return parsePDF(filePath)
	case ".docx":
		return parseDOCX(filePath)
	case ".pptx":
		return parsePPTX(filePath)
	case ".xlsx":
		return parseXLSX(filePath)
	default:
		return "", fmt.Errorf("unsupported file format: %s", ext)
	}
}

func parseText(filePath string) (string, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func parseMarkdown(filePath string) (string, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return "", err
	}
	return markdownToText(data)
}

func parsePDF(filePath string) (string, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	// Get file size for reader initialization
	stat, err := f.Stat()
	if err != nil {
		return "", err
	}

	reader, err := pdf.NewReader(f, stat.Size())
	if err != nil {
		return "", err
	}

	var pages []string
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("page %d: %w", i, err)
		}
		pages = append(pages, strings.TrimSpace(pageText))
	}
	return strings.Join(pages, "\n\n"), nil
}

func parseDOCX(filePath string) (string, error) {
	r, err := docx.ReadDocxFile(filePath)
	if err != nil {
		return "", err
	}
	defer r.Close()

	content := r.Editable().GetContent()
	var paragraphs []string
	for _, p := range wordParagraphRe.FindAllString(content, -1) {
		if line := strings.TrimSpace(extractRuns(p, wordRunRe)); line != "" {
			paragraphs = append(paragraphs, line)
		}
	}
	return strings.Join(paragraphs, "\n"), nil
}

func parsePPTX(filePath string) (string, error) {
	f, err := zip.OpenReader(filePath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	var slides []string
	for _, file := range f.File {
		if !strings.HasPrefix(file.Name, "ppt/slides/slide") {
			continue
		}
		rc, err := file.Open()
		if err != nil {
			continue
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			continue
		}
		if slideText := strings.TrimSpace(extractRuns(string(data), slideRunRe)); slideText != "" {
			slides = append(slides, slideText)
		}
	}
	return strings.Join(slides, "\n\n"), nil
}

func parseXLSX(filePath string) (string, error) {
	f, err := xlsx.OpenFile(filePath)
	if err != nil {
		return "", err
	}

	var text strings.Builder
	for _, sheet := range f.Sheets {
		text.WriteString(fmt.Sprintf("Sheet: %s\n", sheet.Name))
		for _, row := range sheet.Rows {
			cells := make([]string, 0, len(row.Cells))
			for _, cell := range row.Cells {
				cells = append(cells, cell.String())
			}
			text.WriteString(strings.Join(cells, "\t"))
			text.WriteString("\n")
		}
	}
	return text.String(), nil
}

// markdownToText walks the markdown AST and keeps only the text, one line
// per block.
func markdownToText(src []byte) (string, error) {
	md := goldmark.New(goldmark.WithExtensions(extension.GFM))
	doc := md.Parser().Parse(text.NewReader(src))

	var buf bytes.Buffer
	err := ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			if n.Type() == ast.TypeBlock && buf.Len() > 0 && !bytes.HasSuffix(buf.Bytes(), []byte("\n")) {
				buf.WriteByte('\n')
			}
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *ast.Text:
			buf.Write(node.Segment.Value(src))
			if node.SoftLineBreak() || node.HardLineBreak() {
				buf.WriteByte('\n')
			}
		case *ast.CodeBlock, *ast.FencedCodeBlock:
			lines := n.Lines()
			for i := 0; i < lines.Len(); i++ {
				seg := lines.At(i)
				buf.Write(seg.Value(src))
			}
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(buf.String()), nil
}

var (
	wordParagraphRe = regexp.MustCompile(`(?s)<w:p[ >].*?</w:p>`)
	wordRunRe       = regexp.MustCompile(`<w:t(?:\s[^>]*)?>([^<]*)</w:t>`)
	slideRunRe      = regexp.MustCompile(`<a:t>([^<]*)</a:t>`)
)

// extractRuns concatenates the text runs matched by re.
func extractRuns(xmlContent string, re *regexp.Regexp) string {
	var text strings.Builder
	for _, m := range re.FindAllStringSubmatch(xmlContent, -1) {
		text.WriteString(html.UnescapeString(m[1]))
	}
	return text.String()
}
