// Package textsource turns an uploaded document into the raw text the
// canonicalizer consumes.
package textsource

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported document format")
	ErrExtractorMissing  = errors.New("text extractor not available")
)

type Extractor interface {
	Extract(ctx context.Context, r io.Reader) (string, error)
}

// PlainText reads UTF-8 text as is. Invalid byte sequences are replaced.
type PlainText struct{}

func (PlainText) Extract(_ context.Context, r io.Reader) (string, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("read text: %w", err)
	}
	b = bytes.TrimPrefix(b, []byte("\xef\xbb\xbf"))
	if !utf8.Valid(b) {
		return strings.ToValidUTF8(string(b), "�"), nil
	}
	return string(b), nil
}

// PDFToText shells out to poppler's pdftotext.
type PDFToText struct {
	Path    string
	Timeout time.Duration
}

func NewPDFToText(path string) *PDFToText {
	if path == "" {
		path = "pdftotext"
	}
	return &PDFToText{Path: path, Timeout: 30 * time.Second}
}

func (p *PDFToText) Extract(ctx context.Context, r io.Reader) (string, error) {
	bin, err := exec.LookPath(p.Path)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrExtractorMissing, p.Path)
	}

	f, err := os.CreateTemp("", "cbtscan-*.pdf")
	if err != nil {
		return "", fmt.Errorf("create temp pdf: %w", err)
	}
	defer func() { f.Close(); os.Remove(f.Name()) }()
	if _, err := io.Copy(f, r); err != nil {
		return "", fmt.Errorf("write temp pdf: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("write temp pdf: %w", err)
	}

	if p.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.Timeout)
		defer cancel()
	}
	cmd := exec.CommandContext(ctx, bin, "-layout", "-enc", "UTF-8", f.Name(), "-")
	var out, stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("pdftotext failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return out.String(), nil
}

// Registry picks an extractor by file extension.
type Registry struct {
	byExt map[string]Extractor
}

func NewRegistry(pdftotextPath string) *Registry {
	plain := PlainText{}
	return &Registry{byExt: map[string]Extractor{
		".txt":  plain,
		".text": plain,
		".md":   plain,
		"":      plain,
		".htm":  HTMLText{},
		".html": HTMLText{},
		".pdf":  NewPDFToText(pdftotextPath),
	}}
}

// Register adds or replaces the extractor for ext (".docx", ...).
func (r *Registry) Register(ext string, e Extractor) {
	r.byExt[strings.ToLower(ext)] = e
}

func (r *Registry) For(name string) (Extractor, error) {
	ext := strings.ToLower(filepath.Ext(name))
	e, ok := r.byExt[ext]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	return e, nil
}

func (r *Registry) Extract(ctx context.Context, name string, src io.Reader) (string, error) {
	e, err := r.For(name)
	if err != nil {
		return "", err
	}
	return e.Extract(ctx, src)
}
