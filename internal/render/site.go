package render

import (
	"bytes"
	"embed"
	"fmt"
	"os"
	"path/filepath"
)

//go:embed static/main.css static/heart.svg static/heart-full.svg
var static embed.FS

// Site files written next to the document.
const (
	StylesheetFile = "main.css"
	AssetsDir      = "assets"
)

// WriteSite serializes doc into dir and writes the stylesheet and like
// icons it references. It returns the path of the document.
func WriteSite(dir string, doc *Document, s Serializer) (string, error) {
	var buf bytes.Buffer
	if err := s.Serialize(&buf, doc); err != nil {
		return "", err
	}

	out := filepath.Join(dir, s.FileName())
	files := []struct {
		path string
		data func() ([]byte, error)
	}{
		{out, func() ([]byte, error) { return buf.Bytes(), nil }},
		{filepath.Join(dir, StylesheetFile), staticFile("main.css")},
		{filepath.Join(dir, AssetsDir, "heart.svg"), staticFile("heart.svg")},
		{filepath.Join(dir, AssetsDir, "heart-full.svg"), staticFile("heart-full.svg")},
	}

	if err := os.MkdirAll(filepath.Join(dir, AssetsDir), 0o755); err != nil {
		return "", fmt.Errorf("write site: %w", err)
	}
	for _, f := range files {
		data, err := f.data()
		if err != nil {
			return "", fmt.Errorf("write site: %w", err)
		}
		if err := os.WriteFile(f.path, data, 0o644); err != nil {
			return "", fmt.Errorf("write site: %w", err)
		}
	}
	return out, nil
}

func staticFile(name string) func() ([]byte, error) {
	return func() ([]byte, error) {
		return static.ReadFile("static/" + name)
	}
}
