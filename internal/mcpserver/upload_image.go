package mcpserver

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"path"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/sudo-Harshk/NoteDiscovery/internal/storage"
)

var mimeToExt = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

type uploadResult struct {
	Path          string `json:"path"`
	MarkdownImage string `json:"markdownImage"`
}

func (s *Server) uploadImage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	notePath, err := req.RequireString("note_path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	uri, err := req.RequireString("data")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	data, ext, err := decodeDataURI(uri)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := checkContent(data, ext); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	stem := req.GetString("filename", "")
	stem = strings.TrimSuffix(stem, path.Ext(stem))
	if stem == "" {
		stem = "image"
	}
	filename := stem + ext
	rel, err := s.svc.UploadImage(ctx, notePath, filename, data)
	if err != nil {
		return s.toolError("upload_image", err)
	}

	// Reference relative to the note's folder, the way the editor inserts it.
	link := rel
	if folder := storage.NoteFolder(storage.NormalizeNotePath(notePath)); folder != "" {
		link = strings.TrimPrefix(rel, folder+"/")
	}
	out, err := json.Marshal(uploadResult{
		Path:          rel,
		MarkdownImage: fmt.Sprintf("![%s](%s)", strings.TrimSuffix(path.Base(rel), path.Ext(rel)), link),
	})
	if err != nil {
		return nil, fmt.Errorf("mcpserver: encode upload result: %w", err)
	}
	return mcp.NewToolResultText(string(out)), nil
}

// decodeDataURI parses a data:<mediatype>;base64,<data> URI and returns the
// bytes plus the extension of its image MIME type.
func decodeDataURI(uri string) ([]byte, string, error) {
	rest, ok := strings.CutPrefix(uri, "data:")
	if !ok {
		return nil, "", fmt.Errorf("expected a data: URI")
	}
	meta, encoded, ok := strings.Cut(rest, ",")
	if !ok {
		return nil, "", fmt.Errorf("invalid data URI: missing comma separator")
	}
	if !strings.HasSuffix(meta, ";base64") {
		return nil, "", fmt.Errorf("only base64 data URIs are supported")
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		data, err = base64.RawStdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, "", fmt.Errorf("invalid base64 data: %w", err)
		}
	}

	mime, _, _ := strings.Cut(strings.TrimSuffix(meta, ";base64"), ";")
	ext := mimeToExt[strings.ToLower(mime)]
	if ext == "" {
		return nil, "", fmt.Errorf("unsupported MIME type in data URI: %q", mime)
	}
	return data, ext, nil
}

// checkContent verifies the bytes sniff as the declared image type.
func checkContent(data []byte, ext string) error {
	detected, _, _ := strings.Cut(http.DetectContentType(data), ";")
	if mimeToExt[detected] != ext {
		return fmt.Errorf("content does not match %s (detected: %s)", ext, detected)
	}
	return nil
}
