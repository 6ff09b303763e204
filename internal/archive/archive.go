// Package archive persists raw sync payloads to disk for loss-minimizing
// imports and exports. Writes are best effort: a failure degrades to a
// logged warning and never fails the sync run.
package archive

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Writer writes timestamped JSON payload files under root/<tenant key>/.
type Writer struct {
	root   string
	logger *slog.Logger
	now    func() time.Time
}

// NewWriter creates an archive writer rooted at dir.
func NewWriter(dir string, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Writer{root: dir, logger: logger, now: time.Now}
}

// Write stores a payload for a (tenant, domain) pair and returns the file
// path. An empty path means the write failed; the failure has already been
// logged and the caller should carry on.
func (w *Writer) Write(tenantKey, domain string, payload any) string {
	if w.root == "" {
		return ""
	}

	ts := w.now().UTC().Format("20060102T150405Z")
	dir := filepath.Join(w.root, sanitize(tenantKey, "unknown"))
	path := filepath.Join(dir, ts+"_"+sanitize(domain, "domain")+".json")

	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		w.logger.Warn("archive write skipped", "domain", domain, "error", err)
		return ""
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		w.logger.Warn("archive write skipped", "domain", domain, "error", err)
		return ""
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		w.logger.Warn("archive write skipped", "domain", domain, "error", err)
		return ""
	}
	return path
}

// sanitize keeps only filename-safe characters.
func sanitize(s, fallback string) string {
	var b strings.Builder
	for _, ch := range s {
		switch {
		case ch >= 'a' && ch <= 'z', ch >= 'A' && ch <= 'Z', ch >= '0' && ch <= '9', ch == '-', ch == '_':
			b.WriteRune(ch)
		}
	}
	if b.Len() == 0 {
		return fallback
	}
	return b.String()
}
