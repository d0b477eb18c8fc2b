// Package archive persists finished report states as JSON blobs so an
// analysis survives process restarts.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"time"

	"github.com/JaimeStill/hemalyze/internal/report"
	"github.com/JaimeStill/hemalyze/internal/sessions"
)

// Prefix roots every archived key.
const Prefix = "reports/"

const contentType = "application/json"

// Blobs is the subset of blob storage the archive needs.
type Blobs interface {
	Upload(ctx context.Context, key string, reader io.Reader, contentType string) error
	Download(ctx context.Context, key string) (io.ReadCloser, error)
	List(ctx context.Context, prefix string) ([]string, error)
}

// Archive writes and reads report snapshots.
type Archive struct {
	blobs  Blobs
	now    func() time.Time
	logger *slog.Logger
}

func New(blobs Blobs, logger *slog.Logger) *Archive {
	return &Archive{
		blobs:  blobs,
		now:    time.Now,
		logger: logger.With("system", "archive"),
	}
}

// SessionPrefix returns the key prefix holding one session's reports.
func SessionPrefix(sessionID string) string {
	return Prefix + url.PathEscape(sessions.Normalize(sessionID)) + "/"
}

// Key returns the blob key for a report. Reports with a collection are
// named after it; others are named by the current UTC time.
func (a *Archive) Key(sessionID string, st report.State) string {
	name := st.CollectionID
	if name == "" {
		name = a.now().UTC().Format("20060102T150405.000000000Z")
	}
	return SessionPrefix(sessionID) + name + ".json"
}

// Save uploads st and returns its key.
func (a *Archive) Save(ctx context.Context, sessionID string, st report.State) (string, error) {
	data, err := json.Marshal(st)
	if err != nil {
		return "", fmt.Errorf("encode report: %w", err)
	}

	key := a.Key(sessionID, st)
	if err := a.blobs.Upload(ctx, key, bytes.NewReader(data), contentType); err != nil {
		return "", err
	}

	a.logger.InfoContext(ctx, "report archived", "key", key, "size", len(data))
	return key, nil
}

// Load reads the report stored at key.
func (a *Archive) Load(ctx context.Context, key string) (report.State, error) {
	rc, err := a.blobs.Download(ctx, key)
	if err != nil {
		return report.State{}, err
	}
	defer rc.Close()

	var st report.State
	if err := json.NewDecoder(rc).Decode(&st); err != nil {
		return report.State{}, fmt.Errorf("decode report %s: %w", key, err)
	}
	if st.Errors == nil {
		st.Errors = []string{}
	}
	return st, nil
}

// List returns the keys archived for a session.
func (a *Archive) List(ctx context.Context, sessionID string) ([]string, error) {
	return a.blobs.List(ctx, SessionPrefix(sessionID))
}
