package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/alanyoungcy/marketstream/internal/domain"
)

// snapshotVersion is bumped when the document layout changes.
const snapshotVersion = 1

// multipartThreshold is the encoded size above which a snapshot is uploaded
// in parts.
const multipartThreshold = 16 * 1024 * 1024

// snapshotDoc is the stored catalog snapshot.
type snapshotDoc struct {
	Version int             `json:"version"`
	TakenAt time.Time       `json:"taken_at"`
	Markets []domain.Market `json:"markets"`
}

// Snapshots writes and restores catalog snapshots under a key prefix.
type Snapshots struct {
	writer         domain.BlobWriter
	reader         domain.BlobReader
	prefix         string
	multipartAbove int
}

// NewSnapshots creates a Snapshots store. prefix is normalised to end in "/".
func NewSnapshots(w domain.BlobWriter, r domain.BlobReader, prefix string) *Snapshots {
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &Snapshots{writer: w, reader: r, prefix: prefix, multipartAbove: multipartThreshold}
}

// Path returns the object key for a snapshot taken at t. Keys sort
// lexically in time order.
func (s *Snapshots) Path(t time.Time) string {
	return fmt.Sprintf("%s%020d.json", s.prefix, t.UTC().UnixNano())
}

// Save uploads markets as a new snapshot and returns its key. Large catalogs
// go through a multipart upload.
func (s *Snapshots) Save(ctx context.Context, markets []domain.Market, now time.Time) (string, error) {
	body, err := json.Marshal(snapshotDoc{Version: snapshotVersion, TakenAt: now.UTC(), Markets: markets})
	if err != nil {
		return "", fmt.Errorf("s3blob: encode snapshot: %w", err)
	}
	path := s.Path(now)
	if len(body) > s.multipartAbove {
		err = s.writer.PutMultipart(ctx, path, bytes.NewReader(body), "application/json", minPartSize)
	} else {
		err = s.writer.Put(ctx, path, bytes.NewReader(body), "application/json")
	}
	if err != nil {
		return "", err
	}
	return path, nil
}

// Latest loads the newest snapshot. It returns domain.ErrNotFound when none
// exists.
func (s *Snapshots) Latest(ctx context.Context) ([]domain.Market, error) {
	infos, err := s.reader.List(ctx, s.prefix)
	if err != nil {
		return nil, err
	}

	var (
		latest string
		best   int64 = -1
	)
	for _, info := range infos {
		name := strings.TrimSuffix(strings.TrimPrefix(info.Path, s.prefix), ".json")
		ts, err := strconv.ParseInt(name, 10, 64)
		if err != nil {
			continue
		}
		if ts > best {
			best, latest = ts, info.Path
		}
	}
	if latest == "" {
		return nil, fmt.Errorf("s3blob: latest snapshot: %w", domain.ErrNotFound)
	}

	rc, err := s.reader.Get(ctx, latest)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	var doc snapshotDoc
	if err := json.NewDecoder(rc).Decode(&doc); err != nil {
		return nil, fmt.Errorf("s3blob: decode snapshot %s: %w", latest, err)
	}
	if doc.Version != snapshotVersion {
		return nil, fmt.Errorf("s3blob: snapshot %s has unsupported version %d", latest, doc.Version)
	}
	return doc.Markets, nil
}
