package tempdomain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
)

// SnapshotVersion is written into every persisted snapshot.
const SnapshotVersion = "1.0.0"

// Format selects an export encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatText Format = "txt"
)

// ParseFormat maps a user supplied name to a Format.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "json":
		return FormatJSON, nil
	case "txt", "text":
		return FormatText, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
	}
}

// Snapshot is the on-disk form of a domain collection.
type Snapshot struct {
	Domains    []string   `json:"domains"`
	LastUpdate *time.Time `json:"lastUpdate,omitempty"`
	Version    string     `json:"version"`
}

// Empty reports whether the snapshot carries no domains.
func (s Snapshot) Empty() bool {
	return len(s.Domains) == 0
}

type exportDocument struct {
	Snapshot
	ExportedAt time.Time `json:"exportedAt"`
}

// FileStore persists one Snapshot to a file. A store with an empty path is
// disabled: Load returns an empty snapshot and Save is a no-op.
type FileStore struct {
	path   string
	logger *zap.Logger
}

// NewFileStore returns a store bound to path.
func NewFileStore(path string, logger *zap.Logger) *FileStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileStore{path: strings.TrimSpace(path), logger: logger}
}

// Path returns the backing file path, empty when persistence is disabled.
func (fs *FileStore) Path() string {
	return fs.path
}

// Enabled reports whether the store writes to disk.
func (fs *FileStore) Enabled() bool {
	return fs.path != ""
}

// Load reads the persisted snapshot. A missing, unreadable or malformed file
// yields an empty snapshot: a broken cache must never prevent startup.
func (fs *FileStore) Load() Snapshot {
	if !fs.Enabled() {
		return Snapshot{}
	}

	data, err := os.ReadFile(fs.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			fs.logger.Warn("temp domain snapshot unreadable, starting from defaults",
				zap.String("path", fs.path), zap.Error(err))
		}
		return Snapshot{}
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		fs.logger.Warn("temp domain snapshot corrupt, starting from defaults",
			zap.String("path", fs.path), zap.Error(err))
		return Snapshot{}
	}

	valid := snap.Domains[:0]
	for _, raw := range snap.Domains {
		if d, ok := Normalize(raw); ok {
			valid = append(valid, d)
		}
	}
	snap.Domains = valid

	fs.logger.Debug("temp domain snapshot loaded",
		zap.String("path", fs.path), zap.Int("domains", len(snap.Domains)))
	return snap
}

// Save writes snap as indented JSON. The file is replaced atomically.
func (fs *FileStore) Save(snap Snapshot) error {
	if !fs.Enabled() {
		return nil
	}
	if snap.Version == "" {
		snap.Version = SnapshotVersion
	}
	if snap.Domains == nil {
		snap.Domains = []string{}
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	return writeFileAtomic(fs.path, data)
}

// Export writes snap to path in the given format. JSON output mirrors the
// snapshot plus an exportedAt stamp; text output is one domain per line.
func (fs *FileStore) Export(path string, format Format, snap Snapshot) error {
	data, err := EncodeExport(format, snap)
	if err != nil {
		return err
	}
	if err := writeFileAtomic(path, data); err != nil {
		return fmt.Errorf("export to %s: %w", path, err)
	}
	return nil
}

// EncodeExport renders snap in format: an indented JSON document carrying
// exportedAt, or one domain per line.
func EncodeExport(format Format, snap Snapshot) ([]byte, error) {
	switch format {
	case FormatJSON:
		if snap.Version == "" {
			snap.Version = SnapshotVersion
		}
		if snap.Domains == nil {
			snap.Domains = []string{}
		}
		doc := exportDocument{Snapshot: snap, ExportedAt: time.Now().UTC()}
		encoded, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("encode export: %w", err)
		}
		return encoded, nil
	case FormatText:
		var buf bytes.Buffer
		for _, d := range snap.Domains {
			buf.WriteString(d)
			buf.WriteByte('\n')
		}
		return buf.Bytes(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

// Import reads a domain list from path. Files ending in .json hold either
// {"domains": [...]} or a bare array; anything else is parsed as a
// line-delimited list. Unlike Load, failures are returned to the caller.
func (fs *FileStore) Import(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("import %s: %w", path, err)
	}

	if strings.EqualFold(filepath.Ext(path), ".json") {
		raw, err := decodeDomainJSON(data)
		if err != nil {
			return nil, fmt.Errorf("import %s: %w", path, err)
		}
		out := make([]string, 0, len(raw))
		for _, r := range raw {
			if d, ok := Normalize(r); ok {
				out = append(out, d)
			}
		}
		return out, nil
	}

	domains, err := ParseList(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("import %s: %w", path, err)
	}
	return domains, nil
}

// LoadLocalList reads a line-delimited domain list from path.
func LoadLocalList(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	domains, err := ParseList(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return domains, nil
}

func decodeDomainJSON(data []byte) ([]string, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var list []string
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return nil, fmt.Errorf("decode domain array: %w", err)
		}
		return list, nil
	}

	var doc struct {
		Domains []string `json:"domains"`
	}
	if err := json.Unmarshal(trimmed, &doc); err != nil {
		return nil, fmt.Errorf("decode domain document: %w", err)
	}
	return doc.Domains, nil
}

// writeFileAtomic writes to a temp file first, then renames it into place.
func writeFileAtomic(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}
