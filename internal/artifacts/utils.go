package artifacts

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/zeebo/blake3"
)

const fileScheme = "file://"

// FileURI returns the file:// URI of an absolute path.
func FileURI(path string) string {
	return fileScheme + path
}

func PathFromURI(uri string) (string, error) {
	if !strings.HasPrefix(uri, fileScheme) {
		return "", errors.New("not a file:// URI")
	}
	return strings.TrimPrefix(uri, fileScheme), nil
}

// FromFile describes the file at path, hashing its content.
func FromFile(path string, kind ArtifactKind, metadata map[string]any) (Artifact, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return Artifact{}, err
	}

	f, err := os.Open(abs)
	if err != nil {
		return Artifact{}, fmt.Errorf("open artifact: %w", err)
	}
	defer f.Close()

	hasher := blake3.New()
	size, err := io.Copy(hasher, f)
	if err != nil {
		return Artifact{}, fmt.Errorf("hash artifact %s: %w", abs, err)
	}

	return Artifact{
		Kind:        kind,
		URI:         FileURI(abs),
		Checksum:    hex.EncodeToString(hasher.Sum(nil)),
		Size:        size,
		ContentType: detectContentType(abs),
		Metadata:    cloneMetadata(metadata),
	}, nil
}

// WriteRecord stores the artifact description next to the artifact as
// <path>.json and returns the record path.
func WriteRecord(artifact Artifact) (string, error) {
	path, err := artifact.Path()
	if err != nil {
		return "", err
	}

	payload, err := json.MarshalIndent(artifact, "", "  ")
	if err != nil {
		return "", err
	}
	recordPath := metadataPath(path)
	if err := os.WriteFile(recordPath, append(payload, '\n'), 0o644); err != nil {
		return "", err
	}
	return recordPath, nil
}

func metadataPath(path string) string {
	return path + ".json"
}

func detectContentType(path string) string {
	switch {
	case strings.HasSuffix(path, ".tar.gz"), strings.HasSuffix(path, ".tgz"):
		return "application/gzip"
	case strings.HasSuffix(path, ".tar"):
		return "application/x-tar"
	default:
		return "application/octet-stream"
	}
}

func cloneMetadata(metadata map[string]any) map[string]any {
	if metadata == nil {
		return nil
	}
	cloned := make(map[string]any, len(metadata))
	for k, v := range metadata {
		cloned[k] = v
	}
	return cloned
}
