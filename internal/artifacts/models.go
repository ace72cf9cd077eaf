package artifacts

type ArtifactKind string

const (
	ImageArtifact ArtifactKind = "image" // Root filesystem tarball produced by a driver
)

type Artifact struct {
	Kind ArtifactKind `json:"kind"`
	URI  string       `json:"uri"`

	Checksum    string         `json:"checksum"` // blake3, hex encoded
	Size        int64          `json:"size"`
	ContentType string         `json:"content_type"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// Path returns the local path of the artifact.
func (a Artifact) Path() (string, error) {
	return PathFromURI(a.URI)
}
