package docker

import (
	"github.com/opencontainers/go-digest"
)

// ImageSet partitions the requested image references by local availability.
// Resolved and Failed are disjoint and together cover Requested.
type ImageSet struct {
	Requested []string
	Resolved  []string
	Failed    []string
}

// ArchiveArtifact is one image exported to a portable archive on the
// staging area.
type ArchiveArtifact struct {
	Ref    string
	Path   string
	Digest digest.Digest
}
