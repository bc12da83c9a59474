package model

import (
	"github.com/google/uuid"
)

// ArtifactID identifies one analysis run. Every file the pipeline produces
// for that run derives its name from this single ID, so the uploaded image
// and the generated audio always share a stem.
type ArtifactID string

// NewArtifactID generates a fresh random identifier.
func NewArtifactID() ArtifactID {
	return ArtifactID(uuid.NewString())
}

// ImageName returns the filename for the uploaded image with the given
// extension (without a leading dot).
func (id ArtifactID) ImageName(ext string) string {
	return string(id) + "." + ext
}

// AudioName returns the filename for the synthesized speech artifact.
func (id ArtifactID) AudioName() string {
	return string(id) + ".mp3"
}

func (id ArtifactID) String() string {
	return string(id)
}
