package domain

import (
	"encoding/json"
	"fmt"
)

// ArtifactKey builds the versioned storage key for an artifact type.
func ArtifactKey(artifactType string, version int) string {
	return fmt.Sprintf("%s-v%d", artifactType, version)
}

// CurrentVersion returns the latest version number for the type, 0 if none.
func (s *SessionState) CurrentVersion(artifactType string) int {
	return s.ArtifactCounters[artifactType]
}

// PutArtifactVersion increments the type's counter by one and stores content
// under the new versioned key. Existing versions are never touched.
func (s *SessionState) PutArtifactVersion(artifactType string, content json.RawMessage) (key string, version int) {
	version = s.ArtifactCounters[artifactType] + 1
	s.ArtifactCounters[artifactType] = version
	key = ArtifactKey(artifactType, version)
	s.Artifacts[key] = content
	return key, version
}

// CurrentArtifact returns the content stored at the type's latest version.
func (s *SessionState) CurrentArtifact(artifactType string) (json.RawMessage, bool) {
	version := s.ArtifactCounters[artifactType]
	if version == 0 {
		return nil, false
	}
	content, ok := s.Artifacts[ArtifactKey(artifactType, version)]
	return content, ok
}

// EnsureVersion initializes the type at version 1 if it has no versions yet,
// and returns the current version. Used by the edit path, which must have a
// slot to overwrite even before any generation ran.
func (s *SessionState) EnsureVersion(artifactType string) int {
	if s.ArtifactCounters[artifactType] == 0 {
		s.ArtifactCounters[artifactType] = 1
	}
	return s.ArtifactCounters[artifactType]
}

// OverwriteCurrentArtifact replaces the content at the type's current version
// in place. The counter is not bumped; edits do not create new versions.
func (s *SessionState) OverwriteCurrentArtifact(artifactType string, content json.RawMessage) string {
	version := s.EnsureVersion(artifactType)
	key := ArtifactKey(artifactType, version)
	s.Artifacts[key] = content
	return key
}

// PutVisualArtifact stores rendered visual content at the type's current
// version key. Populated by the UI-to-backend visual sync path.
func (s *SessionState) PutVisualArtifact(artifactType, visualData string) string {
	version := s.EnsureVersion(artifactType)
	key := ArtifactKey(artifactType, version)
	s.VisualArtifacts[key] = visualData
	return key
}
