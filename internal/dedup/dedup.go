// Package dedup provides upload deduplication via SHA256 fingerprinting and state persistence.
package dedup

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// State represents the deduplication state with fingerprint history.
type State struct {
	Version      int                           `json:"version"`
	Fingerprints map[string]*FingerprintRecord `json:"fingerprints"`
	Metadata     StateMetadata                 `json:"metadata"`
}

// FingerprintRecord tracks an upload fingerprint across multiple observations.
type FingerprintRecord struct {
	FirstSeen time.Time `json:"firstSeen"`
	LastSeen  time.Time `json:"lastSeen"`
	Count     int       `json:"count"`
	UploadID  string    `json:"uploadId"`
	FileName  string    `json:"fileName"`
}

// StateMetadata contains aggregate statistics about the state.
type StateMetadata struct {
	LastUpdated       time.Time `json:"lastUpdated"`
	TotalFingerprints int       `json:"totalFingerprints"`
}

const (
	// CurrentVersion is the current state file format version
	CurrentVersion = 1
)

// NewState creates an empty deduplication state with version 1.
func NewState() *State {
	return &State{
		Version:      CurrentVersion,
		Fingerprints: make(map[string]*FingerprintRecord),
		Metadata: StateMetadata{
			LastUpdated:       time.Now(),
			TotalFingerprints: 0,
		},
	}
}

// GenerateFingerprint creates a SHA256 hash over the company and the raw
// file contents. Format: SHA256("{companyID}|{contents}").
// The company ID is normalized: lowercase and trimmed, so the same file
// uploaded for two different companies is not treated as a duplicate.
func GenerateFingerprint(companyID string, contents []byte) string {
	normalizedCompany := strings.ToLower(strings.TrimSpace(companyID))

	h := sha256.New()
	h.Write([]byte(normalizedCompany))
	h.Write([]byte("|"))
	h.Write(contents)
	return hex.EncodeToString(h.Sum(nil))
}

// LoadState loads a state file from disk.
// Returns os.IsNotExist error if file doesn't exist (caller should handle).
func LoadState(filePath string) (*State, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err // Preserve os.IsNotExist for caller
	}

	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to parse state file: %w", err)
	}

	// Validate version
	if state.Version != CurrentVersion {
		return nil, fmt.Errorf("unsupported state file version %d (current version: %d)", state.Version, CurrentVersion)
	}

	// Ensure fingerprints map is initialized
	if state.Fingerprints == nil {
		state.Fingerprints = make(map[string]*FingerprintRecord)
	}

	return &state, nil
}

// SaveState atomically writes the state to disk.
// Uses atomic write pattern: write to temp file, then rename.
// Ensures parent directory exists.
func SaveState(state *State, filePath string) error {
	// Ensure directory exists
	dir := filepath.Dir(filePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	// Update metadata
	state.Metadata.LastUpdated = time.Now()
	state.Metadata.TotalFingerprints = len(state.Fingerprints)

	// Marshal to JSON with indentation for readability
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	// Atomic write pattern: write to temp file, then rename
	tempFile := filePath + ".tmp"
	if err := os.WriteFile(tempFile, data, 0644); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}

	if err := os.Rename(tempFile, filePath); err != nil {
		// Clean up temp file on error
		os.Remove(tempFile)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	return nil
}

// IsDuplicate checks if a fingerprint exists in the state.
func (s *State) IsDuplicate(fingerprint string) bool {
	_, exists := s.Fingerprints[fingerprint]
	return exists
}

// RecordUpload records an upload fingerprint in the state.
// If new: creates record with firstSeen=timestamp, count=1.
// If exists: updates lastSeen=timestamp, increments count.
func (s *State) RecordUpload(fingerprint, uploadID, fileName string, timestamp time.Time) error {
	if fingerprint == "" {
		return fmt.Errorf("fingerprint cannot be empty")
	}
	if uploadID == "" {
		return fmt.Errorf("upload ID cannot be empty")
	}

	if record, exists := s.Fingerprints[fingerprint]; exists {
		// Update existing record
		record.LastSeen = timestamp
		record.Count++
	} else {
		// Create new record
		s.Fingerprints[fingerprint] = &FingerprintRecord{
			FirstSeen: timestamp,
			LastSeen:  timestamp,
			Count:     1,
			UploadID:  uploadID,
			FileName:  fileName,
		}
	}

	return nil
}
