// Package fingerprint produces deterministic content hashes for reconciled
// data. The reconciler uses it to detect no-op re-matches: a health record
// whose fingerprint (ignoring the reconciliation timestamp) equals the stored
// one is not rewritten.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"strings"
)

// Generate creates a deterministic fingerprint for a value. The value is
// marshaled to JSON and canonicalized (sorted keys) before hashing.
func Generate(value any) (string, error) {
	return GenerateWithExclusions(value, nil)
}

// GenerateWithExclusions creates a fingerprint excluding specified fields.
// The excludeFields set contains dot-notation paths (e.g. "last_updated",
// "meta.version"). Top-level fields match directly; nested paths match
// hierarchically.
func GenerateWithExclusions(value any, excludeFields map[string]bool) (string, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return "", err
	}

	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return "", err
	}

	canonical := canonicalize(decoded, excludeFields, "")
	hash := sha256.Sum256([]byte(canonical))
	return hex.EncodeToString(hash[:]), nil
}

// HasChanged compares two fingerprints to detect changes
func HasChanged(oldFingerprint, newFingerprint string) bool {
	return oldFingerprint != newFingerprint
}

// canonicalize creates a deterministic string representation: maps get sorted
// keys, arrays keep order, primitives use JSON encoding.
func canonicalize(data any, excludeFields map[string]bool, currentPath string) string {
	switch v := data.(type) {
	case map[string]any:
		return canonicalizeMap(v, excludeFields, currentPath)
	case []any:
		return canonicalizeArray(v, excludeFields, currentPath)
	default:
		b, _ := json.Marshal(v)
		return string(b)
	}
}

func canonicalizeMap(m map[string]any, excludeFields map[string]bool, currentPath string) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var result strings.Builder
	result.WriteString("{")
	first := true
	for _, k := range keys {
		fieldPath := k
		if currentPath != "" {
			fieldPath = currentPath + "." + k
		}
		if shouldExcludeField(fieldPath, excludeFields) {
			continue
		}

		if !first {
			result.WriteString(",")
		}
		first = false
		keyJSON, _ := json.Marshal(k)
		result.Write(keyJSON)
		result.WriteString(":")
		result.WriteString(canonicalize(m[k], excludeFields, fieldPath))
	}
	result.WriteString("}")
	return result.String()
}

func canonicalizeArray(arr []any, excludeFields map[string]bool, currentPath string) string {
	var result strings.Builder
	result.WriteString("[")
	for i, v := range arr {
		if i > 0 {
			result.WriteString(",")
		}
		// Array elements share the element path; individual indices cannot be excluded.
		result.WriteString(canonicalize(v, excludeFields, currentPath))
	}
	result.WriteString("]")
	return result.String()
}

// shouldExcludeField checks if a field path should be excluded.
// Supports exact matches and prefix matches for nested objects.
func shouldExcludeField(fieldPath string, excludeFields map[string]bool) bool {
	if excludeFields == nil {
		return false
	}

	if excludeFields[fieldPath] {
		return true
	}

	for excluded := range excludeFields {
		if strings.HasPrefix(fieldPath, excluded+".") {
			return true
		}
	}

	return false
}
