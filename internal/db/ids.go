package db

import (
	"crypto/rand"
	"encoding/hex"
	"strings"
)

const (
	scopeIDPrefix      = "sc-"
	iterationIDPrefix  = "it-"
	itemIDPrefix       = "wi-"
	membershipIDPrefix = "mb-"
	epicIDPrefix       = "ep-"
	favoriteIDPrefix   = "fv-"
	auditIDPrefix      = "al-"
)

// NormalizeItemID ensures an item ID has the wi- prefix.
// Accepts bare hex IDs like "abc123" and returns "wi-abc123"
func NormalizeItemID(id string) string {
	if id == "" {
		return id
	}
	if !strings.HasPrefix(id, itemIDPrefix) {
		return itemIDPrefix + id
	}
	return id
}

// NormalizeIterationID ensures an iteration ID has the it- prefix.
func NormalizeIterationID(id string) string {
	if id == "" {
		return id
	}
	if !strings.HasPrefix(id, iterationIDPrefix) {
		return iterationIDPrefix + id
	}
	return id
}

// generatePrefixedID generates a random hex ID with the given prefix
func generatePrefixedID(prefix string, byteLen int) (string, error) {
	bytes := make([]byte, byteLen)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return prefix + hex.EncodeToString(bytes), nil
}

func generateScopeID() (string, error) {
	return generatePrefixedID(scopeIDPrefix, 3) // 6 hex characters
}

func generateIterationID() (string, error) {
	return generatePrefixedID(iterationIDPrefix, 4)
}

func generateItemID() (string, error) {
	return generatePrefixedID(itemIDPrefix, 3)
}

func generateMembershipID() (string, error) {
	return generatePrefixedID(membershipIDPrefix, 4)
}

func generateEpicID() (string, error) {
	return generatePrefixedID(epicIDPrefix, 3)
}

func generateFavoriteID() (string, error) {
	return generatePrefixedID(favoriteIDPrefix, 4)
}

func generateAuditID() (string, error) {
	return generatePrefixedID(auditIDPrefix, 4)
}
