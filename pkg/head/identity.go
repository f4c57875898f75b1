package head

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/denisbrodbeck/machineid"

	"github.com/robotalks/laptimer/pkg/msgs"
)

// AppID scopes the machine id so it is not exposed as is.
const AppID = "laptimer"

// MachineID retrieves the id identifying this head.
func MachineID() (string, error) {
	id, err := machineid.ProtectedID(AppID)
	if err != nil {
		return "", err
	}
	return id[:16], nil
}

// UniqueID derives the identification unique id from a head id.
// Hex ids are decoded, anything else is hashed.
func UniqueID(id string) (uid [msgs.UniqueIDSize]byte) {
	if b, err := hex.DecodeString(id); err == nil && len(b) >= msgs.UniqueIDSize {
		copy(uid[:], b)
		return
	}
	sum := sha256.Sum256([]byte(id))
	copy(uid[:], sum[:])
	return
}
