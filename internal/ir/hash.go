package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainDispatch = "microact/dispatch/v1"
	DomainAction   = "microact/action/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data).
// The null byte separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// ActionHash computes the content hash of an action in wire form, marker
// included. Two actions hash equal iff their wire encodings are equal.
func ActionHash(a *Action) (string, error) {
	canonical, err := MarshalCanonical(a.Wire())
	if err != nil {
		return "", fmt.Errorf("ActionHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainAction, canonical), nil
}

// DispatchID computes the journal id of one dispatch. The id is stable
// across replays given the same flow, seq and action.
func DispatchID(flowToken string, seq int64, a *Action) (string, error) {
	actionHash, err := ActionHash(a)
	if err != nil {
		return "", fmt.Errorf("DispatchID: %w", err)
	}

	obj := Object{
		"flow_token":  String(flowToken),
		"seq":         Int(seq),
		"action_hash": String(actionHash),
	}
	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("DispatchID: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainDispatch, canonical), nil
}

// MustDispatchID is like DispatchID but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustDispatchID(flowToken string, seq int64, a *Action) string {
	id, err := DispatchID(flowToken, seq, a)
	if err != nil {
		panic(err)
	}
	return id
}
