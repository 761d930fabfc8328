// Package domain contains entities without logic, just meta-data.
package domain

import "errors"

const MaxDisplayNameLen = 36

var ErrNameTooLong = errors.New("display name too long")

// ConnID identifies one live client connection. It dies with the connection.
type ConnID string

// PeerDetails is the display metadata of a peer, snapshotted onto each
// producer it creates so discovery does not have to re-join peer state.
type PeerDetails struct {
	Name    string `json:"name"`
	IsAdmin bool   `json:"isAdmin"`
}

// NewPeerDetails avoids raw literals in adapters and applies the
// "unknown" default for an absent display name.
func NewPeerDetails(name string) (PeerDetails, error) {
	if name == "" {
		name = "unknown"
	}
	if len(name) > MaxDisplayNameLen {
		return PeerDetails{}, ErrNameTooLong
	}
	return PeerDetails{Name: name}, nil
}
