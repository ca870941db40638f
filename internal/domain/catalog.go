package domain

import "fmt"

// VersionEntry maps a protocol id reported by a probed endpoint to a
// human-readable version name. Unique on (Kind, ProtocolID).
type VersionEntry struct {
	Kind       Kind   `json:"kind"`
	ProtocolID int    `json:"protocol_id"`
	Name       string `json:"name"`
}

func (v VersionEntry) Key() string { return fmt.Sprintf("%s/%d", v.Kind, v.ProtocolID) }

// ProbeResult is what a single bounded status query against an endpoint
// returns. VersionLabel is the server's self-reported version string and
// is informational only; resolution goes through the catalog.
type ProbeResult struct {
	ProtocolID   int
	VersionLabel string
	Players      int
	MaxPlayers   int
	MOTD         string
}
