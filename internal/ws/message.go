package ws

import (
	"encoding/json"

	"sei-tracker/internal/domain"
)

// Inbound command types.
const (
	CmdTrackWallet   = "track_wallet"
	CmdTrackMemecoin = "track_memecoin"
	CmdTrackNFT      = "track_nft"
	CmdStopTracking  = "stop_tracking"
	CmdDisconnect    = "disconnect"
)

// Outbound message types. Per-kind data and update types come from
// domain.Kind.DataEvent and domain.Kind.UpdateEvent.
const (
	MsgConnected       = "connected"
	MsgTrackingStarted = "tracking_started"
	MsgTrackingStopped = "tracking_stopped"
	MsgTrackingError   = "tracking_error"
)

// Envelope wraps every message on the socket.
type Envelope struct {
	Type      string `json:"type"`
	Data      any    `json:"data,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// Command is an inbound client message.
type Command struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// TrackWalletData is the payload of track_wallet.
type TrackWalletData struct {
	Address string          `json:"address"`
	Options json.RawMessage `json:"options,omitempty"`
}

// TrackMemecoinData is the payload of track_memecoin.
type TrackMemecoinData struct {
	Symbol string `json:"symbol"`
}

// TrackNFTData is the payload of track_nft.
type TrackNFTData struct {
	TokenID string `json:"tokenId"`
}

// StopTrackingData is the payload of stop_tracking.
type StopTrackingData struct {
	Type       domain.Kind `json:"type"`
	Identifier string      `json:"identifier"`
}

// TrackingStatus is the payload of tracking_started, tracking_stopped and tracking_error.
type TrackingStatus struct {
	Type       domain.Kind `json:"type"`
	Identifier string      `json:"identifier"`
	Error      string      `json:"error,omitempty"`
}

// ConnectedData is the payload of connected.
type ConnectedData struct {
	ConnectionID string `json:"connectionId"`
}
