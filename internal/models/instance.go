package models

// WhatsApp instance connection states as seen through the gateway. The
// processor only ever dispatches through a connected instance; anything it
// cannot determine reads as disconnected.
const (
	InstanceConnected    = "connected"
	InstanceDisconnected = "disconnected"
	InstanceConnecting   = "connecting"
	InstanceError        = "error"
)
