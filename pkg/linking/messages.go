package linking

// pairingRequest is the body of the pairing POST. The device type names
// the application to the bridge; generateclientkey requests the
// streaming key alongside the username.
type pairingRequest struct {
	DeviceType        string `json:"devicetype"`
	GenerateClientKey bool   `json:"generateclientkey"`
}

// pairingReply is one element of the pairing response array. Exactly one
// of Success or Error is set.
type pairingReply struct {
	Success *pairingSuccess `json:"success,omitempty"`
	Error   *pairingError   `json:"error,omitempty"`
}

type pairingSuccess struct {
	Username  string `json:"username"`
	ClientKey string `json:"clientkey,omitempty"`
}

type pairingError struct {
	Type        int    `json:"type"`
	Address     string `json:"address"`
	Description string `json:"description"`
}
