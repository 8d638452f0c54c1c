package xui

import (
	"encoding/json"
	"fmt"
)

// Reality holds the inbound transport key material. The panel needs the
// same key pair on every inbound so one public key works for all links.
type Reality struct {
	PrivateKey  string
	PublicKey   string
	Dest        string
	ServerName  string
	ShortID     string
	Fingerprint string
}

func (c *Client) streamSettings() (string, error) {
	raw, err := json.Marshal(map[string]any{
		"network":  "tcp",
		"security": "reality",
		"tcpSettings": map[string]any{
			"acceptProxyProtocol": false,
			"header":              map[string]string{"type": "none"},
		},
		"externalProxy": []any{},
		"realitySettings": map[string]any{
			"show":        false,
			"xver":        0,
			"dest":        c.reality.Dest,
			"serverNames": []string{c.reality.ServerName},
			"privateKey":  c.reality.PrivateKey,
			"minClient":   "",
			"maxClient":   "",
			"maxTimediff": 0,
			"shortIds":    []string{c.reality.ShortID},
			"settings": map[string]any{
				"publicKey":   c.reality.PublicKey,
				"fingerprint": c.reality.Fingerprint,
				"serverName":  "",
				"spiderX":     "/",
			},
		},
		"xtlsSettings": map[string]any{},
		"tlsSettings":  map[string]any{},
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal stream settings: %w", err)
	}
	return string(raw), nil
}

func (c *Client) sniffing() (string, error) {
	raw, err := json.Marshal(map[string]any{
		"enabled":      true,
		"destOverride": []string{"http", "tls", "quic", "fakedns"},
		"metadataOnly": false,
		"routeOnly":    false,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal sniffing settings: %w", err)
	}
	return string(raw), nil
}
