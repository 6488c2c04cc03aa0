package web

import (
	"encoding/json"

	"github.com/sweeney/brew-monitor/internal/status"
)

// LiveJSON is the message pushed to websocket clients.
type LiveJSON struct {
	Shot          int               `json:"shot"`
	ShotActive    bool              `json:"shot_active"`
	Brew          *status.BrewJSON  `json:"brew"`
	PaddleClosed  bool              `json:"paddle_closed"`
	MQTTConnected bool              `json:"mqtt_connected"`
	Counts        status.CountsJSON `json:"shot_counts"`
}

func formatLive(snap status.Snapshot) []byte {
	live := LiveJSON{
		Shot:          snap.Shot,
		ShotActive:    snap.ShotActive,
		PaddleClosed:  snap.Paddle.Closed,
		MQTTConnected: snap.MQTTConnected,
		Counts:        status.NewCountsJSON(snap.Counts),
	}
	if snap.Brew != nil {
		b := status.NewBrewJSON(*snap.Brew)
		live.Brew = &b
	}
	data, _ := json.Marshal(live)
	return data
}
