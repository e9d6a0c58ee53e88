package publisher

import (
	"fmt"

	"alert-publisher/internal/models"
)

// RenderMessage builds the human-readable alert text broadcast to recipients.
// Each hazard type has its own template; when the type-specific fields are
// missing the raw description is used, and a generic line covers the rest.
func RenderMessage(alert models.AlertMessage) string {
	if msg, ok := typedMessage(alert); ok {
		return msg
	}
	if alert.Description != "" {
		return alert.Description
	}
	return fmt.Sprintf("[%s] %s alert", alert.Severity, alert.AlertType)
}

func typedMessage(alert models.AlertMessage) (string, bool) {
	switch alert.AlertType {
	case "EARTHQUAKE":
		if alert.Magnitude != nil {
			return fmt.Sprintf("Earthquake M%.1f detected at %s", *alert.Magnitude, place(alert)), true
		}
	case "FLOOD":
		if alert.WaterLevelFeet != nil {
			station := alert.StationName
			if station == "" {
				station = place(alert)
			}
			return fmt.Sprintf("Flood warning: water level %.1f ft at %s", *alert.WaterLevelFeet, station), true
		}
	case "TSUNAMI":
		if alert.TsunamiRiskScore != nil {
			return fmt.Sprintf("Tsunami warning: risk score %d for %s", *alert.TsunamiRiskScore, place(alert)), true
		}
	case "SPACE_WEATHER":
		if alert.KpValue != nil {
			return fmt.Sprintf("Space weather alert: Kp index %.1f", *alert.KpValue), true
		}
	case "CME":
		if alert.CmeSpeed != nil {
			return fmt.Sprintf("Solar CME alert: speed %.0f km/s", *alert.CmeSpeed), true
		}
	}
	return "", false
}

func place(alert models.AlertMessage) string {
	if alert.Location != "" {
		return alert.Location
	}
	if alert.Region != "" {
		return alert.Region
	}
	return "unknown location"
}
