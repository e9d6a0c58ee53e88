package models

import "time"

// AlertMessage is the inbound alert payload consumed from Kafka.
// It matches the alert-engine event shape; unknown fields are ignored
// by the JSON decoder so producers can evolve independently.
type AlertMessage struct {
	ID        string `json:"id"`
	AlertType string `json:"alertType"`
	Severity  string `json:"severity"`

	// Space weather fields
	KpValue *float64 `json:"kpValue,omitempty"`

	// Earthquake fields
	EarthquakeID string   `json:"earthquakeId,omitempty"`
	Magnitude    *float64 `json:"magnitude,omitempty"`
	DepthKm      *float64 `json:"depthKm,omitempty"`
	Location     string   `json:"location,omitempty"`
	Region       string   `json:"region,omitempty"`

	// Tsunami fields
	TsunamiRiskScore *int `json:"tsunamiRiskScore,omitempty"`

	// Flood fields
	StationID      string   `json:"stationId,omitempty"`
	StationName    string   `json:"stationName,omitempty"`
	WaterLevelFeet *float64 `json:"waterLevelFeet,omitempty"`
	FloodStageFeet *float64 `json:"floodStageFeet,omitempty"`

	// CME fields
	CmeSpeed *float64 `json:"cmeSpeed,omitempty"`
	CmeType  string   `json:"cmeType,omitempty"`

	// Geographic coordinates
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`

	Description string    `json:"description,omitempty"`
	RawData     string    `json:"rawData,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}
