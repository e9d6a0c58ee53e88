package publisher

import (
	"testing"

	"alert-publisher/internal/models"
)

func f(v float64) *float64 { return &v }
func i(v int) *int         { return &v }

func TestRenderMessage(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name  string
		alert models.AlertMessage
		want  string
	}{
		{
			name: "earthquake with magnitude and location",
			alert: models.AlertMessage{
				AlertType: "EARTHQUAKE", Severity: "HIGH",
				Magnitude: f(5.0), Location: "California",
			},
			want: "Earthquake M5.0 detected at California",
		},
		{
			name: "earthquake falls back to region",
			alert: models.AlertMessage{
				AlertType: "EARTHQUAKE", Severity: "HIGH",
				Magnitude: f(7.25), Region: "Pacific Rim",
			},
			want: "Earthquake M7.2 detected at Pacific Rim",
		},
		{
			name: "earthquake without magnitude uses description",
			alert: models.AlertMessage{
				AlertType: "EARTHQUAKE", Severity: "HIGH",
				Description: "Strong shaking reported",
			},
			want: "Strong shaking reported",
		},
		{
			name: "flood with station name",
			alert: models.AlertMessage{
				AlertType: "FLOOD", Severity: "MEDIUM",
				WaterLevelFeet: f(21.5), StationName: "Guadalupe River",
			},
			want: "Flood warning: water level 21.5 ft at Guadalupe River",
		},
		{
			name: "tsunami with risk score",
			alert: models.AlertMessage{
				AlertType: "TSUNAMI", Severity: "CRITICAL",
				TsunamiRiskScore: i(8), Region: "Aleutian Islands",
			},
			want: "Tsunami warning: risk score 8 for Aleutian Islands",
		},
		{
			name: "space weather with kp index",
			alert: models.AlertMessage{
				AlertType: "SPACE_WEATHER", Severity: "LOW",
				KpValue: f(6.3),
			},
			want: "Space weather alert: Kp index 6.3",
		},
		{
			name: "cme with speed",
			alert: models.AlertMessage{
				AlertType: "CME", Severity: "MEDIUM",
				CmeSpeed: f(1250),
			},
			want: "Solar CME alert: speed 1250 km/s",
		},
		{
			name: "unknown type with description",
			alert: models.AlertMessage{
				AlertType: "WILDFIRE", Severity: "HIGH",
				Description: "Wildfire spreading near ridge",
			},
			want: "Wildfire spreading near ridge",
		},
		{
			name: "unknown type without description is generic",
			alert: models.AlertMessage{
				AlertType: "WILDFIRE", Severity: "HIGH",
			},
			want: "[HIGH] WILDFIRE alert",
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := RenderMessage(tc.alert); got != tc.want {
				t.Fatalf("got %q, want %q", got, tc.want)
			}
		})
	}
}
