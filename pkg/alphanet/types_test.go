package alphanet

import (
	"encoding/json"
	"testing"
	"time"
)

func TestFlexInt_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected int64
	}{
		{"integer", `123`, 123},
		{"string number", `"456"`, 456},
		{"empty string", `""`, 0},
		{"negative", `-1`, -1},
		{"string negative", `"-1"`, -1},
		{"float", `12.0`, 12},
		{"garbage string", `"abc"`, 0},
		{"bool", `true`, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var f FlexInt
			if err := json.Unmarshal([]byte(tt.input), &f); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if f.Int() != tt.expected {
				t.Errorf("expected %d, got %d", tt.expected, f.Int())
			}
		})
	}
}

func TestTimestamp_UnmarshalJSON(t *testing.T) {
	want := time.Date(2024, 3, 5, 10, 30, 0, 0, time.UTC)

	tests := []struct {
		name  string
		input string
		want  time.Time
	}{
		{"unix seconds", `1709634600`, want},
		{"unix millis", `1709634600000`, want},
		{"string seconds", `"1709634600"`, want},
		{"rfc3339", `"2024-03-05T10:30:00Z"`, want},
		{"sql datetime", `"2024-03-05 10:30:00"`, want},
		{"date only", `"2024-03-05"`, time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)},
		{"empty", `""`, time.Time{}},
		{"null", `null`, time.Time{}},
		{"garbage", `"yesterday"`, time.Time{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ts Timestamp
			if err := json.Unmarshal([]byte(tt.input), &ts); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !ts.Equal(tt.want) {
				t.Errorf("expected %v, got %v", tt.want, ts.Time)
			}
		})
	}
}

func TestEnvelope_Failed(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		failed bool
		code   int64
	}{
		{"null error", `{"error":null,"result":{}}`, false, 0},
		{"missing error", `{"result":{}}`, false, 0},
		{"false error", `{"error":false,"result":{}}`, false, 0},
		{"empty object", `{"error":{},"result":{}}`, false, 0},
		{"fatal", `{"error":{"code":-1,"message":"expired"}}`, true, -1},
		{"string code", `{"error":{"code":"42","message":"nope"}}`, true, 42},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var env Envelope[AuthResult]
			if err := json.Unmarshal([]byte(tt.input), &env); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if env.Failed() != tt.failed {
				t.Errorf("expected Failed()=%v", tt.failed)
			}
			if tt.failed && env.Error.Code.Int() != tt.code {
				t.Errorf("expected code %d, got %d", tt.code, env.Error.Code.Int())
			}
		})
	}
}

func TestAppSettings_Platform(t *testing.T) {
	doc := `{"settings":{"alpha_networks_dash":{
		"mena":{"platform_url":"https://mena.example.com/","hss_key":"k1"},
		"broken":{"hss_key":"k2"}
	}}}`

	var sd SettingsDocument
	if err := json.Unmarshal([]byte(doc), &sd); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	p, ok := sd.Settings.Platform("mena")
	if !ok {
		t.Fatal("expected mena platform")
	}
	if p.URL != "https://mena.example.com/" || p.HSSKey != "k1" {
		t.Errorf("unexpected platform %+v", p)
	}

	if _, ok := sd.Settings.Platform("broken"); ok {
		t.Error("expected platform without url to be rejected")
	}
	if _, ok := sd.Settings.Platform("au"); ok {
		t.Error("expected unknown region to be rejected")
	}
	if len(sd.Settings.Regions()) != 2 {
		t.Errorf("expected 2 regions, got %d", len(sd.Settings.Regions()))
	}
}

func TestChannel_SortKey(t *testing.T) {
	var channels []Channel
	input := `[
		{"idChannel":"1","name":"A","sorting":3,"localizeNumber":100},
		{"idChannel":2,"name":"B","localizeNumber":"7"},
		{"idChannel":3,"name":"C","sorting":null,"localizeNumber":9}
	]`
	if err := json.Unmarshal([]byte(input), &channels); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []int64{3, 7, 9}
	for i, ch := range channels {
		if got := ch.SortKey(); got != want[i] {
			t.Errorf("channel %s: expected sort key %d, got %d", ch.Name, want[i], got)
		}
	}
	if channels[0].ID.Int() != 1 {
		t.Errorf("expected string id to decode, got %d", channels[0].ID.Int())
	}
}

func TestEPGRow_Accessors(t *testing.T) {
	var result EPGResult
	input := `{"epg":[{"id_channel":"12","startutc":1709634600,"endutc":1709638200,"title":"News","synopsis":"Daily"}]}`
	if err := json.Unmarshal([]byte(input), &result); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.EPG) != 1 {
		t.Fatalf("expected 1 row, got %d", len(result.EPG))
	}

	row := result.EPG[0]
	if row.ChannelID() != 12 {
		t.Errorf("expected channel 12, got %d", row.ChannelID())
	}
	if row.Start().Unix() != 1709634600 || row.End().Unix() != 1709638200 {
		t.Errorf("unexpected times %v - %v", row.Start(), row.End())
	}
	if row.Title() != "News" || row.Description() != "Daily" {
		t.Errorf("unexpected text %q / %q", row.Title(), row.Description())
	}
	if !(EPGRow{}).Start().IsZero() {
		t.Error("expected zero start for empty row")
	}
}
