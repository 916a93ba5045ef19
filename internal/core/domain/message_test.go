package domain

import "testing"

func TestDecodeFrame(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr bool
	}{
		{"valid identify", `{"type":"identify","playerId":"P1"}`, false},
		{"valid offer", `{"type":"offer","sdp":"v=0..."}`, false},
		{"missing type", `{"playerId":"P1"}`, true},
		{"empty type", `{"type":""}`, true},
		{"not an object", `[1,2,3]`, true},
		{"nested data envelope rejected", `{"type":"offer","id":"x","data":{"sdp":"v=0..."}}`, true},
		{"invalid json", `{not json`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeFrame([]byte(tt.raw))
			if (err != nil) != tt.wantErr {
				t.Errorf("DecodeFrame(%q) error = %v, wantErr %v", tt.raw, err, tt.wantErr)
			}
		})
	}
}

func TestFrameWithID(t *testing.T) {
	f := Frame{"type": TypeOffer, "sdp": "v=0..."}
	stamped := f.WithID("conn-1")
	if stamped.String("id") != "conn-1" {
		t.Errorf("expected id to be stamped, got %v", stamped["id"])
	}
	if _, present := f["id"]; present {
		t.Error("original frame must not be mutated")
	}

	alreadyStamped := Frame{"type": TypeOffer, "id": "conn-2"}
	out := alreadyStamped.WithID("conn-1")
	if out.String("id") != "conn-2" {
		t.Error("WithID must not overwrite an existing id")
	}
}

func TestFrameClone(t *testing.T) {
	f := Frame{"type": TypeOffer, "sdp": "v=0..."}
	clone := f.Clone()
	clone["sdp"] = "mutated"
	if f.String("sdp") == "mutated" {
		t.Error("Clone must be independent of the original")
	}
}

func TestConfigMessage(t *testing.T) {
	servers := []ICEServerConfig{{URLs: []string{"stun:stun.example.com:3478"}}}
	msg := ConfigMessage(servers)
	if msg.Type() != TypeConfig {
		t.Errorf("expected type %q, got %q", TypeConfig, msg.Type())
	}
}

func TestStreamerListMessageNilSafe(t *testing.T) {
	msg := StreamerListMessage(nil)
	ids, ok := msg["ids"].([]string)
	if !ok || ids == nil {
		t.Error("StreamerListMessage must never emit a null ids array")
	}
}
