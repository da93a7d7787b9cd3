package realtime

import (
	"net/url"
	"testing"
)

func TestParseSocketPacket(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		wantType  byte
		wantNS    string
		wantAck   int
		hasAck    bool
		wantData  string
		wantError bool
	}{
		{name: "connect ack", raw: `0{"sid":"abc"}`, wantType: socketConnect, wantNS: "/", wantData: `{"sid":"abc"}`},
		{name: "bare disconnect", raw: `1`, wantType: socketDisconnect, wantNS: "/"},
		{name: "event", raw: `2["notification:new",{"id":1}]`, wantType: socketEvent, wantNS: "/", wantData: `["notification:new",{"id":1}]`},
		{name: "event with ack id", raw: `213["ping"]`, wantType: socketEvent, wantNS: "/", wantAck: 13, hasAck: true, wantData: `["ping"]`},
		{name: "namespaced event", raw: `2/admin,["x"]`, wantType: socketEvent, wantNS: "/admin", wantData: `["x"]`},
		{name: "namespace only", raw: `1/admin`, wantType: socketDisconnect, wantNS: "/admin"},
		{name: "connect error", raw: `4{"message":"invalid token"}`, wantType: socketConnectError, wantNS: "/", wantData: `{"message":"invalid token"}`},
		{name: "binary event unsupported", raw: `51-["x",{"_placeholder":true,"num":0}]`, wantError: true},
		{name: "unknown type", raw: `9`, wantError: true},
		{name: "invalid json", raw: `2[not json`, wantError: true},
		{name: "empty", raw: ``, wantError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := parseSocketPacket(tt.raw)
			if tt.wantError {
				if err == nil {
					t.Fatalf("expected error, got %+v", p)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if p.typ != tt.wantType || p.namespace != tt.wantNS {
				t.Errorf("got type %q ns %q, want %q %q", p.typ, p.namespace, tt.wantType, tt.wantNS)
			}
			if p.hasAck != tt.hasAck || p.ackID != tt.wantAck {
				t.Errorf("got ack %v/%d, want %v/%d", p.hasAck, p.ackID, tt.hasAck, tt.wantAck)
			}
			if string(p.data) != tt.wantData {
				t.Errorf("got data %q, want %q", p.data, tt.wantData)
			}
		})
	}
}

func TestParseEnginePacket(t *testing.T) {
	p, err := parseEnginePacket(`42["a"]`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.typ != engineMessage || p.data != `2["a"]` {
		t.Errorf("unexpected packet %+v", p)
	}
	if p.encode() != `42["a"]` {
		t.Errorf("encode = %q", p.encode())
	}

	if _, err := parseEnginePacket(""); err == nil {
		t.Error("expected error for empty packet")
	}
	if _, err := parseEnginePacket("x"); err == nil {
		t.Error("expected error for unknown type")
	}
}

func TestEncodeConnectCarriesToken(t *testing.T) {
	got, err := encodeSocket(socketConnect, authPayload{Token: "abc"})
	if err != nil {
		t.Fatalf("encodeSocket: %v", err)
	}
	if want := `40{"token":"abc"}`; got != want {
		t.Errorf("got %q, want %q", got, want)
	}

	got, err = encodeSocket(socketDisconnect, nil)
	if err != nil || got != "41" {
		t.Errorf("disconnect packet = %q, %v", got, err)
	}
}

func TestDecodeEvent(t *testing.T) {
	name, args, err := decodeEvent([]byte(`["notification:new",{"id":1},2]`))
	if err != nil {
		t.Fatalf("decodeEvent: %v", err)
	}
	if name != EventNotificationNew || len(args) != 2 {
		t.Errorf("got %q with %d args", name, len(args))
	}

	if _, _, err := decodeEvent([]byte(`[]`)); err == nil {
		t.Error("expected error for empty event")
	}
	if _, _, err := decodeEvent([]byte(`[1]`)); err == nil {
		t.Error("expected error for non-string event name")
	}
}

func TestEngineURL(t *testing.T) {
	base, _ := url.Parse("https://example.com/rt/")
	u := engineURL(base, transportPolling, "sid-1")

	if u.Path != "/rt/socket.io/" {
		t.Errorf("path = %q", u.Path)
	}
	q := u.Query()
	if q.Get("EIO") != "4" || q.Get("transport") != "polling" || q.Get("sid") != "sid-1" {
		t.Errorf("query = %q", u.RawQuery)
	}
	if base.RawQuery != "" {
		t.Error("engineURL must not modify its base")
	}
}

func TestSplitPayload(t *testing.T) {
	if got := splitPayload(""); got != nil {
		t.Errorf("expected nil, got %v", got)
	}
	got := splitPayload("2\x1e42[\"a\"]\x1e6")
	if len(got) != 3 || got[0] != "2" || got[1] != `42["a"]` || got[2] != "6" {
		t.Errorf("unexpected split %q", got)
	}
}
