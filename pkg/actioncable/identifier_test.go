package actioncable

import "testing"

func TestIdentifierFor_KeyOrderIndependent(t *testing.T) {
	a, err := identifierFor(map[string]any{"channel": "ChatChannel", "room": "lobby"})
	if err != nil {
		t.Fatalf("identifierFor a: %v", err)
	}

	b, err := identifierFor(map[string]any{"room": "lobby", "channel": "ChatChannel"})
	if err != nil {
		t.Fatalf("identifierFor b: %v", err)
	}

	if a != b {
		t.Errorf("expected identical identifiers regardless of map insertion order, got %q and %q", a, b)
	}
}

func TestIdentifierFor_DifferentValuesDiffer(t *testing.T) {
	a, err := identifierFor(map[string]any{"channel": "ChatChannel", "room": "lobby"})
	if err != nil {
		t.Fatalf("identifierFor a: %v", err)
	}

	b, err := identifierFor(map[string]any{"channel": "ChatChannel", "room": "general"})
	if err != nil {
		t.Fatalf("identifierFor b: %v", err)
	}

	if a == b {
		t.Error("expected different room params to produce different identifiers")
	}
}

func TestChannelParams_AddsChannel(t *testing.T) {
	params := channelParams("ChatChannel", nil)
	if params["channel"] != "ChatChannel" {
		t.Errorf("expected channel key to be set, got %v", params["channel"])
	}
	if len(params) != 1 {
		t.Errorf("expected exactly one key, got %d", len(params))
	}
}

func TestChannelParams_PreservesExtraParams(t *testing.T) {
	params := channelParams("ChatChannel", map[string]any{"room": "lobby"})
	if params["channel"] != "ChatChannel" {
		t.Errorf("expected channel key to be set, got %v", params["channel"])
	}
	if params["room"] != "lobby" {
		t.Errorf("expected room key to be preserved, got %v", params["room"])
	}
}

func TestChannelParams_DoesNotMutateInput(t *testing.T) {
	input := map[string]any{"room": "lobby"}
	_ = channelParams("ChatChannel", input)

	if _, ok := input["channel"]; ok {
		t.Error("expected channelParams to leave the caller's map untouched")
	}
}
