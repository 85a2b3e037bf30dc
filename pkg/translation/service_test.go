package translation

import (
	"encoding/json"
	"testing"
)

func TestCodeUnmarshal(t *testing.T) {
	var reply FetchReply
	if err := json.Unmarshal([]byte(`{"status":3,"message":"hello"}`), &reply); err != nil {
		t.Fatal(err)
	}
	if reply.Status != FetchSuccess {
		t.Errorf("status = %q, want %q", reply.Status, FetchSuccess)
	}

	if err := json.Unmarshal([]byte(`{"status":"4"}`), &reply); err != nil {
		t.Fatal(err)
	}
	if reply.Status != FetchError {
		t.Errorf("status = %q, want %q", reply.Status, FetchError)
	}

	var status StatusReply
	if err := json.Unmarshal([]byte(`{"status":null,"message":"waiting"}`), &status); err != nil {
		t.Fatal(err)
	}
	if status.Status != "" || status.Message != StatusWaiting {
		t.Errorf("unexpected %+v", status)
	}

	if err := json.Unmarshal([]byte(`{"status":true}`), &status); err == nil {
		t.Error("expected error for boolean status")
	}
}

func TestBaseURL(t *testing.T) {
	p := LanguagePair{Endpoint: "eues.example.org/"}
	if got := p.BaseURL(); got != "https://eues.example.org" {
		t.Errorf("BaseURL = %q", got)
	}

	p.Relay = "https://relay.example.com/"
	if got := p.BaseURL(); got != "https://relay.example.com/https://eues.example.org" {
		t.Errorf("BaseURL with relay = %q", got)
	}

	p = LanguagePair{Endpoint: "http://127.0.0.1:9000"}
	if got := p.BaseURL(); got != "http://127.0.0.1:9000" {
		t.Errorf("BaseURL = %q", got)
	}
}

func TestPairValidate(t *testing.T) {
	if err := (LanguagePair{Name: "eu2es", Model: "m", Endpoint: "h"}).Validate(); err == nil {
		t.Error("expected missing master key error")
	}
	if err := (LanguagePair{Name: "eu2es", Model: "m", Endpoint: "h", MasterKey: "k"}).Validate(); err != nil {
		t.Errorf("unexpected error %v", err)
	}
}

func TestStateTerminal(t *testing.T) {
	for _, s := range []State{StateDone, StateFailed, StateTimedOut} {
		if !s.Terminal() || s.InFlight() {
			t.Errorf("%s should be terminal", s)
		}
	}
	for _, s := range []State{StateSubmitted, StateJobCreated, StatePolling, StateFetching} {
		if s.Terminal() || !s.InFlight() {
			t.Errorf("%s should be in flight", s)
		}
	}
	if StateIdle.InFlight() {
		t.Error("idle is not in flight")
	}
}
