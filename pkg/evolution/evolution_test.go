package evolution

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	contractx "github.com/tanpawarit/Chative-Restaurant-Messaging-Agent/agent/contract"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewClient(Config{
		URL:          srv.URL,
		APIKey:       "test-key",
		Instance:     "resto-1",
		MediaBaseURL: "https://files.example.com",
	})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	return client
}

func TestNewClientValidation(t *testing.T) {
	t.Parallel()

	if _, err := NewClient(Config{APIKey: "k", Instance: "i"}); err == nil {
		t.Fatal("expected error for missing url")
	}
	if _, err := NewClient(Config{URL: "http://host", Instance: "i"}); err == nil {
		t.Fatal("expected error for missing api key")
	}
	if _, err := NewClient(Config{URL: "http://host", APIKey: "k"}); err == nil {
		t.Fatal("expected error for missing instance")
	}
}

func TestSendText(t *testing.T) {
	t.Parallel()

	var gotPath, gotKey string
	var gotBody map[string]any
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("apikey")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusCreated)
	})

	if err := client.SendText(context.Background(), "628999@c.us", "hello"); err != nil {
		t.Fatalf("SendText() error = %v", err)
	}
	if gotPath != "/message/sendText/resto-1" {
		t.Fatalf("unexpected path: %s", gotPath)
	}
	if gotKey != "test-key" {
		t.Fatalf("unexpected api key header: %q", gotKey)
	}
	if gotBody["number"] != "628999@c.us" || gotBody["text"] != "hello" {
		t.Fatalf("unexpected body: %#v", gotBody)
	}
}

func TestSendTextValidatesInput(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	})

	if err := client.SendText(context.Background(), "", "hello"); err == nil {
		t.Fatal("expected error for missing chat id")
	}
	if err := client.SendText(context.Background(), "628999@c.us", "  "); err == nil {
		t.Fatal("expected error for empty text")
	}
}

func TestSendTextUpstreamFailure(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "instance not connected", http.StatusBadGateway)
	})

	if err := client.SendText(context.Background(), "628999@c.us", "hello"); err == nil {
		t.Fatal("expected error for upstream failure")
	}
}

func TestSendAttachmentResolvesMediaURL(t *testing.T) {
	t.Parallel()

	var gotBody map[string]any
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/message/sendMedia/resto-1" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
	})

	err := client.SendAttachment(context.Background(), "628999@c.us", "menus/today.pdf", "menu.pdf", "our menu")
	if err != nil {
		t.Fatalf("SendAttachment() error = %v", err)
	}
	if gotBody["media"] != "https://files.example.com/menus/today.pdf" {
		t.Fatalf("unexpected media url: %v", gotBody["media"])
	}
	if gotBody["fileName"] != "menu.pdf" || gotBody["caption"] != "our menu" {
		t.Fatalf("unexpected body: %#v", gotBody)
	}
}

func TestIssuePairingCode(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/instance/connect/resto-1" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.URL.Query().Get("number") != "628123" {
			t.Errorf("unexpected number: %s", r.URL.Query().Get("number"))
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"pairingCode": "ABCD-1234"})
	})

	code, err := client.IssuePairingCode(context.Background(), "628123", contractx.ChannelWhatsApp)
	if err != nil {
		t.Fatalf("IssuePairingCode() error = %v", err)
	}
	if code != "ABCD-1234" {
		t.Fatalf("unexpected code: %q", code)
	}
}

func TestIssuePairingCodeRejectsOtherChannels(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	})

	if _, err := client.IssuePairingCode(context.Background(), "628123", contractx.ChannelInstagram); err == nil {
		t.Fatal("expected error for unsupported channel")
	}
}

func TestIssuePairingCodeEmptyResponse(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{})
	})

	if _, err := client.IssuePairingCode(context.Background(), "628123", contractx.ChannelWhatsApp); err == nil {
		t.Fatal("expected error when the gateway returns no code")
	}
}
