package crawler

import (
	"net/http"
	"testing"
	"time"
)

func TestNewHTTPClient_Disabled(t *testing.T) {
	client, err := NewHTTPClient(ProxyConfig{Enabled: false}, 5*time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if client.Timeout != 5*time.Second {
		t.Errorf("expected timeout to be preserved, got %v", client.Timeout)
	}
}

func TestNewHTTPClient_UnsupportedProxyType(t *testing.T) {
	_, err := NewHTTPClient(ProxyConfig{Enabled: true, Type: "http", Host: "localhost", Port: 8080}, time.Second)
	if err == nil {
		t.Fatal("expected an error for an unsupported proxy type")
	}
}

func TestNewHTTPClient_SOCKS5DialerWired(t *testing.T) {
	client, err := NewHTTPClient(ProxyConfig{Enabled: true, Type: "socks5", Host: "127.0.0.1", Port: 9050}, time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	transport, ok := client.Transport.(*http.Transport)
	if !ok {
		t.Fatal("expected an *http.Transport")
	}
	if transport.DialContext == nil {
		t.Error("expected the SOCKS5 dial function to be wired")
	}
}

func TestNewHTTPClient_InsecureSkipVerify(t *testing.T) {
	client, err := NewHTTPClient(ProxyConfig{InsecureSkipVerify: true}, time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	transport := client.Transport.(*http.Transport)
	if transport.TLSClientConfig == nil || !transport.TLSClientConfig.InsecureSkipVerify {
		t.Error("expected InsecureSkipVerify to be set on the transport's TLS config")
	}
}
