// ABOUTME: Tests for mDNS discovery
// ABOUTME: Tests manager defaults, browse retry pacing and conversion of service entries
package discovery

import (
	"errors"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hashicorp/mdns"
)

func TestNewManager(t *testing.T) {
	config := Config{
		ServiceName: "Test Stream",
		Port:        8928,
	}

	mgr := NewManager(config)
	if mgr == nil {
		t.Fatal("expected manager to be created")
	}
	if mgr.config.Path != "/pcm" {
		t.Errorf("expected default path /pcm, got %s", mgr.config.Path)
	}
	mgr.Stop()
}

func TestTXTRecords(t *testing.T) {
	mgr := NewManager(Config{
		ServiceName: "Test Stream",
		Port:        8928,
		Info:        []string{"rate=44100", "channels=1"},
	})
	defer mgr.Stop()

	txt := mgr.txtRecords()
	want := []string{"path=/pcm", "rate=44100", "channels=1"}
	if len(txt) != len(want) {
		t.Fatalf("expected %d records, got %v", len(want), txt)
	}
	for i := range want {
		if txt[i] != want[i] {
			t.Errorf("record %d: expected %s, got %s", i, want[i], txt[i])
		}
	}
}

func TestStreamFromEntry(t *testing.T) {
	tests := []struct {
		name    string
		entry   *mdns.ServiceEntry
		wantURL string
	}{
		{
			name: "ipv4 with path",
			entry: &mdns.ServiceEntry{
				Name:       "kitchen._pcmbridge._tcp.local.",
				AddrV4:     net.ParseIP("192.168.1.20"),
				Port:       8928,
				InfoFields: []string{"path=/audio", "rate=44100"},
			},
			wantURL: "ws://192.168.1.20:8928/audio",
		},
		{
			name: "default path",
			entry: &mdns.ServiceEntry{
				Name:   "den._pcmbridge._tcp.local.",
				AddrV4: net.ParseIP("10.0.0.5"),
				Port:   9000,
			},
			wantURL: "ws://10.0.0.5:9000/pcm",
		},
		{
			name: "ipv6 only",
			entry: &mdns.ServiceEntry{
				Name:   "attic._pcmbridge._tcp.local.",
				AddrV6: net.ParseIP("fe80::1"),
				Port:   8928,
			},
			wantURL: "ws://[fe80::1]:8928/pcm",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := streamFromEntry(tt.entry).URL()
			if got != tt.wantURL {
				t.Errorf("expected %s, got %s", tt.wantURL, got)
			}
		})
	}
}

func TestBrowseBacksOffAfterFailedQuery(t *testing.T) {
	mgr := NewManager(Config{})
	mgr.backoff = time.Hour

	var queries atomic.Int32
	mgr.query = func(*mdns.QueryParam) error {
		queries.Add(1)
		return errors.New("no multicast interface")
	}

	finished := make(chan struct{})
	go func() {
		mgr.browseLoop()
		close(finished)
	}()

	time.Sleep(50 * time.Millisecond)
	if got := queries.Load(); got != 1 {
		t.Errorf("expected 1 query while backing off, got %d", got)
	}

	mgr.Stop()
	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("browse loop did not stop during backoff")
	}
}

func TestBrowseRequeriesAfterSuccess(t *testing.T) {
	mgr := NewManager(Config{})
	mgr.backoff = time.Hour

	var queries atomic.Int32
	mgr.query = func(*mdns.QueryParam) error {
		if queries.Add(1) >= 3 {
			mgr.Stop()
		}
		return nil
	}

	finished := make(chan struct{})
	go func() {
		mgr.browseLoop()
		close(finished)
	}()

	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("browse loop did not requery after a successful query")
	}
	if got := queries.Load(); got != 3 {
		t.Errorf("expected 3 queries, got %d", got)
	}
}
