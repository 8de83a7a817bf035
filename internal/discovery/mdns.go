// ABOUTME: mDNS service discovery for the PCM stream backend
// ABOUTME: Advertises a running stream and browses for streams on the local network
package discovery

import (
	"context"
	"fmt"
	"log"
	"net"
	"strings"
	"time"

	"github.com/hashicorp/mdns"
)

// ServiceType is the DNS-SD service type of a PCM stream
const ServiceType = "_pcmbridge._tcp"

// queryBackoff is the pause after a failed browse query
const queryBackoff = time.Second

// Config holds discovery configuration
type Config struct {
	ServiceName string
	Port        int
	Path        string   // websocket path, defaults to /pcm
	Info        []string // extra TXT records, e.g. "rate=44100"
}

// Manager handles mDNS operations
type Manager struct {
	config  Config
	ctx     context.Context
	cancel  context.CancelFunc
	streams chan *StreamInfo

	query   func(*mdns.QueryParam) error
	backoff time.Duration
}

// StreamInfo describes a discovered stream
type StreamInfo struct {
	Name string
	Host string
	Port int
	Path string
}

// URL returns the websocket URL of the stream
func (s *StreamInfo) URL() string {
	return fmt.Sprintf("ws://%s%s", net.JoinHostPort(s.Host, fmt.Sprint(s.Port)), s.Path)
}

// NewManager creates a discovery manager
func NewManager(config Config) *Manager {
	if config.Path == "" {
		config.Path = "/pcm"
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Manager{
		config:  config,
		ctx:     ctx,
		cancel:  cancel,
		streams: make(chan *StreamInfo, 10),
		query:   mdns.Query,
		backoff: queryBackoff,
	}
}

// Advertise advertises the stream via mDNS until Stop is called
func (m *Manager) Advertise() error {
	ips, err := getLocalIPs()
	if err != nil {
		return fmt.Errorf("failed to get local IPs: %w", err)
	}

	service, err := mdns.NewMDNSService(
		m.config.ServiceName,
		ServiceType,
		"",
		"",
		m.config.Port,
		ips,
		m.txtRecords(),
	)
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}

	server, err := mdns.NewServer(&mdns.Config{Zone: service})
	if err != nil {
		return fmt.Errorf("failed to create mdns server: %w", err)
	}

	log.Printf("Advertising mDNS service: %s on port %d (type: %s)", m.config.ServiceName, m.config.Port, ServiceType)

	go func() {
		<-m.ctx.Done()
		server.Shutdown()
	}()

	return nil
}

func (m *Manager) txtRecords() []string {
	return append([]string{"path=" + m.config.Path}, m.config.Info...)
}

// Browse searches for PCM streams in the background
func (m *Manager) Browse() error {
	go m.browseLoop()
	return nil
}

// browseLoop continuously browses for streams
func (m *Manager) browseLoop() {
	for {
		select {
		case <-m.ctx.Done():
			return
		default:
		}

		entries := make(chan *mdns.ServiceEntry, 10)
		done := make(chan struct{})

		go func() {
			defer close(done)
			for entry := range entries {
				stream := streamFromEntry(entry)

				log.Printf("Discovered stream: %s at %s", stream.Name, stream.URL())

				select {
				case m.streams <- stream:
				case <-m.ctx.Done():
				}
			}
		}()

		params := &mdns.QueryParam{
			Service: ServiceType,
			Domain:  "local",
			Timeout: 3 * time.Second,
			Entries: entries,
		}

		err := m.query(params)
		close(entries)
		<-done

		if err != nil {
			log.Printf("mDNS query failed: %v", err)
			select {
			case <-m.ctx.Done():
				return
			case <-time.After(m.backoff):
			}
		}
	}
}

func streamFromEntry(entry *mdns.ServiceEntry) *StreamInfo {
	stream := &StreamInfo{
		Name: entry.Name,
		Port: entry.Port,
		Path: "/pcm",
	}
	if entry.AddrV4 != nil {
		stream.Host = entry.AddrV4.String()
	} else if entry.AddrV6 != nil {
		stream.Host = entry.AddrV6.String()
	} else {
		stream.Host = entry.Host
	}

	for _, field := range entry.InfoFields {
		if path, ok := strings.CutPrefix(field, "path="); ok && path != "" {
			stream.Path = path
		}
	}
	return stream
}

// Streams returns the channel of discovered streams
func (m *Manager) Streams() <-chan *StreamInfo {
	return m.streams
}

// Stop stops the discovery manager
func (m *Manager) Stop() {
	m.cancel()
}

// getLocalIPs returns local IP addresses
func getLocalIPs() ([]net.IP, error) {
	var ips []net.IP

	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}

	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}

		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}

		for _, addr := range addrs {
			if ipnet, ok := addr.(*net.IPNet); ok && !ipnet.IP.IsLoopback() {
				if ipnet.IP.To4() != nil {
					ips = append(ips, ipnet.IP)
				}
			}
		}
	}

	return ips, nil
}
