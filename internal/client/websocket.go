// ABOUTME: WebSocket client for the PCM stream output
// ABOUTME: Connects, reads the stream/start hello and delivers decoded sample blocks
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Resonate-Protocol/pcmbridge/pkg/audio"
	"github.com/Resonate-Protocol/pcmbridge/pkg/audio/output"
)

const helloTimeout = 5 * time.Second

// Config holds client configuration
type Config struct {
	URL string // e.g. ws://host:8928/pcm
}

// Block is one decoded block from the stream
type Block struct {
	Seq     uint64
	Samples []float32
}

// Client represents a WebSocket client
type Client struct {
	config Config
	conn   *websocket.Conn
	mu     sync.RWMutex

	// Blocks delivers decoded audio in arrival order. It is closed when the
	// connection ends.
	Blocks chan Block

	start   output.StreamStart
	lastSeq uint64
	missed  atomic.Uint64

	// State
	connected bool
	ctx       context.Context
	cancel    context.CancelFunc
}

// NewClient creates a new WebSocket client
func NewClient(config Config) *Client {
	ctx, cancel := context.WithCancel(context.Background())

	return &Client{
		config: config,
		Blocks: make(chan Block, 16),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Connect dials the stream and waits for its hello
func (c *Client) Connect(ctx context.Context) error {
	log.Printf("Connecting to %s", c.config.URL)

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.config.URL, nil)
	if err != nil {
		return fmt.Errorf("dial failed: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.mu.Unlock()

	if err := c.handshake(); err != nil {
		c.Close()
		close(c.Blocks)
		return fmt.Errorf("handshake failed: %w", err)
	}

	go c.readMessages()

	return nil
}

// handshake reads the stream/start message
func (c *Client) handshake() error {
	c.conn.SetReadDeadline(time.Now().Add(helloTimeout))
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		return fmt.Errorf("failed to read stream/start: %w", err)
	}
	c.conn.SetReadDeadline(time.Time{}) // Clear deadline

	var start output.StreamStart
	if err := json.Unmarshal(data, &start); err != nil {
		return fmt.Errorf("failed to parse stream/start: %w", err)
	}
	if start.Type != "stream/start" {
		return fmt.Errorf("expected stream/start, got %s", start.Type)
	}
	if err := start.Format().Validate(); err != nil {
		return fmt.Errorf("invalid stream format: %w", err)
	}

	c.start = start
	log.Printf("Stream %s: %v", start.ServerID, start.Format())
	return nil
}

// readMessages decodes incoming blocks until the connection ends
func (c *Client) readMessages() {
	defer close(c.Blocks)
	defer c.Close()

	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) && c.ctx.Err() == nil {
				log.Printf("Read error: %v", err)
			}
			return
		}

		if messageType != websocket.BinaryMessage {
			continue
		}

		seq, samples, err := output.DecodeStreamBlock(data, nil)
		if err != nil {
			log.Printf("Invalid stream message: %v", err)
			continue
		}

		if c.lastSeq != 0 && seq > c.lastSeq+1 {
			c.missed.Add(seq - c.lastSeq - 1)
		}
		c.lastSeq = seq

		select {
		case c.Blocks <- Block{Seq: seq, Samples: samples}:
		case <-c.ctx.Done():
			return
		}
	}
}

// Start returns the stream hello
func (c *Client) Start() output.StreamStart {
	return c.start
}

// Format returns the announced stream format
func (c *Client) Format() audio.Format {
	return c.start.Format()
}

// Missed returns how many blocks were skipped by the server for this client
func (c *Client) Missed() uint64 {
	return c.missed.Load()
}

// Close closes the connection
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.connected {
		c.connected = false
		c.cancel()
		c.conn.Close()
		log.Printf("Connection closed")
	}
}

// IsConnected returns connection status
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}
