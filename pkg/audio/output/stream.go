// ABOUTME: Network stream output implementation
// ABOUTME: Broadcasts each pulled block to websocket listeners on the block clock
package output

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/Resonate-Protocol/pcmbridge/pkg/audio"
)

const (
	// StreamPath is the websocket endpoint
	StreamPath = "/pcm"

	// StreamAudioMessage tags a binary audio block
	StreamAudioMessage byte = 1

	// StreamHeaderSize is the type byte plus the big-endian sequence number
	StreamHeaderSize = 1 + 8

	streamSendBuffer = 32
	writeDeadline    = 10 * time.Second
)

// StreamStart is the text message sent to each listener before any audio
type StreamStart struct {
	Type       string `json:"type"`
	SampleRate int    `json:"sample_rate"`
	Channels   int    `json:"channels"`
	BlockSize  int    `json:"block_size"`
	ServerID   string `json:"server_id"`
}

type streamClient struct {
	conn     *websocket.Conn
	sendChan chan []byte
}

// Stream serves the output over websockets. Listeners that fall behind lose
// blocks; the clock never waits for them.
type Stream struct {
	addr     string
	serverID string
	upgrader websocket.Upgrader

	mu         sync.Mutex
	listener   net.Listener
	httpServer *http.Server
	format     audio.Format
	guard      callbackGuard
	pump       *pump
	seq        uint64

	clients   map[*streamClient]struct{}
	clientsMu sync.RWMutex
	closed    bool
	wg        sync.WaitGroup
}

// NewStream creates a stream output listening on addr
func NewStream(addr string) *Stream {
	return &Stream{
		addr:     addr,
		serverID: uuid.New().String(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// Listeners are local tools, not browsers on foreign origins
				return true
			},
		},
		clients: make(map[*streamClient]struct{}),
	}
}

// Name identifies the backend
func (s *Stream) Name() string { return "stream" }

// ServerID identifies this stream to listeners
func (s *Stream) ServerID() string { return s.serverID }

// Addr returns the bound listen address, or the configured one before Negotiate
func (s *Stream) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// Negotiate binds the listen address
func (s *Stream) Negotiate(desired audio.Format) (audio.Format, error) {
	if err := checkFormat(desired); err != nil {
		return audio.Format{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener == nil {
		ln, err := net.Listen("tcp", s.addr)
		if err != nil {
			return audio.Format{}, fmt.Errorf("%w: failed to listen on %s: %v", ErrNoPlaybackDevice, s.addr, err)
		}
		s.listener = ln
	}
	s.format = desired

	log.Printf("Stream output initialized: %v on %s%s", desired, s.listener.Addr(), StreamPath)
	return desired, nil
}

// Start serves listeners and begins the block clock
func (s *Stream) Start(cb Callback) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener == nil {
		return fmt.Errorf("%w: listener not negotiated", ErrNoPlaybackDevice)
	}

	s.guard.set(cb)

	s.clientsMu.Lock()
	s.closed = false
	s.clientsMu.Unlock()

	mux := http.NewServeMux()
	mux.HandleFunc(StreamPath, s.handleWebSocket)
	s.httpServer = &http.Server{Handler: mux}

	server, ln := s.httpServer, s.listener
	go func() {
		if err := server.Serve(ln); err != http.ErrServerClosed {
			log.Printf("Stream server error: %v", err)
		}
	}()

	block := make([]float32, s.format.BlockSamples())
	s.pump = startPump(s.Name(), s.format.BlockDuration(), func() bool {
		s.guard.call(block)
		s.broadcast(block)
		return true
	})
	return nil
}

// broadcast frames one block and queues it for every listener
func (s *Stream) broadcast(block []float32) {
	s.seq++

	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()

	if len(s.clients) == 0 {
		return
	}

	msg := EncodeStreamBlock(s.seq, block)
	for client := range s.clients {
		select {
		case client.sendChan <- msg:
		default:
			// Slow listener, skip this block
		}
	}
}

// EncodeStreamBlock frames samples as a binary audio message
func EncodeStreamBlock(seq uint64, samples []float32) []byte {
	msg := make([]byte, StreamHeaderSize+len(samples)*4)
	msg[0] = StreamAudioMessage
	binary.BigEndian.PutUint64(msg[1:], seq)
	audio.PutFloat32LE(msg[StreamHeaderSize:], samples)
	return msg
}

// DecodeStreamBlock parses a binary audio message into dst, growing it as
// needed, and returns the sequence number and samples
func DecodeStreamBlock(msg []byte, dst []float32) (uint64, []float32, error) {
	if len(msg) < StreamHeaderSize {
		return 0, dst, fmt.Errorf("stream message too short: %d bytes", len(msg))
	}
	if msg[0] != StreamAudioMessage {
		return 0, dst, fmt.Errorf("unknown stream message type: %d", msg[0])
	}
	payload := msg[StreamHeaderSize:]
	if len(payload)%4 != 0 {
		return 0, dst, fmt.Errorf("stream payload of %d bytes is not whole samples", len(payload))
	}

	seq := binary.BigEndian.Uint64(msg[1:StreamHeaderSize])
	count := len(payload) / 4
	if cap(dst) < count {
		dst = make([]float32, count)
	}
	dst = dst[:count]
	for i := range dst {
		dst[i] = math.Float32frombits(binary.LittleEndian.Uint32(payload[i*4:]))
	}
	return seq, dst, nil
}

// Format returns the stream format announced in the hello
func (s StreamStart) Format() audio.Format {
	return audio.Format{
		SampleRate: s.SampleRate,
		Channels:   s.Channels,
		BlockSize:  s.BlockSize,
	}
}

// handleWebSocket handles WebSocket connections
func (s *Stream) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	hello, err := json.Marshal(StreamStart{
		Type:       "stream/start",
		SampleRate: s.format.SampleRate,
		Channels:   s.format.Channels,
		BlockSize:  s.format.BlockSize,
		ServerID:   s.serverID,
	})
	if err != nil {
		log.Printf("Error marshaling message: %v", err)
		return
	}
	conn.SetWriteDeadline(time.Now().Add(writeDeadline))
	if err := conn.WriteMessage(websocket.TextMessage, hello); err != nil {
		log.Printf("Error writing text message: %v", err)
		return
	}

	client := &streamClient{
		conn:     conn,
		sendChan: make(chan []byte, streamSendBuffer),
	}

	s.clientsMu.Lock()
	if s.closed {
		s.clientsMu.Unlock()
		return
	}
	s.clients[client] = struct{}{}
	s.wg.Add(1)
	s.clientsMu.Unlock()

	log.Printf("Stream listener connected from %s", r.RemoteAddr)

	go func() {
		defer s.wg.Done()
		s.clientWriter(client)
	}()

	// Listeners never send anything meaningful; read until they go away
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			break
		}
	}

	s.removeClient(client)
	log.Printf("Stream listener %s disconnected", r.RemoteAddr)
}

// clientWriter sends queued blocks to the listener
func (s *Stream) clientWriter(client *streamClient) {
	for msg := range client.sendChan {
		client.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
		if err := client.conn.WriteMessage(websocket.BinaryMessage, msg); err != nil {
			log.Printf("Error writing binary message: %v", err)
			client.conn.Close()
			return
		}
	}
}

func (s *Stream) removeClient(client *streamClient) {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()

	if _, ok := s.clients[client]; !ok {
		return
	}
	delete(s.clients, client)
	close(client.sendChan)
}

// Listeners returns the number of connected listeners
func (s *Stream) Listeners() int {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	return len(s.clients)
}

// Stop halts the clock, disconnects listeners and closes the listener
func (s *Stream) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.guard.stop()
	s.pump.Stop()
	s.pump = nil

	s.clientsMu.Lock()
	s.closed = true
	for client := range s.clients {
		client.conn.Close()
		delete(s.clients, client)
		close(client.sendChan)
	}
	s.clientsMu.Unlock()

	var err error
	if s.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := s.httpServer.Shutdown(ctx); shutdownErr != nil {
			err = fmt.Errorf("stream server shutdown: %w", shutdownErr)
		}
		s.httpServer = nil
		s.listener = nil
	} else if s.listener != nil {
		err = s.listener.Close()
		s.listener = nil
	}

	s.wg.Wait()
	return err
}
