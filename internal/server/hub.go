// Package server coordinates connection tracking, room membership, message
// relay, and connection cleanup for the relay via the Hub type.
package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"
)

// relayRequest carries a payload a member wants delivered to its room.
type relayRequest struct {
	sender  *Member
	payload json.RawMessage
}

// notice is a frame addressed to a single client.
type notice struct {
	client  *Client
	payload []byte
}

// Stats is a point-in-time snapshot of the hub registry.
type Stats struct {
	Connections int `json:"connections"`
	Rooms       int `json:"rooms"`
	Members     int `json:"members"`
}

// Hub owns the registry of live connections and rooms. Every mutation of the
// registry and every send on (or close of) a client's queue happens on the
// goroutine running Run, so room membership needs no other coordination.
// The mutex only lets Stats read a consistent snapshot from elsewhere.
type Hub struct {
	clients map[*Client]*Member // nil value until the client registers
	rooms   map[string]map[*Member]struct{}

	connect chan *Client
	join    chan *Member
	leave   chan *Client
	relay   chan relayRequest
	notify  chan notice

	mutex  sync.RWMutex
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	log                 *slog.Logger
	metrics             *Metrics
	registrationTimeout time.Duration
}

// NewHub creates a Hub ready to be started with Run.
func NewHub(cfg Config, logger *slog.Logger, metrics *Metrics) *Hub {
	if metrics == nil {
		metrics = NewMetrics()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		clients:             make(map[*Client]*Member),
		rooms:               make(map[string]map[*Member]struct{}),
		connect:             make(chan *Client),
		join:                make(chan *Member),
		leave:               make(chan *Client),
		relay:               make(chan relayRequest),
		notify:              make(chan notice),
		ctx:                 ctx,
		cancel:              cancel,
		done:                make(chan struct{}),
		log:                 logger,
		metrics:             metrics,
		registrationTimeout: sanitizeConfig(cfg).RegistrationTimeout,
	}
}

// Metrics returns the collectors the hub reports to.
func (h *Hub) Metrics() *Metrics {
	return h.metrics
}

// submit hands v to the hub loop, giving up once the hub has stopped.
func submit[T any](h *Hub, ch chan<- T, v T) bool {
	select {
	case ch <- v:
		return true
	case <-h.ctx.Done():
		return false
	}
}

// Run starts the hub's event loop. It returns after Shutdown is called.
func (h *Hub) Run() {
	defer close(h.done)

	for {
		select {
		case <-h.ctx.Done():
			h.shutdownClients()
			return

		case client := <-h.connect:
			if client == nil {
				h.log.Warn("received nil client connection; skipping")
				continue
			}
			h.track(client)
			h.startPumps(client)

		case member := <-h.join:
			h.admit(member)

		case client := <-h.leave:
			h.removeClient(client, "disconnected")

		case req := <-h.relay:
			h.broadcast(req)

		case n := <-h.notify:
			h.deliver(n)
		}
	}
}

func (h *Hub) track(client *Client) {
	h.mutex.Lock()
	h.clients[client] = nil
	h.updateGaugesLocked()
	h.mutex.Unlock()

	client.log.Debug("client connected, waiting for initInstance", "timeout", h.registrationTimeout)
}

func (h *Hub) startPumps(client *Client) {
	h.wg.Add(2)
	go func() {
		defer h.wg.Done()
		client.writePump()
	}()
	go func() {
		defer h.wg.Done()
		client.readPump(h.registrationTimeout)
	}()
}

// admit inserts a freshly registered member into its room. It reports false
// when the client already left or had registered before.
func (h *Hub) admit(member *Member) bool {
	if member == nil {
		return false
	}
	current, tracked := h.clients[member.Client]
	if !tracked {
		return false
	}
	if current != nil {
		member.log.Debug("ignoring repeated registration", "room", current.Room)
		return false
	}

	h.mutex.Lock()
	h.clients[member.Client] = member
	room, ok := h.rooms[member.Room]
	if !ok {
		room = make(map[*Member]struct{})
		h.rooms[member.Room] = room
	}
	room[member] = struct{}{}
	roomSize := len(room)
	h.metrics.registrations.Inc()
	h.updateGaugesLocked()
	h.mutex.Unlock()

	member.log.Debug("client registered", "room", member.Room, "username", member.Username, "room_size", roomSize)
	return true
}

// removeClient forgets the client, drops it from its room and closes its send
// queue, which makes the write pump close the socket.
func (h *Hub) removeClient(client *Client, reason string) {
	h.mutex.Lock()
	member, ok := h.clients[client]
	if !ok {
		h.mutex.Unlock()
		return
	}
	delete(h.clients, client)
	roomRemoved := false
	if member != nil {
		if room, exists := h.rooms[member.Room]; exists {
			delete(room, member)
			if len(room) == 0 {
				delete(h.rooms, member.Room)
				roomRemoved = true
			}
		}
	}
	h.updateGaugesLocked()
	h.mutex.Unlock()

	close(client.send)

	if member != nil {
		client.log.Debug("client left", "reason", reason, "room", member.Room, "username", member.Username)
		if roomRemoved {
			h.log.Debug("room removed", "room", member.Room)
		}
		return
	}
	client.log.Debug("client left", "reason", reason)
}

// broadcast wraps the payload with the sender's identity and queues it on
// every other member of the sender's room.
func (h *Hub) broadcast(req relayRequest) {
	sender := req.sender
	if sender == nil || h.clients[sender.Client] != sender {
		return
	}

	frame, err := encodeEnvelope(sender.Identity, req.payload)
	if err != nil {
		sender.log.Warn("dropping message that could not be wrapped", "err", err)
		return
	}
	h.metrics.messagesRelayed.Inc()

	var failed []*Client
	delivered := 0
	for peer := range h.rooms[sender.Room] {
		if peer == sender {
			continue
		}
		if !queue(peer.Client, frame) {
			failed = append(failed, peer.Client)
			continue
		}
		delivered++
	}
	h.metrics.deliveries.Add(float64(delivered))
	sender.log.Debug("message relayed", "room", sender.Room, "recipients", delivered)

	for _, client := range failed {
		h.metrics.droppedClients.Inc()
		h.removeClient(client, "send buffer full")
	}
}

func (h *Hub) deliver(n notice) {
	if n.client == nil {
		return
	}
	if _, ok := h.clients[n.client]; !ok {
		return
	}
	if !queue(n.client, n.payload) {
		h.metrics.droppedClients.Inc()
		h.removeClient(n.client, "send buffer full")
	}
}

func queue(client *Client, payload []byte) bool {
	select {
	case client.send <- payload:
		return true
	default:
		return false
	}
}

// updateGaugesLocked must be called with the mutex held.
func (h *Hub) updateGaugesLocked() {
	members := 0
	for _, room := range h.rooms {
		members += len(room)
	}
	h.metrics.connections.Set(float64(len(h.clients)))
	h.metrics.rooms.Set(float64(len(h.rooms)))
	h.metrics.members.Set(float64(members))
}

// Stats returns the current number of connections, rooms and members.
func (h *Hub) Stats() Stats {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	s := Stats{Connections: len(h.clients), Rooms: len(h.rooms)}
	for _, room := range h.rooms {
		s.Members += len(room)
	}
	return s
}

// shutdownClients closes every send queue and socket.
func (h *Hub) shutdownClients() {
	h.log.Info("shutting down all client connections")

	h.mutex.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.clients = make(map[*Client]*Member)
	h.rooms = make(map[string]map[*Member]struct{})
	h.updateGaugesLocked()
	h.mutex.Unlock()

	for _, client := range clients {
		close(client.send)
		client.closeConnection()
	}

	h.log.Info("closed client connections", "count", len(clients))
}

// Shutdown stops the hub and waits for all client goroutines to finish, or
// until the timeout is reached.
func (h *Hub) Shutdown(timeout time.Duration) error {
	h.log.Info("initiating hub shutdown")

	h.cancel()
	<-h.done

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		h.log.Info("hub shutdown completed")
		return nil
	case <-time.After(timeout):
		h.log.Warn("hub shutdown timeout reached, some goroutines may still be running")
		return context.DeadlineExceeded
	}
}
