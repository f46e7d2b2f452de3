package server

// Member is a client that completed registration. Relaying is only reachable
// through a Member, so an unregistered client can never broadcast.
type Member struct {
	*Client
	Identity
}

// relayLoop forwards every message event to the hub until the connection
// fails. Further initInstance events are ignored: registration is one-shot.
func (m *Member) relayLoop() {
	for {
		f, err := m.readFrame()
		if err != nil {
			m.handleReadError(err)
			return
		}

		switch f.Event {
		case EventMessage:
			if !submit(m.hub, m.hub.relay, relayRequest{sender: m, payload: f.Data}) {
				return
			}
		case EventInitInstance:
			m.log.Debug("ignoring initInstance from registered client", "room", m.Room)
		default:
			m.log.Debug("ignoring event", "event", f.Event)
		}
	}
}
