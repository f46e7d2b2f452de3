package server

import (
	"errors"
	"fmt"
	"net"
	"time"
)

// awaitRegistration waits for the first valid initInstance frame. The read
// deadline is the registration timer: whichever of the frame or the deadline
// comes first decides the outcome, and clearing the deadline on success means
// a late timer can never close a registered client. Messages sent while
// waiting are answered with a single notRegistered frame each.
func (c *Client) awaitRegistration(timeout time.Duration) (*Member, error) {
	if err := c.conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return nil, fmt.Errorf("set registration deadline: %w", err)
	}

	for {
		f, err := c.readFrame()
		if err != nil {
			if isTimeout(err) {
				return nil, ErrRegistrationTimeout
			}
			return nil, err
		}

		switch f.Event {
		case EventInitInstance:
			id, err := decodeIdentity(f.Data)
			if err != nil {
				c.log.Debug("ignoring initInstance", "err", err)
				continue
			}
			c.log.Debug("client emitted initInstance, registering", "room", id.Room, "username", id.Username)
			c.setupReadConnection()
			return &Member{Client: c, Identity: id}, nil

		case EventMessage:
			c.hub.metrics.notRegistered.Inc()
			c.log.Debug("message before registration")
			submit(c.hub, c.hub.notify, notice{client: c, payload: notRegisteredFrame})

		default:
			c.log.Debug("ignoring event before registration", "event", f.Event)
		}
	}
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
