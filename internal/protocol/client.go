package protocol

import (
	"fmt"
	"net"
	"sync/atomic"

	"ultimate-tracker/internal/constants"

	"github.com/rs/zerolog"
)

// Client owns one live console connection. It runs the decoder on a
// dedicated goroutine and hands every message to the single consumer through
// a buffered channel; the goroutine only ever blocks on socket reads and on
// enqueueing a handoff, never on consumer processing.
type Client struct {
	addr   string
	conn   net.Conn
	logger zerolog.Logger

	// cachedChecksum is the checksum of the mapping table loaded from the
	// local cache, offered to the console so it can skip the full dump.
	cachedChecksum uint32
	haveCached     bool

	events chan Message
	stop   atomic.Bool
	done   chan struct{}
}

// Dial opens the connection and starts the decoder goroutine. A dial error
// is the one distinguished "failed to connect" failure; everything after a
// successful dial surfaces as a DisconnectedMsg on the event channel.
func Dial(addr string, cachedChecksum uint32, haveCached bool, logger zerolog.Logger) (*Client, error) {
	conn, err := net.DialTimeout("tcp", addr, constants.DialTimeout)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", addr, err)
	}

	c := &Client{
		addr:           addr,
		conn:           conn,
		logger:         logger,
		cachedChecksum: cachedChecksum,
		haveCached:     haveCached,
		events:         make(chan Message, constants.EventBufferSize),
		done:           make(chan struct{}),
	}
	go c.run()
	return c, nil
}

// Events delivers decoded messages in wire order. The channel is closed
// after the final DisconnectedMsg.
func (c *Client) Events() <-chan Message { return c.events }

// Close tears the connection down: set the cooperative stop flag, shut down
// the read half to unblock a pending read, wait for the decoder goroutine,
// then close the socket. Synthesized end messages are delivered before the
// channel closes, so no consumer is left believing a match is in progress.
func (c *Client) Close() {
	c.stop.Store(true)
	if tcp, ok := c.conn.(*net.TCPConn); ok {
		tcp.CloseRead()
	}
	<-c.done
	c.conn.Close()
}

func (c *Client) run() {
	defer close(c.done)

	if c.haveCached {
		c.send(tagMappingInfoChecksum)
	} else {
		c.send(tagMappingInfoRequest)
	}

	dec := NewDecoder(c.conn)
	matchOpen := false
	trainingOpen := false

	var readErr error
	for !c.stop.Load() {
		msg, err := dec.Next()
		if err != nil {
			readErr = err
			break
		}

		switch m := msg.(type) {
		case MappingChecksumMsg:
			if c.haveCached && m.Checksum == c.cachedChecksum {
				c.logger.Debug().Uint32("checksum", m.Checksum).Msg("mapping info up to date")
				c.send(tagMatchResume, tagTrainingResume)
			} else {
				c.logger.Debug().Uint32("checksum", m.Checksum).Msg("mapping info outdated, requesting full tables")
				c.send(tagMappingInfoRequest)
			}

		case MappingCompleteMsg:
			c.send(tagMatchResume, tagTrainingResume)

		case MatchStartedMsg:
			matchOpen = true
		case MatchEndedMsg:
			matchOpen = false
		case TrainingStartedMsg:
			trainingOpen = true
		case TrainingEndedMsg:
			trainingOpen = false
		}

		c.events <- msg
	}

	// A short or failed read just means the connection closed; only log
	// anything unexpected for diagnostics.
	if readErr != nil {
		c.logger.Debug().Err(readErr).Str("addr", c.addr).Msg("connection closed")
	}

	if matchOpen {
		c.events <- MatchEndedMsg{Synthesized: true}
	}
	if trainingOpen {
		c.events <- TrainingEndedMsg{Synthesized: true}
	}
	c.events <- DisconnectedMsg{Err: readErr}
	close(c.events)
}

func (c *Client) send(tags ...byte) {
	if _, err := c.conn.Write(tags); err != nil {
		c.logger.Debug().Err(err).Msg("failed to write request to console")
	}
}
