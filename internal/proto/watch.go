package proto

import (
	"context"
	"sync"
	"time"

	"github.com/MrSnakeDoc/warden/internal/logger"
	"github.com/MrSnakeDoc/warden/internal/watcher"
)

const (
	// DefaultPollInterval is the spacing between liveness polls on an
	// open watcher connection.
	DefaultPollInterval = 30 * time.Second
	// DefaultPollTimeout bounds each individual poll.
	DefaultPollTimeout = 8 * time.Second
)

// PollDialer opens watcher connections that track liveness by polling the
// endpoint's status on an interval. The first poll happens inside Dial,
// so a dial error is surfaced synchronously; each later failed poll turns
// the connection dead and fires the disconnect callback once.
type PollDialer struct {
	Prober   watcher.Prober
	Interval time.Duration
	Timeout  time.Duration
	Log      logger.Logger
}

// Dial verifies the endpoint is reachable and returns a polling
// connection for it.
func (d *PollDialer) Dial(ctx context.Context, opts watcher.ConnectOptions) (watcher.Conn, error) {
	interval := d.Interval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	timeout := d.Timeout
	if timeout <= 0 {
		timeout = DefaultPollTimeout
	}

	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if _, err := d.Prober.Probe(probeCtx, opts.Host, opts.Port); err != nil {
		return nil, err
	}

	c := &pollConn{
		prober:   d.Prober,
		host:     opts.Host,
		port:     opts.Port,
		interval: interval,
		timeout:  timeout,
		log:      d.Log,
		alive:    true,
		stopCh:   make(chan struct{}),
	}
	go c.loop()
	return c, nil
}

type pollConn struct {
	prober   watcher.Prober
	host     string
	port     int
	interval time.Duration
	timeout  time.Duration
	log      logger.Logger

	mu           sync.Mutex
	alive        bool
	dead         bool
	reason       error
	closed       bool
	onLive       func()
	onDisconnect func(reason error)

	stopCh chan struct{}
}

// OnLive registers the live callback. The dial already confirmed the
// endpoint up, so the callback fires immediately on registration.
func (c *pollConn) OnLive(cb func()) {
	c.mu.Lock()
	c.onLive = cb
	fire := cb != nil && c.alive && !c.dead && !c.closed
	c.mu.Unlock()

	if fire {
		cb()
	}
}

// OnDisconnect registers the disconnect callback. If the connection died
// before registration, the callback fires immediately with the recorded
// reason.
func (c *pollConn) OnDisconnect(cb func(reason error)) {
	c.mu.Lock()
	c.onDisconnect = cb
	var reason error
	fire := cb != nil && c.dead
	if fire {
		reason = c.reason
	}
	c.mu.Unlock()

	if fire {
		cb(reason)
	}
}

// Close stops polling without firing the disconnect callback.
func (c *pollConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	close(c.stopCh)
	return nil
}

// Alive reports whether the last poll succeeded.
func (c *pollConn) Alive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.alive && !c.dead && !c.closed
}

func (c *pollConn) loop() {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			if !c.poll() {
				return
			}
		}
	}
}

// poll runs one liveness check. Returns false when the loop must stop.
func (c *pollConn) poll() bool {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	_, err := c.prober.Probe(ctx, c.host, c.port)
	cancel()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return false
	}
	if err == nil {
		c.alive = true
		c.mu.Unlock()
		return true
	}

	c.alive = false
	c.dead = true
	c.reason = err
	cb := c.onDisconnect
	c.mu.Unlock()

	if c.log != nil {
		c.log.Debug("watch poll failed",
			logger.String("host", c.host),
			logger.Int("port", c.port),
			logger.Error(err))
	}
	if cb != nil {
		cb(err)
	}
	return false
}
