package chain

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	log "github.com/sirupsen/logrus"
)

var (
	wsConnectionAttempts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "nftbbs_wake_connection_attempts_total",
		Help: "The total number of connection attempts to the node wake socket",
	})

	wsConnectionErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "nftbbs_wake_connection_errors_total",
		Help: "The total number of wake socket connection errors encountered",
	})

	wsWakeSignals = promauto.NewCounter(prometheus.CounterOpts{
		Name: "nftbbs_wake_signals_total",
		Help: "The total number of wake signals received from the node",
	})
)

const (
	wsReadTimeout   = 60 * time.Second
	wsWriteTimeout  = 10 * time.Second
	wsPingInterval  = 30 * time.Second
	wsDialTimeout   = 45 * time.Second
	wsReadBufferMax = 64 * 1024
)

// WakeListener maintains a websocket connection to the node's notification
// socket. Any message on the socket nudges the scheduler to poll immediately
// instead of waiting out the idle backoff. Polling stays authoritative; a
// dead wake socket only costs latency, never records.
type WakeListener struct {
	endpoint  string
	userAgent string
	wake      chan struct{}
}

func NewWakeListener(endpoint string, userAgent string) *WakeListener {
	return &WakeListener{
		endpoint:  endpoint,
		userAgent: userAgent,
		wake:      make(chan struct{}, 1),
	}
}

// Wake returns the channel the scheduler selects on. The channel has a
// one-slot buffer; signals arriving while one is pending are coalesced.
func (w *WakeListener) Wake() <-chan struct{} {
	return w.wake
}

// Run dials the wake socket and reads messages until the context is
// cancelled, reconnecting with exponential backoff on failure.
func (w *WakeListener) Run(ctx context.Context) {
	dialer := websocket.Dialer{
		ReadBufferSize:   wsReadBufferMax,
		HandshakeTimeout: wsDialTimeout,
		NetDialContext: (&net.Dialer{
			Timeout:   wsDialTimeout,
			KeepAlive: wsDialTimeout,
		}).DialContext,
	}

	// Set up exponential backoff for reconnection attempts
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 100 * time.Millisecond
	bo.MaxInterval = 30 * time.Second
	bo.Multiplier = 1.5
	bo.MaxElapsedTime = 0 // Never stop retrying

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		headers := http.Header{}
		if w.userAgent != "" {
			headers.Set("User-Agent", w.userAgent)
		}

		wsConnectionAttempts.Inc()
		conn, _, err := dialer.DialContext(ctx, w.endpoint, headers)
		if err != nil {
			wsConnectionErrors.Inc()
			log.Errorf("Error connecting to wake socket %s: %s", w.endpoint, err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(bo.NextBackOff()):
			}
			continue
		}

		bo.Reset()
		w.readLoop(ctx, conn)
	}
}

func (w *WakeListener) readLoop(ctx context.Context, conn *websocket.Conn) {
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	conn.SetPongHandler(func(appData string) error {
		return conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	})

	go managePingPong(ctx, conn)

	for {
		select {
		case <-ctx.Done():
			return
		default:
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					log.Errorf("Unexpected wake socket close: %v", err)
				}
				wsConnectionErrors.Inc()
				return
			}

			wsWakeSignals.Inc()
			select {
			case w.wake <- struct{}{}:
			default: // A wake is already pending
			}
		}
	}
}

// managePingPong handles the ping keepalive for the wake socket connection
func managePingPong(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			log.Debug("Sending ping to check wake socket connection")
			if err := conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(wsWriteTimeout)); err != nil {
				log.Warn("Ping failed, closing wake socket for restart: ", err)
				wsConnectionErrors.Inc()
				conn.Close()
				return
			}
			if err := conn.SetReadDeadline(time.Now().Add(wsReadTimeout)); err != nil {
				log.Warn("Failed to set read deadline, closing wake socket: ", err)
				wsConnectionErrors.Inc()
				conn.Close()
				return
			}
		}
	}
}
