package channel

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/c360/canvaskit/binding"
	"github.com/c360/canvaskit/errors"
	"github.com/c360/canvaskit/metric"
	"github.com/c360/canvaskit/pkg/buffer"
)

const (
	defaultHeartbeatInterval = 30 * time.Second
	defaultHeartbeatTimeout  = 10 * time.Second
	defaultReconnectBase     = 1 * time.Second
	defaultReconnectMax      = 30 * time.Second
	defaultMaxReconnects     = 10
	defaultQueueCapacity     = 100
	defaultHandshakeTimeout  = 45 * time.Second

	// controlQueueSize bounds in-session control traffic (subscribes,
	// pong replies). Overflowing entries are dropped; subscriptions are
	// replayed on reconnect so nothing is permanently lost.
	controlQueueSize = 16

	// writeWait caps how long a single frame write may block.
	writeWait = 10 * time.Second
)

// Manager maintains a WebSocket connection to the channel server. It
// dials lazily, reconnects with exponential backoff after unclean
// closes, exchanges application-level ping/pong heartbeats, queues
// outbound messages while disconnected, and fans inbound data messages
// out to topic subscribers.
//
// All methods are safe for concurrent use.
type Manager struct {
	url    string
	tenant *binding.Context

	heartbeatInterval time.Duration
	heartbeatTimeout  time.Duration
	maxReconnects     int
	reconnectBase     time.Duration
	reconnectMax      time.Duration
	queueCapacity     int

	dialer  *websocket.Dialer
	logger  *slog.Logger
	metrics *metric.Metrics
	onState func(State)

	state atomic.Value

	subs     *subscriptionTable
	outbound buffer.Buffer[Message]
	inbound  buffer.Buffer[Message]

	ctrlCh      chan Message
	writeWake   chan struct{}
	inboundWake chan struct{}

	mu  sync.Mutex
	run *run
}

// run holds the goroutines of one Connect..Disconnect span.
type run struct {
	cancel context.CancelFunc
	done   chan struct{}
	wg     sync.WaitGroup
}

// Option configures a Manager.
type Option func(*Manager) error

// WithTenantContext sets the tenant identity sent in an authenticate
// message after every successful connection.
func WithTenantContext(bctx binding.Context) Option {
	return func(m *Manager) error {
		m.tenant = &bctx
		return nil
	}
}

// WithHeartbeatInterval sets how often the manager pings the server.
func WithHeartbeatInterval(interval time.Duration) Option {
	return func(m *Manager) error {
		if interval <= 0 {
			return fmt.Errorf("heartbeat interval must be positive, got %v", interval)
		}
		m.heartbeatInterval = interval
		return nil
	}
}

// WithHeartbeatTimeout sets how long the manager waits for a pong before
// it declares the connection dead and forces a reconnect.
func WithHeartbeatTimeout(timeout time.Duration) Option {
	return func(m *Manager) error {
		if timeout <= 0 {
			return fmt.Errorf("heartbeat timeout must be positive, got %v", timeout)
		}
		m.heartbeatTimeout = timeout
		return nil
	}
}

// WithReconnectMaxAttempts caps consecutive failed reconnect attempts
// before the manager gives up and enters the error state. Zero disables
// reconnection entirely.
func WithReconnectMaxAttempts(attempts int) Option {
	return func(m *Manager) error {
		if attempts < 0 {
			return fmt.Errorf("max reconnect attempts cannot be negative, got %d", attempts)
		}
		m.maxReconnects = attempts
		return nil
	}
}

// WithReconnectBaseInterval sets the first reconnect delay. Subsequent
// attempts double it up to the maximum interval.
func WithReconnectBaseInterval(interval time.Duration) Option {
	return func(m *Manager) error {
		if interval <= 0 {
			return fmt.Errorf("reconnect base interval must be positive, got %v", interval)
		}
		m.reconnectBase = interval
		return nil
	}
}

// WithReconnectMaxInterval caps the backoff between reconnect attempts.
func WithReconnectMaxInterval(interval time.Duration) Option {
	return func(m *Manager) error {
		if interval <= 0 {
			return fmt.Errorf("reconnect max interval must be positive, got %v", interval)
		}
		m.reconnectMax = interval
		return nil
	}
}

// WithQueueCapacity sets how many outbound messages are held while the
// connection is down. The oldest messages are dropped on overflow.
func WithQueueCapacity(capacity int) Option {
	return func(m *Manager) error {
		if capacity <= 0 {
			return fmt.Errorf("queue capacity must be positive, got %d", capacity)
		}
		m.queueCapacity = capacity
		return nil
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) error {
		if logger != nil {
			m.logger = logger
		}
		return nil
	}
}

// WithMetrics attaches metrics collection.
func WithMetrics(metrics *metric.Metrics) Option {
	return func(m *Manager) error {
		m.metrics = metrics
		return nil
	}
}

// WithDialer replaces the WebSocket dialer.
func WithDialer(dialer *websocket.Dialer) Option {
	return func(m *Manager) error {
		if dialer != nil {
			m.dialer = dialer
		}
		return nil
	}
}

// WithStateCallback registers a callback invoked on every state change.
// The callback runs on the manager's connection goroutine and must not
// call Disconnect or Close.
func WithStateCallback(fn func(State)) Option {
	return func(m *Manager) error {
		m.onState = fn
		return nil
	}
}

// New creates a Manager for the given WebSocket URL. The manager does
// not dial until Connect is called.
func New(url string, opts ...Option) (*Manager, error) {
	if url == "" {
		return nil, errors.WrapInvalid(
			fmt.Errorf("url is required"),
			"Manager", "New", "validate url")
	}

	m := &Manager{
		url:               url,
		heartbeatInterval: defaultHeartbeatInterval,
		heartbeatTimeout:  defaultHeartbeatTimeout,
		maxReconnects:     defaultMaxReconnects,
		reconnectBase:     defaultReconnectBase,
		reconnectMax:      defaultReconnectMax,
		queueCapacity:     defaultQueueCapacity,
		subs:              newSubscriptionTable(),
		ctrlCh:            make(chan Message, controlQueueSize),
		writeWake:         make(chan struct{}, 1),
		inboundWake:       make(chan struct{}, 1),
	}

	for _, opt := range opts {
		if err := opt(m); err != nil {
			return nil, errors.WrapInvalid(err, "Manager", "New", "apply option")
		}
	}

	if m.logger == nil {
		m.logger = slog.Default().With("component", "channel")
	}
	if m.dialer == nil {
		m.dialer = &websocket.Dialer{HandshakeTimeout: defaultHandshakeTimeout}
	}
	if m.reconnectMax < m.reconnectBase {
		m.reconnectMax = m.reconnectBase
	}

	outbound, err := buffer.NewCircularBuffer[Message](m.queueCapacity,
		buffer.WithOverflowPolicy[Message](buffer.DropOldest),
		buffer.WithDropCallback[Message](func(msg Message) {
			m.trackError("queue_overflow")
			m.logger.Debug("outbound queue full, dropped oldest message", "type", msg.Type, "topic", msg.Topic)
		}))
	if err != nil {
		return nil, errors.WrapFatal(err, "Manager", "New", "create outbound queue")
	}
	m.outbound = outbound

	inbound, err := buffer.NewCircularBuffer[Message](m.queueCapacity,
		buffer.WithOverflowPolicy[Message](buffer.DropOldest),
		buffer.WithDropCallback[Message](func(msg Message) {
			m.trackError("inbound_overflow")
		}))
	if err != nil {
		return nil, errors.WrapFatal(err, "Manager", "New", "create inbound queue")
	}
	m.inbound = inbound

	m.state.Store(StateDisconnected)
	return m, nil
}

// State returns the current connection state.
func (m *Manager) State() State {
	val := m.state.Load()
	if val == nil {
		return StateDisconnected
	}
	return val.(State)
}

// Queued returns how many outbound messages are waiting to be sent.
func (m *Manager) Queued() int {
	return m.outbound.Size()
}

func (m *Manager) setState(next State) {
	prev := m.State()
	if prev == next {
		return
	}
	m.state.Store(next)
	m.logger.Info("channel state changed", "from", prev.String(), "to", next.String())
	if m.metrics != nil {
		m.metrics.RecordChannelStatus(next == StateConnected)
	}
	if m.onState != nil {
		m.onState(next)
	}
}

// Connect starts the connection supervisor and returns immediately. Dial
// failures do not surface here; they drive the reconnect state machine,
// observable through State and the state callback. The supervisor stops
// when ctx is cancelled, Disconnect is called, or reconnect attempts are
// exhausted.
//
// Connect returns an error only when the manager is already running.
// After the error state or a disconnect it may be called again.
func (m *Manager) Connect(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.run != nil {
		switch m.State() {
		case StateErrored, StateDisconnected:
			// Previous run has stopped or is winding down.
			<-m.run.done
			m.run = nil
		default:
			return errors.WrapInvalid(errors.ErrAlreadyStarted, "Manager", "Connect", "state check")
		}
	}

	runCtx, cancel := context.WithCancel(ctx)
	r := &run{cancel: cancel, done: make(chan struct{})}
	m.run = r
	m.setState(StateConnecting)

	r.wg.Add(2)
	go m.supervise(runCtx, r)
	go m.deliverLoop(runCtx, r)
	go func() {
		r.wg.Wait()
		close(r.done)
	}()

	m.logger.Info("channel manager started", "url", m.url)
	return nil
}

// Disconnect closes the connection and stops all manager goroutines,
// leaving queued outbound messages intact for a later Connect. It is
// idempotent and safe to call from any goroutine except a subscription
// handler or the state callback.
func (m *Manager) Disconnect() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.run == nil {
		return nil
	}
	r := m.run
	m.run = nil
	r.cancel()
	<-r.done
	m.setState(StateDisconnected)
	m.logger.Info("channel manager stopped")
	return nil
}

// Close is an alias for Disconnect so a Manager satisfies io.Closer.
func (m *Manager) Close() error {
	return m.Disconnect()
}

// Send queues a data message for delivery. While connected the message
// goes out immediately; while disconnected it waits in the outbound
// queue and is flushed, oldest first, after the next successful
// connection. On queue overflow the oldest queued message is dropped.
func (m *Manager) Send(msgType, topic string, data any) error {
	if msgType == "" {
		return errors.WrapInvalid(
			fmt.Errorf("message type is required"),
			"Manager", "Send", "validate type")
	}
	if err := m.outbound.Write(newData(msgType, topic, data)); err != nil {
		return errors.WrapTransient(err, "Manager", "Send", "queue write")
	}
	select {
	case m.writeWake <- struct{}{}:
	default:
	}
	return nil
}

// sendControl hands a control message to the session writer. Control
// traffic is only meaningful on a live connection; while disconnected it
// is skipped because the open handshake replays subscription state.
func (m *Manager) sendControl(msg Message) {
	if m.State() != StateConnected {
		return
	}
	select {
	case m.ctrlCh <- msg:
	default:
		m.trackError("control_overflow")
	}
}

// supervise owns the dial/redial cycle. Each successful dial hands off
// to a session; each failure or unclean session end schedules a retry
// with exponential backoff until attempts are exhausted.
func (m *Manager) supervise(ctx context.Context, r *run) {
	defer r.wg.Done()
	defer r.cancel()
	defer func() {
		if ctx.Err() != nil && m.State() != StateDisconnected {
			m.setState(StateDisconnected)
		}
	}()

	attempt := 0
	for {
		if ctx.Err() != nil {
			return
		}

		conn, err := m.dial(ctx)
		if err == nil {
			attempt = 0
			m.setState(StateConnected)
			m.logger.Info("channel connected", "url", m.url)
			clean := m.runSession(ctx, conn)
			if ctx.Err() != nil {
				return
			}
			if clean {
				m.logger.Info("server closed channel cleanly")
				m.setState(StateDisconnected)
				return
			}
			m.logger.Warn("channel connection lost")
		} else {
			if ctx.Err() != nil {
				return
			}
			m.trackError("connect_error")
			m.logger.Warn("channel dial failed", "url", m.url, "error", err)
		}

		if attempt >= m.maxReconnects {
			m.trackError("reconnect_exhausted")
			m.logger.Error("reconnect attempts exhausted", "attempts", attempt, "error", errors.ErrMaxReconnects)
			m.setState(StateErrored)
			return
		}
		m.setState(StateReconnecting)
		if m.metrics != nil {
			m.metrics.RecordChannelReconnect()
		}
		delay := m.reconnectDelay(attempt)
		attempt++
		m.logger.Info("scheduling reconnect", "attempt", attempt, "delay", delay)
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}

func (m *Manager) dial(ctx context.Context) (*websocket.Conn, error) {
	conn, resp, err := m.dialer.DialContext(ctx, m.url, nil)
	if err != nil {
		if resp != nil && resp.Body != nil {
			_ = resp.Body.Close()
		}
		return nil, err
	}
	return conn, nil
}

// reconnectDelay doubles the base interval per prior attempt, capped at
// the configured maximum.
func (m *Manager) reconnectDelay(attempt int) time.Duration {
	delay := m.reconnectBase
	for i := 0; i < attempt; i++ {
		delay *= 2
		if delay >= m.reconnectMax {
			return m.reconnectMax
		}
	}
	return delay
}

// session tracks one live connection. done closes when either pump loop
// fails; clean records whether the server completed a normal close
// handshake.
type session struct {
	conn    *websocket.Conn
	done    chan struct{}
	pong    chan struct{}
	clean   atomic.Bool
	endOnce sync.Once
}

func newSession(conn *websocket.Conn) *session {
	return &session{
		conn: conn,
		done: make(chan struct{}),
		pong: make(chan struct{}, 1),
	}
}

// end tears the session down exactly once. Closing the conn unblocks the
// read loop; closing done unblocks the write loop and the supervisor.
func (s *session) end() {
	s.endOnce.Do(func() {
		_ = s.conn.Close()
		close(s.done)
	})
}

// runSession performs the open handshake, runs the read and write pumps,
// and blocks until the session ends. It reports whether the close was
// clean.
func (m *Manager) runSession(ctx context.Context, conn *websocket.Conn) bool {
	sess := newSession(conn)

	m.drainStaleControl()
	if err := m.openHandshake(conn); err != nil {
		m.logger.Warn("open handshake failed", "error", err)
		sess.end()
		return false
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		m.readLoop(sess)
	}()
	go func() {
		defer wg.Done()
		m.writeLoop(sess)
	}()

	select {
	case <-ctx.Done():
		m.sendClose(conn)
	case <-sess.done:
	}
	sess.end()
	wg.Wait()
	return sess.clean.Load()
}

// openHandshake authenticates and replays subscription state. It runs
// before the write pump starts, so the supervisor is the sole writer.
func (m *Manager) openHandshake(conn *websocket.Conn) error {
	if m.tenant != nil {
		if err := m.writeConn(conn, newAuthenticate(*m.tenant)); err != nil {
			return err
		}
	}
	for _, topic := range m.subs.activeTopics() {
		if err := m.writeConn(conn, newControl(TypeSubscribe, topic)); err != nil {
			return err
		}
	}
	return nil
}

// drainStaleControl discards control messages queued for a previous
// session. The open handshake regenerates subscription state, so a stale
// subscribe is redundant and a stale unsubscribe could cancel a topic
// that was re-registered in the meantime.
func (m *Manager) drainStaleControl() {
	for {
		select {
		case <-m.ctrlCh:
		default:
			return
		}
	}
}

// sendClose attempts a graceful close handshake before the connection is
// torn down. Best effort.
func (m *Manager) sendClose(conn *websocket.Conn) {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
}

// readLoop pumps inbound frames until the connection fails or closes.
// Pongs feed the heartbeat, pings are answered, data messages are queued
// for the delivery goroutine, and unrecognized control types are
// ignored.
func (m *Manager) readLoop(sess *session) {
	defer sess.end()

	for {
		_, payload, err := sess.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				sess.clean.Store(true)
			} else {
				m.logger.Debug("read loop ended", "error", err)
			}
			return
		}

		msg, err := parseMessage(payload)
		if err != nil {
			m.trackError("parse_error")
			m.logger.Debug("discarding unparseable message", "error", err)
			continue
		}
		if m.metrics != nil {
			m.metrics.RecordMessageReceived("channel", msg.Type)
		}

		switch msg.Type {
		case TypePong:
			select {
			case sess.pong <- struct{}{}:
			default:
			}
		case TypePing:
			m.sendControl(newControl(TypePong, ""))
		case TypeSubscribe, TypeUnsubscribe, TypeAuthenticate:
			// Server echoes of client control traffic carry nothing to route.
		default:
			if msg.Topic == "" {
				// Unrecognized control type. Tolerated and dropped.
				continue
			}
			m.enqueueInbound(msg)
		}
	}
}

func (m *Manager) enqueueInbound(msg Message) {
	if err := m.inbound.Write(msg); err != nil {
		m.trackError("inbound_write_failed")
		return
	}
	select {
	case m.inboundWake <- struct{}{}:
	default:
	}
}

// writeLoop is the only goroutine that writes frames during a session.
// It flushes the outbound queue on entry, then serves queued sends,
// control traffic, and the heartbeat until the session ends. A missed
// pong forces the connection closed so the supervisor reconnects.
func (m *Manager) writeLoop(sess *session) {
	defer sess.end()

	if !m.flushOutbound(sess) {
		return
	}

	ticker := time.NewTicker(m.heartbeatInterval)
	defer ticker.Stop()

	timeout := time.NewTimer(m.heartbeatTimeout)
	if !timeout.Stop() {
		<-timeout.C
	}
	defer timeout.Stop()
	awaitingPong := false

	for {
		select {
		case <-sess.done:
			return
		case msg := <-m.ctrlCh:
			if m.writeConn(sess.conn, msg) != nil {
				return
			}
		case <-m.writeWake:
			if !m.flushOutbound(sess) {
				return
			}
		case <-ticker.C:
			if m.writeConn(sess.conn, newControl(TypePing, "")) != nil {
				return
			}
			if !awaitingPong {
				timeout.Reset(m.heartbeatTimeout)
				awaitingPong = true
			}
		case <-sess.pong:
			if awaitingPong {
				if !timeout.Stop() {
					select {
					case <-timeout.C:
					default:
					}
				}
				awaitingPong = false
			}
		case <-timeout.C:
			m.trackError("heartbeat_timeout")
			m.logger.Warn("heartbeat timed out, forcing reconnect", "timeout", m.heartbeatTimeout, "error", errors.ErrHeartbeatTimeout)
			return
		}
	}
}

// flushOutbound writes queued messages oldest first until the queue is
// empty. Returns false when a write fails.
func (m *Manager) flushOutbound(sess *session) bool {
	for {
		msg, ok := m.outbound.Read()
		if !ok {
			return true
		}
		if m.writeConn(sess.conn, msg) != nil {
			return false
		}
	}
}

func (m *Manager) writeConn(conn *websocket.Conn, msg Message) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(msg); err != nil {
		m.trackError("write_error")
		m.logger.Debug("write failed", "type", msg.Type, "error", err)
		return err
	}
	if m.metrics != nil {
		label := msg.Topic
		if label == "" {
			label = msg.Type
		}
		m.metrics.RecordMessagePublished("channel", label)
	}
	return nil
}

// deliverLoop dispatches inbound data messages to subscription handlers.
// A single goroutine consumes the inbound queue so handlers observe
// messages in arrival order across reconnects.
func (m *Manager) deliverLoop(ctx context.Context, r *run) {
	defer r.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.inboundWake:
			for {
				msg, ok := m.inbound.Read()
				if !ok {
					break
				}
				m.dispatch(msg)
			}
		}
	}
}

func (m *Manager) dispatch(msg Message) {
	for _, sub := range m.subs.match(msg.Topic) {
		if sub.filter != nil && !sub.filter(msg) {
			continue
		}
		sub.fn(msg)
	}
}

func (m *Manager) trackError(errorType string) {
	if m.metrics != nil {
		m.metrics.RecordError("channel", errorType)
	}
}
