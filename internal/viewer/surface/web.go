package surface

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/photosphere/internal/infrastructure/logging"
	"github.com/GriffinCanCode/photosphere/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/photosphere/internal/shared/id"
	"github.com/GriffinCanCode/photosphere/internal/viewer"
	"github.com/GriffinCanCode/photosphere/internal/viewer/bridge"
	"github.com/GriffinCanCode/photosphere/internal/viewer/document"
)

// ErrUnknownSession is returned for sessions that are not mounted
var ErrUnknownSession = errors.New("unknown viewer session")

const webName = "web"

// DefaultEventsPath is the events endpoint pattern; %s is the session id
const DefaultEventsPath = "/sessions/%s/events"

// Conn is the part of *websocket.Conn the surface uses
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// WebOptions configure the browser surface
type WebOptions struct {
	Document   document.Options
	EventsPath string
}

// Web keeps rendered documents for browsers and relays their events
type Web struct {
	base       document.Options
	eventsPath string
	log        *logging.Logger
	metrics    *monitoring.Metrics

	mu       sync.RWMutex
	sessions map[id.SessionID]*WebInstance
}

// NewWeb creates the browser surface
func NewWeb(opts WebOptions, log *logging.Logger, metrics *monitoring.Metrics) (*Web, error) {
	if log == nil {
		log = logging.NewNop()
	}
	if err := opts.Document.Validate(); err != nil {
		return nil, err
	}
	if opts.EventsPath == "" {
		opts.EventsPath = DefaultEventsPath
	}
	return &Web{
		base:       opts.Document,
		eventsPath: opts.EventsPath,
		log:        log.Named(webName),
		metrics:    metrics,
		sessions:   make(map[id.SessionID]*WebInstance),
	}, nil
}

// Name implements viewer.Surface
func (w *Web) Name() string { return webName }

// EventsPath returns the events endpoint of a session
func (w *Web) EventsPath(session id.SessionID) string {
	return fmt.Sprintf(w.eventsPath, session)
}

// Mount renders the document with the injection and the bridge preamble
func (w *Web) Mount(ctx context.Context, m viewer.Mount) (viewer.Instance, error) {
	injection, err := m.Inbound.Take()
	if err != nil {
		return nil, err
	}
	doc, err := newDocument(w.base, m.Title)
	if err != nil {
		return nil, err
	}
	shim, err := bridge.Shim(w.EventsPath(m.SessionID))
	if err != nil {
		return nil, err
	}
	markup, err := doc.Render(injection, shim)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	inst := &WebInstance{
		surface:  w,
		session:  m.SessionID,
		html:     markup,
		outbound: m.Outbound,
		log:      w.log.With(zap.String("session_id", m.SessionID.String())),
	}

	w.mu.Lock()
	w.sessions[m.SessionID] = inst
	w.mu.Unlock()

	w.metrics.AddSandboxInstances(webName, 1)
	return inst, nil
}

// Document returns the rendered document of a mounted session
func (w *Web) Document(session id.SessionID) (string, bool) {
	inst, ok := w.instance(session)
	if !ok {
		return "", false
	}
	return inst.html, true
}

// Attach binds a browser connection to a session and relays its messages
// into the session's outbound channel until the connection ends, the
// session closes or ctx is done. A newer connection replaces an older one.
func (w *Web) Attach(ctx context.Context, session id.SessionID, conn Conn) error {
	inst, ok := w.instance(session)
	if !ok {
		return ErrUnknownSession
	}
	if err := inst.attach(conn); err != nil {
		return err
	}
	defer inst.detach(conn)

	w.metrics.IncWSConnections()
	defer w.metrics.DecWSConnections()

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				inst.log.Debug("Browser connection ended", zap.Error(err))
			}
			return nil
		}
		w.metrics.RecordWSMessage("in")
		if !inst.outbound.Post(string(data)) {
			return nil
		}
	}
}

// Len returns the number of mounted sessions
func (w *Web) Len() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.sessions)
}

func (w *Web) instance(session id.SessionID) (*WebInstance, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	inst, ok := w.sessions[session]
	return inst, ok
}

func (w *Web) forget(inst *WebInstance) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.sessions[inst.session] == inst {
		delete(w.sessions, inst.session)
	}
}

// WebInstance is a document waiting for, or attached to, a browser
type WebInstance struct {
	surface  *Web
	session  id.SessionID
	html     string
	outbound *bridge.Outbound
	log      *logging.Logger

	mu      sync.Mutex
	conn    Conn
	pending bool
	closed  bool
}

// Trigger sends a load command, or queues it until a browser attaches
func (i *WebInstance) Trigger(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.closed {
		return ErrClosed
	}
	if i.conn == nil {
		i.pending = true
		return nil
	}
	return i.sendLoad()
}

// Attached reports whether a browser is connected
func (i *WebInstance) Attached() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.conn != nil
}

// Close forgets the document and drops the browser connection
func (i *WebInstance) Close() error {
	i.mu.Lock()
	if i.closed {
		i.mu.Unlock()
		return nil
	}
	i.closed = true
	conn := i.conn
	i.conn = nil
	i.mu.Unlock()

	i.surface.forget(i)
	i.surface.metrics.AddSandboxInstances(webName, -1)
	if conn != nil {
		return conn.Close()
	}
	return nil
}

func (i *WebInstance) attach(conn Conn) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.closed {
		return ErrClosed
	}
	if i.conn != nil {
		i.conn.Close()
	}
	i.conn = conn
	if i.pending {
		i.pending = false
		if err := i.sendLoad(); err != nil {
			i.log.Warn("Failed to deliver queued load", zap.Error(err))
		}
	}
	return nil
}

func (i *WebInstance) detach(conn Conn) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.conn == conn {
		i.conn = nil
	}
}

// sendLoad writes the load command. Caller holds i.mu, which serializes
// writers on the connection.
func (i *WebInstance) sendLoad() error {
	payload, err := bridge.Command{Type: bridge.CommandLoad}.Encode()
	if err != nil {
		return err
	}
	if err := i.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		return fmt.Errorf("send load command: %w", err)
	}
	i.surface.metrics.RecordWSMessage("out")
	return nil
}
