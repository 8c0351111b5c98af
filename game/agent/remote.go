package agent

import (
	"context"
	"fmt"
	"io"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jpillora/backoff"

	"github.com/wricardo/podium-rally/game/engine"
)

// Wire methods of the remote agent protocol
const (
	MethodRaceStart  = "race_start"
	MethodSelectGear = "select_gear"
	MethodSelectMove = "select_move"
)

const (
	// Time allowed to write a request to the peer.
	remoteWriteWait = 5 * time.Second
)

// Request is sent to a remote peer for every agent call
type Request struct {
	ID       string               `json:"id"`
	Method   string               `json:"method"`
	Info     *engine.RaceInfo     `json:"info,omitempty"`
	Snapshot *engine.RaceSnapshot `json:"snapshot,omitempty"`
	Move     *engine.MoveRequest  `json:"move,omitempty"`
}

// Response answers the request with the same ID
type Response struct {
	ID    string `json:"id"`
	Name  string `json:"name,omitempty"`
	Value int    `json:"value"`
	Error string `json:"error,omitempty"`
}

// Remote forwards agent calls to a peer over a websocket connection. A
// dropped connection is redialled with exponential backoff on the next
// call. With a fallback set, calls that cannot reach the peer are answered
// by the fallback heuristic instead of failing.
type Remote struct {
	url      string
	dialer   *websocket.Dialer
	fallback *Heuristic
	logger   *log.Logger

	mu       sync.Mutex
	conn     *websocket.Conn
	pending  map[string]chan Response
	retry    *backoff.Backoff
	nextDial time.Time
	closed   bool

	writeMu sync.Mutex
	alive   atomic.Bool
}

// RemoteOption configures a Remote
type RemoteOption func(*Remote)

// WithFallback answers with h whenever the peer cannot
func WithFallback(h *Heuristic) RemoteOption {
	return func(r *Remote) { r.fallback = h }
}

// WithLogger sets the logger for connection events
func WithLogger(l *log.Logger) RemoteOption {
	return func(r *Remote) { r.logger = l }
}

// WithDialer replaces the default websocket dialer
func WithDialer(d *websocket.Dialer) RemoteOption {
	return func(r *Remote) { r.dialer = d }
}

// WithBackoff sets the redial delay bounds
func WithBackoff(min, max time.Duration) RemoteOption {
	return func(r *Remote) {
		r.retry = &backoff.Backoff{Min: min, Max: max, Factor: 2, Jitter: true}
	}
}

// DialRemote connects to a peer at url
func DialRemote(ctx context.Context, url string, opts ...RemoteOption) (*Remote, error) {
	r := &Remote{
		url:     url,
		dialer:  websocket.DefaultDialer,
		logger:  log.New(io.Discard, "", 0),
		pending: make(map[string]chan Response),
		retry:   &backoff.Backoff{Min: 200 * time.Millisecond, Max: 10 * time.Second, Factor: 2, Jitter: true},
	}
	for _, opt := range opts {
		opt(r)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, err := r.dialLocked(ctx); err != nil {
		return nil, err
	}
	return r, nil
}

// Alive reports whether the peer connection is currently up
func (r *Remote) Alive() bool {
	return r.alive.Load()
}

// Close hangs up and stops redialling
func (r *Remote) Close() error {
	r.mu.Lock()
	conn := r.conn
	r.conn = nil
	r.closed = true
	r.mu.Unlock()

	r.alive.Store(false)
	if conn == nil {
		return nil
	}
	return conn.Close()
}

func (r *Remote) OnRaceStart(ctx context.Context, info engine.RaceInfo) (string, error) {
	if r.fallback != nil {
		r.fallback.OnRaceStart(ctx, info)
	}
	resp, err := r.call(ctx, Request{Method: MethodRaceStart, Info: &info})
	if err != nil {
		if r.fallback != nil && ctx.Err() == nil {
			r.logger.Printf("remote %s: race start unanswered: %v", r.url, err)
			return "", nil
		}
		return "", err
	}
	return resp.Name, nil
}

func (r *Remote) SelectGear(ctx context.Context, snap engine.RaceSnapshot) (int, error) {
	resp, err := r.call(ctx, Request{Method: MethodSelectGear, Snapshot: &snap})
	if err != nil {
		if r.fallback != nil && ctx.Err() == nil {
			r.logger.Printf("remote %s: gear from fallback: %v", r.url, err)
			return r.fallback.SelectGear(ctx, snap)
		}
		return 0, err
	}
	return resp.Value, nil
}

func (r *Remote) SelectMove(ctx context.Context, req engine.MoveRequest) (int, error) {
	resp, err := r.call(ctx, Request{Method: MethodSelectMove, Move: &req})
	if err != nil {
		if r.fallback != nil && ctx.Err() == nil {
			r.logger.Printf("remote %s: move from fallback: %v", r.url, err)
			return r.fallback.SelectMove(ctx, req)
		}
		return 0, err
	}
	return resp.Value, nil
}

// call sends req and waits for the matching response
func (r *Remote) call(ctx context.Context, req Request) (Response, error) {
	conn, err := r.connection(ctx)
	if err != nil {
		return Response{}, err
	}

	req.ID = uuid.NewString()
	ch := make(chan Response, 1)
	r.mu.Lock()
	r.pending[req.ID] = ch
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		delete(r.pending, req.ID)
		r.mu.Unlock()
	}()

	r.writeMu.Lock()
	conn.SetWriteDeadline(time.Now().Add(remoteWriteWait))
	err = conn.WriteJSON(req)
	r.writeMu.Unlock()
	if err != nil {
		r.drop(conn, err)
		return Response{}, fmt.Errorf("failed to send %s: %w", req.Method, err)
	}

	select {
	case resp := <-ch:
		if resp.Error != "" {
			return Response{}, fmt.Errorf("remote %s: %s", req.Method, resp.Error)
		}
		return resp, nil
	case <-ctx.Done():
		return Response{}, ctx.Err()
	}
}

// connection returns the live connection, redialling when the backoff
// allows it
func (r *Remote) connection(ctx context.Context) (*websocket.Conn, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.conn != nil {
		return r.conn, nil
	}
	if r.closed {
		return nil, ErrNotConnected
	}
	if time.Now().Before(r.nextDial) {
		return nil, fmt.Errorf("%w: next redial in %s", ErrNotConnected, time.Until(r.nextDial).Round(time.Millisecond))
	}
	return r.dialLocked(ctx)
}

func (r *Remote) dialLocked(ctx context.Context) (*websocket.Conn, error) {
	conn, _, err := r.dialer.DialContext(ctx, r.url, nil)
	if err != nil {
		r.nextDial = time.Now().Add(r.retry.Duration())
		return nil, fmt.Errorf("failed to dial %s: %w", r.url, err)
	}
	r.retry.Reset()
	r.conn = conn
	r.alive.Store(true)
	r.logger.Printf("remote %s: connected", r.url)
	go r.readLoop(conn)
	return conn, nil
}

func (r *Remote) readLoop(conn *websocket.Conn) {
	for {
		var resp Response
		if err := conn.ReadJSON(&resp); err != nil {
			r.drop(conn, err)
			return
		}
		r.mu.Lock()
		ch, ok := r.pending[resp.ID]
		r.mu.Unlock()
		if !ok {
			r.logger.Printf("remote %s: dropping response to unknown request %s", r.url, resp.ID)
			continue
		}
		select {
		case ch <- resp:
		default:
		}
	}
}

// drop forgets conn and fails every call waiting on it
func (r *Remote) drop(conn *websocket.Conn, cause error) {
	r.mu.Lock()
	if r.conn != conn {
		r.mu.Unlock()
		return
	}
	r.conn = nil
	r.nextDial = time.Now().Add(r.retry.Duration())
	for id, ch := range r.pending {
		select {
		case ch <- Response{ID: id, Error: "connection lost"}:
		default:
		}
	}
	closed := r.closed
	r.mu.Unlock()

	r.alive.Store(false)
	conn.Close()
	if !closed {
		r.logger.Printf("remote %s: connection lost: %v", r.url, cause)
	}
}

// Serve answers remote agent requests arriving on conn with a until the
// connection closes or ctx ends. It is the peer side of Remote.
func Serve(ctx context.Context, conn *websocket.Conn, a engine.Agent) error {
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	var writeMu sync.Mutex
	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		var req Request
		if err := conn.ReadJSON(&req); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return err
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			resp := answer(ctx, a, req)
			writeMu.Lock()
			defer writeMu.Unlock()
			conn.SetWriteDeadline(time.Now().Add(remoteWriteWait))
			if err := conn.WriteJSON(resp); err != nil {
				log.Printf("agent serve: failed to answer %s: %v", req.ID, err)
			}
		}()
	}
}

func answer(ctx context.Context, a engine.Agent, req Request) Response {
	resp := Response{ID: req.ID}
	var err error
	switch {
	case req.Method == MethodRaceStart && req.Info != nil:
		resp.Name, err = a.OnRaceStart(ctx, *req.Info)
	case req.Method == MethodSelectGear && req.Snapshot != nil:
		resp.Value, err = a.SelectGear(ctx, *req.Snapshot)
	case req.Method == MethodSelectMove && req.Move != nil:
		resp.Value, err = a.SelectMove(ctx, *req.Move)
	default:
		err = fmt.Errorf("unknown method %q", req.Method)
	}
	if err != nil {
		resp.Error = err.Error()
	}
	return resp
}
