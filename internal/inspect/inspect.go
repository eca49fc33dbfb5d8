// Package inspect serves a movie's state over a websocket, for watching and
// poking at playback from a browser or a script.
//
// A client connecting to /ws receives JSON messages of the following form:
//
//	{ "type": "status", "status": { "time": 1.5, "rate": 1, ... } }
//	{ "type": "event", "event": { "name": "end-of-media", "time": 10 } }
//
// and may send commands:
//
//	{ "type": "play" }
//	{ "type": "stop" }
//	{ "type": "rate", "value": -0.5 }
//	{ "type": "seek", "value": 3.25 }
//	{ "type": "loop", "value": 1 }
//	{ "type": "gotoEnd" }
package inspect

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"golang.org/x/net/netutil"

	"github.com/lanikai/alohamovie"
	"github.com/lanikai/alohamovie/internal/logging"
)

var log = logging.DefaultLogger.WithTag("inspect")

type Status struct {
	Source    string           `json:"source"`
	Time      float64          `json:"time"`
	Duration  float64          `json:"duration"`
	Rate      float32          `json:"rate"`
	Looping   bool             `json:"looping"`
	Selection []float64        `json:"selection,omitempty"`
	Stats     alohamovie.Stats `json:"stats"`
	Error     string           `json:"error,omitempty"`
}

type Event struct {
	Name  string  `json:"name"`
	Time  float64 `json:"time"`
	Rate  float32 `json:"rate,omitempty"`
	Error string  `json:"error,omitempty"`
}

type message struct {
	Type   string  `json:"type"`
	Status *Status `json:"status,omitempty"`
	Event  *Event  `json:"event,omitempty"`
	Error  string  `json:"error,omitempty"`
}

type command struct {
	Type  string  `json:"type"`
	Value float64 `json:"value"`
}

// Server exposes one movie.
type Server struct {
	// Connections beyond this many wait to be accepted.
	MaxClients int

	movie    *alohamovie.Movie
	interval time.Duration
	upgrader websocket.Upgrader
	server   *http.Server
}

// NewServer returns a server listening on addr that pushes the status of m
// every interval.
func NewServer(addr string, m *alohamovie.Movie, interval time.Duration) *Server {
	if interval <= 0 {
		interval = time.Second
	}
	s := &Server{
		MaxClients: 8,
		movie:      m,
		interval:   interval,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
	s.server = &http.Server{
		Addr:     addr,
		Handler:  s.Handler(),
		ErrorLog: log.StdLogger(logging.Warn),
	}
	return s
}

func (s *Server) Handler() http.Handler {
	router := http.NewServeMux()
	router.HandleFunc("/ws", s.handleWebsocket)
	return router
}

func (s *Server) ListenAndServe() error {
	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Serve accepts connections on ln until Shutdown.
func (s *Server) Serve(ln net.Listener) error {
	log.Info("Inspect server listening on %s", ln.Addr())
	if s.MaxClients > 0 {
		ln = netutil.LimitListener(ln, s.MaxClients)
	}
	return s.server.Serve(ln)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func seconds(d time.Duration) float64 {
	return d.Seconds()
}

// CurrentStatus samples the movie.
func CurrentStatus(m *alohamovie.Movie) *Status {
	st := &Status{
		Source:   m.Source(),
		Time:     seconds(m.CurrentTime()),
		Duration: seconds(m.Duration()),
		Rate:     m.Rate(),
		Looping:  m.Looping(),
		Stats:    m.Stats(),
	}
	if sel, ok := m.PlaybackSelection(); ok {
		st.Selection = []float64{seconds(sel.Start), seconds(sel.End)}
	}
	if err := m.Err(); err != nil {
		st.Error = err.Error()
	}
	return st
}

func convertEvent(ev alohamovie.Event) *Event {
	e := &Event{
		Name: ev.Type.String(),
		Time: seconds(ev.Time),
		Rate: ev.Rate,
	}
	if ev.Err != nil {
		e.Error = ev.Err.Error()
	}
	return e
}

// apply runs a client command against the movie.
func apply(m *alohamovie.Movie, cmd command) error {
	switch cmd.Type {
	case "play":
		return m.Play()
	case "stop":
		m.Stop()
	case "rate":
		return m.SetRate(float32(cmd.Value))
	case "seek":
		return m.Seek(time.Duration(cmd.Value * float64(time.Second)))
	case "loop":
		m.SetLooping(cmd.Value != 0)
	case "gotoEnd":
		m.GotoEnd()
	default:
		return errors.Errorf("unknown command %q", cmd.Type)
	}
	return nil
}

func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	// Upgrade websocket connection
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn("upgrade: %v", err)
		return
	}
	defer ws.Close()

	events := s.movie.Subscribe(32)
	defer s.movie.Unsubscribe(events)

	// Only this goroutine writes to the websocket. The reader below reports
	// command failures through replies.
	replies := make(chan string, 8)
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			var cmd command
			if err := ws.ReadJSON(&cmd); err != nil {
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					log.Debug("Failed to read websocket message: %v", err)
				}
				return
			}
			log.Debug("Command %s %v", cmd.Type, cmd.Value)
			if err := apply(s.movie, cmd); err != nil {
				select {
				case replies <- err.Error():
				default:
				}
			}
		}
	}()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	send := func(msg message) bool {
		if err := ws.WriteJSON(msg); err != nil {
			log.Debug("Failed to write websocket message: %v", err)
			return false
		}
		return true
	}

	if !send(message{Type: "status", Status: CurrentStatus(s.movie)}) {
		return
	}
	for {
		var msg message
		select {
		case <-closed:
			return
		case ev, ok := <-events:
			if !ok {
				ws.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "movie reset"))
				return
			}
			msg = message{Type: "event", Event: convertEvent(ev)}
		case text := <-replies:
			msg = message{Type: "error", Error: text}
		case <-ticker.C:
			msg = message{Type: "status", Status: CurrentStatus(s.movie)}
		}
		if !send(msg) {
			return
		}
	}
}
