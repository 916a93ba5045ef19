package signal

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"signalbroker/internal/core/domain"
	"signalbroker/internal/core/ports"
	"signalbroker/internal/core/services"
	"signalbroker/pkg/validation"
)

// Options configures the Transport Front-End (§4.F), translated 1:1 from
// the wire-facing configuration keys in §6.
type Options struct {
	MaxFrameSize      int64
	PingInterval      time.Duration
	ConnectionTimeout time.Duration
	WriteTimeout      time.Duration
	EnableSFU         bool
	ICEServers        []domain.ICEServerConfig

	PlayerPath   string
	StreamerPath string
	SFUPath      string
	UnrealPath   string
}

// Server is the Transport Front-End: it upgrades incoming HTTP requests
// on the player/streamer/sfu/unreal paths to WebSocket connections, wires
// each one to the Connection Primitive, and dispatches decoded frames
// into the registry/subscription-graph/state-machine core.
type Server struct {
	registry *services.Registry
	graph    *services.SubscriptionGraph
	opts     Options
	metrics  ports.MetricsObserver
	logger   *zap.SugaredLogger
	upgrader websocket.Upgrader
}

// NewServer builds a transport front-end bound to the given core
// services.
func NewServer(registry *services.Registry, graph *services.SubscriptionGraph, opts Options, metrics ports.MetricsObserver, logger *zap.SugaredLogger) *Server {
	return &Server{
		registry: registry,
		graph:    graph,
		opts:     opts,
		metrics:  metrics,
		logger:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// Mux registers the role-dispatch endpoints onto mux per §4.F: the
// configured player/streamer/sfu/unreal paths, plus the bare "/" legacy
// mapping to streamer for backward compatibility. The "/" handler serves
// the exact root only and answers every other unregistered path with 404
// before any upgrade, so "unknown path" (§8 scenario 6) is never accepted.
func (s *Server) Mux(mux *http.ServeMux) {
	mux.HandleFunc(s.opts.PlayerPath, s.handlePlayer)
	mux.HandleFunc(s.opts.StreamerPath, s.handleStreamer)
	mux.HandleFunc(s.opts.SFUPath, s.handleSFU)
	mux.HandleFunc(s.opts.UnrealPath, s.handlePlayer) // §9 Open Question: treated as a full player
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		s.handleStreamer(w, r) // legacy root, exact match only
	})
}

// PlayerMux registers only the player role onto mux, at "/", so a split-mode
// port is hard-wired to that single role regardless of the path a client
// dials (§4.F: "each port is hard-wired to a single role").
func (s *Server) PlayerMux(mux *http.ServeMux) {
	mux.HandleFunc("/", s.handlePlayer)
}

// StreamerMux registers only the streamer role onto mux, at "/".
func (s *Server) StreamerMux(mux *http.ServeMux) {
	mux.HandleFunc("/", s.handleStreamer)
}

// SFUMux registers only the SFU role onto mux, at "/".
func (s *Server) SFUMux(mux *http.ServeMux) {
	mux.HandleFunc("/", s.handleSFU)
}

func (s *Server) upgrade(w http.ResponseWriter, r *http.Request, role domain.Role) (*domain.Connection, *WSConnection, *services.Machine, bool) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		if s.logger != nil {
			s.logger.Warnw("websocket upgrade failed", "error", err, "role", role.String())
		}
		return nil, nil, nil, false
	}

	id := domain.NewConnectionID()
	ws := NewWSConnection(id, conn, s.opts.ConnectionTimeout, s.opts.PingInterval, s.opts.WriteTimeout, s.opts.MaxFrameSize, s.logger)

	dc := &domain.Connection{
		ID:       id,
		Role:     role,
		PublicID: string(id),
		Sender:   ws,
	}
	if err := s.registry.Register(dc); err != nil {
		if s.logger != nil {
			s.logger.Errorw("registry rejected connection", "connection_id", id, "error", err)
		}
		_ = ws.Close(websocket.CloseInternalServerErr, "registration failed")
		return nil, nil, nil, false
	}
	return dc, ws, services.NewMachine(), true
}

func (s *Server) handlePlayer(w http.ResponseWriter, r *http.Request) {
	dc, ws, machine, ok := s.upgrade(w, r, domain.RolePlayer)
	if !ok {
		return
	}
	s.runPlayer(dc, ws, machine)
}

func (s *Server) handleStreamer(w http.ResponseWriter, r *http.Request) {
	dc, ws, machine, ok := s.upgrade(w, r, domain.RoleStreamer)
	if !ok {
		return
	}
	s.runStreamer(dc, ws, machine, false)
}

func (s *Server) handleSFU(w http.ResponseWriter, r *http.Request) {
	if !s.opts.EnableSFU {
		http.Error(w, "sfu role disabled", http.StatusNotFound)
		return
	}
	dc, ws, machine, ok := s.upgrade(w, r, domain.RoleSFU)
	if !ok {
		return
	}
	s.runStreamer(dc, ws, machine, true) // an SFU shares the streamer skeleton (§4.E)
}

func (s *Server) runPlayer(dc *domain.Connection, ws *WSConnection, machine *services.Machine) {
	go ws.WritePump()
	ws.ReadPump(
		func(f domain.Frame) {
			s.registry.Touch(dc.ID)
			s.handlePlayerFrame(dc, machine, f)
		},
		func() { s.teardownPlayer(dc) },
	)
}

func (s *Server) runStreamer(dc *domain.Connection, ws *WSConnection, machine *services.Machine, isSFU bool) {
	go ws.WritePump()
	ws.ReadPump(
		func(f domain.Frame) {
			s.registry.Touch(dc.ID)
			s.handleStreamerFrame(dc, machine, f, isSFU)
		},
		func() { s.teardownStreamer(dc) },
	)
}

// handlePlayerFrame implements the player state machine (§4.E).
func (s *Server) handlePlayerFrame(player *domain.Connection, machine *services.Machine, f domain.Frame) {
	switch f.Type() {
	case domain.TypeIdentify:
		if playerID := f.String("playerId"); playerID != "" {
			if err := validation.ValidatePlayerID(playerID); err != nil {
				_ = player.Sender.Send(domain.ErrorMessage(err.Error()))
				if s.metrics != nil {
					s.metrics.FrameRejected("invalid_player_id")
				}
				return
			}
			player.PublicID = playerID
		}
		_ = machine.Transition(domain.StateIdentified)
		_ = player.Sender.Send(domain.ConfigMessage(s.opts.ICEServers))

		if streamer, ok := s.registry.FindAvailableStreamer(s.graph.HasCapacity); ok {
			if err := s.graph.Bind(streamer.ID, player.ID); err == nil {
				_ = machine.Transition(domain.StateSubscribed)
				_ = streamer.Sender.Send(domain.PlayerCountMessage(s.graph.PlayerCount(streamer.ID)))
			} else {
				_ = player.Sender.Send(domain.ErrorMessage("streamer at capacity"))
				if s.metrics != nil {
					s.metrics.FrameRejected("streamer_at_capacity")
				}
			}
		} else if len(s.registry.StreamerIDs()) > 0 {
			_ = player.Sender.Send(domain.ErrorMessage("streamer at capacity"))
			if s.metrics != nil {
				s.metrics.FrameRejected("streamer_at_capacity")
			}
		}

	case domain.TypePing:
		_ = player.Sender.Send(domain.PongMessage())

	case domain.TypeDisconnect:
		_ = machine.Transition(domain.StateClosing)
		_ = player.Sender.Close(websocket.CloseNormalClosure, "disconnect requested")

	default:
		if !domain.ForwardableTypes[f.Type()] {
			if s.logger != nil {
				s.logger.Debugw("unhandled frame type from player", "connection_id", player.ID, "type", f.Type())
			}
			return
		}
		if machine.State() != domain.StateSubscribed {
			_ = player.Sender.Send(domain.ErrorMessage("no active streamer"))
			if s.metrics != nil {
				s.metrics.FrameRejected("no_active_streamer")
			}
			return
		}
		streamerID, ok := s.graph.StreamerOf(player.ID)
		if !ok {
			_ = player.Sender.Send(domain.ErrorMessage("no active streamer"))
			return
		}
		streamer, ok := s.registry.Get(streamerID)
		if !ok {
			_ = player.Sender.Send(domain.ErrorMessage("no active streamer"))
			return
		}
		out := f.WithID(string(player.ID))
		_ = streamer.Sender.Send(out)
		if s.metrics != nil {
			s.metrics.FrameRouted(f.Type())
		}
	}
}

// handleStreamerFrame implements the streamer/SFU state machine (§4.E).
func (s *Server) handleStreamerFrame(streamer *domain.Connection, machine *services.Machine, f domain.Frame, isSFU bool) {
	switch f.Type() {
	case domain.TypeIdentify:
		prior := streamer.PublicID
		newID := f.String("streamerId")
		if isSFU {
			newID = f.String("sfuId")
		}
		if newID != "" {
			if err := validation.ValidateStreamerID(newID); err != nil {
				_ = streamer.Sender.Send(domain.ErrorMessage(err.Error()))
				if s.metrics != nil {
					s.metrics.FrameRejected("invalid_streamer_id")
				}
				return
			}
		}
		if newID == "" {
			newID = domain.StreamerAutoID(streamer.ID)
		}
		streamer.PublicID = newID
		_ = machine.Transition(domain.StateIdentified)
		_ = streamer.Sender.Send(domain.ConfigMessage(s.opts.ICEServers))

		if prior != "" && prior != newID {
			for _, pid := range s.graph.Subscribers(streamer.ID) {
				if p, ok := s.registry.Get(pid); ok {
					_ = p.Sender.Send(domain.StreamerIDChangedMessage(newID))
				}
			}
		}

	case domain.TypePing:
		_ = streamer.Sender.Send(domain.PongMessage())

	case domain.TypeDisconnect:
		_ = machine.Transition(domain.StateClosing)
		_ = streamer.Sender.Close(websocket.CloseNormalClosure, "disconnect requested")

	case "streamerDataChannels":
		for _, pid := range s.graph.Subscribers(streamer.ID) {
			if p, ok := s.registry.Get(pid); ok {
				_ = p.Sender.Send(f)
			}
		}

	case "sfuRecvDataChannelReady", "sfuPeerDataChannelsReady", "layerPreference":
		// Accepted and acknowledged so a future release can add routing
		// without a protocol change; not yet forwarded anywhere (§4.E).
		if s.logger != nil {
			s.logger.Debugw("sfu frame acknowledged, not routed", "connection_id", streamer.ID, "type", f.Type())
		}

	default:
		if !domain.ForwardableTypes[f.Type()] {
			if s.logger != nil {
				s.logger.Debugw("unhandled frame type from streamer", "connection_id", streamer.ID, "type", f.Type())
			}
			return
		}
		targetID := domain.ConnectionID(f.String("id"))
		if targetID == "" {
			if s.logger != nil {
				s.logger.Debugw("streamer forward missing id", "connection_id", streamer.ID, "type", f.Type())
			}
			return
		}
		player, ok := s.registry.Get(targetID)
		if !ok || !s.graph.IsSubscriberOf(streamer.ID, targetID) {
			if s.logger != nil {
				s.logger.Debugw("streamer forward target not a live subscriber", "connection_id", streamer.ID, "target", targetID)
			}
			return
		}
		_ = player.Sender.Send(f)
		if s.metrics != nil {
			s.metrics.FrameRouted(f.Type())
		}
	}
}

func (s *Server) teardownPlayer(dc *domain.Connection) {
	streamerID, ok := s.graph.Unbind(dc.ID)
	s.registry.Unregister(dc.ID)
	if ok {
		if streamer, found := s.registry.Get(streamerID); found {
			_ = streamer.Sender.Send(domain.PlayerCountMessage(s.graph.PlayerCount(streamerID)))
		}
	}
}

// teardownStreamer implements sweepStreamer (§4.D): every bound player is
// unbound and told its streamer is gone; no orphan subscriber records
// remain afterward (§8 scenario 4).
func (s *Server) teardownStreamer(dc *domain.Connection) {
	players := s.graph.UnbindStreamer(dc.ID)
	s.registry.Unregister(dc.ID)
	for _, pid := range players {
		if p, ok := s.registry.Get(pid); ok {
			_ = p.Sender.Send(domain.ErrorMessage("no active streamer"))
		}
	}
}
