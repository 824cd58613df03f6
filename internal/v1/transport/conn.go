package transport

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/parley-im/parley/internal/v1/coordinator"
	"github.com/parley-im/parley/internal/v1/logging"
	"github.com/parley-im/parley/internal/v1/metrics"
	"github.com/parley-im/parley/internal/v1/session"
	"github.com/parley-im/parley/internal/v1/wire"
)

const writeWait = 10 * time.Second

// wsConnection is the slice of *websocket.Conn the pumps need. The
// interface exists so tests can substitute a mock connection.
type wsConnection interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
	SetWriteDeadline(t time.Time) error
}

// conn couples one transport connection to its session.
type conn struct {
	ws    wsConnection
	sess  *session.Session
	coord *coordinator.Coordinator

	// ctx is the server lifetime enriched with log fields; connCtx is
	// additionally cancelled when the read pump exits, which is what
	// stops the write pump for a single disconnecting client.
	ctx     context.Context
	connCtx context.Context
	cancel  context.CancelFunc
}

func newConn(ctx context.Context, ws wsConnection, sess *session.Session, coord *coordinator.Coordinator) *conn {
	connCtx, cancel := context.WithCancel(ctx)
	return &conn{
		ws:      ws,
		sess:    sess,
		coord:   coord,
		ctx:     ctx,
		connCtx: connCtx,
		cancel:  cancel,
	}
}

// readPump decodes inbound frames and dispatches them until the socket
// closes or the server shuts down. Socket failure is the lifecycle event
// that destroys the session; during shutdown the coordinator is tearing
// everything down itself and no drop is sent.
func (cn *conn) readPump() {
	defer func() {
		cn.cancel()
		if cn.ctx.Err() == nil {
			cn.coord.Notify(cn.ctx, coordinator.Drop{ID: cn.sess.ID})
		}
		_ = cn.ws.Close()
		metrics.DecConnection()
		logging.Info(cn.ctx, "client disconnected")
	}()

	for {
		messageType, data, err := cn.ws.ReadMessage()
		if err != nil {
			return
		}
		if messageType != websocket.BinaryMessage {
			continue
		}

		msg, err := wire.Decode(data)
		if err != nil {
			cn.handleDecodeError(data, err)
			continue
		}
		metrics.FramesTotal.WithLabelValues("in", msg.Kind.String()).Inc()

		if !cn.dispatch(msg) {
			return
		}
	}
}

// writePump drains the session mailbox to the socket. It is the only
// writer on the connection. No pacing is ever inserted between frames;
// the codec's framing keeps back-to-back writes intact.
func (cn *conn) writePump() {
	defer func() {
		_ = cn.ws.WriteMessage(websocket.CloseMessage, []byte{})
		_ = cn.ws.Close()
	}()

	for {
		msg, err := cn.sess.Mailbox().Get(cn.connCtx)
		if err != nil {
			return
		}

		frame, err := wire.Encode(msg)
		if err != nil {
			logging.Error(cn.ctx, "dropping unencodable outbound message",
				zap.String("kind", msg.Kind.String()), zap.Error(err))
			continue
		}

		_ = cn.ws.SetWriteDeadline(time.Now().Add(writeWait))
		if err := cn.ws.WriteMessage(websocket.BinaryMessage, frame); err != nil {
			logging.Warn(cn.ctx, "write failed", zap.Error(err))
			return
		}
		metrics.FramesTotal.WithLabelValues("out", msg.Kind.String()).Inc()
	}
}

// handleDecodeError applies the protocol error policy: malformed frames
// are logged and skipped, recoverable violations earn a Failed frame.
func (cn *conn) handleDecodeError(data []byte, err error) {
	if errors.Is(err, wire.ErrMalformedFrame) {
		logging.Warn(cn.ctx, "malformed frame", zap.Error(err), zap.Int("bytes", len(data)))
		return
	}

	command := "unknown"
	if len(data) > 4 {
		if kind := wire.Kind(data[4]); kind.Valid() {
			command = kind.Command()
		}
	}
	cn.fail(command, err.Error())
}

// dispatch classifies one decoded request, asks the coordinator, and
// enqueues the reply frame. It reports false when the server is shutting
// down and the pump should exit.
func (cn *conn) dispatch(msg wire.Message) bool {
	switch msg.Kind {
	case wire.KindRegister:
		return cn.ask(coordinator.Register{ID: cn.sess.ID, Nickname: msg.ArgValue()}, msg)
	case wire.KindChangeName:
		return cn.ask(coordinator.ChangeName{ID: cn.sess.ID, NewNickname: msg.ArgValue()}, msg)
	case wire.KindJoin:
		return cn.ask(coordinator.Join{ID: cn.sess.ID, Room: msg.ArgValue()}, msg)
	case wire.KindLeave:
		return cn.ask(coordinator.Leave{ID: cn.sess.ID, Room: msg.ArgValue()}, msg)
	case wire.KindCreate:
		return cn.ask(coordinator.Create{Room: msg.ArgValue()}, msg)
	case wire.KindList:
		return cn.ask(coordinator.List{ID: cn.sess.ID, Option: msg.ArgValue()}, msg)
	case wire.KindSendTo:
		return cn.ask(coordinator.SendTo{ID: cn.sess.ID, Room: msg.ArgValue(), Content: msg.ContentValue()}, msg)
	case wire.KindPrivMsg:
		return cn.ask(coordinator.PrivMsg{ID: cn.sess.ID, Target: msg.ArgValue(), Content: msg.ContentValue()}, msg)
	default:
		// Not a request kind; clients have no business sending it.
		logging.Debug(cn.ctx, "ignoring non-request frame", zap.String("kind", msg.Kind.String()))
		return true
	}
}

func (cn *conn) ask(ev coordinator.Event, req wire.Message) bool {
	rep, err := cn.coord.Ask(cn.connCtx, ev)
	if err != nil {
		// Shutdown or connection teardown; nothing left to answer.
		return false
	}
	cn.enqueueReply(req, rep)
	return true
}

// enqueueReply translates a coordinator reply into the wire frame paired
// with the request it answers.
func (cn *conn) enqueueReply(req wire.Message, rep coordinator.Reply) {
	switch rep := rep.(type) {
	case coordinator.Registered:
		cn.push(wire.KindRegistered, wire.String(strconv.FormatUint(cn.sess.ID, 10)), wire.String(rep.Nickname))
	case coordinator.NameChanged:
		cn.push(wire.KindChangedName, wire.String(rep.New), wire.String(rep.Old))
	case coordinator.JoinedRoom:
		cn.push(wire.KindJoined, wire.String(rep.Room), nil)
	case coordinator.LeftRoom:
		cn.push(wire.KindLeftRoom, wire.String(rep.Room), nil)
	case coordinator.CreatedRoom:
		cn.push(wire.KindCreatedRoom, wire.String(rep.Room), nil)
	case coordinator.ListingUsers:
		cn.push(wire.KindUsers, nil, wire.String(rep.Content))
	case coordinator.ListingUserRooms:
		cn.push(wire.KindUserRooms, nil, wire.String(rep.Content))
	case coordinator.ListingRooms:
		cn.push(wire.KindAllRooms, nil, wire.String(rep.Content))
	case coordinator.MessagedRoom:
		cn.push(wire.KindMessagedRoom, req.Arg, req.Content)
	case coordinator.MessagedUser:
		cn.push(wire.KindOutgoingMsg, req.Arg, req.Content)
	case coordinator.Failed:
		cn.fail(req.Kind.Command(), rep.Reason)
	}
}

func (cn *conn) push(kind wire.Kind, arg, content *string) {
	msg, err := wire.Build(kind, wire.ServerSender, arg, content)
	if err != nil {
		logging.Error(cn.ctx, "building reply frame", zap.String("kind", kind.String()), zap.Error(err))
		return
	}
	cn.sess.Enqueue(msg)
}

func (cn *conn) fail(command, reason string) {
	cn.push(wire.KindFailed, wire.String(command), wire.String(reason))
}
