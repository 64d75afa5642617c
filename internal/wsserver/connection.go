// SPDX-License-Identifier: MPL-2.0

package wsserver

import (
	"bytes"
	"context"
	"encoding/json"
	"sync"
	"time"

	"shkernel/internal/app/execute"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	maxMessageSize = 1024 * 1024

	// Requests waiting behind a running evaluation.
	requestQueueSize = 64
)

type (
	// connection serves one websocket client. The reader queues requests
	// for the worker, which runs them one at a time against the kernel; the
	// writer owns every write to the socket.
	connection struct {
		server     *Server
		ws         *websocket.Conn
		remoteAddr string

		requests chan Message
		send     chan outgoing

		stdout, stderr syncBuffer

		mu        sync.Mutex
		interrupt context.CancelFunc

		// session and executionCount belong to the worker once it runs.
		session        *execute.Session
		executionCount int
	}

	// outgoing is a reply. last closes the connection once it is written.
	outgoing struct {
		msg  Message
		last bool
	}

	// syncBuffer collects engine output, which background jobs may write
	// while a reply is assembled.
	syncBuffer struct {
		mu  sync.Mutex
		buf bytes.Buffer
	}
)

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

// take returns the collected output and empties the buffer.
func (b *syncBuffer) take() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := b.buf.String()
	b.buf.Reset()
	return s
}

func newConnection(s *Server, ws *websocket.Conn, remoteAddr string) *connection {
	return &connection{
		server:     s,
		ws:         ws,
		remoteAddr: remoteAddr,
		requests:   make(chan Message, requestQueueSize),
		send:       make(chan outgoing, requestQueueSize),
	}
}

// run serves the connection until the client leaves, asks for shutdown, or
// the server stops.
func (c *connection) run(ctx context.Context) {
	logger := c.server.logger.With("remote-addr", c.remoteAddr)
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer context.AfterFunc(ctx, func() { _ = c.ws.Close() })()

	ks, err := c.server.newKernel(&c.stdout, &c.stderr)
	if err != nil {
		logger.Error("failed to create kernel", "error", err)
		c.writeNow(c.server.newMessage(ErrorMessage, "", ErrorMessageContent{
			Status: StatusError,
			Error:  *errorContent(err),
		}))
		_ = c.ws.Close()
		return
	}
	c.session = ks
	defer func() {
		if err := c.session.Kernel.Shutdown(); err != nil {
			logger.Debug("kernel shutdown", "error", err)
		}
	}()
	logger.Info("connect")

	var wg sync.WaitGroup
	wg.Go(func() { c.writePump(ctx, cancel) })
	wg.Go(func() { c.work(ctx) })
	c.readPump(ctx)

	cancel()
	wg.Wait()
	_ = c.ws.Close()
	logger.Info("disconnect")
}

func (c *connection) readPump(ctx context.Context) {
	c.ws.SetReadLimit(maxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseNormalClosure,
				websocket.CloseAbnormalClosure,
				websocket.CloseNoStatusReceived,
			) && ctx.Err() == nil {
				c.server.logger.Warn("websocket read error", "remote-addr", c.remoteAddr, "error", err)
			}
			return
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			c.reply(ctx, outgoing{msg: c.server.errorMessage("", "InvalidMessage", err.Error())})
			continue
		}

		if msg.Type == InterruptRequest {
			c.cancelEvaluation()
			c.reply(ctx, outgoing{msg: c.server.newMessage(InterruptReply, msg.ID, StatusContent{Status: StatusOK})})
			continue
		}

		select {
		case c.requests <- msg:
		case <-ctx.Done():
			return
		}
	}
}

// work handles queued requests in arrival order.
func (c *connection) work(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-c.requests:
			out := c.handle(ctx, c.session.Kernel, msg)
			c.reply(ctx, out)
			if out.last {
				return
			}
		}
	}
}

func (c *connection) writePump(ctx context.Context, closeConn context.CancelFunc) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = c.ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server stopping"),
				time.Now().Add(writeWait))
			return
		case out := <-c.send:
			if !c.writeNow(out.msg) {
				closeConn()
				return
			}
			if out.last {
				_ = c.ws.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "kernel shut down"),
					time.Now().Add(writeWait))
				closeConn()
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				closeConn()
				return
			}
		}
	}
}

// writeNow writes msg directly. Only the writer, or run before the writer
// starts, may call it.
func (c *connection) writeNow(msg Message) bool {
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.ws.WriteJSON(msg); err != nil {
		c.server.logger.Debug("websocket write error", "remote-addr", c.remoteAddr, "error", err)
		return false
	}
	return true
}

func (c *connection) reply(ctx context.Context, out outgoing) {
	select {
	case c.send <- out:
	case <-ctx.Done():
	}
}

// restart replaces the kernel with a fresh one and starts counting
// executions again. Only the worker may call it.
func (c *connection) restart() error {
	if err := c.session.Kernel.Shutdown(); err != nil {
		c.server.logger.Debug("kernel shutdown", "remote-addr", c.remoteAddr, "error", err)
	}
	ks, err := c.server.newKernel(&c.stdout, &c.stderr)
	if err != nil {
		return err
	}
	c.session = ks
	c.executionCount = 0
	c.stdout.take()
	c.stderr.take()
	c.server.logger.Info("kernel restarted", "remote-addr", c.remoteAddr)
	return nil
}

// evaluationContext derives a context that interrupt_request cancels.
func (c *connection) evaluationContext(ctx context.Context) (context.Context, context.CancelFunc) {
	evalCtx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	c.interrupt = cancel
	c.mu.Unlock()
	return evalCtx, func() {
		c.mu.Lock()
		c.interrupt = nil
		c.mu.Unlock()
		cancel()
	}
}

func (c *connection) cancelEvaluation() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.interrupt != nil {
		c.interrupt()
	}
}

// newMessage builds a reply to parentID with a fresh id.
func (s *Server) newMessage(t MessageType, parentID string, content any) Message {
	raw, err := json.Marshal(content)
	if err != nil {
		s.logger.Error("failed to encode reply", "type", t, "error", err)
		raw = []byte("{}")
	}
	return Message{
		ID:       uuid.NewString(),
		Type:     t,
		ParentID: parentID,
		Date:     s.clock.Now().UTC(),
		Content:  raw,
	}
}

func (s *Server) errorMessage(parentID, name, message string) Message {
	return s.newMessage(ErrorMessage, parentID, ErrorMessageContent{
		Status: StatusError,
		Error:  ErrorContent{Name: name, Message: message},
	})
}
