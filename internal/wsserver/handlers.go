// SPDX-License-Identifier: MPL-2.0

package wsserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"shkernel/internal/kernel"
	"shkernel/internal/repl"
)

// handle runs one request and builds its reply.
func (c *connection) handle(ctx context.Context, k *kernel.Kernel, msg Message) outgoing {
	switch msg.Type {
	case ExecuteRequest:
		var req ExecuteRequestContent
		if err := decode(msg, &req); err != nil {
			return c.invalid(msg, err)
		}
		return c.execute(ctx, k, msg, req)

	case CompleteRequest:
		var req CompleteRequestContent
		if err := decode(msg, &req); err != nil {
			return c.invalid(msg, err)
		}
		return c.replyTo(msg, complete(k, req))

	case InspectRequest:
		var req InspectRequestContent
		if err := decode(msg, &req); err != nil {
			return c.invalid(msg, err)
		}
		return c.replyTo(msg, inspect(k, req))

	case IsCompleteRequest:
		var req IsCompleteRequestContent
		if err := decode(msg, &req); err != nil {
			return c.invalid(msg, err)
		}
		status := k.IsComplete(req.Code)
		reply := IsCompleteReplyContent{Status: status}
		if status == kernel.IsCompleteIncomplete {
			reply.Indent = "  "
		}
		return c.replyTo(msg, reply)

	case KernelInfoRequest:
		info := k.LanguageInfo()
		impl := info.Implementation
		if impl == "" {
			impl = "shkernel"
		}
		return c.replyTo(msg, KernelInfoReplyContent{
			Status:                StatusOK,
			ProtocolVersion:       ProtocolVersion,
			Implementation:        impl,
			ImplementationVersion: c.server.version,
			LanguageInfo:          info,
			Banner:                info.Banner(),
			HelpLinks:             info.HelpLinks,
		})

	case ShutdownRequest:
		var req ShutdownContent
		if err := decode(msg, &req); err != nil {
			return c.invalid(msg, err)
		}
		if req.Restart {
			if err := c.restart(); err != nil {
				out := c.replyTo(msg, ErrorMessageContent{Status: StatusError, Error: *errorContent(err)})
				out.last = true
				return out
			}
			return c.replyTo(msg, ShutdownContent{Status: StatusOK, Restart: true})
		}
		out := c.replyTo(msg, ShutdownContent{Status: StatusOK})
		out.last = true
		return out

	default:
		return outgoing{msg: c.server.errorMessage(msg.ID, "UnknownMessageType", fmt.Sprintf("unknown message type %q", msg.Type))}
	}
}

// execute evaluates a submission. A shell exit ends the connection after
// the reply.
func (c *connection) execute(ctx context.Context, k *kernel.Kernel, msg Message, req ExecuteRequestContent) outgoing {
	c.executionCount++
	c.stdout.take()
	c.stderr.take()

	evalCtx, done := c.evaluationContext(ctx)
	value, ok, err := k.Evaluate(evalCtx, req.Code)
	done()

	reply := ExecuteReplyContent{
		Status:         StatusOK,
		ExecutionCount: c.executionCount,
		Stdout:         c.stdout.take(),
		Stderr:         c.stderr.take(),
	}
	if ok {
		reply.Value = &value
	}
	if err != nil {
		reply.Status = StatusError
		reply.Error = errorContent(err)
	}

	out := c.replyTo(msg, reply)
	out.last = errors.Is(err, kernel.ErrEngineExited) || errors.Is(err, kernel.ErrKernelShutdown)
	return out
}

// complete converts between the protocol cursor, which sits between
// characters, and the kernel cursor on the character before it.
func complete(k *kernel.Kernel, req CompleteRequestContent) CompleteReplyContent {
	cursor := min(max(req.CursorPos, 0), len(req.Code))
	reply := CompleteReplyContent{Status: StatusOK, Matches: []string{}, CursorStart: cursor, CursorEnd: cursor}
	if cursor == 0 {
		return reply
	}
	opts, ok := k.Complete(req.Code, cursor-1)
	if !ok {
		return reply
	}
	reply.Matches = opts.Options
	reply.CursorStart = opts.ReplaceStart
	reply.CursorEnd = opts.ReplaceEnd
	return reply
}

// inspect uses the same between-characters cursor as complete.
func inspect(k *kernel.Kernel, req InspectRequestContent) InspectReplyContent {
	doc, ok := repl.InspectAt(k, req.Code, req.CursorPos, req.DetailLevel > 0)
	reply := InspectReplyContent{Status: StatusOK, Found: ok, Data: map[string]string{}}
	if ok {
		reply.Data["text/plain"] = doc.PlainText
		reply.Data["text/html"] = doc.RichText
	}
	return reply
}

func (c *connection) replyTo(msg Message, content any) outgoing {
	return outgoing{msg: c.server.newMessage(msg.Type.ReplyType(), msg.ID, content)}
}

func (c *connection) invalid(msg Message, err error) outgoing {
	return c.replyTo(msg, ErrorMessageContent{
		Status: StatusError,
		Error:  ErrorContent{Name: "InvalidContent", Message: err.Error()},
	})
}

// decode reads the request content. A missing content decodes as zero.
func decode(msg Message, v any) error {
	if len(msg.Content) == 0 {
		return nil
	}
	if err := json.Unmarshal(msg.Content, v); err != nil {
		return fmt.Errorf("invalid %s content: %w", msg.Type, err)
	}
	return nil
}
