// SPDX-License-Identifier: MPL-2.0

package wsserver

import (
	"encoding/json"
	"errors"
	"time"

	"shkernel/internal/issue"
	"shkernel/internal/kernel"
)

// ProtocolVersion is reported in kernel_info_reply.
const ProtocolVersion = "5.3"

const (
	ExecuteRequest    MessageType = "execute_request"
	ExecuteReply      MessageType = "execute_reply"
	CompleteRequest   MessageType = "complete_request"
	CompleteReply     MessageType = "complete_reply"
	InspectRequest    MessageType = "inspect_request"
	InspectReply      MessageType = "inspect_reply"
	IsCompleteRequest MessageType = "is_complete_request"
	IsCompleteReply   MessageType = "is_complete_reply"
	KernelInfoRequest MessageType = "kernel_info_request"
	KernelInfoReply   MessageType = "kernel_info_reply"
	ShutdownRequest   MessageType = "shutdown_request"
	ShutdownReply     MessageType = "shutdown_reply"
	InterruptRequest  MessageType = "interrupt_request"
	InterruptReply    MessageType = "interrupt_reply"
	// ErrorMessage answers input that is not a known request.
	ErrorMessage MessageType = "error"
)

const (
	StatusOK    Status = "ok"
	StatusError Status = "error"
)

type (
	// MessageType names a request or reply.
	MessageType string

	// Status is the outcome carried by every reply.
	Status string

	// Message is the envelope of every frame in both directions.
	Message struct {
		ID       string          `json:"id"`
		Type     MessageType     `json:"type"`
		ParentID string          `json:"parent_id,omitempty"`
		Date     time.Time       `json:"date"`
		Content  json.RawMessage `json:"content,omitempty"`
	}

	ExecuteRequestContent struct {
		Code string `json:"code"`
	}

	ExecuteReplyContent struct {
		Status         Status `json:"status"`
		ExecutionCount int    `json:"execution_count"`
		// Value is set when the submission produced one, even if empty.
		Value  *string       `json:"value,omitempty"`
		Stdout string        `json:"stdout"`
		Stderr string        `json:"stderr"`
		Error  *ErrorContent `json:"error,omitempty"`
	}

	// ErrorContent describes a failed request.
	ErrorContent struct {
		Name    string `json:"ename"`
		Message string `json:"evalue"`
		// IssueID refers to the troubleshooting catalog, 0 when none applies.
		IssueID int `json:"issue_id,omitempty"`
	}

	CompleteRequestContent struct {
		Code      string `json:"code"`
		CursorPos int    `json:"cursor_pos"`
	}

	CompleteReplyContent struct {
		Status      Status   `json:"status"`
		Matches     []string `json:"matches"`
		CursorStart int      `json:"cursor_start"`
		CursorEnd   int      `json:"cursor_end"`
	}

	InspectRequestContent struct {
		Code        string `json:"code"`
		CursorPos   int    `json:"cursor_pos"`
		DetailLevel int    `json:"detail_level"`
	}

	InspectReplyContent struct {
		Status Status            `json:"status"`
		Found  bool              `json:"found"`
		Data   map[string]string `json:"data"`
	}

	IsCompleteRequestContent struct {
		Code string `json:"code"`
	}

	IsCompleteReplyContent struct {
		Status kernel.IsCompleteStatus `json:"status"`
		// Indent is a suggested indentation for the next line of an
		// incomplete submission.
		Indent string `json:"indent,omitempty"`
	}

	KernelInfoReplyContent struct {
		Status                Status              `json:"status"`
		ProtocolVersion       string              `json:"protocol_version"`
		Implementation        string              `json:"implementation"`
		ImplementationVersion string              `json:"implementation_version"`
		LanguageInfo          kernel.LanguageInfo `json:"language_info"`
		Banner                string              `json:"banner"`
		HelpLinks             []kernel.HelpLink   `json:"help_links"`
	}

	ShutdownContent struct {
		Status  Status `json:"status,omitempty"`
		Restart bool   `json:"restart"`
	}

	StatusContent struct {
		Status Status `json:"status"`
	}

	ErrorMessageContent struct {
		Status Status       `json:"status"`
		Error  ErrorContent `json:"error"`
	}
)

// ReplyType returns the reply type for a request type.
func (t MessageType) ReplyType() MessageType {
	switch t {
	case ExecuteRequest:
		return ExecuteReply
	case CompleteRequest:
		return CompleteReply
	case InspectRequest:
		return InspectReply
	case IsCompleteRequest:
		return IsCompleteReply
	case KernelInfoRequest:
		return KernelInfoReply
	case ShutdownRequest:
		return ShutdownReply
	case InterruptRequest:
		return InterruptReply
	default:
		return ErrorMessage
	}
}

// errorContent classifies err by the kernel error it wraps.
func errorContent(err error) *ErrorContent {
	c := &ErrorContent{Name: "Error", Message: err.Error()}
	var (
		incomplete *kernel.IncompleteSourceError
		compile    *kernel.CompileError
		runtimeErr *kernel.RuntimeExceptionError
		unresolved *kernel.UnresolvedReferenceError
	)
	switch {
	case errors.As(err, &incomplete):
		c.Name = "IncompleteSource"
	case errors.As(err, &compile):
		c.Name = "CompileError"
	case errors.As(err, &runtimeErr):
		c.Name = runtimeErr.TypeName
		if c.Name == "" {
			c.Name = "RuntimeException"
		}
	case errors.As(err, &unresolved):
		c.Name = "UnresolvedReference"
	case errors.Is(err, kernel.ErrEngineExited):
		c.Name = "EngineExited"
	case errors.Is(err, kernel.ErrKernelShutdown), errors.Is(err, kernel.ErrEngineClosed):
		c.Name = "KernelShutdown"
	}
	if i := issue.ForError(err); i != nil {
		c.IssueID = int(i.Id())
	}
	return c
}
