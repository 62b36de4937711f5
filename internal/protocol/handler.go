package protocol

import (
	"errors"
	"fmt"
	"io"

	"github.com/charmbracelet/log"

	"github.com/zot/lua-reload/internal/lua"
	"github.com/zot/lua-reload/internal/modname"
)

// Service is the operation surface the handler drives. The server package
// provides the implementation.
type Service interface {
	Reload(module string, verbose bool, scope string) (*ReloadResponse, error)
	Import(module string) (*ImportResponse, error)
	Modules() (*ModulesResponse, error)
	Dependencies(module string) (*DependenciesResponse, error)
	DependencyGraph(format string) (*GraphResponse, error)
	Journal(limit int) (*JournalResponse, error)
	EnableTracking(blacklist []string) (*EnableResponse, error)
	DisableTracking() (*EnableResponse, error)
	Status() (*StatusResponse, error)
}

// Handler processes protocol messages. Failures are reported in-band as
// error messages so a connection survives bad requests.
type Handler struct {
	svc       Service
	log       *log.Logger
	verbosity int
}

// NewHandler creates a new protocol handler.
func NewHandler(svc Service, logger *log.Logger) *Handler {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Handler{svc: svc, log: logger}
}

// SetVerbosity sets the verbosity level for message logging.
func (h *Handler) SetVerbosity(level int) {
	h.verbosity = level
}

// HandleMessage processes an incoming protocol message and returns the
// response to send back.
func (h *Handler) HandleMessage(connectionID string, msg *Message) *Message {
	if h.verbosity >= 1 {
		h.log.Info("request", "type", msg.Type, "id", msg.ID, "from", connectionID)
	}

	switch msg.Type {
	case MsgReload:
		return h.handleReload(msg)
	case MsgImport:
		return h.handleImport(msg)
	case MsgModules:
		return h.handleModules(msg)
	case MsgDependencies:
		return h.handleDependencies(msg)
	case MsgGraph:
		return h.handleGraph(msg)
	case MsgJournal:
		return h.handleJournal(msg)
	case MsgEnable:
		return h.handleEnable(msg)
	case MsgDisable:
		return h.handleDisable(msg)
	case MsgStatus:
		return h.handleStatus(msg)
	default:
		return ErrorResponse(msg.ID, CodeUnknownType, fmt.Sprintf("unknown message type: %s", msg.Type))
	}
}

// handleReload processes a reload message.
func (h *Handler) handleReload(msg *Message) *Message {
	var req ReloadRequest
	if err := msg.DecodeData(&req); err != nil {
		return ErrorResponse(msg.ID, CodeBadRequest, err.Error())
	}
	if req.Module == "" {
		return ErrorResponse(msg.ID, CodeBadRequest, "module is required")
	}
	if req.Scope != "" && !modname.Valid(req.Scope) {
		return ErrorResponse(msg.ID, CodeBadRequest, fmt.Sprintf("invalid scope prefix %q", req.Scope))
	}
	resp, err := h.svc.Reload(req.Module, req.Verbose, req.Scope)
	if err != nil {
		return h.serviceError(msg.ID, err)
	}
	return Result(msg.ID, resp)
}

// handleImport processes an import message.
func (h *Handler) handleImport(msg *Message) *Message {
	var req ImportRequest
	if err := msg.DecodeData(&req); err != nil {
		return ErrorResponse(msg.ID, CodeBadRequest, err.Error())
	}
	if req.Module == "" {
		return ErrorResponse(msg.ID, CodeBadRequest, "module is required")
	}
	resp, err := h.svc.Import(req.Module)
	if err != nil {
		return h.serviceError(msg.ID, err)
	}
	return Result(msg.ID, resp)
}

// handleModules processes a modules listing message.
func (h *Handler) handleModules(msg *Message) *Message {
	resp, err := h.svc.Modules()
	if err != nil {
		return h.serviceError(msg.ID, err)
	}
	return Result(msg.ID, resp)
}

// handleDependencies processes a dependencies message.
func (h *Handler) handleDependencies(msg *Message) *Message {
	var req DependenciesRequest
	if err := msg.DecodeData(&req); err != nil {
		return ErrorResponse(msg.ID, CodeBadRequest, err.Error())
	}
	if req.Module == "" {
		return ErrorResponse(msg.ID, CodeBadRequest, "module is required")
	}
	resp, err := h.svc.Dependencies(req.Module)
	if err != nil {
		return h.serviceError(msg.ID, err)
	}
	return Result(msg.ID, resp)
}

// handleGraph processes a graph export message.
func (h *Handler) handleGraph(msg *Message) *Message {
	var req GraphRequest
	if err := msg.DecodeData(&req); err != nil {
		return ErrorResponse(msg.ID, CodeBadRequest, err.Error())
	}
	switch req.Format {
	case "":
		req.Format = "dot"
	case "dot", "mermaid", "json":
	default:
		return ErrorResponse(msg.ID, CodeBadRequest, fmt.Sprintf("unknown graph format %q", req.Format))
	}
	resp, err := h.svc.DependencyGraph(req.Format)
	if err != nil {
		return h.serviceError(msg.ID, err)
	}
	return Result(msg.ID, resp)
}

// handleJournal processes a journal listing message.
func (h *Handler) handleJournal(msg *Message) *Message {
	var req JournalRequest
	if err := msg.DecodeData(&req); err != nil {
		return ErrorResponse(msg.ID, CodeBadRequest, err.Error())
	}
	resp, err := h.svc.Journal(req.Limit)
	if err != nil {
		return h.serviceError(msg.ID, err)
	}
	return Result(msg.ID, resp)
}

// handleEnable processes an enable tracking message. The blacklist follows
// the enable contract: null keeps the current list, an array replaces it.
func (h *Handler) handleEnable(msg *Message) *Message {
	var req EnableRequest
	if err := msg.DecodeData(&req); err != nil {
		return ErrorResponse(msg.ID, CodeBadRequest, err.Error())
	}
	resp, err := h.svc.EnableTracking(req.Blacklist)
	if err != nil {
		return h.serviceError(msg.ID, err)
	}
	return Result(msg.ID, resp)
}

// handleDisable processes a disable tracking message.
func (h *Handler) handleDisable(msg *Message) *Message {
	resp, err := h.svc.DisableTracking()
	if err != nil {
		return h.serviceError(msg.ID, err)
	}
	return Result(msg.ID, resp)
}

// handleStatus processes a status message.
func (h *Handler) handleStatus(msg *Message) *Message {
	resp, err := h.svc.Status()
	if err != nil {
		return h.serviceError(msg.ID, err)
	}
	return Result(msg.ID, resp)
}

// serviceError maps service failures to protocol error codes.
func (h *Handler) serviceError(id string, err error) *Message {
	var notFound *lua.NotFoundError
	var notLoaded *lua.NotLoadedError
	var notReloadable *lua.NotReloadableError
	var invalidName *modname.InvalidNameError

	code := CodeInternal
	switch {
	case errors.As(err, &notFound):
		code = CodeNotFound
	case errors.As(err, &notLoaded):
		code = CodeNotFound
	case errors.As(err, &notReloadable):
		code = CodeNotReloadable
	case errors.As(err, &invalidName):
		code = CodeBadRequest
	}
	return ErrorResponse(id, code, err.Error())
}
