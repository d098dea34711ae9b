package rpc

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"

	"sketchpilot/internal/assistant"
	"sketchpilot/internal/catalog"
	"sketchpilot/internal/prompt"
	"sketchpilot/internal/sketch"
	"sketchpilot/internal/toolchain"
)

// Server exposes the assistant pipeline over stdio JSON-RPC 2.0 so a front
// end (or another agent) can drive it without linking against this process.
type Server struct {
	surfaces map[prompt.Role]*assistant.Surface
	doc      *sketch.Document
	catalog  *catalog.Catalog
	chain    *toolchain.Toolchain
	buildDir string

	ctx    context.Context
	cancel context.CancelFunc
}

// NewServer creates a server over the given collaborators. One surface per
// role; they share only the document and the persisted log.
func NewServer(surfaces map[prompt.Role]*assistant.Surface, doc *sketch.Document, cat *catalog.Catalog, chain *toolchain.Toolchain, buildDir string) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		surfaces: surfaces,
		doc:      doc,
		catalog:  cat,
		chain:    chain,
		buildDir: buildDir,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// JSONRPCRequest represents a JSON-RPC 2.0 request.
type JSONRPCRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// JSONRPCResponse represents a JSON-RPC 2.0 response.
type JSONRPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

// RPCError represents a JSON-RPC error object.
type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// Serve reads newline-delimited requests from stdin and writes responses to
// stdout until stdin closes or the server shuts down.
func (s *Server) Serve(stdin io.Reader, stdout io.Writer) error {
	scanner := bufio.NewScanner(stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	for scanner.Scan() {
		select {
		case <-s.ctx.Done():
			return nil
		default:
		}

		line := scanner.Text()
		if line == "" {
			continue
		}

		var req JSONRPCRequest
		if err := json.Unmarshal([]byte(line), &req); err != nil {
			s.write(stdout, &JSONRPCResponse{
				JSONRPC: "2.0",
				Error:   &RPCError{Code: -32700, Message: "Parse error", Data: err.Error()},
			})
			continue
		}

		s.write(stdout, s.handleRequest(&req))
	}

	return scanner.Err()
}

func (s *Server) write(stdout io.Writer, resp *JSONRPCResponse) {
	raw, err := json.Marshal(resp)
	if err != nil {
		log.Printf("Failed to marshal response: %v", err)
		return
	}
	fmt.Fprintln(stdout, string(raw))
}

// handleRequest routes requests to the appropriate handler.
func (s *Server) handleRequest(req *JSONRPCRequest) *JSONRPCResponse {
	switch req.Method {
	case "initialize":
		return s.handleInitialize(req)
	case "tools/list":
		return s.handleToolsList(req)
	case "tools/call":
		return s.handleToolCall(req)
	default:
		return s.errorResponse(req.ID, -32601, "Method not found", req.Method)
	}
}

func (s *Server) handleInitialize(req *JSONRPCRequest) *JSONRPCResponse {
	return &JSONRPCResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"protocolVersion": "2024-11-05",
			"capabilities": map[string]interface{}{
				"tools": map[string]interface{}{},
			},
			"serverInfo": map[string]interface{}{
				"name":    "sketchpilot",
				"version": "1.0.0",
			},
		},
	}
}

func (s *Server) handleToolsList(req *JSONRPCRequest) *JSONRPCResponse {
	tools := []map[string]interface{}{
		{
			"name":        "sketchpilot",
			"description": "AI assistant pipeline for an Arduino sketch editor: chat, code-block actions, patching, snippet runs, compile and upload",
			"inputSchema": map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"action": map[string]interface{}{
						"type": "string",
						"enum": []string{
							"send", "transcript", "actions", "confirm", "decline",
							"clear", "document_get", "document_set", "save",
							"compile", "catalog", "list_actions",
						},
						"description": "Action to perform. Use 'list_actions' to see all available actions with descriptions.",
					},
					"params": map[string]interface{}{
						"type":        "object",
						"description": "Action-specific parameters.",
					},
				},
				"required": []string{"action"},
			},
		},
	}

	return &JSONRPCResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result:  map[string]interface{}{"tools": tools},
	}
}

func (s *Server) handleToolCall(req *JSONRPCRequest) *JSONRPCResponse {
	var params struct {
		Name      string                 `json:"name"`
		Arguments map[string]interface{} `json:"arguments"`
	}

	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(req.ID, -32602, "Invalid params", err.Error())
	}

	if params.Name != "sketchpilot" {
		return s.errorResponse(req.ID, -32602, "Unknown tool", params.Name)
	}

	action, ok := params.Arguments["action"].(string)
	if !ok {
		return s.errorResponse(req.ID, -32602, "Missing action parameter", nil)
	}

	actionParams, ok := params.Arguments["params"].(map[string]interface{})
	if !ok {
		actionParams = make(map[string]interface{})
	}

	result, err := s.dispatchAction(action, actionParams)
	if err != nil {
		return s.errorResponse(req.ID, -32000, "Action failed", err.Error())
	}

	return &JSONRPCResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result:  result,
	}
}

// Shutdown stops the serve loop and closes every surface.
func (s *Server) Shutdown(ctx context.Context) error {
	s.cancel()
	for _, surface := range s.surfaces {
		surface.Close()
	}
	return nil
}

func (s *Server) errorResponse(id interface{}, code int, message string, data interface{}) *JSONRPCResponse {
	return &JSONRPCResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error: &RPCError{
			Code:    code,
			Message: message,
			Data:    data,
		},
	}
}
