package rpc

import (
	"errors"
	"fmt"

	"sketchpilot/internal/assistant"
	"sketchpilot/internal/prompt"
	"sketchpilot/internal/toolchain"
)

// dispatchAction routes actions to their handlers.
func (s *Server) dispatchAction(action string, params map[string]interface{}) (interface{}, error) {
	switch action {
	case "send":
		return s.handleSend(params)
	case "transcript":
		return s.handleTranscript(params)
	case "actions":
		return s.handleActions(params)
	case "confirm":
		return s.handleConfirm(params)
	case "decline":
		return s.handleDecline(params)
	case "clear":
		return s.handleClear(params)
	case "document_get":
		return s.handleDocumentGet(params)
	case "document_set":
		return s.handleDocumentSet(params)
	case "save":
		return s.handleSave(params)
	case "compile":
		return s.handleCompile(params)
	case "catalog":
		return s.handleCatalog(params)
	case "list_actions":
		return s.handleListActions(params)
	default:
		return nil, fmt.Errorf("unknown action: %s", action)
	}
}

// surfaceFor resolves the role parameter, defaulting to the Arduino
// assistant like the proxy does.
func (s *Server) surfaceFor(params map[string]interface{}) (*assistant.Surface, error) {
	tag, _ := params["role"].(string)
	if tag == "" {
		tag = string(prompt.RoleArduino)
	}
	if !prompt.ValidRole(tag) {
		return nil, fmt.Errorf("unknown role: %s", tag)
	}

	surface, ok := s.surfaces[prompt.Role(tag)]
	if !ok {
		return nil, fmt.Errorf("no surface for role: %s", tag)
	}
	return surface, nil
}

// handleSend dispatches a user message asynchronously. A too-long prompt is
// reported inline and never reaches the proxy.
func (s *Server) handleSend(params map[string]interface{}) (interface{}, error) {
	surface, err := s.surfaceFor(params)
	if err != nil {
		return nil, err
	}

	text, _ := params["text"].(string)
	withCode, _ := params["with_code"].(bool)
	optOut, _ := params["opt_out"].(bool)

	if err := surface.Send(text, withCode, optOut); err != nil {
		if errors.Is(err, prompt.ErrPromptTooLong) {
			return map[string]interface{}{
				"accepted": false,
				"message":  "Prompt too long",
			}, nil
		}
		return nil, err
	}

	return map[string]interface{}{
		"accepted": true,
		"pending":  surface.Pending(),
	}, nil
}

func (s *Server) handleTranscript(params map[string]interface{}) (interface{}, error) {
	surface, err := s.surfaceFor(params)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"entries": surface.Transcript(),
		"pending": surface.Pending(),
	}, nil
}

func (s *Server) handleActions(params map[string]interface{}) (interface{}, error) {
	surface, err := s.surfaceFor(params)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"affordances": surface.Affordances(),
	}, nil
}

// handleConfirm performs the action for one block after the front end
// showed its confirmation prompt and the user accepted.
func (s *Server) handleConfirm(params map[string]interface{}) (interface{}, error) {
	surface, err := s.surfaceFor(params)
	if err != nil {
		return nil, err
	}

	id, _ := params["id"].(string)
	if id == "" {
		return nil, fmt.Errorf("missing id")
	}
	optOut, _ := params["opt_out"].(bool)

	message, err := surface.Confirm(id, optOut)
	if err != nil {
		return nil, err
	}

	return map[string]interface{}{
		"message":  message,
		"document": s.doc.Text(),
	}, nil
}

// handleDecline rejects one confirmation. Everything stays as it was.
func (s *Server) handleDecline(params map[string]interface{}) (interface{}, error) {
	surface, err := s.surfaceFor(params)
	if err != nil {
		return nil, err
	}

	id, _ := params["id"].(string)
	if err := surface.Decline(id); err != nil {
		return nil, err
	}
	return map[string]interface{}{"message": "Action declined"}, nil
}

func (s *Server) handleClear(params map[string]interface{}) (interface{}, error) {
	surface, err := s.surfaceFor(params)
	if err != nil {
		return nil, err
	}
	surface.Clear()
	return map[string]interface{}{"message": "Chat cleared"}, nil
}

func (s *Server) handleDocumentGet(map[string]interface{}) (interface{}, error) {
	return map[string]interface{}{
		"text": s.doc.Text(),
		"path": s.doc.Path(),
	}, nil
}

// handleDocumentSet is the host editor's own typing path, distinct from the
// confirmation-gated AI mutations.
func (s *Server) handleDocumentSet(params map[string]interface{}) (interface{}, error) {
	text, ok := params["text"].(string)
	if !ok {
		return nil, fmt.Errorf("missing text")
	}
	s.doc.ReplaceAll(text)
	return map[string]interface{}{"message": "Document updated"}, nil
}

func (s *Server) handleSave(params map[string]interface{}) (interface{}, error) {
	if path, _ := params["path"].(string); path != "" {
		s.doc.SetPath(path)
	}
	if err := s.doc.Save(); err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"message": "Saved",
		"path":    s.doc.Path(),
	}, nil
}

// handleCompile stages the sketch into the build folder and runs the
// compile/upload toolchain. On failure the message is returned so the front
// end can offer it to the error-fixer assistant as context.
func (s *Server) handleCompile(params map[string]interface{}) (interface{}, error) {
	code := s.doc.Text()
	if code == "" {
		return nil, fmt.Errorf("no code to compile")
	}

	buildDir := s.buildDir
	if override, _ := params["build_folder"].(string); override != "" {
		buildDir = override
	}
	if buildDir == "" {
		return nil, fmt.Errorf("no build folder configured")
	}

	inoPath, err := toolchain.StageSketch(buildDir, code)
	if err != nil {
		return nil, err
	}

	libraries, external := toolchain.ExtractLibraries(code)
	ok, message := s.chain.CompileAndUpload(s.ctx, inoPath, libraries, external)

	return map[string]interface{}{
		"success":   ok,
		"message":   message,
		"ino_path":  inoPath,
		"libraries": libraries,
	}, nil
}

func (s *Server) handleCatalog(map[string]interface{}) (interface{}, error) {
	return s.catalog, nil
}

func (s *Server) handleListActions(map[string]interface{}) (interface{}, error) {
	return map[string]interface{}{
		"actions": map[string]string{
			"send":         "Send a user message to a role's assistant (params: role, text, with_code, opt_out)",
			"transcript":   "Fetch a surface's rendered transcript and pending request count (params: role)",
			"actions":      "List pending affordances for a surface (params: role)",
			"confirm":      "Perform a block's action after user confirmation (params: role, id, opt_out)",
			"decline":      "Reject one confirmation; nothing changes (params: role, id)",
			"clear":        "Clear a surface's transcript and pending actions (params: role)",
			"document_get": "Read the current sketch text",
			"document_set": "Overwrite the sketch text from the host editor (params: text)",
			"save":         "Write the sketch to its file (params: path to save-as)",
			"compile":      "Stage the sketch and run compile+upload (params: build_folder)",
			"catalog":      "Fetch the building-block catalog",
			"list_actions": "This listing",
		},
	}, nil
}
