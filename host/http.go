package host

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/yarikc/composer/conductor"
)

// Server exposes a Registry over HTTP: POST /actions/<qualified name>
// invokes an action with the request body as params and the response
// body as its result params.
type Server struct {
	registry *Registry
}

// NewServer wraps r for HTTP.
func NewServer(r *Registry) *Server {
	return &Server{registry: r}
}

// Handler returns the http.Handler to serve.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/actions/", s.invoke)
	mux.HandleFunc("/reload", s.reload)
	return mux
}

func (s *Server) invoke(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(r.URL.Path, "/actions")
	if name == "" || name == "/" {
		http.Error(w, "missing action name", http.StatusBadRequest)
		return
	}

	var params map[string]interface{}
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}

	resume, params, err := extractResume(params)
	if err != nil {
		code, message := conductor.EncodeError(err)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		json.NewEncoder(w).Encode(map[string]string{"error": message})
		return
	}

	ctx := context.Background()
	result, err := s.registry.InvokeResumable(ctx, name, params, resume)
	if err != nil {
		if _, notRegistered := err.(*NotRegistered); notRegistered {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		code, message := conductor.EncodeError(err)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		json.NewEncoder(w).Encode(map[string]string{"error": message})
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

// extractResume pulls a $resume envelope off params, if present,
// decoding it into a conductor.Resume and returning the remaining
// params unwrapped. A $resume field that isn't a well-formed
// {state, stack} object is a client error, not an internal one.
func extractResume(params map[string]interface{}) (*conductor.Resume, map[string]interface{}, error) {
	raw, ok := params["$resume"]
	if !ok {
		return nil, params, nil
	}
	envelope, ok := raw.(map[string]interface{})
	if !ok {
		return nil, nil, &conductor.BadResume{State: -1}
	}
	if _, hasState := envelope["state"]; !hasState {
		return nil, nil, &conductor.BadResume{State: -1}
	}

	encoded, err := json.Marshal(envelope)
	if err != nil {
		return nil, nil, &conductor.BadResume{State: -1}
	}
	var resume conductor.Resume
	if err := json.Unmarshal(encoded, &resume); err != nil {
		return nil, nil, &conductor.BadResume{State: -1}
	}

	rest := make(map[string]interface{}, len(params))
	for k, v := range params {
		if k == "$resume" {
			continue
		}
		rest[k] = v
	}
	return &resume, rest, nil
}

func (s *Server) reload(w http.ResponseWriter, r *http.Request) {
	if err := s.registry.Reload(); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
