// Package rpcserver implements the §6 RPC surface: one HTTP/JSON endpoint
// per named event (process_descriptor_string, user_edit, new_system_state,
// release_gateway, expire_tick) plus the read-only queries (show_peer,
// show_prefs, peer_ids, our_latest_descriptors) the CLI and any future GUI
// call into. Grounded on coredns-plugin/valon/ddns.go's mux/handler shape
// and its sendSuccess/sendError JSON envelope, generalized from one
// endpoint to the full event surface.
package rpcserver

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/vula-mesh/vula/internal/errs"
	"github.com/vula-mesh/vula/internal/organize"
	"github.com/vula-mesh/vula/internal/peer"
	"github.com/vula-mesh/vula/internal/state"
	"github.com/vula-mesh/vula/internal/vlog"
)

// Server wraps an Organizer with the HTTP surface.
type Server struct {
	org *organize.Organizer
	log *vlog.Logger
	mux *http.ServeMux
}

// New builds a Server ready for http.Server.Handler.
func New(org *organize.Organizer) *Server {
	s := &Server{org: org, log: vlog.New("rpcserver"), mux: http.NewServeMux()}
	s.mux.HandleFunc("/process_descriptor_string", s.handleProcessDescriptorString)
	s.mux.HandleFunc("/user_edit", s.handleUserEdit)
	s.mux.HandleFunc("/new_system_state", s.handleNewSystemState)
	s.mux.HandleFunc("/release_gateway", s.handleReleaseGateway)
	s.mux.HandleFunc("/expire_tick", s.handleExpireTick)
	s.mux.HandleFunc("/show_peer", s.handleShowPeer)
	s.mux.HandleFunc("/show_prefs", s.handleShowPrefs)
	s.mux.HandleFunc("/peer_ids", s.handlePeerIDs)
	s.mux.HandleFunc("/our_latest_descriptors", s.handleOurLatestDescriptors)
	s.mux.HandleFunc("/health", s.handleHealth)
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.mux.ServeHTTP(w, r) }

// resultEnvelope is the §7 Result rendered for RPC callers: summary text
// plus enough structure for vulactl to pick an exit code (§6's "Exit
// codes (CLI shim wrapping the engine)").
type resultEnvelope struct {
	Success bool   `json:"success"`
	Summary string `json:"summary"`
	Kind    string `json:"kind,omitempty"`
	Error   string `json:"error,omitempty"`
}

func writeResult(w http.ResponseWriter, res *state.Result) {
	env := resultEnvelope{Success: res.Err == nil, Summary: res.Summary()}
	if res.Err != nil {
		env.Error = res.Err.Error()
		if e, ok := res.Err.(*errs.Error); ok {
			env.Kind = string(e.Kind)
		}
	}
	writeJSON(w, http.StatusOK, env)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func sendBadRequest(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusBadRequest, resultEnvelope{Success: false, Error: message, Kind: string(errs.SchemaErr)})
}

type descriptorStringRequest struct {
	Text string `json:"text"`
}

func (s *Server) handleProcessDescriptorString(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		sendBadRequest(w, "POST required")
		return
	}
	var req descriptorStringRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendBadRequest(w, "invalid JSON: "+err.Error())
		return
	}
	res := s.org.IncomingDescriptor(req.Text, time.Now())
	writeResult(w, res)
}

type userEditRequest struct {
	Op    string `json:"op"`
	Path  string `json:"path"`
	Value any    `json:"value"`
}

func (s *Server) handleUserEdit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		sendBadRequest(w, "POST required")
		return
	}
	var req userEditRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendBadRequest(w, "invalid JSON: "+err.Error())
		return
	}
	op := state.WriteKind(req.Op)
	if op != state.Set && op != state.Add && op != state.Remove {
		sendBadRequest(w, "op must be one of SET, ADD, REMOVE")
		return
	}
	res := s.org.UserEdit(op, req.Path, req.Value)
	writeResult(w, res)
}

func (s *Server) handleNewSystemState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		sendBadRequest(w, "POST required")
		return
	}
	var req systemStateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendBadRequest(w, "invalid JSON: "+err.Error())
		return
	}
	snapshot, err := req.toSystemState()
	if err != nil {
		sendBadRequest(w, err.Error())
		return
	}
	res := s.org.NewSystemState(snapshot)
	writeResult(w, res)
}

func (s *Server) handleReleaseGateway(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		sendBadRequest(w, "POST required")
		return
	}
	res := s.org.ReleaseGateway()
	writeResult(w, res)
}

func (s *Server) handleExpireTick(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		sendBadRequest(w, "POST required")
		return
	}
	res := s.org.ExpireTick(time.Now())
	writeResult(w, res)
}

func (s *Server) handleShowPeer(w http.ResponseWriter, r *http.Request) {
	vk := r.URL.Query().Get("vk")
	if vk == "" {
		sendBadRequest(w, "vk query parameter is required")
		return
	}
	p, ok := s.org.State().Peers[vk]
	if !ok {
		writeJSON(w, http.StatusNotFound, resultEnvelope{Success: false, Error: "no such peer", Kind: string(errs.NotFound)})
		return
	}
	writeJSON(w, http.StatusOK, peerToDTO(p))
}

func (s *Server) handleShowPrefs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, prefsToDTO(s.org.State().Prefs))
}

func (s *Server) handlePeerIDs(w http.ResponseWriter, r *http.Request) {
	which := r.URL.Query().Get("which")
	if which == "" {
		which = "enabled"
	}
	if which != "all" && which != "enabled" && which != "pinned" {
		sendBadRequest(w, "which must be one of all, enabled, pinned")
		return
	}
	st := s.org.State()
	ids := make([]string, 0, len(st.Peers))
	for vk, p := range st.Peers {
		switch which {
		case "all":
			ids = append(ids, vk)
		case "pinned":
			if p.Pinned {
				ids = append(ids, vk)
			}
		case "enabled":
			if p.Enabled {
				ids = append(ids, vk)
			}
		}
	}
	writeJSON(w, http.StatusOK, ids)
}

func (s *Server) handleOurLatestDescriptors(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.org.OurLatestDescriptors())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "peers": len(s.org.State().Peers)})
}

type peerDTO struct {
	VK           string   `json:"vk"`
	Hostname     string   `json:"hostname"`
	Petname      string   `json:"petname,omitempty"`
	Enabled      bool     `json:"enabled"`
	Pinned       bool     `json:"pinned"`
	UseAsGateway bool     `json:"use_as_gateway"`
	Nicknames    []string `json:"nicknames"`
	Addrs        []string `json:"addrs"`
}

func peerToDTO(p *peer.Peer) peerDTO {
	return peerDTO{
		VK:           p.ID(),
		Hostname:     p.Descriptor.Hostname,
		Petname:      p.Petname,
		Enabled:      p.Enabled,
		Pinned:       p.Pinned,
		UseAsGateway: p.UseAsGateway,
		Nicknames:    p.EnabledNames(),
		Addrs:        p.EnabledIPsLLFirst(),
	}
}
