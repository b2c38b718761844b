package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/muurk/oscquery/internal/logging"
	"github.com/muurk/oscquery/internal/oscjson"
)

// HostInfoMarker selects the HOST_INFO document when it appears anywhere in
// the request target
const HostInfoMarker = "HOST_INFO"

const (
	documentHostInfo  = "host_info"
	documentNamespace = "namespace"
)

// ServeHTTP answers the two OSCQuery documents:
//
//	GET /?HOST_INFO   host descriptor
//	GET /             namespace tree
//	GET /avatar       subtree at that address, 404 if unknown
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	target := r.RequestURI
	if target == "" {
		target = r.URL.RequestURI()
	}

	document := documentNamespace
	if strings.Contains(target, HostInfoMarker) {
		document = documentHostInfo
	}

	status := s.serve(w, r, document)

	logging.LogHTTPRequest(s.log, r.RemoteAddr, r.Method, target, status)
	s.config.Metrics.HTTPRequest(document, strconv.Itoa(status))
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request, document string) int {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return http.StatusMethodNotAllowed
	}

	if document == documentHostInfo {
		return writeJSON(w, s.hostInfo)
	}

	node, ok := oscjson.Lookup(s.config.Root, r.URL.Path)
	if !ok {
		http.Error(w, "no such OSC address", http.StatusNotFound)
		return http.StatusNotFound
	}

	body, err := json.Marshal(node)
	if err != nil {
		s.log.Error("Failed to encode namespace node",
			zap.String("path", node.Path()),
			zap.Error(err),
		)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return http.StatusInternalServerError
	}

	return writeJSON(w, body)
}

func writeJSON(w http.ResponseWriter, body []byte) int {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
	return http.StatusOK
}
