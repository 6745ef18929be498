package server

import (
	_ "embed"
	"net/http"
)

// clientScriptPath is the request path the HMR client runtime is served
// from. Entry documents get a module script tag pointing here at transform
// time, and style modules import their installer from it.
const clientScriptPath = "/@viaduct/client"

//go:embed client.js
var clientScript []byte

func (s *DevServer) handleClientScript(w http.ResponseWriter, r *http.Request) {
	writeConditional(w, r, contentTypeJS, clientScript)
}
