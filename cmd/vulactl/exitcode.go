package main

import "net/http"

// Exit codes for the CLI shim wrapping the engine, per the RPC surface's
// documented contract: 0 success, 1 the event itself returned an error,
// 2 invalid user input (bad flags, malformed request, schema error before
// the engine ever ran), 3 the persisted state file is corrupt.
const (
	exitSuccess      = 0
	exitEventError   = 1
	exitInvalidInput = 2
	exitCorruptState = 3
)

// exitCodeFor maps an RPC result back to one of the four codes above.
// httpStatus catches transport-level rejections (malformed JSON, missing
// required query param) that never reached the engine at all; env.Kind
// distinguishes CorruptState and SchemaError once a request did.
func exitCodeFor(env *resultEnvelope, httpStatus int) int {
	if httpStatus == http.StatusBadRequest {
		return exitInvalidInput
	}
	if env == nil || env.Success {
		return exitSuccess
	}
	switch env.Kind {
	case "CorruptState":
		return exitCorruptState
	case "SchemaError":
		return exitInvalidInput
	default:
		return exitEventError
	}
}
