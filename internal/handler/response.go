package handler

import (
	"net/http"

	"github.com/go-faster/jx"
)

func writeJSON(w http.ResponseWriter, status int, encode func(e *jx.Encoder)) {
	var e jx.Encoder
	encode(&e)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

// writeError writes {"code":<status>,"kind":"<kind>","message":"<message>"}.
func writeError(w http.ResponseWriter, status int, kind, message string) {
	writeJSON(w, status, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("code", func(e *jx.Encoder) { e.Int(status) })
			e.Field("kind", func(e *jx.Encoder) { e.Str(kind) })
			e.Field("message", func(e *jx.Encoder) { e.Str(message) })
		})
	})
}
