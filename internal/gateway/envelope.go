package gateway

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-faster/jx"
)

// writeSuccess emits the uniform success envelope: success flag, ISO-8601
// timestamp, elapsed processing time, and the data payload.
func (g *Gateway) writeSuccess(w http.ResponseWriter, start time.Time, data any) {
	raw, err := json.Marshal(data)
	if err != nil {
		g.writeError(w, start, http.StatusInternalServerError, "response encoding failed", "", nil)
		return
	}

	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("success")
	e.Bool(true)
	e.FieldStart("timestamp")
	e.Str(time.Now().UTC().Format(time.RFC3339))
	e.FieldStart("elapsed_ms")
	e.Float64(elapsedMS(start))
	e.FieldStart("data")
	e.Raw(raw)
	e.ObjEnd()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(e.Bytes())
}

// writeError emits the uniform error envelope. detail is included only when
// the service runs in debug mode; extra, when non-nil, appends additional
// fields to the envelope (used by the unknown-endpoint catalog).
func (g *Gateway) writeError(w http.ResponseWriter, start time.Time, code int, msg, detail string, extra func(e *jx.Encoder)) {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("success")
	e.Bool(false)
	e.FieldStart("error")
	e.Str(msg)
	e.FieldStart("code")
	e.Int(code)
	e.FieldStart("timestamp")
	e.Str(time.Now().UTC().Format(time.RFC3339))
	e.FieldStart("elapsed_ms")
	e.Float64(elapsedMS(start))
	if g.debug && detail != "" {
		e.FieldStart("detail")
		e.Str(detail)
	}
	if extra != nil {
		extra(&e)
	}
	e.ObjEnd()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(e.Bytes())
}

func elapsedMS(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000
}
