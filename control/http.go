package control

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/covwatch/report"
	"github.com/hazyhaar/covwatch/session"
	"github.com/hazyhaar/covwatch/shield"
)

// NewHandler builds the control HTTP API. hub and mcpSrv may be nil, in
// which case their routes are not mounted.
func NewHandler(d *Dispatcher, hub *Hub, mcpSrv *mcp.Server) http.Handler {
	r := chi.NewRouter()
	r.Use(shield.Stack(d.logger)...)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/actions", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, Actions)
		})

		r.Get("/tabs", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, d.Tabs())
		})

		r.Post("/tabs/{tab}/actions/{action}", func(w http.ResponseWriter, r *http.Request) {
			req := Request{Action: chi.URLParam(r, "action"), TabID: chi.URLParam(r, "tab")}
			body, err := io.ReadAll(r.Body)
			if err != nil {
				writeError(w, http.StatusRequestEntityTooLarge, err)
				return
			}
			if len(body) > 0 {
				if !json.Valid(body) {
					writeError(w, http.StatusBadRequest, ErrBadPayload)
					return
				}
				req.Payload = body
			}

			res, err := d.Dispatch(r.Context(), req)
			if err != nil {
				writeError(w, statusFor(err), err)
				return
			}
			writeJSON(w, http.StatusOK, res)
		})

		r.Get("/tabs/{tab}/report", func(w http.ResponseWriter, r *http.Request) {
			rep, err := d.LastReport(chi.URLParam(r, "tab"))
			if err != nil {
				writeError(w, statusFor(err), err)
				return
			}
			switch r.URL.Query().Get("format") {
			case "", "json":
				writeJSON(w, http.StatusOK, rep)
			case "html":
				w.Header().Set("Content-Type", "text/html; charset=utf-8")
				if err := report.WriteHTML(w, rep); err != nil {
					d.logger.Warn("control: render report", "report", rep.ID, "format", "html", "error", err)
				}
			case "text":
				w.Header().Set("Content-Type", "text/plain; charset=utf-8")
				if err := report.NewText(w, report.WithoutColor()).Send(r.Context(), rep); err != nil {
					d.logger.Warn("control: render report", "report", rep.ID, "format", "text", "error", err)
				}
			case "console":
				writeJSON(w, http.StatusOK, report.ConsoleCalls(rep))
			default:
				writeError(w, http.StatusBadRequest, errors.New("format must be json, html, text or console"))
			}
		})

		if hub != nil {
			r.Get("/reports/ws", hub.ServeHTTP)
		}
	})

	if mcpSrv != nil {
		h := mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server { return mcpSrv }, nil)
		r.Handle("/mcp", h)
		r.Handle("/mcp/*", h)
	}
	return r
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrUnknownAction), errors.Is(err, ErrBadPayload):
		return http.StatusBadRequest
	case errors.Is(err, session.ErrNotAttached), errors.Is(err, ErrNoReport):
		return http.StatusNotFound
	case errors.Is(err, session.ErrAttached),
		errors.Is(err, session.ErrListenerActive),
		errors.Is(err, session.ErrNoListener),
		errors.Is(err, session.ErrNoScripts),
		errors.Is(err, session.ErrClosed):
		return http.StatusConflict
	default:
		// CDP or browser failure.
		return http.StatusBadGateway
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}
