package http

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/gorilla/websocket"

	"placement-runner/internal/domain"
	"placement-runner/internal/runner"
)

// AttemptStores returns the attempt store of one device.
type AttemptStores func(deviceID string) runner.AttemptStore

// WSHandler runs one placement-test runner per websocket connection.
type WSHandler struct {
	backend  runner.SessionBackend
	stores   AttemptStores
	settings runner.Settings
	upgrader websocket.Upgrader
}

func NewWSHandler(backend runner.SessionBackend, stores AttemptStores, settings runner.Settings) *WSHandler {
	return &WSHandler{
		backend:  backend,
		stores:   stores,
		settings: settings,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type selectPayload struct {
	Option int `json:"option"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// ServeWS upgrades the request and drives a runner from the client's messages.
// Every visible change is pushed as a "state" message; only the latest
// undelivered state is kept when the client reads slowly.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	deviceID := r.URL.Query().Get("deviceId")
	if deviceID == "" {
		http.Error(w, "missing deviceId", http.StatusBadRequest)
		return
	}
	sessionID := r.URL.Query().Get("sessionId")

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	states := make(chan runner.View, 1)
	errs := make(chan string, 16)
	writerDone := make(chan struct{})

	pushState := func(v runner.View) {
		for {
			select {
			case states <- v:
				return
			default:
			}
			select {
			case <-states:
			default:
			}
		}
	}
	pushError := func(err error) {
		select {
		case errs <- err.Error():
		default:
			log.Printf("ws %s: dropping error %v", deviceID, err)
		}
	}

	go func() {
		defer close(writerDone)
		for {
			var msg any
			select {
			case v := <-states:
				msg = outboundMessage[runner.View]{Type: "state", Payload: v}
			case m := <-errs:
				msg = outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: m}}
			case <-ctx.Done():
				return
			}
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("ws write error: %v", err)
				cancel()
				return
			}
		}
	}()

	rn := runner.NewRunner(h.backend, h.stores(deviceID), h.settings, runner.WithOnChange(pushState))
	defer rn.Close()

	if sessionID != "" {
		if err := rn.Resume(ctx, sessionID); err != nil {
			pushError(err)
		}
	} else {
		pushState(rn.View(ctx))
	}

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		if err := h.dispatch(ctx, rn, inbound); err != nil {
			pushError(err)
		}
	}

	cancel()
	<-writerDone
}

func (h *WSHandler) dispatch(ctx context.Context, rn *runner.Runner, msg inboundMessage) error {
	switch msg.Type {
	case "start":
		var identity domain.Identity
		if err := json.Unmarshal(msg.Payload, &identity); err != nil {
			return errors.New("invalid start payload")
		}
		return rn.Start(ctx, identity)
	case "resume":
		var payload struct {
			SessionID string `json:"sessionId"`
		}
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			return errors.New("invalid resume payload")
		}
		return rn.Resume(ctx, payload.SessionID)
	case "select":
		var payload selectPayload
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			return errors.New("invalid select payload")
		}
		return rn.Select(payload.Option)
	case "submit":
		return rn.Submit(ctx)
	case "retry":
		return rn.Retry(ctx)
	case "continue":
		return rn.Continue(ctx)
	case "play":
		_, err := rn.Play(ctx)
		return err
	case "playEnded":
		rn.PlaybackEnded()
		return nil
	case "dismissError":
		rn.DismissError()
		return nil
	case "reset":
		rn.Reset()
		return nil
	default:
		return errors.New("unsupported message type")
	}
}
