// Bot is a minimal client: it answers the login handshake with its own
// protocol token, then prints every waypoint snapshot the server pushes.
package main

import (
	"flag"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"outlands.gg/internal/protocol"
	"outlands.gg/internal/session"
)

func main() {
	var (
		url     = flag.String("url", "ws://127.0.0.1:8080/v1/ws", "server websocket url")
		player  = flag.String("player", "", "player uuid (random if empty)")
		openMap = flag.Bool("open_map", false, "send an open-map-view trigger after the handshake")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[bot] ", log.LstdFlags)

	id := uuid.New()
	if *player != "" {
		parsed, err := uuid.Parse(*player)
		if err != nil {
			logger.Fatalf("bad player id: %v", err)
		}
		id = parsed
	}

	conn, _, err := websocket.DefaultDialer.Dial(*url+"?player="+id.String(), nil)
	if err != nil {
		logger.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	for {
		_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if ce, ok := err.(*websocket.CloseError); ok {
				logger.Fatalf("disconnected: %s", ce.Text)
			}
			logger.Fatalf("read: %v", err)
		}
		msgID, payload, err := protocol.ParseFrame(msg)
		if err != nil {
			continue
		}
		switch msgID {
		case protocol.MsgHandshakeQuery:
			// Respond immediately and accept locally; compatibility is the
			// server's call.
			resp := protocol.Frame(protocol.MsgHandshakeResponse, session.RespondToQuery(protocol.Version))
			if err := conn.WriteMessage(websocket.BinaryMessage, resp); err != nil {
				logger.Fatalf("respond: %v", err)
			}
			logger.Printf("handshake answered with version %d", protocol.Version)
			if *openMap {
				open := protocol.Frame(protocol.MsgOpenMapView, nil)
				_ = conn.WriteMessage(websocket.BinaryMessage, open)
			}
		case protocol.MsgWaypointSnapshot:
			entries, err := protocol.DecodeWaypointSnapshot(payload)
			if err != nil {
				logger.Printf("bad snapshot: %v", err)
				continue
			}
			logger.Printf("snapshot: %d waypoints", len(entries))
			for _, e := range entries {
				logger.Printf("  %s (%d,%d,%d) %s %s", e.Name, e.X, e.Y, e.Z, e.Dimension, e.Visibility)
			}
		}
	}
}
