// Package server exposes HTTP handlers, including WebSocket upgrades, health
// checks, and the built-in test page.
package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
)

// WebSocketHandler handles WebSocket upgrade requests and manages client connections.
// It validates that the request uses the GET method, upgrades the HTTP connection
// to WebSocket, opens a relay session for it, and hands the client to the hub.
func (s *Server) WebSocketHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed. WebSocket endpoint only accepts GET requests.", http.StatusMethodNotAllowed)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("WebSocket upgrade failed", "remote_addr", r.RemoteAddr, "error", err)
		return
	}

	client := NewClient(conn, s.hub, r.RemoteAddr, s.cfg)

	// The hub launches the pump goroutines once it accepts the client.
	if !s.hub.Register(client) {
		s.logger.Info("rejecting connection during shutdown", "remote_addr", r.RemoteAddr)
		s.router.Close(client.Session())
		client.closeConnection()
	}
}

// HealthHandler provides a simple health check endpoint that returns server status.
// It responds with a plain text message indicating the server is running.
func HealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprintf(w, "Room relay is running!")
}

type statusResponse struct {
	Status      string `json:"status"`
	Connections int    `json:"connections"`
	Rooms       int    `json:"rooms"`
}

// StatusHandler reports liveness along with connection and room counts as JSON.
func (s *Server) StatusHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	resp := statusResponse{
		Status:      "ok",
		Connections: s.hub.Len(),
		Rooms:       s.rooms.Len(),
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.Error("writing status response", "error", err)
	}
}

// TestPageHandler serves an HTML page for exercising the relay by hand: it
// can create or join a room and send public_key or encrypted_message frames.
func TestPageHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	if _, err := fmt.Fprint(w, testPageHTML); err != nil {
		slog.Error("writing HTML response", "error", err)
	}
}

const testPageHTML = `<!DOCTYPE html>
<html>
<head>
    <title>Room Relay Test</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 20px; }
        #messages {
            border: 1px solid #ccc;
            height: 300px;
            padding: 10px;
            overflow-y: scroll;
            margin: 10px 0;
            background-color: #f9f9f9;
            font-family: monospace;
        }
        input[type="text"] {
            width: 200px;
            padding: 5px;
            margin-right: 10px;
        }
        select { padding: 5px; margin-right: 10px; }
        button {
            padding: 5px 15px;
            background-color: #007cba;
            color: white;
            border: none;
            cursor: pointer;
        }
        button:hover { background-color: #005a87; }
        .row { margin: 8px 0; }
        .status {
            margin: 10px 0;
            padding: 5px;
            border-radius: 3px;
        }
        .connected { background-color: #d4edda; color: #155724; }
        .disconnected { background-color: #f8d7da; color: #721c24; }
    </style>
</head>
<body>
    <h1>Room Relay Test</h1>

    <div id="status" class="status disconnected">Disconnected</div>

    <div class="row">
        <button id="connectButton" onclick="toggleConnection()">Connect</button>
    </div>
    <div class="row">
        <input type="text" id="roomInput" placeholder="Room">
        <input type="text" id="passwordInput" placeholder="Password">
        <button onclick="sendRoom('create_room')">Create</button>
        <button onclick="sendRoom('join_room')">Join</button>
    </div>
    <div class="row">
        <select id="typeSelect">
            <option value="public_key">public_key</option>
            <option value="encrypted_message">encrypted_message</option>
        </select>
        <input type="text" id="payloadInput" placeholder="Payload">
        <button onclick="sendPayload()">Send</button>
    </div>

    <div id="messages"></div>

    <script>
        let ws = null;
        const messagesDiv = document.getElementById('messages');
        const connectButton = document.getElementById('connectButton');
        const statusDiv = document.getElementById('status');

        function addMessage(text, prefix) {
            const el = document.createElement('div');
            el.style.margin = '3px 0';
            el.textContent = (prefix ? prefix + ' ' : '') + text;
            messagesDiv.appendChild(el);
            messagesDiv.scrollTop = messagesDiv.scrollHeight;
        }

        function updateStatus(connected) {
            statusDiv.textContent = connected ? 'Connected' : 'Disconnected';
            statusDiv.className = 'status ' + (connected ? 'connected' : 'disconnected');
            connectButton.textContent = connected ? 'Disconnect' : 'Connect';
        }

        function connect() {
            const scheme = location.protocol === 'https:' ? 'wss://' : 'ws://';
            ws = new WebSocket(scheme + location.host + '/ws');
            ws.onopen = function() { addMessage('connected'); updateStatus(true); };
            ws.onmessage = function(event) { addMessage(event.data, '<'); };
            ws.onclose = function() { addMessage('connection closed'); updateStatus(false); ws = null; };
            ws.onerror = function() { addMessage('connection error'); };
        }

        function toggleConnection() {
            if (ws && ws.readyState === WebSocket.OPEN) {
                ws.close();
            } else {
                connect();
            }
        }

        function send(obj) {
            if (!ws || ws.readyState !== WebSocket.OPEN) {
                addMessage('not connected');
                return;
            }
            const data = JSON.stringify(obj);
            ws.send(data);
            addMessage(data, '>');
        }

        function sendRoom(type) {
            send({
                type: type,
                room: document.getElementById('roomInput').value,
                password: document.getElementById('passwordInput').value
            });
        }

        function sendPayload() {
            const type = document.getElementById('typeSelect').value;
            const payload = document.getElementById('payloadInput').value;
            const msg = { type: type };
            msg[type === 'public_key' ? 'key' : 'data'] = payload;
            send(msg);
        }
    </script>
</body>
</html>`
