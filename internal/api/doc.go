// Package api exposes scenario control and live events over HTTP and websocket.
//
// Routes:
//
//	GET  /api/status          scenario state and primitive gauges
//	GET  /api/metrics         call outcome metrics of the current or last scenario
//	GET  /api/presets         available preset scenarios
//	POST /api/scenario/start  start a preset ({"preset": "quick", "duration": "5s"})
//	POST /api/scenario/stop   end the running scenario early
//	POST /api/broadcast       deliver {"message": "..."} to every relay listener
//	WS   /ws                  lifecycle and chaos events as JSON
//	WS   /ws/broadcast        relay listener; receives messages posted to /api/broadcast
//
// Relay listeners are receivers of a broadcast.Broadcaster: a message reaches
// the listeners that are waiting when it is posted, never ones that connect later.
package api
