// Package websocket pushes simulation snapshots to browsers.
//
// A Hub keeps the connected clients grouped by session ID. Clients only
// watch: after every step or reset the HTTP layer calls BroadcastState and
// each client of that session receives a JSON Message holding the full
// engine.SimState. Broadcasting never blocks the caller; when the queue is
// full the update is dropped, since the next one supersedes it.
//
// Usage:
//
//	hub := websocket.NewHub()
//	go hub.Run()
//	defer hub.Stop()
//
//	router.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
//		hub.ServeWS(w, r, r.URL.Query().Get("sessionId"))
//	})
package websocket
