// Package api exposes the simulation service over HTTP.
//
// Endpoints:
//
// Sessions:
//   - POST   /api/sessions                        create ({"scenario_id": "..."}, optional)
//   - GET    /api/sessions                        list (?sort=created|accessed&order=asc|desc&limit=N)
//   - GET    /api/sessions/{id}                   details with the current state
//   - DELETE /api/sessions/{id}                   delete
//
// Simulation:
//   - GET    /api/sessions/{id}/state             snapshot
//   - POST   /api/sessions/{id}/step              {"ticks": N, "delta_ms": D, "reset": bool, "time_scale": S, "paused": bool}
//   - POST   /api/sessions/{id}/reset             rebuild from the scenario
//   - POST   /api/sessions/{id}/spawners          {"origin": {"x":0,"y":0}, "destination": {"x":9,"y":0}}
//   - DELETE /api/sessions/{id}/spawners/{sp}     stop a spawner
//   - POST   /api/sessions/{id}/path              {"from": {...}, "to": {...}, "class": "vehicle|pedestrian"}
//   - GET    /api/sessions/{id}/messages?since=N  narration newer than N
//   - GET    /api/sessions/{id}/ratings           ratings, fees and revenue
//
// Scenarios:
//   - GET    /api/scenarios                       list
//   - GET    /api/scenarios/{name}                one scenario
//   - POST   /api/scenarios[?id=name]             save; the ID defaults to the slugged name
//
// Other:
//   - GET    /api/health
//   - GET    /ws?session=<id>                     WebSocket snapshots after every step and reset
//
// Errors are JSON objects with a single "error" field. Unknown sessions,
// scenarios and spawners answer 404; invalid input answers 400.
package api
