// Package config loads the quotestream-server configuration from the `server:`
// section of a YAML file.
//
// Config fields:
//   - HTTPPort                 — port for the WebSocket endpoint, REST API and /metrics (default 8080)
//   - GRPCPort                 — port for the gRPC health service (default 50051; 0 disables)
//   - WSPath                   — HTTP path the WebSocket endpoint is mounted at (default "/")
//   - LogLevel                 — debug | info | warn | error (default info)
//   - Broadcast.Interval       — quote broadcast period (default 1s)
//   - Quote.SecurityID         — security id stamped on every quote (default "100")
//   - Quote.MinPrice/MaxPrice  — inclusive price range (default 1..1000)
//   - Connection.SendBuffer    — per-connection outgoing queue depth (default 16)
//   - Connection.WriteTimeout  — deadline for one write (default 10s)
//   - Connection.PongWait      — read deadline extended by each pong (default 60s)
//   - Connection.ReadLimit     — maximum inbound message size in bytes (default 4096)
//
// Load(path) applies defaults before unmarshalling, then validates.
// Watch(ctx, path, fn) reloads on file changes; only Broadcast.Interval and
// LogLevel take effect without a restart.
package config
