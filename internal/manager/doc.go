// Package manager owns the loaded model and coordinates generation for the
// triage chat. It is structured into small files by concern:
//
//   - manager.go: Manager type, Load/Reload, Respond, Status.
//   - config.go: Config, package defaults, backend selection.
//   - settings.go: sampling/model settings defaults and validation.
//   - chatbot.go: Chatbot, one loaded model plus the prompt/heuristic loop.
//   - admission.go: FIFO queue and the single in-flight generation slot.
//   - errors.go: error types and helpers (IsTooBusy, IsModelNotLoaded, ...).
//   - events.go: lifecycle events and publishers.
//   - metrics.go: Prometheus collectors for generations and loads.
//
// Backends:
//
//   - llama: in-process go-llama.cpp, enabled with `-tags=llama`
//     (adapter_llama.go, llama_cgo.go). Without the tag adapter_llama_stub.go
//     fails fast with a dependency-unavailable error.
//   - server: an already running llama.cpp server (adapter_server.go).
//   - spawn: a llama-server subprocess started per chatbot (adapter_spawn.go).
package manager
