// Package logx configures smartmirror's structured logging.
//
// This repo uses a small wrapper (logx.Logger) on top of zerolog to keep:
//   - Console output readable (short timestamp + short caller)
//   - File output JSON-structured
//   - Runtime re-configuration on config reload (Service.Apply)
package logx
