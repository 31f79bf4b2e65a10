// Package server implements the MCP (Model Context Protocol) server for the
// fluence conversion tools.
//
// The server exposes the image to fluence pipeline as JSON-RPC 2.0 tools, so
// an MCP client can import a target image, inspect the resulting matrix as a
// heat map, export it as an optimal fluence file and push it to a treatment
// planning system.
//
// # Protocol
//
// The server communicates over stdio using JSON-RPC 2.0:
//   - Input: JSON-RPC requests on stdin (one per line)
//   - Output: JSON-RPC responses on stdout
//
// Supported MCP methods:
//   - initialize: Protocol handshake
//   - tools/list: Enumerate available tools
//   - tools/call: Execute a tool with arguments
//   - ping: Health check
//
// # Available Tools
//
// Image import:
//   - fluence_load_image: Image details and whether it will be downsampled
//   - fluence_import: Convert an image into the current fluence matrix
//
// Inspection:
//   - fluence_heatmap: Current matrix as a base64 PNG heat map
//   - fluence_sample_cell: Value, color and position of one cell
//
// Output:
//   - fluence_export: Write an .optimal_fluence file
//   - fluence_list_plans: Plans of a patient in the planning system
//   - fluence_select_plan: Choose the plan that receives the matrix
//   - fluence_push: Apply the matrix to the selected plan
//   - fluence_status: Session summary including which actions are enabled
//
// # Session
//
// One session is kept per server process: the current matrix, its source
// image and the plan selection. Tool calls that read or change the session
// take a mutex, and pushes hold it for their whole duration. Matrices are
// immutable so a matrix handed to the planning system is never changed by a
// later import.
//
// # Error Handling
//
// Tool execution errors are returned as JSON-RPC error responses with:
//   - code: -32000 (tool execution failure) or standard JSON-RPC codes
//   - message: Human-readable error description
//   - data: The Go error string
//
// # Usage
//
//	srv := server.New(cfg, server.WithSystem(folder))
//	if err := srv.Run(); err != nil {
//	    log.Fatal(err)
//	}
package server
