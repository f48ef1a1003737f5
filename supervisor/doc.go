// Package supervisor provides the client side of the file-management API
// exposed by a sandboxed workload supervisor.
//
// The API is deliberately narrow: pull, push, list, make-dir and remove,
// each addressed by absolute path. FileClient is the capability contract
// consumed by the path layer; Client is the concrete implementation speaking
// JSON over the supervisor's unix socket.
//
// Errors are structured: every failed file operation carries a coarse kind
// tag (see ErrorKind), and transport failures surface as *ConnectionError.
// Callers that need finer-grained local semantics translate these kinds; the
// client itself never retries and never masks an error.
package supervisor
