// Package lifecycle implements the debug-container lifecycle controller.
//
// One invocation runs a fixed sequence: resolve the target pod (directly or
// through controller owner references), inventory its containers, provision
// an ephemeral debug container and poll it to a running state, execute
// exactly one operation against it (an interactive attached session or a
// backup-and-retrieve flow), and release the session unconditionally.
//
// The flow is single-threaded and sequential; the only suspension points
// are the post-creation settling delay, the poll loop's interval sleeps,
// and the attached session's wait. Each invocation owns exactly one
// DebugSession for its lifetime. Cluster state is treated as eventually
// consistent: the controller re-polls rather than caching.
package lifecycle
