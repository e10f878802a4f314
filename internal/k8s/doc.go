// Package k8s wraps the Kubernetes control-plane API behind a small,
// typed facade.
//
// The Client interface covers exactly the operations the debug-container
// lifecycle needs:
//
//   - fetching and listing pod descriptors as typed corev1 records
//   - submitting ephemeral-container creation requests (the pod
//     ephemeralcontainers subresource)
//   - executing commands in a container, either with captured output or
//     attached to the local terminal
//   - copying files out of a container via a streamed tar archive, the
//     same mechanism kubectl cp uses
//
// Concrete implementations live in this package; consumers depend on the
// interface so tests can substitute fakes.
package k8s
