// Package invoker ties credentials, backend construction, and invocation
// together.
//
// The flow is: ensure the backend's credential is available
// ([Invoker.EnsureCredential]), build a [Client] from a [ClientConfig]
// ([Invoker.BuildClient], which never touches the network), then call
// [Client.Invoke] with an ordered message sequence. Backends are selected by
// [Kind] through a registry that [RegisterBackend] can extend.
package invoker
