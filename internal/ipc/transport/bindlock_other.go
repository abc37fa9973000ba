//go:build !unix

package transport

// lockBind is a no-op where unix sockets are not bound through this path.
func lockBind(string) (func(), error) { return func() {}, nil }
