package shell

// SetEUID replaces the effective user id lookup.
func (e *Executor) SetEUID(euid func() int) {
	e.euid = euid
}

// ResolveEnvironment exposes resolveEnvironment for testing.
var ResolveEnvironment = resolveEnvironment
