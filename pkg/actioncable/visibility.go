package actioncable

// VisibilityNotifier abstracts the browser's page-visibility-change event
// that the original client listens for. A Go process has no notion of a
// hidden tab, so the default implementation never fires; callers embedding
// this client in something that does have a foreground/background
// distinction (a mobile wrapper, a desktop tray app) can supply their own
// notifier and call the callback it was given whenever the process regains
// foreground focus.
type VisibilityNotifier interface {
	// Subscribe registers a callback to invoke whenever the host
	// transitions to the foreground. Returns an unsubscribe func.
	Subscribe(onVisible func()) (unsubscribe func())
}

// noopVisibility never fires; it is the default for processes with no
// foreground/background concept.
type noopVisibility struct{}

func (noopVisibility) Subscribe(func()) func() {
	return func() {}
}
