// Package events dispatches gallery lifecycle events (save, delete, state
// change, upload) to registered listeners.
//
// Save is bracketed: listeners capture the stored row in BeforeSave and
// receive it back in AfterSave as an explicit Prior value, so no listener
// keeps per-request state between the two calls.
package events
