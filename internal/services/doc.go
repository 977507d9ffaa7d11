// Package services defines the shared error taxonomy for the assembly engine
// and the context annotations used to thread run/stage/section identity into
// structured logs.
//
// Errors are sentinel markers combined with %w wrapping via Wrap, so callers
// classify failures with errors.Is without parsing message text. The workflow
// layer maps these markers onto the stage that raised them.
package services
