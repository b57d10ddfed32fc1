// Package state tracks multi-step dialogs keyed by (user, chat).
// It serializes event handling per dialog so a burst of updates from the
// same user cannot interleave inside a conversation step.
package state
