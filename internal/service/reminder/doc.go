// Package reminder resolves who an event reminder goes to and sends it.
//
// Recipients are the union of the reminder's explicit addresses, the
// participants selected by form and tag, and the event's speakers. The
// service depends on repository interfaces defined in this package.
package reminder
