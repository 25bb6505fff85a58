// Package session implements the study session state machine and the
// registry that hosts many sessions at once.
//
// A Session moves through IDLE, SELECTING_MODE, INSUFFICIENT_CONTENT,
// PROCESSING, VIEWING and ERROR. At most one generation is outstanding per
// session. Every generation is tagged with the session epoch, and Reset bumps
// the epoch so a completion that arrives afterwards is dropped instead of
// overwriting the idle session.
package session
