// Package logging builds the zerolog logger used by goGuard components.
//
// Output is console or JSON, written to stdout or to a size-rotated file.
// Components never log identities at info level or above; callers that need
// them should enable debug.
package logging
