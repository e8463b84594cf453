// Package snapshot persists a checkpoint of journal state with gob.
//
// A checkpoint records the last journal sequence it covers, so that
// journal segments entirely below it can be dropped and replay resumes
// after it.
package snapshot
