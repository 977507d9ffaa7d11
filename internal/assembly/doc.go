// Package assembly drives the staged pipeline that turns ordered voice
// sections and music beds into one broadcast-ready episode file with a
// chapter timing manifest. Stages run strictly in order: measuring,
// normalizing, concatenating, mixing, finalizing. Each run owns a scratch
// directory that is removed on every exit path.
package assembly
