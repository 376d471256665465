// Package verify implements the verify command. It runs the same pipeline as
// the copy command without writing to the destination.
package verify
