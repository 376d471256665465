// Package cp implements the copy command.
package cp
