// Package session keeps conversation histories. A Session is an explicit
// object handed to request handlers; a Store creates, finds and tears them down.
package session
