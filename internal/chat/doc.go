// Package chat holds the conversation text logic: formatting history into a
// single prompt, pulling the assistant reply back out of the decoded model
// output, the stop-phrase heuristic, and the JSON transcript codec.
//
// Nothing here talks to a model or keeps state; every function is pure.
package chat
