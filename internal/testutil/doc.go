// Package testutil contains helpers shared by package tests: draining event
// streams, asserting stream invariants and building stub tools. It is not
// intended for production usage.
package testutil
