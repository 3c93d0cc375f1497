// Package main hosts the labtrace CLI entrypoint and command graph.
//
// The Cobra-based command tree drives the workflow orchestrator, the
// traceability engine, and the protocol runner directly against the entity
// database. It centralizes configuration resolution, store access, and
// structured logging setup so subcommands can focus on user experience
// instead of wiring.
//
// Keep this package lean: add new functionality by extending the internal
// packages first, then surface it through dedicated commands or flags here.
package main
