// Package coordinator assembles the formatting pipeline and binds it to an
// editor: one trigger builder per open document, a shared event bus, the
// per-document arbiter, and the dispatcher over the provider registry.
//
// The coordinator owns lifecycle only. Behavior lives in the packages it
// wires together; configuration is re-read from the config snapshot on
// every trigger, so live reloads take effect without restarting.
package coordinator
