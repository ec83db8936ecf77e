// Package model defines the provider-agnostic model capability consumed by
// the engine.
//
// A Model turns instructions plus a message history into the next assistant
// message. The result is a tagged union: KindAnswer ends the turn, KindToolCalls
// asks the engine to dispatch tools. Consumers switch on Response.Kind and never
// inspect message fields to guess the branch.
//
// Providers live in sub-packages (anthropic, openai) so higher layers stay
// decoupled from vendor SDKs. MockModel scripts responses for tests.
package model
