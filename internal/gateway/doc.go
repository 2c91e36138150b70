// Package gateway routes generation and synthesis calls across providers.
//
// Each capability (text generation, speech synthesis) has an ordered list
// of providers. A call reserves its estimated cost in the ledger before
// touching the network, retries transient failures against the same
// provider with exponential backoff, and fails over to the next provider
// when attempts run out or the provider's circuit is open. Budget denials
// are terminal: they never retry and never fail over. A per-provider
// circuit breaker stops routing to backends that fail repeatedly, probing
// them again after a cool-down.
package gateway
