// Package model defines the provider-agnostic abstraction used by agents to
// reach a language model, plus a scripted MockModel for tests.
//
// Agents in analystmesh ask for structured JSON output; the Request carries
// the system instructions, the conversation contents and an optional
// temperature override used by the fallback attempt. Providers (OpenAI
// compatible endpoints, Anthropic) live in sub-packages so higher layers stay
// decoupled from vendor SDKs.
package model
