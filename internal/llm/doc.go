// Package llm provides language model clients and the model-based table
// classifier. It supports Vertex AI, Anthropic, OpenAI and the Claude Code
// CLI, with retry, rate limiting and tolerant parsing of JSON embedded in
// model responses.
package llm
