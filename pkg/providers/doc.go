// Package providers groups the concrete backend adapters.
//
// Each sub-package embeds [github.com/germanamz/invoker/pkg/modeladapter.ModelAdapter]
// and implements its Completer interface:
//   - [github.com/germanamz/invoker/pkg/providers/gemini] — Generative Language (Gemini) API, plus the shared generateContent wire codec
//   - [github.com/germanamz/invoker/pkg/providers/vertex] — managed model deployments (Vertex AI, private or proxied endpoints)
package providers
