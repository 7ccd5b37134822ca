// Package agent contains the specialist agents of the analytics workflow:
//
//   - Router: classifies the request and plans the sequence of specialists
//   - SQLWriter: drafts a SQL statement plus explanation
//   - InsightGenerator: pulls data through its tools and extracts insights
//   - AnswerSummarizer: writes the final answer from the gathered artifacts
//   - SimpleQA: answers general questions without data access
//
// Every agent renders a prompt from the state snapshot, asks its model for a
// JSON object and converts the reply into a core.AgentOutput. Model calls go
// through WithFallback, which allows one retry against the fallback model
// when the reply cannot be parsed.
package agent
