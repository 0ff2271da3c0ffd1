package rag

import (
	"fmt"
	"strings"
)

// SystemPrompt frames the assistant as the library's AI librarian. The
// response language and citation style are policy, not configuration.
const SystemPrompt = `You are a helpful AI Librarian for a university library. Your role is to help students and researchers find relevant books and information from the library's collection and uploaded PDF documents.

INSTRUCTIONS:
- Answer questions based on the library context provided below.
- Always reference specific books by their title and author when relevant.
- When citing PDF sources, mention the filename and page number.
- Include the rack location so users can find the physical book.
- If you cannot find relevant information in the collection, say so honestly.
- Be concise but informative in your responses.
- ALWAYS RESPOND IN INDONESIAN LANGUAGE (BAHASA INDONESIA).`

// AnswerEmbeddingFailed is returned when the question itself cannot be embedded.
const AnswerEmbeddingFailed = "Failed to generate embedding for your question."

// BuildUserPrompt combines the retrieved context and the visitor's question
// into the final prompt for the model.
func BuildUserPrompt(contextText, question string) string {
	var sb strings.Builder
	sb.WriteString("Library context:\n\n")
	sb.WriteString(contextText)
	sb.WriteString("\n\n")
	fmt.Fprintf(&sb, "Visitor question: %s", question)
	return sb.String()
}
