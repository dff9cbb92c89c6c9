package driven

// PromptStore provides access to LLM prompt templates.
// Implementations may load prompts from files or embed them in the binary.
type PromptStore interface {
	// Load returns the prompt template for the given name.
	Load(name string) (string, error)

	// Reload clears any cached prompts, forcing fresh loads on next access.
	Reload()
}

// Well-known prompt names.
const (
	// PromptGroundedSystem is the system prompt that restricts answers to
	// the retrieved context. The template expects one %s placeholder for
	// the refusal text.
	PromptGroundedSystem = "grounded_system"

	// PromptGroundedUser frames the question and the retrieved passages.
	// The template expects %s (passages) then %s (question).
	PromptGroundedUser = "grounded_user"
)
