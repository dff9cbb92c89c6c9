package file

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/custodia-labs/docchat/internal/core/ports/driven"
	"github.com/custodia-labs/docchat/internal/logger"
)

// Ensure PromptStore implements the interface.
var _ driven.PromptStore = (*PromptStore)(nil)

// PromptStore loads the grounding prompts from user-editable files on disk,
// falling back to embedded defaults.
//
// Directory creation and default file writes happen on the first Load.
type PromptStore struct {
	mu        sync.RWMutex
	promptDir string
	cache     map[string]string
	initOnce  sync.Once
	initErr   error
}

// defaultPrompts contains embedded default prompts.
//
//nolint:lll // Prompt content is intentionally long and should not be wrapped.
var defaultPrompts = map[string]string{
	driven.PromptGroundedSystem: `You are a specialised AI assistant.
Your task is to answer the user's question using STRICTLY the context provided with it.
Do not use prior or external knowledge, even when you are confident of the answer.
If the answer to the question is not present in the context, reply only with: "%s"`,

	driven.PromptGroundedUser: `Context:
%s

Question: %s`,
}

// placeholders is the number of %s verbs each prompt must carry.
var placeholders = map[string]int{
	driven.PromptGroundedSystem: 1,
	driven.PromptGroundedUser:   2,
}

// NewPromptStore creates a new file-based prompt store.
// If promptDir is empty, defaults to ~/.docchat/prompts/.
func NewPromptStore(promptDir string) (*PromptStore, error) {
	if promptDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("get home directory: %w", err)
		}
		promptDir = filepath.Join(home, ".docchat", "prompts")
	}

	return &PromptStore{
		promptDir: promptDir,
		cache:     make(map[string]string),
	}, nil
}

// Load returns the prompt template for the given name.
// A file whose placeholders don't match the default is ignored in favour of
// the embedded default, so a bad edit can't break generation.
func (s *PromptStore) Load(name string) (string, error) {
	s.initOnce.Do(s.initialise)
	if s.initErr != nil {
		if prompt, ok := defaultPrompts[name]; ok {
			return prompt, nil
		}
		return "", fmt.Errorf("prompt store init failed: %w", s.initErr)
	}

	s.mu.RLock()
	if prompt, ok := s.cache[name]; ok {
		s.mu.RUnlock()
		return prompt, nil
	}
	s.mu.RUnlock()

	prompt, err := s.loadFromFile(name)
	if err != nil {
		if defaultPrompt, ok := defaultPrompts[name]; ok {
			return defaultPrompt, nil
		}
		return "", fmt.Errorf("load prompt %q: %w", name, err)
	}

	if want, ok := placeholders[name]; ok && !validTemplate(prompt, want) {
		logger.Warn("Prompt %s.txt needs exactly %d %%s placeholder(s) and no other verbs (write %%%% for a literal %%), using built-in default", name, want)
		prompt = defaultPrompts[name]
	}

	s.mu.Lock()
	if cached, ok := s.cache[name]; ok {
		prompt = cached
	} else {
		s.cache[name] = prompt
	}
	s.mu.Unlock()

	return prompt, nil
}

// validTemplate reports whether prompt has exactly want %s verbs and no other
// formatting verbs. An escaped %% is allowed.
func validTemplate(prompt string, want int) bool {
	rest := strings.ReplaceAll(prompt, "%%", "")
	return strings.Count(rest, "%s") == want && strings.Count(rest, "%") == want
}

// Reload clears the prompt cache, forcing fresh loads from disk.
func (s *PromptStore) Reload() {
	s.mu.Lock()
	s.cache = make(map[string]string)
	s.mu.Unlock()
}

// Dir returns the prompt directory path.
func (s *PromptStore) Dir() string {
	return s.promptDir
}

func (s *PromptStore) initialise() {
	if err := os.MkdirAll(s.promptDir, 0700); err != nil {
		s.initErr = fmt.Errorf("create prompt directory: %w", err)
		return
	}

	for name, content := range defaultPrompts {
		path := filepath.Join(s.promptDir, name+".txt")
		if _, err := os.Stat(path); os.IsNotExist(err) {
			if err := os.WriteFile(path, []byte(content), 0600); err != nil {
				s.initErr = fmt.Errorf("create default prompt %q: %w", name, err)
				return
			}
		}
	}

	if err := s.createReadme(); err != nil {
		s.initErr = err
	}
}

func (s *PromptStore) loadFromFile(name string) (string, error) {
	data, err := os.ReadFile(filepath.Join(s.promptDir, name+".txt"))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

func (s *PromptStore) createReadme() error {
	path := filepath.Join(s.promptDir, "README.md")
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		return nil
	}

	content := `# docchat prompts

These files control how docchat asks the chat model to answer.

- ` + "`grounded_system.txt`" + ` - System prompt. One %s placeholder receives the refusal text. Write %% for a literal percent sign.
- ` + "`grounded_user.txt`" + ` - User message. Two %s placeholders: retrieved passages, then the question.

Edits take effect on the next command or server restart. A file with the
wrong number of placeholders is ignored and the built-in default is used.
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		return fmt.Errorf("create prompts readme: %w", err)
	}
	return nil
}
