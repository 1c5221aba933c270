package testutil

import (
	"context"
	"sync"
)

// Confirmer records prompts and answers with a fixed value
type Confirmer struct {
	Answer bool

	mu      sync.Mutex
	prompts []string
}

// Confirm records prompt and returns Answer
func (c *Confirmer) Confirm(_ context.Context, prompt string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.prompts = append(c.prompts, prompt)
	return c.Answer, nil
}

// Prompts returns the recorded prompts
func (c *Confirmer) Prompts() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.prompts...)
}
