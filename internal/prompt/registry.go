package prompt

// Registry is an in-memory map from validated prompt name to prompt.
// Lifetime is process memory only. Construct one at the composition root and
// pass it to callers; there is no package-level instance.
type Registry struct {
	prompts map[string]Prompt
}

func NewRegistry() *Registry {
	return &Registry{prompts: map[string]Prompt{}}
}

// Register stores the prompt, unconditionally overwriting any existing entry
// with the same name.
func (r *Registry) Register(p Prompt) {
	r.prompts[p.Name] = p
}

func (r *Registry) Get(name string) (Prompt, bool) {
	p, ok := r.prompts[name]
	return p, ok
}

// Content returns the prompt content directly.
func (r *Registry) Content(name string) (string, bool) {
	p, ok := r.prompts[name]
	if !ok {
		return "", false
	}
	return p.Content, true
}

// List returns a name to description mapping; description defaults to the
// name when absent.
func (r *Registry) List() map[string]string {
	res := make(map[string]string, len(r.prompts))
	for name, p := range r.prompts {
		desc := p.Description
		if desc == "" {
			desc = name
		}
		res[name] = desc
	}
	return res
}

// Remove deletes a prompt and reports whether an entry existed.
func (r *Registry) Remove(name string) bool {
	if _, ok := r.prompts[name]; !ok {
		return false
	}
	delete(r.prompts, name)
	return true
}

// SystemPrompt returns the default system prompt.
func (r *Registry) SystemPrompt() string {
	return DefaultSystemPrompt
}
