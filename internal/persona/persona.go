// Package persona defines the closed set of assistant personas. Each persona
// carries its own instruction block, generation parameters, and response
// policy (JSON envelope vs raw text).
package persona

// Persona identifies an assistant personality.
type Persona string

const (
	CMO       Persona = "cmo"
	Content   Persona = "content"
	Growth    Persona = "growth"
	Developer Persona = "developer"
)

// Default is the persona used when a request names none.
const Default = CMO

// All returns every known persona in a fixed order.
func All() []Persona {
	return []Persona{CMO, Content, Growth, Developer}
}

// Valid reports whether p is a known persona.
func (p Persona) Valid() bool {
	_, ok := definitions[p]
	return ok
}

// GenParams are the completion-request parameters a persona runs with.
type GenParams struct {
	MaxTokens   int64
	Temperature float64
}

// Definition is the static description of one persona.
type Definition struct {
	ID          Persona
	Name        string
	Description string // short built-in summary, also the knowledge fallback
	Instructions string
	Params      GenParams

	// RawResponse personas reply in plain text (code blocks for the
	// developer); the JSON envelope is forbidden and actions are never
	// parsed from their output.
	RawResponse bool
}

var definitions = map[Persona]Definition{
	CMO: {
		ID:          CMO,
		Name:        "AI CMO",
		Description: "Strategic marketing leadership",
		Params:      GenParams{MaxTokens: 1000, Temperature: 0.7},
		Instructions: `As the AI CMO, act as a strategic marketing leader:
1. Think in terms of positioning, budget allocation, and channel mix
2. Frame recommendations around business outcomes, not tactics alone
3. Prioritize ruthlessly; call out what NOT to do
4. Tie every suggestion to a measurable goal`,
	},
	Content: {
		ID:          Content,
		Name:        "Content Marketer",
		Description: "Content strategy & creation",
		Params:      GenParams{MaxTokens: 1200, Temperature: 0.9},
		Instructions: `As the Content Marketer, focus on content strategy and creation:
1. Propose concrete content pieces with working titles and hooks
2. Match voice and format to the platform and audience
3. Build on content themes already in the profile
4. Suggest repurposing paths for every piece (thread, post, newsletter, talk)`,
	},
	Growth: {
		ID:          Growth,
		Name:        "Growth Hacker",
		Description: "Growth & experimentation",
		Params:      GenParams{MaxTokens: 1000, Temperature: 0.8},
		Instructions: `As the Growth Hacker, focus on growth loops and experimentation:
1. Frame ideas as testable experiments with a hypothesis and a success metric
2. Favor cheap, fast experiments over big-bang campaigns
3. Suggest acquisition, activation, and retention levers explicitly
4. Quantify expected impact, even as a rough order of magnitude`,
	},
	Developer: {
		ID:          Developer,
		Name:        "Web Developer",
		Description: "Technical implementation",
		Params:      GenParams{MaxTokens: 2000, Temperature: 0.2},
		Instructions: `As the Web Developer, produce runnable implementation work:
1. Respond with complete, runnable code blocks and minimal surrounding prose
2. Prefer plain HTML/CSS/JS unless the user names a stack
3. Include any required markup, styles, and scripts in full
4. Note assumptions as short code comments, not paragraphs`,
		RawResponse: true,
	},
}

// Get returns the definition for p.
func Get(p Persona) (Definition, bool) {
	d, ok := definitions[p]
	return d, ok
}

// KnowledgeSource supplies extended instruction material for a persona, e.g.
// a playbook file maintained outside the binary.
type KnowledgeSource interface {
	Instructions(p Persona) (string, error)
}

// Registry resolves persona instruction blocks, preferring the knowledge
// source and falling back to the built-in definition. It never fails: an
// unknown persona resolves to the default one.
type Registry struct {
	knowledge KnowledgeSource
}

// NewRegistry creates a Registry. knowledge may be nil.
func NewRegistry(knowledge KnowledgeSource) *Registry {
	return &Registry{knowledge: knowledge}
}

// Resolve maps an identifier to a persona definition, defaulting unknown or
// empty identifiers to the default persona.
func (r *Registry) Resolve(id string) Definition {
	d, ok := definitions[Persona(id)]
	if !ok {
		return definitions[Default]
	}
	return d
}

// InstructionsFor returns the instruction block for p. When the knowledge
// lookup is unavailable or empty the built-in block is used; when even that
// is missing the short description stands in.
func (r *Registry) InstructionsFor(p Persona) string {
	d, ok := definitions[p]
	if !ok {
		d = definitions[Default]
	}

	if r.knowledge != nil {
		text, err := r.knowledge.Instructions(d.ID)
		if err == nil && text != "" {
			return text
		}
	}

	if d.Instructions != "" {
		return d.Instructions
	}
	return d.Description
}
