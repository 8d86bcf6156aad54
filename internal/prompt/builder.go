// Package prompt assembles the system instruction string sent to the
// language model: profile context, business context, persona instructions,
// and the response-format contract.
package prompt

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/aicmo/aicmo/internal/persona"
	"github.com/aicmo/aicmo/internal/profile"
)

// Builder renders system prompts. The allowed action list is fixed at
// construction so the prompt's whitelist stays in lockstep with the
// dispatcher's handler map.
type Builder struct {
	personas       *persona.Registry
	allowedActions []string
}

// NewBuilder creates a Builder. allowedActions is the action-type whitelist
// communicated to the model for envelope personas.
func NewBuilder(personas *persona.Registry, allowedActions []string) *Builder {
	return &Builder{personas: personas, allowedActions: allowedActions}
}

// field is one renderable label/value pair.
type field struct {
	label string
	value string
}

// Build renders the full system prompt. Output is deterministic: the same
// inputs always produce the same string.
func (b *Builder) Build(user profile.UserAttributes, business profile.BusinessAttributes, contextType profile.ContextType, p persona.Persona) string {
	var sb strings.Builder

	sb.WriteString(b.header(user))

	if lines := renderFields(userFields(user)); len(lines) > 0 {
		sb.WriteString("\n\nUser Context:\n")
		sb.WriteString(strings.Join(lines, "\n"))
	}

	if links := renderSocialLinks(user.SocialLinks); links != "" {
		sb.WriteString("\n")
		sb.WriteString(links)
	}

	for _, sec := range longFormSections(user) {
		fmt.Fprintf(&sb, "\n\n%s:\n%s", sec.label, sec.value)
	}

	if !business.IsEmpty() {
		label := "Business Context"
		if contextType == profile.ContextPersonal {
			label = "Personal Brand Context"
		}
		fmt.Fprintf(&sb, "\n\n%s:\n", label)
		sb.WriteString(strings.Join(renderFields(businessFields(business)), "\n"))
	}

	sb.WriteString("\n\n")
	sb.WriteString(contextInstructions(contextType))

	sb.WriteString("\n\n")
	sb.WriteString(b.personas.InstructionsFor(p))

	sb.WriteString("\n\n")
	sb.WriteString(qualityRequirements)

	sb.WriteString("\n\n")
	sb.WriteString(b.closing(p))

	return sb.String()
}

func (b *Builder) header(user profile.UserAttributes) string {
	who := "the user"
	if user.Name != "" {
		who = user.Name
	}
	if user.Profession != "" {
		return fmt.Sprintf("You are an expert marketing assistant having a conversation with %s, a %s.", who, user.Profession)
	}
	return fmt.Sprintf("You are an expert marketing assistant having a conversation with %s.", who)
}

// userFields lists the generic scalar/list fields in their fixed render
// order. Long-form text blocks and social links are special-cased elsewhere
// and must never appear here.
func userFields(u profile.UserAttributes) []field {
	return []field{
		{"Name", u.Name},
		{"Profession", u.Profession},
		{"Company", u.Company},
		{"Industry", u.Industry},
		{"Voice", u.Voice},
		{"Goals", u.Goals},
		{"Preferences", u.Preferences},
		{"Expertise", strings.Join(u.Expertise, ", ")},
		{"Target audience", u.TargetAudience},
		{"Brand values", u.BrandValues},
		{"Tagline", u.Tagline},
		{"Biography", u.Biography},
		{"Cover letter", u.CoverLetter},
		{"Personality traits", strings.Join(u.PersonalityTraits, ", ")},
		{"Core values", strings.Join(u.CoreValues, ", ")},
		{"Content themes", strings.Join(u.ContentThemes, ", ")},
		{"Writing style", u.WritingStyle},
		{"Unique perspective", u.UniquePerspective},
	}
}

func businessFields(b profile.BusinessAttributes) []field {
	return []field{
		{"Products", strings.Join(b.Products, ", ")},
		{"Services", strings.Join(b.Services, ", ")},
		{"Competitors", strings.Join(b.Competitors, ", ")},
		{"Unique value prop", b.UniqueValueProp},
		{"Recent campaigns", strings.Join(b.RecentCampaigns, ", ")},
		{"Challenges", strings.Join(b.Challenges, ", ")},
		{"Business model", b.BusinessModel},
		{"Pricing strategy", b.PricingStrategy},
		{"Sales process", b.SalesProcess},
		{"Key metrics", strings.Join(b.KeyMetrics, ", ")},
		{"Success stories", strings.Join(b.SuccessStories, ", ")},
		{"Current focus", b.CurrentFocus},
	}
}

// renderFields emits one bulleted line per non-empty field and nothing for
// empty ones.
func renderFields(fields []field) []string {
	var lines []string
	for _, f := range fields {
		if f.value == "" {
			continue
		}
		lines = append(lines, fmt.Sprintf("- %s: %s", f.label, f.value))
	}
	return lines
}

// renderSocialLinks emits the social links as an indented sub-list, sorted
// by platform for deterministic output.
func renderSocialLinks(links map[string]string) string {
	if len(links) == 0 {
		return ""
	}

	platforms := make([]string, 0, len(links))
	for platform, url := range links {
		if url == "" {
			continue
		}
		platforms = append(platforms, platform)
	}
	if len(platforms) == 0 {
		return ""
	}
	sort.Strings(platforms)

	var sb strings.Builder
	sb.WriteString("- Social links:")
	for _, platform := range platforms {
		fmt.Fprintf(&sb, "\n  - %s: %s", platform, links[platform])
	}
	return sb.String()
}

func longFormSections(u profile.UserAttributes) []field {
	all := []field{
		{"Career History", u.JobHistoryText},
		{"Education", u.EducationText},
		{"Certifications", u.CertificationsText},
		{"Achievements", u.AchievementsText},
		{"Speaking Topics", u.SpeakingTopicsText},
		{"Publications", u.PublicationsText},
	}
	var present []field
	for _, sec := range all {
		if sec.value != "" {
			present = append(present, sec)
		}
	}
	return present
}

func contextInstructions(t profile.ContextType) string {
	if t == profile.ContextPersonal {
		return personalInstructions
	}
	return companyInstructions
}

const personalInstructions = `You should:
1. Focus on thought leadership, teaching, and insights, but leave room for out-of-the-box concepts and thoughts.
2. Build on the provided industry and job experiences to find niche topics
3. Never sound self-serving or self-aggrandizing.
4. Never use emojis, hashtags, or rigidly follow the rules of grammar, sentence structure, or punctuation.
5. Pull inspiration from history, current events, art, culture, famous books, movies, music, etc.
6. Use the weirdest and most interesting voice, data and inspiration you can.
7. Try to avoid directly using the data from the context, but use it to inspire your response.

QUALITY STANDARDS FOR PERSONAL BRANDING:
- Responses should be specific to their industry and expertise
- Always reference their specific background and achievements
- Suggest actionable, personalized strategies (not generic advice)
- Focus on authentic storytelling and genuine connection
- Provide specific platform recommendations based on their audience
- Include concrete examples relevant to their field
- Emphasize relationship-building and networking strategies
- Always favor user input messages and don't contradict or try to relate it to the system prompt unless it is relevant.
- Suggest content themes that align with their expertise`

const companyInstructions = `You should:
1. Focus on company marketing strategies and campaigns
2. Help with business growth and customer acquisition
3. Suggest data-driven marketing approaches
4. Provide strategic business marketing advice

QUALITY STANDARDS FOR COMPANY MARKETING:
- Responses should be specific to their business and industry
- Always reference their specific products/services and target audience
- Suggest measurable, ROI-focused strategies (not generic advice)
- Provide specific campaign ideas tailored to their business
- Include concrete metrics and KPIs relevant to their goals
- Focus on customer acquisition and business growth
- Suggest data-driven approaches with specific tools/platforms
- Emphasize competitive advantages and unique value propositions`

const qualityRequirements = `RESPONSE QUALITY REQUIREMENTS:
- NEVER give generic, one-size-fits-all advice
- ALWAYS reference their specific context, business, or personal brand
- Provide concrete, actionable recommendations
- Include specific examples relevant to their industry/situation
- Suggest measurable outcomes and success metrics
- Reference their specific products, services, or expertise when relevant
- Tailor all suggestions to their target audience and goals`

// closing emits the response-format contract: the JSON envelope with the
// action whitelist for structured personas, an explicit JSON prohibition for
// raw-response personas.
func (b *Builder) closing(p persona.Persona) string {
	def := b.personas.Resolve(string(p))
	if def.RawResponse {
		return `RESPONSE FORMAT:
Respond only with runnable code blocks and the minimal prose needed to use them.
Do NOT respond in JSON. Never wrap your answer in a {"reply": ...} envelope or any other structured format.`
	}

	whitelist, _ := json.Marshal(b.allowedActions)
	return fmt.Sprintf(`When suggesting actions, respond in JSON format:
{
  "reply": "<conversational response>",
  "action": null OR { "type": "...", "params": {...} }
}

Allowed action types: %s

Otherwise, just respond naturally in conversation with specific, personalized advice.`, whitelist)
}
