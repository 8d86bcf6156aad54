package profile

// ContextType selects which profile mode a conversation operates under.
type ContextType string

const (
	ContextPersonal ContextType = "personal"
	ContextCompany  ContextType = "company"
)

// Valid reports whether t is one of the two known context types.
func (t ContextType) Valid() bool {
	return t == ContextPersonal || t == ContextCompany
}

// UserAttributes describes the person behind a context. Only Name and
// Profession matter for prompt construction to proceed; every other field is
// optional and simply omitted from rendered text when empty.
type UserAttributes struct {
	Name           string   `json:"name,omitempty"`
	Profession     string   `json:"profession,omitempty"`
	Company        string   `json:"company,omitempty"`
	Industry       string   `json:"industry,omitempty"`
	Voice          string   `json:"voice,omitempty"`
	Goals          string   `json:"goals,omitempty"`
	Preferences    string   `json:"preferences,omitempty"`
	Expertise      []string `json:"expertise,omitempty"`
	TargetAudience string   `json:"target_audience,omitempty"`
	BrandValues    string   `json:"brand_values,omitempty"`

	// Personal-branding enrichment.
	Tagline           string            `json:"tagline,omitempty"`
	Biography         string            `json:"biography,omitempty"`
	CoverLetter       string            `json:"cover_letter,omitempty"`
	PersonalityTraits []string          `json:"personality_traits,omitempty"`
	CoreValues        []string          `json:"core_values,omitempty"`
	ContentThemes     []string          `json:"content_themes,omitempty"`
	WritingStyle      string            `json:"writing_style,omitempty"`
	UniquePerspective string            `json:"unique_perspective,omitempty"`
	SocialLinks       map[string]string `json:"social_links,omitempty"`

	// Long-form text blocks. Rendered as their own labeled prompt sections,
	// never as generic bullets.
	JobHistoryText     string `json:"job_history_text,omitempty"`
	EducationText      string `json:"education_text,omitempty"`
	CertificationsText string `json:"certifications_text,omitempty"`
	AchievementsText   string `json:"achievements_text,omitempty"`
	SpeakingTopicsText string `json:"speaking_topics_text,omitempty"`
	PublicationsText   string `json:"publications_text,omitempty"`
}

// BusinessAttributes describes the products and commercial posture of a
// context. May be entirely empty (personal branding often has no business).
type BusinessAttributes struct {
	Products        []string `json:"products,omitempty"`
	Services        []string `json:"services,omitempty"`
	Competitors     []string `json:"competitors,omitempty"`
	UniqueValueProp string   `json:"unique_value_prop,omitempty"`
	RecentCampaigns []string `json:"recent_campaigns,omitempty"`
	Challenges      []string `json:"challenges,omitempty"`
	BusinessModel   string   `json:"business_model,omitempty"`
	PricingStrategy string   `json:"pricing_strategy,omitempty"`
	SalesProcess    string   `json:"sales_process,omitempty"`
	KeyMetrics      []string `json:"key_metrics,omitempty"`
	SuccessStories  []string `json:"success_stories,omitempty"`
	CurrentFocus    string   `json:"current_focus,omitempty"`
}

// IsEmpty reports whether no business field carries a value.
func (b BusinessAttributes) IsEmpty() bool {
	return len(b.Products) == 0 &&
		len(b.Services) == 0 &&
		len(b.Competitors) == 0 &&
		b.UniqueValueProp == "" &&
		len(b.RecentCampaigns) == 0 &&
		len(b.Challenges) == 0 &&
		b.BusinessModel == "" &&
		b.PricingStrategy == "" &&
		b.SalesProcess == "" &&
		len(b.KeyMetrics) == 0 &&
		len(b.SuccessStories) == 0 &&
		b.CurrentFocus == ""
}

// Context pairs the user and business halves of one profile mode. A present
// context always has both halves; business may be empty.
type Context struct {
	User     UserAttributes     `json:"user"`
	Business BusinessAttributes `json:"business"`
}

// Contexts is the persisted contexts document on the user record.
type Contexts struct {
	Personal *Context `json:"personal,omitempty"`
	Company  *Context `json:"company,omitempty"`
}

// IsEmpty reports whether neither context has been set up.
func (c Contexts) IsEmpty() bool {
	return c.Personal == nil && c.Company == nil
}

// Get returns the context for the given type, or nil if absent.
func (c Contexts) Get(t ContextType) *Context {
	switch t {
	case ContextPersonal:
		return c.Personal
	case ContextCompany:
		return c.Company
	}
	return nil
}
