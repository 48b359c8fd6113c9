package post

import (
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultAuthor is used when the front matter names no author.
const DefaultAuthor = "Tech-Knowlogia Team"

// Category slugs, in the order they are listed on the site.
var Categories = []string{"blog", "lifestyle", "design", "technology", "business"}

// IsCategory reports whether slug names a known category.
func IsCategory(slug string) bool {
	for _, c := range Categories {
		if c == slug {
			return true
		}
	}
	return false
}

// Author is either a bare name or a full profile in front matter.
type Author struct {
	Name     string `yaml:"name"     json:"name"`
	Bio      string `yaml:"bio"      json:"bio,omitempty"`
	Avatar   string `yaml:"avatar"   json:"avatar,omitempty"`
	Role     string `yaml:"role"     json:"role,omitempty"`
	LinkedIn string `yaml:"linkedin" json:"linkedin,omitempty"`
	Twitter  string `yaml:"twitter"  json:"twitter,omitempty"`
	Email    string `yaml:"email"    json:"email,omitempty"`
}

func (a *Author) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		a.Name = node.Value
		return nil
	}
	type plain Author
	return node.Decode((*plain)(a))
}

type SEO struct {
	Title       string   `yaml:"title"       json:"title,omitempty"`
	Description string   `yaml:"description" json:"description,omitempty"`
	Keywords    []string `yaml:"keywords"    json:"keywords,omitempty"`
}

// Frontmatter is the YAML header of an article file.
type Frontmatter struct {
	Title       string   `yaml:"title"`
	Description string   `yaml:"description"`
	Date        string   `yaml:"date"`
	Category    string   `yaml:"category"`
	Tags        []string `yaml:"tags"`
	Author      *Author  `yaml:"author"`
	Featured    bool     `yaml:"featured"`
	Priority    *float64 `yaml:"priority"`
	Breaking    bool     `yaml:"breaking"`
	Summary     string   `yaml:"summary"`
	Image       string   `yaml:"image"`
	SEO         *SEO     `yaml:"seo"`
}

// Post is a rendered article.
type Post struct {
	Slug        string    `json:"slug"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Content     string    `json:"content"`
	Date        string    `json:"date"`
	PublishedAt time.Time `json:"-"`
	Category    string    `json:"category"`
	Tags        []string  `json:"tags"`
	Author      Author    `json:"author"`
	ReadTime    int       `json:"readTime"`
	Featured    bool      `json:"featured"`
	Priority    *float64  `json:"priority,omitempty"`
	Breaking    bool      `json:"breaking"`
	Summary     string    `json:"summary,omitempty"`
	Image       string    `json:"image,omitempty"`
	SEO         *SEO      `json:"seo,omitempty"`
}

// summary drops the rendered body for list responses.
type summary struct {
	Slug        string   `json:"slug"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Date        string   `json:"date"`
	Category    string   `json:"category"`
	Tags        []string `json:"tags"`
	Author      Author   `json:"author"`
	ReadTime    int      `json:"readTime"`
	Featured    bool     `json:"featured"`
	Breaking    bool     `json:"breaking"`
	Summary     string   `json:"summary,omitempty"`
	Image       string   `json:"image,omitempty"`
}

func toSummary(p Post) summary {
	return summary{
		Slug:        p.Slug,
		Title:       p.Title,
		Description: p.Description,
		Date:        p.Date,
		Category:    p.Category,
		Tags:        p.Tags,
		Author:      p.Author,
		ReadTime:    p.ReadTime,
		Featured:    p.Featured,
		Breaking:    p.Breaking,
		Summary:     p.Summary,
		Image:       p.Image,
	}
}

func toSummaries(posts []Post) []summary {
	out := make([]summary, len(posts))
	for i, p := range posts {
		out[i] = toSummary(p)
	}
	return out
}
