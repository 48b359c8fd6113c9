package post

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/techknowlogia/core/internal/modules/processing/markdown"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

var articleExtensions = []string{".mdx", ".md"}

// Library holds every article found under a content directory, newest first.
// It is safe for concurrent use; Reload swaps the whole set at once.
type Library struct {
	dir    string
	logger *zap.Logger

	mu    sync.RWMutex
	posts []Post
}

func NewLibrary(dir string, logger *zap.Logger) *Library {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Library{dir: dir, logger: logger.Named("ContentLibrary")}
}

// Reload rereads the content directory. A missing directory yields an empty
// library. Articles that fail to parse are logged and skipped.
func (l *Library) Reload(ctx context.Context) error {
	var posts []Post
	for _, category := range Categories {
		if err := ctx.Err(); err != nil {
			return err
		}
		loaded, err := l.loadCategory(category)
		if err != nil {
			return err
		}
		posts = append(posts, loaded...)
	}
	sortNewestFirst(posts)

	l.mu.Lock()
	l.posts = posts
	l.mu.Unlock()

	l.logger.Info("content loaded", zap.String("dir", l.dir), zap.Int("posts", len(posts)))
	return nil
}

func (l *Library) loadCategory(category string) ([]Post, error) {
	entries, err := os.ReadDir(filepath.Join(l.dir, category))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read category %s: %w", category, err)
	}

	var posts []Post
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		slug, ok := articleSlug(entry.Name())
		if !ok {
			continue
		}
		path := filepath.Join(l.dir, category, entry.Name())
		p, err := LoadFile(path, slug, category)
		if err != nil {
			l.logger.Warn("skip article", zap.String("path", path), zap.Error(err))
			continue
		}
		posts = append(posts, p)
	}
	return posts, nil
}

func articleSlug(name string) (string, bool) {
	for _, ext := range articleExtensions {
		if strings.HasSuffix(name, ext) {
			return strings.TrimSuffix(name, ext), true
		}
	}
	return "", false
}

// LoadFile parses and renders one article file.
func LoadFile(path, slug, category string) (Post, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Post{}, err
	}
	return Parse(raw, slug, category)
}

// Parse builds a Post from raw file contents. The category directory is used
// when the front matter does not name one.
func Parse(raw []byte, slug, category string) (Post, error) {
	front, body := markdown.SplitFrontmatter(raw)

	var fm Frontmatter
	if len(front) > 0 {
		// Normalize before decoding so every string field is repaired.
		if err := yaml.Unmarshal([]byte(markdown.NormalizeEncoding(string(front))), &fm); err != nil {
			return Post{}, fmt.Errorf("front matter: %w", err)
		}
	}

	cleaned := markdown.StripEditorialBlocks(markdown.NormalizeEncoding(body))

	p := Post{
		Slug:        slug,
		Title:       fm.Title,
		Description: fm.Description,
		Content:     markdown.RenderMarkdownContent(cleaned),
		Date:        fm.Date,
		PublishedAt: markdown.ParseTime(fm.Date),
		Category:    firstNonEmpty(fm.Category, category),
		Tags:        fm.Tags,
		Author:      Author{Name: DefaultAuthor},
		ReadTime:    markdown.ReadingTime(cleaned),
		Featured:    fm.Featured,
		Priority:    fm.Priority,
		Breaking:    fm.Breaking,
		Summary:     fm.Summary,
		Image:       fm.Image,
		SEO:         fm.SEO,
	}
	if fm.Author != nil && fm.Author.Name != "" {
		p.Author = *fm.Author
	}
	if p.Tags == nil {
		p.Tags = []string{}
	}
	return p, nil
}

// All returns every post, newest first.
func (l *Library) All() []Post {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]Post(nil), l.posts...)
}

// ByCategory returns posts whose category matches, newest first.
func (l *Library) ByCategory(category string) []Post {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []Post
	for _, p := range l.posts {
		if p.Category == category {
			out = append(out, p)
		}
	}
	return out
}

// Get finds one post by category and slug.
func (l *Library) Get(category, slug string) (Post, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, p := range l.posts {
		if p.Category == category && p.Slug == slug {
			return p, true
		}
	}
	return Post{}, false
}

// Featured returns at most limit featured posts, newest first.
func (l *Library) Featured(limit int) []Post {
	var out []Post
	for _, p := range l.All() {
		if len(out) == limit {
			break
		}
		if p.Featured {
			out = append(out, p)
		}
	}
	return out
}

// Related returns posts from the same category ranked by shared tags.
func (l *Library) Related(current Post, limit int) []Post {
	tags := make(map[string]struct{}, len(current.Tags))
	for _, t := range current.Tags {
		tags[t] = struct{}{}
	}
	shared := func(p Post) int {
		n := 0
		for _, t := range p.Tags {
			if _, ok := tags[t]; ok {
				n++
			}
		}
		return n
	}

	var candidates []Post
	for _, p := range l.ByCategory(current.Category) {
		if p.Slug != current.Slug {
			candidates = append(candidates, p)
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return shared(candidates[i]) > shared(candidates[j])
	})
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	return candidates
}

// Tags returns every distinct tag, sorted.
func (l *Library) Tags() []string {
	seen := map[string]struct{}{}
	for _, p := range l.All() {
		for _, t := range p.Tags {
			seen[t] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for t := range seen {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

func sortNewestFirst(posts []Post) {
	sort.SliceStable(posts, func(i, j int) bool {
		return posts[i].PublishedAt.After(posts[j].PublishedAt)
	})
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
