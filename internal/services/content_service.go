package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	domain "github.com/eventpass/api/internal/domain"
	"github.com/eventpass/api/internal/repositories"
)

const maxContentBodyLength = 64 * 1024

var (
	// ErrContentInvalidInput signals a malformed content key or body.
	ErrContentInvalidInput = errors.New("content: invalid input")
	// ErrContentNotFound indicates no block exists for the key in any language.
	ErrContentNotFound = errors.New("content: not found")

	contentKeyPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{0,63}$`)
)

// ContentServiceDeps bundles collaborators required to construct the content service.
type ContentServiceDeps struct {
	Content repositories.SiteContentRepository
	Clock   func() time.Time
	Logger  func(ctx context.Context, event string, fields map[string]any)
}

type contentService struct {
	content  repositories.SiteContentRepository
	markdown goldmark.Markdown
	policy   *bluemonday.Policy
	clock    func() time.Time
	logger   func(context.Context, string, map[string]any)
}

var _ ContentService = (*contentService)(nil)

// NewContentService wires dependencies into the content service.
func NewContentService(deps ContentServiceDeps) (ContentService, error) {
	if deps.Content == nil {
		return nil, errors.New("content service: site content repository is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = discardEvent
	}
	policy := bluemonday.UGCPolicy()
	policy.RequireNoFollowOnLinks(true)
	policy.AddTargetBlankToFullyQualifiedLinks(true)

	return &contentService{
		content:  deps.Content,
		markdown: goldmark.New(goldmark.WithExtensions(extension.GFM)),
		policy:   policy,
		clock:    func() time.Time { return clock().UTC() },
		logger:   logger,
	}, nil
}

// GetContent returns the block in the requested language, falling back to the other one.
func (s *contentService) GetContent(ctx context.Context, key, lang string) (RenderedContent, error) {
	key, err := normaliseContentKey(key)
	if err != nil {
		return RenderedContent{}, err
	}
	lang = domain.NormalizeLang(lang)

	block, err := s.content.Get(ctx, key, lang)
	if err != nil && notFound(err) {
		block, err = s.content.Get(ctx, key, otherLang(lang))
	}
	if err != nil {
		if notFound(err) {
			return RenderedContent{}, fmt.Errorf("%w: %s", ErrContentNotFound, key)
		}
		return RenderedContent{}, err
	}
	return s.render(block)
}

func (s *contentService) UpsertContent(ctx context.Context, cmd UpsertContentCommand) (RenderedContent, error) {
	key, err := normaliseContentKey(cmd.Key)
	if err != nil {
		return RenderedContent{}, err
	}
	body := strings.TrimSpace(cmd.Body)
	if body == "" {
		return RenderedContent{}, fmt.Errorf("%w: body is required", ErrContentInvalidInput)
	}
	if len(body) > maxContentBodyLength {
		return RenderedContent{}, fmt.Errorf("%w: body exceeds %d bytes", ErrContentInvalidInput, maxContentBodyLength)
	}

	block := SiteContent{
		Key:       key,
		Lang:      domain.NormalizeLang(cmd.Lang),
		Title:     strings.TrimSpace(cmd.Title),
		Body:      body,
		UpdatedAt: s.clock(),
		UpdatedBy: strings.TrimSpace(cmd.ActorID),
	}
	rendered, err := s.render(block)
	if err != nil {
		return RenderedContent{}, err
	}
	if err := s.content.Upsert(ctx, block); err != nil {
		return RenderedContent{}, err
	}
	s.logger(ctx, "content.updated", map[string]any{"key": key, "lang": block.Lang, "actorId": block.UpdatedBy})
	return rendered, nil
}

func (s *contentService) render(block SiteContent) (RenderedContent, error) {
	var buf bytes.Buffer
	if err := s.markdown.Convert([]byte(block.Body), &buf); err != nil {
		return RenderedContent{}, fmt.Errorf("content: render %s: %w", block.Key, err)
	}
	return RenderedContent{SiteContent: block, HTML: s.policy.Sanitize(buf.String())}, nil
}

func normaliseContentKey(key string) (string, error) {
	key = strings.ToLower(strings.TrimSpace(key))
	if !contentKeyPattern.MatchString(key) {
		return "", fmt.Errorf("%w: invalid content key %q", ErrContentInvalidInput, key)
	}
	return key, nil
}

func otherLang(lang string) string {
	if lang == "fr" {
		return "en"
	}
	return "fr"
}
