package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	domain "github.com/eventpass/api/internal/domain"
)

type memoryContentRepo struct {
	blocks  map[string]domain.SiteContent
	upserts int
}

func (r *memoryContentRepo) Get(_ context.Context, key, lang string) (domain.SiteContent, error) {
	block, ok := r.blocks[key+"/"+lang]
	if !ok {
		return domain.SiteContent{}, stubRepositoryError{notFound: true}
	}
	return block, nil
}

func (r *memoryContentRepo) Upsert(_ context.Context, block domain.SiteContent) error {
	if r.blocks == nil {
		r.blocks = map[string]domain.SiteContent{}
	}
	r.upserts++
	r.blocks[block.Key+"/"+block.Lang] = block
	return nil
}

func newContentService(t *testing.T, repo *memoryContentRepo) ContentService {
	t.Helper()
	svc, err := NewContentService(ContentServiceDeps{
		Content: repo,
		Clock:   func() time.Time { return time.Date(2025, 2, 1, 12, 0, 0, 0, time.UTC) },
	})
	if err != nil {
		t.Fatalf("NewContentService: %v", err)
	}
	return svc
}

func TestContentServiceUpsertRendersAndSanitises(t *testing.T) {
	repo := &memoryContentRepo{}
	svc := newContentService(t, repo)

	rendered, err := svc.UpsertContent(context.Background(), UpsertContentCommand{
		Key:     "About",
		Lang:    "fr-TN",
		Title:   "Qui sommes-nous",
		Body:    "# Bienvenue\n\nVoir [le site](https://eventpass.tn).\n\n<script>alert(1)</script>\n\n| a | b |\n|---|---|\n| 1 | 2 |",
		ActorID: "adm-1",
	})
	if err != nil {
		t.Fatalf("UpsertContent: %v", err)
	}
	if rendered.Key != "about" || rendered.Lang != "fr" {
		t.Fatalf("expected normalised key/lang, got %s/%s", rendered.Key, rendered.Lang)
	}
	if !strings.Contains(rendered.HTML, "<h1") || !strings.Contains(rendered.HTML, "<table>") {
		t.Fatalf("expected rendered markdown, got %s", rendered.HTML)
	}
	if strings.Contains(rendered.HTML, "<script") {
		t.Fatalf("expected script to be stripped, got %s", rendered.HTML)
	}
	if !strings.Contains(rendered.HTML, "nofollow") {
		t.Fatalf("expected nofollow links, got %s", rendered.HTML)
	}
	if repo.upserts != 1 || repo.blocks["about/fr"].UpdatedBy != "adm-1" {
		t.Fatalf("unexpected store state %+v", repo.blocks)
	}
}

func TestContentServiceGetFallsBackToOtherLanguage(t *testing.T) {
	repo := &memoryContentRepo{blocks: map[string]domain.SiteContent{
		"faq/fr": {Key: "faq", Lang: "fr", Body: "Bonjour"},
	}}
	svc := newContentService(t, repo)

	block, err := svc.GetContent(context.Background(), "faq", "en")
	if err != nil {
		t.Fatalf("GetContent: %v", err)
	}
	if block.Lang != "fr" || !strings.Contains(block.HTML, "Bonjour") {
		t.Fatalf("expected french fallback, got %+v", block)
	}

	if _, err := svc.GetContent(context.Background(), "terms", "en"); !errors.Is(err, ErrContentNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestContentServiceRejectsInvalidInput(t *testing.T) {
	repo := &memoryContentRepo{}
	svc := newContentService(t, repo)
	cases := map[string]UpsertContentCommand{
		"bad key":    {Key: "../etc", Body: "x"},
		"empty body": {Key: "about", Body: "  "},
		"huge body":  {Key: "about", Body: strings.Repeat("a", maxContentBodyLength+1)},
	}
	for name, cmd := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := svc.UpsertContent(context.Background(), cmd); !errors.Is(err, ErrContentInvalidInput) {
				t.Fatalf("expected invalid input, got %v", err)
			}
		})
	}
	if repo.upserts != 0 {
		t.Fatalf("expected no writes, got %d", repo.upserts)
	}
}
