//go:build !integration

package usecase_test

import (
	"errors"
	"net/url"
	"strings"
	"testing"

	"telegram-link-gateway/internal/config"
	"telegram-link-gateway/internal/domain"
	"telegram-link-gateway/internal/usecase"
)

func newTestTransformer() usecase.LinkTransformer {
	return usecase.NewLinkTransformer(config.DefaultPlaybackTemplates, "https://teraboxapp.com/s/", "stream_bot")
}

func TestLinkTransformer_Transform(t *testing.T) {
	tr := newTestTransformer()

	t.Run("should reject non links", func(t *testing.T) {
		for _, in := range []string{"not-a-url", "", "ftp://host/s/abc", "hello https://host/s/abc", "https://", "https:///s/abc"} {
			if _, err := tr.Transform(in); !errors.Is(err, domain.ErrNotALink) {
				t.Errorf("Transform(%q): expected ErrNotALink, got %v", in, err)
			}
		}
	})

	t.Run("should build playback and share links", func(t *testing.T) {
		in := "https://host/s/abc123"
		got, err := tr.Transform(in)
		if err != nil {
			t.Fatalf("Transform failed: %v", err)
		}
		if got.ResourceID != "abc123" {
			t.Errorf("expected resource id abc123, got %q", got.ResourceID)
		}
		if len(got.PlaybackLinks) != 2 {
			t.Fatalf("expected 2 playback links, got %d", len(got.PlaybackLinks))
		}
		escaped := url.QueryEscape(in)
		if got.PlaybackLinks[0] != "https://streamterabox.blogspot.com/?q="+escaped+"&m=0" {
			t.Errorf("unexpected first link %q", got.PlaybackLinks[0])
		}
		for _, l := range got.PlaybackLinks {
			if !strings.Contains(l, escaped) || !strings.Contains(l, "abc123") {
				t.Errorf("playback link %q does not embed the original", l)
			}
		}
		if got.ShareLink != "https://t.me/stream_bot?start=terabox-abc123" {
			t.Errorf("unexpected share link %q", got.ShareLink)
		}
	})

	t.Run("should trim whitespace and trailing slashes", func(t *testing.T) {
		got, err := tr.Transform("  HTTPS://host/s/xyz/  ")
		if err != nil {
			t.Fatal(err)
		}
		if got.ResourceID != "xyz" {
			t.Errorf("expected xyz, got %q", got.ResourceID)
		}
	})

	t.Run("should read surl from sharing links", func(t *testing.T) {
		got, err := tr.Transform("https://www.terabox.com/sharing/link?surl=q9w8e7")
		if err != nil {
			t.Fatal(err)
		}
		if got.ResourceID != "q9w8e7" {
			t.Errorf("expected q9w8e7, got %q", got.ResourceID)
		}
	})

	t.Run("should require a resource id", func(t *testing.T) {
		if _, err := tr.Transform("https://host/"); !errors.Is(err, domain.ErrNotALink) {
			t.Fatalf("expected ErrNotALink, got %v", err)
		}
	})

	t.Run("should support id placeholders", func(t *testing.T) {
		custom := usecase.NewLinkTransformer([]string{"https://player.example/{id}"}, "https://src/s/", "bot")
		got, err := custom.Transform("http://src/s/a%20b")
		if err != nil {
			t.Fatal(err)
		}
		if got.PlaybackLinks[0] != "https://player.example/a%20b" {
			t.Errorf("unexpected link %q", got.PlaybackLinks[0])
		}
	})
}

func TestLinkTransformer_FromResourceID(t *testing.T) {
	tr := newTestTransformer()

	got, err := tr.FromResourceID("abc123")
	if err != nil {
		t.Fatalf("FromResourceID failed: %v", err)
	}
	if got.Original != "https://teraboxapp.com/s/abc123" || got.ResourceID != "abc123" {
		t.Errorf("unexpected result %+v", got)
	}
	for _, bad := range []string{"", "a/b", "x?y=1"} {
		if _, err := tr.FromResourceID(bad); !errors.Is(err, domain.ErrInvalidArgument) {
			t.Errorf("FromResourceID(%q): expected ErrInvalidArgument, got %v", bad, err)
		}
	}
}
