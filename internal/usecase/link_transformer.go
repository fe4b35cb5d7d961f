package usecase

import (
	"net/url"
	"strings"

	"telegram-link-gateway/internal/domain"
	"telegram-link-gateway/internal/domain/model"
)

// Compile-time check
var _ LinkTransformer = (*linkTransformer)(nil)

// LinkTransformer rewrites a resource link into playback-proxy links and a bot re-entry link.
type LinkTransformer interface {
	Transform(raw string) (*model.TransformedLink, error)
	// FromResourceID rebuilds the source link for a shared resource id and transforms it.
	FromResourceID(id string) (*model.TransformedLink, error)
}

type linkTransformer struct {
	templates   []string
	sourceBase  string
	botUsername string
}

// NewLinkTransformer takes playback templates containing {url} and/or {id} placeholders.
func NewLinkTransformer(templates []string, shareSourceBase, botUsername string) *linkTransformer {
	return &linkTransformer{
		templates:   append([]string(nil), templates...),
		sourceBase:  shareSourceBase,
		botUsername: botUsername,
	}
}

func (t *linkTransformer) Transform(raw string) (*model.TransformedLink, error) {
	raw = strings.TrimSpace(raw)
	lower := strings.ToLower(raw)
	if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
		return nil, domain.ErrNotALink
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return nil, domain.ErrNotALink
	}
	id := resourceID(u)
	if id == "" {
		return nil, domain.ErrNotALink
	}

	escapedURL := queryEscape(raw)
	escapedID := url.PathEscape(id)
	links := make([]string, 0, len(t.templates))
	for _, tpl := range t.templates {
		links = append(links, strings.NewReplacer("{url}", escapedURL, "{id}", escapedID).Replace(tpl))
	}

	return &model.TransformedLink{
		Original:      raw,
		ResourceID:    id,
		PlaybackLinks: links,
		ShareLink:     DeepLink(t.botUsername, PayloadResourcePrefix+id),
	}, nil
}

func (t *linkTransformer) FromResourceID(id string) (*model.TransformedLink, error) {
	id = strings.TrimSpace(id)
	if id == "" || strings.ContainsAny(id, "/?#") {
		return nil, domain.ErrInvalidArgument
	}
	return t.Transform(t.sourceBase + url.PathEscape(id))
}

// resourceID is the last non-empty path segment, or the surl query parameter for /sharing/link?surl= links.
func resourceID(u *url.URL) string {
	segments := strings.Split(u.EscapedPath(), "/")
	for i := len(segments) - 1; i >= 0; i-- {
		if segments[i] == "" {
			continue
		}
		seg, err := url.PathUnescape(segments[i])
		if err != nil {
			seg = segments[i]
		}
		if seg != "link" {
			return seg
		}
		break
	}
	return u.Query().Get("surl")
}

// queryEscape escapes every reserved character and encodes spaces as %20.
func queryEscape(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}
