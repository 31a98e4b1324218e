package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xotten/portfolio/internal/catalog"
	"github.com/xotten/portfolio/internal/contact"
	"github.com/xotten/portfolio/internal/domain"
	"github.com/xotten/portfolio/internal/gallery"
	"github.com/xotten/portfolio/internal/platform/session"
)

type fakeCatalog struct {
	items  []domain.Artwork
	source catalog.Source
}

func (f fakeCatalog) Items() []domain.Artwork { return f.items }
func (f fakeCatalog) Source() catalog.Source  { return f.source }

type recordingSubmitter struct {
	mu   sync.Mutex
	subs []contact.Submission
	err  error
}

func (r *recordingSubmitter) Submit(_ context.Context, s contact.Submission) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.subs = append(r.subs, s)
	return nil
}

func year(y int) *int { return &y }

func sampleItems() []domain.Artwork {
	return []domain.Artwork{
		{ID: "a1", Title: "Morning Field", Size: "30x40", Price: "$400", Image: "https://img.example/a1.jpg", Tags: []string{"green", "nature"}},
		{ID: "a2", Title: "Dusk Study", Price: "$900", Sold: true, Image: "https://img.example/a2.jpg", Tags: []string{"abstract"}},
		{ID: "a3", Title: "Harbour Blue", Year: year(2021), Media: "oil", Price: "$650", Image: "https://img.example/a3.jpg", Tags: []string{"sea", "Abstract"}},
	}
}

type site struct {
	t      *testing.T
	srv    *httptest.Server
	client *http.Client
}

func newSite(t *testing.T, deps Deps) *site {
	t.Helper()
	if deps.Catalog == nil {
		deps.Catalog = fakeCatalog{items: sampleItems(), source: catalog.SourceFeed}
	}
	if deps.OwnerSecret == "" {
		deps.OwnerSecret = "universe"
	}
	h, err := New(deps)
	require.NoError(t, err)
	srv := httptest.NewServer(NewRouter(h, session.NewManager(session.WithSigningKey("test-signing-key")), nil))
	t.Cleanup(srv.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	client := &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	return &site{t: t, srv: srv, client: client}
}

func (s *site) get(path string) (*http.Response, *goquery.Document) {
	s.t.Helper()
	res, err := s.client.Get(s.srv.URL + path)
	require.NoError(s.t, err)
	defer res.Body.Close()
	doc, err := goquery.NewDocumentFromReader(res.Body)
	require.NoError(s.t, err)
	return res, doc
}

func (s *site) csrf() string {
	s.t.Helper()
	_, doc := s.get("/about")
	token, ok := doc.Find(`input[name="csrf_token"]`).First().Attr("value")
	require.True(s.t, ok, "csrf token rendered")
	require.NotEmpty(s.t, token)
	return token
}

func (s *site) post(path string, form url.Values) (*http.Response, *goquery.Document) {
	s.t.Helper()
	if form.Get(session.CSRFField) == "" {
		form.Set(session.CSRFField, s.csrf())
	}
	res, err := s.client.PostForm(s.srv.URL+path, form)
	require.NoError(s.t, err)
	defer res.Body.Close()
	doc, err := goquery.NewDocumentFromReader(res.Body)
	require.NoError(s.t, err)
	return res, doc
}

func cardIDs(doc *goquery.Document) []string {
	var ids []string
	doc.Find(".grid figure.card").Each(func(_ int, sel *goquery.Selection) {
		id, _ := sel.Attr("data-id")
		ids = append(ids, id)
	})
	return ids
}

func TestHomeListsAvailableWorks(t *testing.T) {
	s := newSite(t, Deps{})
	res, doc := s.get("/")
	require.Equal(t, http.StatusOK, res.StatusCode)

	assert.Equal(t, []string{"a1", "a3"}, cardIDs(doc))
	assert.Equal(t, 0, doc.Find(".price").Length(), "prices are hidden for visitors")
	assert.Equal(t, 0, doc.Find(".ribbon").Length())

	caption := doc.Find(`figure[data-id="a1"] figcaption`)
	assert.Equal(t, "Morning Field · 30x40", strings.TrimSpace(caption.Text()))
	style, _ := caption.Attr("style")
	assert.Contains(t, style, gallery.CaptionGreen)

	var tags []string
	doc.Find(`select[name="tag"] option`).Each(func(_ int, sel *goquery.Selection) {
		v, _ := sel.Attr("value")
		tags = append(tags, v)
	})
	assert.Equal(t, []string{"all", "abstract", "green", "nature", "sea"}, tags)
	assert.Equal(t, "/", doc.Find("nav a.active").AttrOr("href", ""))
	assert.Contains(t, doc.Find(".site-footer").Text(), "xotten")
}

func TestPortfolioListsSoldWorks(t *testing.T) {
	s := newSite(t, Deps{})
	_, doc := s.get("/portfolio")
	assert.Equal(t, []string{"a2"}, cardIDs(doc))
	assert.Equal(t, 0, doc.Find(".ribbon").Length(), "sold ribbon needs owner mode")
}

func TestGalleryFiltersAndEmptyState(t *testing.T) {
	s := newSite(t, Deps{})

	_, doc := s.get("/?tag=ABSTRACT")
	assert.Equal(t, []string{"a3"}, cardIDs(doc))
	href, _ := doc.Find(".grid a.tile").First().Attr("href")
	assert.Equal(t, "/home/view/0?tag=ABSTRACT", href)

	_, doc = s.get("/?q=OIL")
	assert.Equal(t, []string{"a3"}, cardIDs(doc))
	assert.Equal(t, "OIL", doc.Find(`input[name="q"]`).AttrOr("value", ""))

	_, doc = s.get("/?q=field&tag=sea")
	assert.Empty(t, cardIDs(doc))
	assert.Equal(t, "No works match your filters.", strings.TrimSpace(doc.Find(".empty").Text()))
}

func TestLightboxNavigation(t *testing.T) {
	s := newSite(t, Deps{})

	res, doc := s.get("/home/view/0")
	require.Equal(t, http.StatusOK, res.StatusCode)
	box := doc.Find(".lightbox")
	require.Equal(t, 1, box.Length())
	assert.Equal(t, "a1", box.Find("figure.card").AttrOr("data-id", ""))
	assert.Equal(t, "/home/view/1", box.Find("a.next").AttrOr("href", ""))
	assert.Equal(t, "/home/view/1", box.Find("a.prev").AttrOr("href", ""))
	assert.Equal(t, "/", box.Find("a.close").AttrOr("href", ""))
	assert.Equal(t, "1 / 2", strings.TrimSpace(box.Find(".position").Text()))
	assert.Equal(t, "/art/a1", box.Find("a.permalink").AttrOr("href", ""))
	assert.Equal(t, "https://img.example/a3.jpg", doc.Find(`link[rel="prefetch"]`).AttrOr("href", ""))

	_, doc = s.get("/home/view/1")
	assert.Equal(t, "a3", doc.Find(".lightbox figure.card").AttrOr("data-id", ""))
	assert.Equal(t, "/home/view/0", doc.Find(".lightbox a.next").AttrOr("href", ""), "next wraps")

	_, doc = s.get("/portfolio/view/0?q=dusk")
	assert.Equal(t, "a2", doc.Find(".lightbox figure.card").AttrOr("data-id", ""))
	assert.Equal(t, "/portfolio?q=dusk", doc.Find(".lightbox a.close").AttrOr("href", ""))
	assert.Equal(t, 0, doc.Find(`link[rel="prefetch"]`).Length(), "a single work has no neighbours to warm")
}

func TestLightboxOutOfRangeRedirects(t *testing.T) {
	s := newSite(t, Deps{})
	for path, want := range map[string]string{
		"/home/view/7":              "/",
		"/home/view/-1":             "/",
		"/portfolio/view/x?tag=oil": "/portfolio?tag=oil",
	} {
		res, _ := s.get(path)
		assert.Equal(t, http.StatusSeeOther, res.StatusCode, path)
		assert.Equal(t, want, res.Header.Get("Location"), path)
	}
	res, _ := s.get("/about/view/0")
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
}

func TestDetailPage(t *testing.T) {
	s := newSite(t, Deps{})
	res, doc := s.get("/art/a3")
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "Harbour Blue", strings.TrimSpace(doc.Find(".detail h1").Text()))
	assert.Contains(t, doc.Find(".detail dl").Text(), "2021")
	assert.Equal(t, "/?tag=sea", doc.Find(".detail .tags a").First().AttrOr("href", ""))

	res, _ = s.get("/art/missing")
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
}

func TestOwnerQueryUnlockPersists(t *testing.T) {
	s := newSite(t, Deps{})
	_, doc := s.get("/portfolio?owner=%20Universe%20")
	assert.Equal(t, "Sold", strings.TrimSpace(doc.Find(`figure[data-id="a2"] .ribbon`).Text()))
	assert.Equal(t, "$900", strings.TrimSpace(doc.Find(`figure[data-id="a2"] .price`).Text()))

	_, doc = s.get("/")
	assert.Equal(t, 1, doc.Find(".owner-badge").Length(), "flag survives without the query parameter")
	assert.Equal(t, 0, doc.Find("form.owner-unlock").Length())
}

func TestOwnerPromptUnlock(t *testing.T) {
	s := newSite(t, Deps{})

	res, _ := s.post("/owner/unlock", url.Values{"secret": {"galaxy"}, "return": {"/portfolio"}})
	require.Equal(t, http.StatusSeeOther, res.StatusCode)
	assert.Equal(t, "/portfolio", res.Header.Get("Location"))
	_, doc := s.get("/portfolio")
	assert.Equal(t, 0, doc.Find(".owner-badge").Length())
	assert.Equal(t, "That passphrase did not match.", strings.TrimSpace(doc.Find(`.notice[role="alert"]`).Text()))

	_, doc = s.get("/portfolio")
	assert.Equal(t, 0, doc.Find(".notice").Length(), "the mismatch notice shows once")

	res, _ = s.post("/owner/unlock", url.Values{"secret": {"UNIVERSE"}, "return": {"//evil.example"}})
	require.Equal(t, http.StatusSeeOther, res.StatusCode)
	assert.Equal(t, "/", res.Header.Get("Location"))
	_, doc = s.get("/")
	assert.Equal(t, 1, doc.Find(".owner-badge").Length())
	assert.Equal(t, 0, doc.Find(".notice").Length())
	assert.Equal(t, "$400", strings.TrimSpace(doc.Find(`figure[data-id="a1"] .price`).Text()))
}

func TestOwnerUnlockRateLimited(t *testing.T) {
	s := newSite(t, Deps{UnlockPerMinute: 2})
	token := s.csrf()
	for i := 0; i < 2; i++ {
		res, _ := s.post("/owner/unlock", url.Values{"secret": {"nope"}, session.CSRFField: {token}})
		require.Equal(t, http.StatusSeeOther, res.StatusCode)
	}
	res, _ := s.post("/owner/unlock", url.Values{"secret": {"universe"}, session.CSRFField: {token}})
	assert.Equal(t, http.StatusTooManyRequests, res.StatusCode)
}

func TestUnlockThrottleSlidingWindow(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l := newUnlockThrottle(2, time.Minute, func() time.Time { return now })
	assert.True(t, l.Allow("v", "10.0.0.1:5000"))
	now = now.Add(40 * time.Second)
	assert.True(t, l.Allow("v", "10.0.0.1:5001"))
	assert.False(t, l.Allow("v", "10.0.0.1:5002"))

	// The first attempt ages out while the second still counts.
	now = now.Add(21 * time.Second)
	assert.True(t, l.Allow("v", "10.0.0.1:5003"))
	assert.False(t, l.Allow("v", "10.0.0.1:5004"))
}

func TestUnlockThrottleKeysOnVisitorAndAddress(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l := newUnlockThrottle(1, time.Minute, func() time.Time { return now })
	assert.True(t, l.Allow("v", "10.0.0.1:5000"))
	assert.False(t, l.Allow("v", "10.0.0.1:6000"), "port is not part of the key")
	assert.True(t, l.Allow("v", "10.0.0.2:5000"))
	assert.True(t, l.Allow("other", "10.0.0.1:5000"))
	assert.True(t, l.Allow("", "10.0.0.9"))
	assert.False(t, l.Allow(" ", "10.0.0.9"))
	assert.Equal(t, "anonymous|203.0.113.4", throttleKey("", "203.0.113.4:443"))
}

func TestUnsafeRequestsNeedCSRFToken(t *testing.T) {
	s := newSite(t, Deps{})
	res, err := s.client.PostForm(s.srv.URL+"/codex", url.Values{"text": {"hi"}})
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusForbidden, res.StatusCode)
}

func TestDensityPreference(t *testing.T) {
	s := newSite(t, Deps{})
	_, doc := s.get("/")
	assert.True(t, doc.Find("body").HasClass("density-comfortable"))

	res, _ := s.post("/prefs/density", url.Values{"density": {"compact"}, "return": {"/portfolio"}})
	require.Equal(t, http.StatusSeeOther, res.StatusCode)
	assert.Equal(t, "/portfolio", res.Header.Get("Location"))

	_, doc = s.get("/portfolio")
	assert.True(t, doc.Find("body").HasClass("density-compact"))

	res, _ = s.post("/prefs/density", url.Values{"density": {"dense"}})
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
}

func TestAboutAndContactContent(t *testing.T) {
	s := newSite(t, Deps{})
	_, doc := s.get("/about")
	assert.Contains(t, doc.Find("article.page-about").Text(), "Painterly experiments in color, texture, and atmosphere.")

	_, doc = s.get("/contact")
	assert.Equal(t, "mailto:hello@xotten.com", doc.Find(`article.page-contact a[href^="mailto:"]`).AttrOr("href", ""))
	assert.Equal(t, "idle", doc.Find("section.contact").AttrOr("data-status", ""))
}

func TestContactSubmit(t *testing.T) {
	sub := &recordingSubmitter{}
	s := newSite(t, Deps{Contact: sub})

	res, doc := s.post("/contact", url.Values{"name": {" "}, "email": {"not-an-email"}, "message": {"hi"}})
	assert.Equal(t, http.StatusUnprocessableEntity, res.StatusCode)
	assert.Equal(t, 1, doc.Find(`.field-error[data-field="name"]`).Length())
	assert.Equal(t, 1, doc.Find(`.field-error[data-field="email"]`).Length())
	assert.Equal(t, "hi", doc.Find(`textarea[name="message"]`).Text())

	res, doc = s.post("/contact", url.Values{"name": {"Ada"}, "email": {"ada@example.com"}, "message": {"Is Dusk Study available?"}})
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "sent", doc.Find("section.contact").AttrOr("data-status", ""))
	assert.Equal(t, noticeSent, strings.TrimSpace(doc.Find(".notice").Text()))
	require.Len(t, sub.subs, 1)
	assert.Equal(t, "ada@example.com", sub.subs[0].Email)
	assert.NotEmpty(t, sub.subs[0].ID)
}

func TestContactDeliveryFailures(t *testing.T) {
	s := newSite(t, Deps{})
	form := url.Values{"name": {"Ada"}, "email": {"ada@example.com"}, "message": {"hello"}}
	res, doc := s.post("/contact", form)
	assert.Equal(t, http.StatusServiceUnavailable, res.StatusCode)
	assert.Equal(t, "error", doc.Find("section.contact").AttrOr("data-status", ""))
	assert.Equal(t, noticeUnavailable, strings.TrimSpace(doc.Find(".notice").Text()))

	failing := newSite(t, Deps{Contact: &recordingSubmitter{err: errors.New("endpoint down")}})
	res, doc = failing.post("/contact", url.Values{"name": {"Ada"}, "email": {"ada@example.com"}, "message": {"hello"}})
	assert.Equal(t, http.StatusBadGateway, res.StatusCode)
	assert.Equal(t, noticeFailed, strings.TrimSpace(doc.Find(".notice").Text()))
	assert.Equal(t, "hello", doc.Find(`textarea[name="message"]`).Text(), "input is kept for resubmission")
}

func TestCodexThread(t *testing.T) {
	s := newSite(t, Deps{})
	_, doc := s.get("/codex")
	require.Equal(t, 1, doc.Find(".thread li").Length())
	assert.Equal(t, "Welcome to Codex. Share your thoughts here.", strings.TrimSpace(doc.Find(".thread li.role-studio .text").Text()))

	res, _ := s.post("/codex", url.Values{"text": {"  <b>Lovely</b> colours  "}})
	require.Equal(t, http.StatusSeeOther, res.StatusCode)
	assert.Equal(t, "/codex", res.Header.Get("Location"))

	_, doc = s.get("/codex")
	require.Equal(t, 2, doc.Find(".thread li").Length())
	assert.Equal(t, "Lovely colours", strings.TrimSpace(doc.Find(".thread li.role-user .text").Text()))

	res, doc = s.post("/codex", url.Values{"text": {"   "}})
	assert.Equal(t, http.StatusUnprocessableEntity, res.StatusCode)
	assert.Equal(t, 1, doc.Find(".notice-error").Length())

	res, _ = s.post("/codex", url.Values{"text": {"Thanks!"}, "role": {"studio"}})
	assert.Equal(t, http.StatusForbidden, res.StatusCode)

	other := newSite(t, Deps{})
	_, doc = other.get("/codex")
	assert.Equal(t, 1, doc.Find(".thread li").Length(), "threads are per visitor")
}

func TestCodexStudioReplyInOwnerMode(t *testing.T) {
	s := newSite(t, Deps{})
	s.get("/codex?owner=universe")
	res, _ := s.post("/codex", url.Values{"text": {"Thank you for visiting."}, "role": {"studio"}})
	require.Equal(t, http.StatusSeeOther, res.StatusCode)
	_, doc := s.get("/codex")
	assert.Equal(t, 2, doc.Find(".thread li.role-studio").Length())
}

func TestArtworksAPI(t *testing.T) {
	s := newSite(t, Deps{})
	res, err := s.client.Get(s.srv.URL + "/api/artworks?tag=abstract")
	require.NoError(t, err)
	defer res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)

	var body artworksResponse
	require.NoError(t, json.NewDecoder(res.Body).Decode(&body))
	assert.Equal(t, "feed", body.Source)
	require.Equal(t, 2, body.Count)
	assert.Equal(t, "a3", body.Items[0].ID, "available works come first")
	assert.Equal(t, "a2", body.Items[1].ID)
	assert.Empty(t, body.Items[0].Price)
	assert.Nil(t, body.Items[0].Sold)

	res2, err := s.client.Get(s.srv.URL + "/api/artworks?sold=sold&owner=universe")
	require.NoError(t, err)
	defer res2.Body.Close()
	var owned artworksResponse
	require.NoError(t, json.NewDecoder(res2.Body).Decode(&owned))
	require.Equal(t, 1, owned.Count)
	assert.Equal(t, "$900", owned.Items[0].Price)
	require.NotNil(t, owned.Items[0].Sold)
	assert.True(t, *owned.Items[0].Sold)

	res3, err := s.client.Get(s.srv.URL + "/api/artworks?sold=maybe")
	require.NoError(t, err)
	res3.Body.Close()
	assert.Equal(t, http.StatusBadRequest, res3.StatusCode)
}

func TestTagsAPIAndHealthz(t *testing.T) {
	s := newSite(t, Deps{Catalog: fakeCatalog{items: sampleItems(), source: catalog.SourceFallback}})
	res, err := s.client.Get(s.srv.URL + "/api/tags")
	require.NoError(t, err)
	defer res.Body.Close()
	var body map[string][]string
	require.NoError(t, json.NewDecoder(res.Body).Decode(&body))
	assert.Equal(t, []string{"all", "abstract", "green", "nature", "sea"}, body["tags"])

	hres, err := s.client.Get(s.srv.URL + "/healthz")
	require.NoError(t, err)
	hres.Body.Close()
	assert.Equal(t, http.StatusOK, hres.StatusCode)
	assert.Equal(t, "fallback", hres.Header.Get("X-Catalog-Source"))
}

func TestNewRequiresCatalog(t *testing.T) {
	_, err := New(Deps{})
	require.ErrorIs(t, err, errNoCatalog)
}

func TestLocalPath(t *testing.T) {
	assert.Equal(t, "/portfolio?q=x", localPath("/portfolio?q=x", "/"))
	assert.Equal(t, "/", localPath("https://evil.example", "/"))
	assert.Equal(t, "/", localPath("//evil.example", "/"))
	assert.Equal(t, "/", localPath(`/\evil.example`, "/"))
	assert.Equal(t, "/", localPath("", "/"))
}
