package crawler

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"sjsage522/tcasworker/internal/render"
	"sjsage522/tcasworker/pkg/errors"
	"sjsage522/tcasworker/services/cache"
)

// Resolver turns the names carried by a FacultyMatch back into page URLs.
// Results are memoized in Cache when one is set; with a nil Cache every
// lookup visits the site again.
type Resolver struct {
	BaseCrawler
	Cache    cache.CacheService
	CacheTTL time.Duration
}

// UniversityURL finds the catalog URL of the university whose index entry
// text equals name exactly
func (r *Resolver) UniversityURL(ctx context.Context, page render.Page, name string) (string, error) {
	key := "university:" + name
	if url, ok := r.cached(key); ok {
		return url, nil
	}

	indexURL := r.Site.IndexURL()
	if err := r.visit(ctx, page, indexURL, r.Site.UniversityLink); err != nil {
		return "", err
	}

	for _, link := range page.QueryAll(ctx, r.Site.UniversityLink) {
		if linkText(link) != name {
			continue
		}
		h := href(link)
		if h == "" {
			continue
		}
		url, err := r.absoluteURL(h)
		if err != nil {
			return "", err
		}
		r.store(key, url)
		return url, nil
	}

	return "", errors.NewNoMatch(r.StageName, fmt.Sprintf("university %q not found on index", name))
}

// FacultyURL finds the faculty link on universityURL whose label carries
// code. The first matching link wins.
func (r *Resolver) FacultyURL(ctx context.Context, page render.Page, universityURL, code string) (string, error) {
	key := "faculty:" + universityURL + "#" + code
	if url, ok := r.cached(key); ok {
		return url, nil
	}

	if err := r.visit(ctx, page, universityURL, ""); err != nil {
		return "", err
	}
	if err := r.waitForAny(ctx, page, universityURL, r.Site.FacultyLink); err != nil {
		if errors.TypeOf(err) == errors.ErrorTypeSelectorTimeout {
			return "", errors.NewNoMatch(r.StageName, fmt.Sprintf("no faculty links on %s", universityURL))
		}
		return "", err
	}

	for _, link := range page.QueryAll(ctx, r.Site.FacultyLink) {
		c, ok := FacultyCode(linkText(link))
		h := href(link)
		if !ok || c != code || h == "" {
			continue
		}
		url, err := r.absoluteURL(h)
		if err != nil {
			return "", err
		}
		r.store(key, url)
		return url, nil
	}

	return "", errors.NewNoMatch(r.StageName, fmt.Sprintf("faculty code %s not found on %s", code, universityURL))
}

// cached returns the memoized URL for key. A cache failure other than a miss
// is logged and treated as a miss; the lookup then goes to the site.
func (r *Resolver) cached(key string) (string, bool) {
	url, err := r.lookup(key)
	if err == nil {
		return url, true
	}
	if !stderrors.Is(err, cache.ErrCacheMiss) {
		r.log().Warn().Err(err).Str("key", key).Msg("cache get failed")
	}
	return "", false
}

// lookup reads key from the cache: cache.ErrCacheMiss when absent or when
// no cache is set, a cache error for anything else
func (r *Resolver) lookup(key string) (string, error) {
	if r.Cache == nil {
		return "", cache.ErrCacheMiss
	}
	v, err := r.Cache.Get(key)
	if stderrors.Is(err, cache.ErrCacheMiss) {
		return "", err
	}
	if err != nil {
		return "", r.tag(errors.NewCache("get "+key, err))
	}
	return string(v), nil
}

// store memoizes url under key; failures are logged and dropped
func (r *Resolver) store(key, url string) {
	if r.Cache == nil {
		return
	}
	if err := r.Cache.Set(key, []byte(url), r.CacheTTL); err != nil {
		err = r.tag(errors.NewCache("set "+key, err))
		r.log().Warn().Err(err).Str("key", key).Msg("cache set failed")
	}
}
