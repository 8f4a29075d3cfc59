package crawler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"sjsage522/tcasworker/internal/render"
)

var fixturePages = map[string]string{
	"/universities": `<html><body>
		<a class="brand" href="/universities/A">A</a>
		<a class="brand" href="/universities/B">  University
			B </a>
		<a class="brand" href="/about">About</a>
	</body></html>`,

	"/universities/A": `<html><body>
		<a href="/universities/A/faculties/3">3. Faculty of Science</a>
		<a href="/universities/A/faculties/5">5. Faculty of Engineering</a>
		<a href="/universities/A/faculties/15">15. Faculty of Engineering Technology</a>
		<a href="/universities/A/faculties/5-dup">5. Faculty of Engineering (duplicate)</a>
	</body></html>`,

	"/universities/B": `<html><body><p>Coming soon</p></body></html>`,

	"/universities/A/faculties/5": `<html><body>
		<ul class="t-field">
			<li><a href="/fields/cs">Computer Science</a></li>
			<li><a href="/fields/civil">Civil Engineering</a></li>
			<li><a href="/fields/ics">Information and Computer Science</a></li>
			<li><a href="/fields/arts">Arts</a></li>
		</ul>
		<a href="/fields/outside">Computer Outside The List</a>
	</body></html>`,

	"/fields/cs": `<html><body>
		<ul class="t-program">
			<li><a href="/programs/1"><span class="name">Computer Science (Regular)</span> <small>Bachelor</small></a></li>
			<li><a href="programs/2">  Computer   Science
				(International) </a></li>
		</ul>
	</body></html>`,

	"/fields/empty": `<html><body><ul class="t-program"></ul></body></html>`,

	"/programs/1": `<html><body>
		<ul class="body t-program">
			<li id="r1"><small class="receive-quota">รับ <b>1,200</b> คน</small></li>
			<li id="r2"><span class="not-open">ไม่เปิดรับ</span><small class="receive-quota"><b>30</b></small></li>
			<li id="r3"><small class="receive-quota"><b>TBA</b></small></li>
		</ul>
		<ul class="related">
			<li id="r4"><small class="receive-quota"><b>99</b></small></li>
		</ul>
		<dl>
			<dt>Location</dt><dd>Bangkok</dd>
			<dt>Degree</dt><dd>B.Eng.</dd><dd>Computer Engineering</dd>
			<dt>Contact</dt><dd><dl><dt>Phone</dt><dd>02-000-0000</dd></dl></dd>
			<dt>ค่าใช้จ่าย</dt><dd>  25,000 บาท
				ต่อภาคการศึกษา </dd><dd>ชำระก่อนเปิดภาค</dd>
		</dl>
	</body></html>`,

	"/programs/2": `<html><body>
		<ul class="body t-program">
			<li id="r4"><small class="receive-quota"><b>45</b></small></li>
		</ul>
		<dl><dt>Location</dt><dd>Chiang Mai</dd></dl>
	</body></html>`,

	"/programs/3": `<html><body><p>Under maintenance</p></body></html>`,

	"/programs/4": `<html><body>
		<dl>
			<dt>ค่าใช้จ่าย</dt><dd> </dd><dd>40,000 บาท</dd>
		</dl>
	</body></html>`,

	"/programs/5": `<html><body>
		<dl>
			<dt>ค่าใช้จ่าย</dt>
			<dt>Location</dt><dd>Bangkok</dd>
		</dl>
	</body></html>`,
}

type fixtureSite struct {
	server *httptest.Server

	mu   sync.Mutex
	hits map[string]int
}

func newFixtureSite(t *testing.T) *fixtureSite {
	t.Helper()
	fs := &fixtureSite{hits: make(map[string]int)}
	fs.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fs.mu.Lock()
		fs.hits[r.URL.Path]++
		fs.mu.Unlock()

		body, ok := fixturePages[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(body))
	}))
	t.Cleanup(fs.server.Close)
	return fs
}

func (fs *fixtureSite) url(path string) string {
	return fs.server.URL + path
}

func (fs *fixtureSite) hitCount(path string) int {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.hits[path]
}

func (fs *fixtureSite) base(name string, keywords ...string) BaseCrawler {
	return BaseCrawler{
		Site:              DefaultSite(fs.server.URL, "/universities"),
		StageName:         name,
		Keywords:          keywords,
		NavigationTimeout: time.Second,
		ContentTimeout:    time.Second,
		ReadyTimeout:      50 * time.Millisecond,
		PollInterval:      10 * time.Millisecond,
	}
}

func newTestPage(t *testing.T) render.Page {
	t.Helper()
	page, err := render.NewHTTPRenderer(render.Options{}).NewPage(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { page.Close() })
	return page
}
