package crawler

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sjsage522/tcasworker/internal/dataset"
	"sjsage522/tcasworker/pkg/errors"
	"sjsage522/tcasworker/services/cache"
)

func TestDiscoveryStage(t *testing.T) {
	fs := newFixtureSite(t)
	stage := &DiscoveryStage{BaseCrawler: fs.base("universities")}

	assert.Nil(t, stage.InputColumns())
	rows, err := stage.Process(context.Background(), newTestPage(t), nil)
	require.NoError(t, err)

	// The /about brand link lacks the university path prefix
	assert.Equal(t, []dataset.Row{
		{"name": "A", "catalog_url": fs.url("/universities/A")},
		{"name": "University B", "catalog_url": fs.url("/universities/B")},
	}, rows)
}

func TestDiscoveryStage_IndexDown(t *testing.T) {
	fs := newFixtureSite(t)
	base := fs.base("universities")
	base.Site.UniversitiesPath = "/gone"
	stage := &DiscoveryStage{BaseCrawler: base}

	_, err := stage.Process(context.Background(), newTestPage(t), nil)
	require.Error(t, err)
	perr, ok := errors.As(err)
	require.True(t, ok)
	assert.Equal(t, errors.ErrorTypeNavigation, perr.Type)
	assert.Equal(t, "universities", perr.Stage)
}

func TestFacultyStage(t *testing.T) {
	fs := newFixtureSite(t)
	ctx := context.Background()
	page := newTestPage(t)
	stage := &FacultyStage{BaseCrawler: fs.base("faculties", "Engineering")}

	rows, err := stage.Process(ctx, page, dataset.Row{"name": "A", "catalog_url": fs.url("/universities/A")})
	require.NoError(t, err)
	assert.Equal(t, []dataset.Row{
		{"university_name": "A", "faculty_label": "5. Faculty of Engineering"},
		{"university_name": "A", "faculty_label": "15. Faculty of Engineering Technology"},
		{"university_name": "A", "faculty_label": "5. Faculty of Engineering (duplicate)"},
	}, rows)

	t.Run("keyword is case sensitive", func(t *testing.T) {
		stage := &FacultyStage{BaseCrawler: fs.base("faculties", "engineering")}
		rows, err := stage.Process(ctx, page, dataset.Row{"name": "A", "catalog_url": fs.url("/universities/A")})
		require.NoError(t, err)
		assert.Empty(t, rows)
	})

	t.Run("no faculty links", func(t *testing.T) {
		_, err := stage.Process(ctx, page, dataset.Row{"name": "University B", "catalog_url": fs.url("/universities/B")})
		assert.Equal(t, errors.ErrorTypeNoMatch, errors.TypeOf(err))
		assert.Contains(t, err.Error(), "no faculty data for University B")
		assert.True(t, errors.IsRecoverable(err))
	})

	t.Run("navigation failure", func(t *testing.T) {
		_, err := stage.Process(ctx, page, dataset.Row{"name": "C", "catalog_url": fs.url("/universities/C")})
		assert.Equal(t, errors.ErrorTypeNavigation, errors.TypeOf(err))
	})
}

func TestFieldStage(t *testing.T) {
	fs := newFixtureSite(t)
	ctx := context.Background()
	page := newTestPage(t)
	base := fs.base("fields", "Computer")
	stage := &FieldStage{BaseCrawler: base, Resolver: &Resolver{BaseCrawler: base}}

	rows, err := stage.Process(ctx, page, dataset.Row{"university_name": "A", "faculty_label": "5. Faculty of Engineering"})
	require.NoError(t, err)

	// Code 5 resolves to the first "5." link, never to "15."; links outside
	// the field list are ignored
	assert.Equal(t, []dataset.Row{
		{"university_name": "A", "faculty_label": "5. Faculty of Engineering", "field_name": "Computer Science", "field_url": fs.url("/fields/cs")},
		{"university_name": "A", "faculty_label": "5. Faculty of Engineering", "field_name": "Information and Computer Science", "field_url": fs.url("/fields/ics")},
	}, rows)
	assert.Equal(t, 1, fs.hitCount("/universities/A/faculties/5"))
	assert.Zero(t, fs.hitCount("/universities/A/faculties/5-dup"))
	assert.Zero(t, fs.hitCount("/universities/A/faculties/15"))

	tests := []struct {
		name string
		row  dataset.Row
	}{
		{"unknown university", dataset.Row{"university_name": "Z", "faculty_label": "5. Faculty of Engineering"}},
		{"label without code", dataset.Row{"university_name": "A", "faculty_label": "Faculty of Engineering"}},
		{"code not on page", dataset.Row{"university_name": "A", "faculty_label": "7. Faculty of Engineering"}},
		{"university without faculties", dataset.Row{"university_name": "University B", "faculty_label": "5. Faculty of Engineering"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := stage.Process(ctx, page, tt.row)
			assert.Equal(t, errors.ErrorTypeNoMatch, errors.TypeOf(err))
		})
	}
}

func TestResolverCache(t *testing.T) {
	ctx := context.Background()
	row := dataset.Row{"university_name": "A", "faculty_label": "5. Faculty of Engineering"}

	t.Run("always re-resolves without a cache", func(t *testing.T) {
		fs := newFixtureSite(t)
		base := fs.base("fields", "Computer")
		stage := &FieldStage{BaseCrawler: base, Resolver: &Resolver{BaseCrawler: base}}
		page := newTestPage(t)

		for i := 0; i < 2; i++ {
			_, err := stage.Process(ctx, page, row)
			require.NoError(t, err)
		}
		assert.Equal(t, 2, fs.hitCount("/universities"))
		assert.Equal(t, 2, fs.hitCount("/universities/A"))
	})

	t.Run("memoizes with a run cache", func(t *testing.T) {
		fs := newFixtureSite(t)
		base := fs.base("fields", "Computer")
		resolver := &Resolver{BaseCrawler: base, Cache: cache.NewMemoryCache()}
		stage := &FieldStage{BaseCrawler: base, Resolver: resolver}
		page := newTestPage(t)

		var outputs [][]dataset.Row
		for i := 0; i < 2; i++ {
			rows, err := stage.Process(ctx, page, row)
			require.NoError(t, err)
			outputs = append(outputs, rows)
		}
		assert.Equal(t, outputs[0], outputs[1])
		assert.Equal(t, 1, fs.hitCount("/universities"))
		assert.Equal(t, 1, fs.hitCount("/universities/A"))
		assert.Equal(t, 2, fs.hitCount("/universities/A/faculties/5"))
	})

	t.Run("falls back to the site when the cache is down", func(t *testing.T) {
		fs := newFixtureSite(t)
		base := fs.base("fields", "Computer")
		down := &brokenCache{}
		resolver := &Resolver{BaseCrawler: base, Cache: down}
		stage := &FieldStage{BaseCrawler: base, Resolver: resolver}
		page := newTestPage(t)

		for i := 0; i < 2; i++ {
			rows, err := stage.Process(ctx, page, row)
			require.NoError(t, err)
			require.NotEmpty(t, rows)
		}
		assert.Equal(t, 2, fs.hitCount("/universities"))
		assert.Equal(t, 4, down.gets)
		assert.Equal(t, 4, down.sets)

		_, err := resolver.lookup("university:A")
		assert.Equal(t, errors.ErrorTypeCache, errors.TypeOf(err))
		perr, ok := errors.As(err)
		require.True(t, ok)
		assert.Equal(t, "fields", perr.Stage)
		assert.ErrorIs(t, err, errCacheDown)
	})

	t.Run("a miss is not a cache error", func(t *testing.T) {
		resolver := &Resolver{Cache: cache.NewMemoryCache()}
		_, err := resolver.lookup("university:A")
		assert.ErrorIs(t, err, cache.ErrCacheMiss)
		assert.NotEqual(t, errors.ErrorTypeCache, errors.TypeOf(err))

		_, err = (&Resolver{}).lookup("university:A")
		assert.ErrorIs(t, err, cache.ErrCacheMiss)
	})
}

var errCacheDown = stderrors.New("connection refused")

// brokenCache fails every call the way an unreachable memcached does
type brokenCache struct {
	gets, sets int
}

func (c *brokenCache) Get(string) ([]byte, error) {
	c.gets++
	return nil, errCacheDown
}

func (c *brokenCache) Set(string, []byte, time.Duration) error {
	c.sets++
	return errCacheDown
}

func (c *brokenCache) Delete(string) error { return errCacheDown }

func TestProgramStage(t *testing.T) {
	fs := newFixtureSite(t)
	ctx := context.Background()
	page := newTestPage(t)
	stage := &ProgramStage{BaseCrawler: fs.base("programs")}

	field := FieldMatch{UniversityName: "A", FacultyLabel: "5. Faculty of Engineering", FieldName: "Computer Science", FieldURL: fs.url("/fields/cs")}
	rows, err := stage.Process(ctx, page, field.Row())
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, "Computer Science (Regular)", rows[0].Get("program_name"))
	assert.Equal(t, fs.url("/programs/1"), rows[0].Get("program_url"))
	assert.Equal(t, "Computer Science (International)", rows[1].Get("program_name"))
	assert.Equal(t, fs.url("/programs/2"), rows[1].Get("program_url"))
	for _, row := range rows {
		assert.Equal(t, "A", row.Get("university_name"))
		assert.Equal(t, "Computer Science", row.Get("field_name"))
	}

	field.FieldURL = fs.url("/fields/empty")
	_, err = stage.Process(ctx, page, field.Row())
	perr, ok := errors.As(err)
	require.True(t, ok)
	assert.Equal(t, errors.ErrorTypeSelectorTimeout, perr.Type)
	assert.Equal(t, "programs", perr.Stage)
}

func TestRoundsStage(t *testing.T) {
	fs := newFixtureSite(t)
	ctx := context.Background()
	page := newTestPage(t)
	stage := &RoundsStage{BaseCrawler: fs.base("rounds")}

	tests := []struct {
		path string
		want [4]string
	}{
		{"/programs/1", [4]string{"1200", NoData, NoData, NoData}},
		{"/programs/2", [4]string{NoData, NoData, NoData, "45"}},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rounds, err := stage.Extract(ctx, page, fs.url(tt.path))
			require.NoError(t, err)
			assert.Equal(t, tt.want, rounds)
		})
	}

	program := Program{UniversityName: "A", FacultyLabel: "5. Faculty of Engineering", FieldName: "Computer Science", ProgramName: "CS", ProgramURL: fs.url("/programs/1")}
	rows, err := stage.Process(ctx, page, program.Row())
	require.NoError(t, err)
	require.Len(t, rows, 1)
	for _, col := range AdmissionColumns {
		assert.Contains(t, rows[0], col)
	}
	assert.Equal(t, "1200", rows[0].Get("r1"))
	assert.Equal(t, fs.url("/programs/1"), rows[0].Get("program_url"))

	// Rounds rows are skipped on page failure
	program.ProgramURL = fs.url("/programs/3")
	_, err = stage.Process(ctx, page, program.Row())
	assert.Equal(t, errors.ErrorTypeSelectorTimeout, errors.TypeOf(err))

	program.ProgramURL = fs.url("/programs/404")
	_, err = stage.Process(ctx, page, program.Row())
	assert.Equal(t, errors.ErrorTypeNavigation, errors.TypeOf(err))
}

func TestFeeStage(t *testing.T) {
	fs := newFixtureSite(t)
	ctx := context.Background()
	page := newTestPage(t)
	stage := &FeeStage{BaseCrawler: fs.base("fees", "ค่าใช้จ่าย", "expenses", "cost")}

	tests := []struct {
		path string
		want FeeResult
	}{
		{"/programs/1", FeeResult{Kind: FeeOK, Text: "25,000 บาท ต่อภาคการศึกษา"}},
		{"/programs/2", FeeResult{Kind: FeeNoData}},
		{"/programs/4", FeeResult{Kind: FeeOK, Text: "40,000 บาท"}},
		{"/programs/5", FeeResult{Kind: FeeNoData}},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, stage.Extract(ctx, page, fs.url(tt.path)))
		})
	}

	t.Run("page failures become a sentinel", func(t *testing.T) {
		for _, path := range []string{"/programs/3", "/programs/404"} {
			result := stage.Extract(ctx, page, fs.url(path))
			assert.Equal(t, FeeFailed, result.Kind)
			assert.NotEmpty(t, result.Reason)

			program := Program{UniversityName: "A", ProgramName: "CS", ProgramURL: fs.url(path)}
			rows, err := stage.Process(ctx, page, program.Row())
			require.NoError(t, err)
			require.Len(t, rows, 1)
			assert.Equal(t, ExtractionFailed, rows[0].Get("fee"))
		}
	})
}

func TestFeeResultValue(t *testing.T) {
	assert.Equal(t, "12,000", FeeResult{Kind: FeeOK, Text: "12,000"}.Value())
	assert.Equal(t, NoData, FeeResult{Kind: FeeNoData}.Value())
	assert.Equal(t, ExtractionFailed, FeeResult{Kind: FeeFailed, Reason: "timeout"}.Value())
}
