package fuzzer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpandBasics(t *testing.T) {
	f := New(1)
	variants := f.Expand("admin")

	assert.Contains(t, variants, "admin")
	assert.Contains(t, variants, "admin.php")
	assert.Contains(t, variants, "admin.bak")
	assert.Contains(t, variants, "ADMIN")
	assert.LessOrEqual(t, len(variants), f.MaxVariations)
}

func TestExpandDeterministic(t *testing.T) {
	f := New(2)
	first := f.Expand("admin_panel")
	second := f.Expand("admin_panel")
	require.Equal(t, first, second)
}

func TestExpandNoDuplicates(t *testing.T) {
	f := New(3)
	variants := f.Expand("admin")
	seen := make(map[string]bool)
	for _, v := range variants {
		assert.False(t, seen[v], "duplicate variant %q", v)
		seen[v] = true
	}
}

func TestExpandBackupSuffixWithExtension(t *testing.T) {
	f := New(1)
	variants := f.Expand("config.php")

	assert.Contains(t, variants, "config.php.bak")
	assert.Contains(t, variants, "config.bak")
	assert.Contains(t, variants, "config.bak.php")
}

func TestExpandSeparatorVariants(t *testing.T) {
	f := New(1)
	variants := f.Expand("admin_panel")

	assert.Contains(t, variants, "admin-panel")
	assert.Contains(t, variants, "adminpanel")
}

func TestExpandRespectsCap(t *testing.T) {
	f := New(3)
	f.MaxVariations = 5
	variants := f.Expand("admin_panel.php")
	assert.Len(t, variants, 5)
}

func TestExpandAllDeduplicates(t *testing.T) {
	f := New(1)
	union := f.ExpandAll([]string{"admin", "ADMIN"})

	seen := make(map[string]bool)
	for _, v := range union {
		require.False(t, seen[v], "duplicate %q in union", v)
		seen[v] = true
	}
	// Both seeds share variants (e.g. "ADMIN", "admin"),
	// so the union must be smaller than the concatenation.
	total := len(f.Expand("admin")) + len(f.Expand("ADMIN"))
	assert.Less(t, len(union), total)
}

func TestDepthClamping(t *testing.T) {
	assert.Equal(t, 1, New(0).Depth)
	assert.Equal(t, 1, New(-3).Depth)
	assert.Equal(t, 3, New(9).Depth)
}

func TestDepthScalesCatalogs(t *testing.T) {
	assert.Len(t, New(1).exts, 3)
	assert.Len(t, New(2).exts, 6)
	assert.Len(t, New(3).exts, 10)
}

func TestGenerateAdminPaths(t *testing.T) {
	f := New(1)
	paths := f.GenerateAdminPaths()

	assert.Contains(t, paths, "admin")
	assert.Contains(t, paths, "wp-admin")
	assert.NotContains(t, paths, "admin/login")

	deep := New(2).GenerateAdminPaths()
	assert.Contains(t, deep, "admin/login")
	assert.Contains(t, deep, "admin.php")
	assert.Greater(t, len(deep), len(paths))
}

func TestGenerateAPIPaths(t *testing.T) {
	paths := New(1).GenerateAPIPaths()
	assert.Contains(t, paths, "graphql")
	assert.Contains(t, paths, "swagger")
}

func TestScorePath(t *testing.T) {
	// "admin" matches keyword (+10) and canonical basename (+20).
	assert.Equal(t, 30, ScorePath("admin"))
	// .php adds +3 on top.
	assert.Equal(t, 33, ScorePath("admin.php"))
	// No keywords at all.
	assert.Equal(t, 0, ScorePath("images"))
	// Long paths are penalized.
	long := "thisisaveryveryverylongpathwithnokeywordsatall/morefiller"
	assert.Equal(t, -5, ScorePath(long))
}

func TestPrioritizeOrdersAdminFirst(t *testing.T) {
	ordered := Prioritize([]string{"images", "css", "admin", "login.php"})
	// login.php scores 33 (keyword + canonical basename + .php),
	// admin scores 30, the rest score 0.
	assert.Equal(t, "login.php", ordered[0])
	assert.Equal(t, "admin", ordered[1])
}

func TestPrioritizeStable(t *testing.T) {
	in := []string{"zeta", "alpha", "beta"}
	out := Prioritize(in)
	// All score zero, so input order must be preserved.
	assert.Equal(t, in, out)
}
