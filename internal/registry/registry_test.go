package registry

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/spice-ingest/internal/model"
	"github.com/Veraticus/spice-ingest/internal/pathmatch"
)

func format(t *testing.T, id string, rule ...string) model.FormatSpec {
	t.Helper()
	r, err := pathmatch.ParseRule(rule, nil)
	require.NoError(t, err)
	return model.FormatSpec{
		ID:           id,
		Rule:         r,
		HasHeaderRow: true,
		Columns: []model.ColumnSpec{
			{Name: "title", Type: model.String},
			{Name: "date", Type: model.Date, Format: "YYYY-MM-DD"},
			{Name: "charge", Type: model.Numeric, Format: "0.00"},
		},
	}
}

func TestResolve_BankAScenario(t *testing.T) {
	reg, err := New([]model.FormatSpec{format(t, "bank_a", "!DIRS!", "statement.csv")})
	require.NoError(t, err)

	spec, err := reg.Resolve("exports/2024/march/statement.csv")
	require.NoError(t, err)
	assert.Equal(t, "bank_a", spec.ID)

	_, err = reg.Resolve("exports/statement.pdf")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoMatchingFormat)

	var cerr *ClassificationError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "no_matching_format", cerr.Kind())
}

func TestResolve_DeterministicUnderPermutation(t *testing.T) {
	specs := []model.FormatSpec{
		format(t, "bank_a", "!DIRS!", "bank_a", "statement.csv"),
		format(t, "card_b", "!ROOT!", "cards", "!DIRS_N:1!", "activity.csv"),
		format(t, "bank_c", "!DIRS!", "bank_c", "!DIRS!", "export.csv"),
		format(t, "broker", "brokerage", "positions.csv"),
	}
	paths := map[string]string{
		"home/me/bank_a/statement.csv":       "bank_a",
		"cards/2024/activity.csv":            "card_b",
		"x/bank_c/2024/01/export.csv":        "bank_c",
		"brokerage/positions.csv":            "broker",
		"bank_c/export.csv":                  "bank_c",
		"/cards/visa/activity.csv":           "card_b",
		"home/bank_a/archive/statement.csv":  "",
		"nested/cards/2024/activity.csv":     "",
		"cards/2024/extra/activity.csv":      "",
		"elsewhere/brokerage/positions.csv":  "broker",
	}

	permutations := [][]int{{0, 1, 2, 3}, {3, 2, 1, 0}, {1, 3, 0, 2}, {2, 0, 3, 1}}
	for _, perm := range permutations {
		ordered := make([]model.FormatSpec, len(perm))
		for i, idx := range perm {
			ordered[i] = specs[idx]
		}
		reg, err := New(ordered)
		require.NoError(t, err)

		for p, want := range paths {
			spec, err := reg.Resolve(p)
			if want == "" {
				assert.ErrorIs(t, err, ErrNoMatchingFormat, "path %s perm %v", p, perm)
				continue
			}
			require.NoError(t, err, "path %s perm %v", p, perm)
			assert.Equal(t, want, spec.ID, "path %s perm %v", p, perm)
		}
	}
}

func TestResolve_Ambiguous(t *testing.T) {
	reg, err := New([]model.FormatSpec{
		format(t, "generic", "!DIRS!", "statement.csv"),
		format(t, "unrelated", "other", "file.csv"),
		format(t, "specific", "exports", "!DIRS!", "statement.csv"),
	})
	require.NoError(t, err)

	_, err = reg.Resolve("exports/2024/statement.csv")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAmbiguousFormat)
	assert.False(t, errors.Is(err, ErrNoMatchingFormat))

	var cerr *ClassificationError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, []string{"generic", "specific"}, cerr.Candidates)
	assert.Contains(t, err.Error(), "generic, specific")

	spec, err := reg.Resolve("archive/statement.csv")
	require.NoError(t, err)
	assert.Equal(t, "generic", spec.ID)
}

func TestNew_CollectsEveryConfigurationError(t *testing.T) {
	good := format(t, "good", "!DIRS!", "good.csv")

	dupCols := format(t, "dup_cols", "a.csv")
	dupCols.Columns = append(dupCols.Columns, model.ColumnSpec{Name: "title", Type: model.String})

	missing := format(t, "missing", "b.csv")
	missing.Columns[1].Format = ""

	badFormat := format(t, "bad_format", "c.csv")
	badFormat.Columns[2].Format = "$"

	mismatch := format(t, "mismatch", "d.csv")
	mismatch.Columns[2].Type = model.String

	empty := format(t, "empty", "e.csv")
	empty.Columns = nil

	badToken := format(t, "bad_token", "f.csv")
	badToken.Rule.Dirs = []pathmatch.Token{pathmatch.DirsNToken(-1)}

	dupID := format(t, "good", "g.csv")

	_, err := New([]model.FormatSpec{good, dupCols, missing, badFormat, mismatch, empty, badToken, dupID})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	joined, ok := err.(interface{ Unwrap() []error })
	require.True(t, ok)

	kinds := map[ConfigKind]string{}
	for _, e := range joined.Unwrap() {
		var cerr *ConfigurationError
		require.ErrorAs(t, e, &cerr)
		kinds[cerr.Code] = cerr.FormatID
	}
	assert.Equal(t, map[ConfigKind]string{
		DuplicateColumnName: "dup_cols",
		MissingFormatString: "missing",
		InvalidFormatString: "bad_format",
		FieldTypeMismatch:   "mismatch",
		EmptyColumns:        "empty",
		InvalidPathToken:    "bad_token",
		DuplicateFormatID:   "good",
	}, kinds)
}

func TestNew_CopiesSpecs(t *testing.T) {
	specs := []model.FormatSpec{format(t, "bank_a", "!DIRS!", "statement.csv")}
	reg, err := New(specs)
	require.NoError(t, err)

	specs[0].ID = "mutated"
	specs[0].Columns[0].Name = "mutated"

	got := reg.Formats()
	require.Len(t, got, 1)
	assert.Equal(t, "bank_a", got[0].ID)
	assert.Equal(t, "title", got[0].Columns[0].Name)
	assert.Equal(t, 1, reg.Len())
}

func TestPrune(t *testing.T) {
	reg, err := New([]model.FormatSpec{
		format(t, "card_b", "!ROOT!", "cards", "!DIRS_N:1!", "activity.csv"),
		format(t, "broker", "!ROOT!", "brokerage", "positions.csv"),
	})
	require.NoError(t, err)

	tests := []struct {
		dir  string
		want pathmatch.Outcome
	}{
		{dir: "", want: pathmatch.Undetermined},
		{dir: "cards", want: pathmatch.Undetermined},
		{dir: "cards/2024", want: pathmatch.Succeed},
		{dir: "cards/2024/deeper", want: pathmatch.Fail},
		{dir: "brokerage", want: pathmatch.Succeed},
		{dir: "photos", want: pathmatch.Fail},
		{dir: "photos/brokerage", want: pathmatch.Fail},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, reg.Prune(tt.dir), "dir %q", tt.dir)
	}
}

func TestPrune_UnrootedRuleKeepsEverySubtree(t *testing.T) {
	reg, err := New([]model.FormatSpec{
		format(t, "card_b", "!ROOT!", "cards", "!DIRS_N:1!", "activity.csv"),
		format(t, "broker", "brokerage", "positions.csv"),
	})
	require.NoError(t, err)

	assert.Equal(t, pathmatch.Undetermined, reg.Prune("photos"))
	assert.Equal(t, pathmatch.Undetermined, reg.Prune("cards/2024/deeper"))
	assert.Equal(t, pathmatch.Succeed, reg.Prune("photos/brokerage"))

	spec, err := reg.Resolve("photos/brokerage/positions.csv")
	require.NoError(t, err)
	assert.Equal(t, "broker", spec.ID)
}
