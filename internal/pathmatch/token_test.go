package pathmatch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseToken(t *testing.T) {
	tests := []struct {
		in      string
		want    Token
		wantErr bool
	}{
		{in: "!ROOT!", want: RootToken()},
		{in: "!DIRS!", want: DirsToken()},
		{in: "!DIRS_N:3!", want: DirsNToken(3)},
		{in: "!DIRS_N:0!", want: DirsNToken(0)},
		{in: "statements", want: LiteralToken("statements")},
		{in: "!important", want: LiteralToken("!important")},
		{in: "!DIRS_N!", wantErr: true},
		{in: "!DIRS_N:-1!", wantErr: true},
		{in: "!DIR!", wantErr: true},
		{in: "!root!", wantErr: true},
		{in: "a/b", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseToken(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidPathToken)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.in, got.String())
		})
	}
}

func TestParseRule(t *testing.T) {
	t.Run("last segment is literal filename", func(t *testing.T) {
		rule, err := ParseRule([]string{"!DIRS!", "statement.csv"}, nil)
		require.NoError(t, err)
		assert.Equal(t, []Token{DirsToken()}, rule.Dirs)
		assert.Equal(t, NameLiteral, rule.Name.Kind)
		assert.Equal(t, "statement.csv", rule.Name.Value)
	})

	t.Run("explicit prefix keeps all segments as directories", func(t *testing.T) {
		rule, err := ParseRule([]string{"bank", "!DIRS!"}, &NameSpec{Prefix: "stmt_"})
		require.NoError(t, err)
		assert.Len(t, rule.Dirs, 2)
		assert.True(t, rule.Name.Match("stmt_2024.csv"))
		assert.False(t, rule.Name.Match("2024_stmt.csv"))
	})

	t.Run("pattern is anchored", func(t *testing.T) {
		rule, err := ParseRule(nil, &NameSpec{Pattern: `activity_\d+\.csv`})
		require.NoError(t, err)
		assert.True(t, rule.Name.Match("activity_42.csv"))
		assert.False(t, rule.Name.Match("old_activity_42.csv"))
		assert.Equal(t, Succeed, MatchPath(rule, "activity_7.csv"))
		assert.Equal(t, Fail, MatchPath(rule, "x/activity_7.csv"))
	})

	t.Run("special token as filename is rejected", func(t *testing.T) {
		_, err := ParseRule([]string{"bank", "!DIRS!"}, nil)
		assert.ErrorIs(t, err, ErrInvalidPathToken)
	})

	t.Run("empty rule is rejected", func(t *testing.T) {
		_, err := ParseRule(nil, nil)
		assert.ErrorIs(t, err, ErrInvalidPathToken)
	})

	t.Run("bad pattern is rejected", func(t *testing.T) {
		_, err := ParseRule(nil, &NameSpec{Pattern: "("})
		assert.ErrorIs(t, err, ErrInvalidPathToken)
	})

	t.Run("ambiguous name spec is rejected", func(t *testing.T) {
		_, err := ParseRule(nil, &NameSpec{Prefix: "a", Literal: "b"})
		assert.ErrorIs(t, err, ErrInvalidPathToken)
	})
}

func TestSplit(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c.csv"}, Split("a/b/c.csv"))
	assert.Equal(t, []string{"a", "c.csv"}, Split("./a/b/../c.csv"))
	assert.Equal(t, []string{"home", "x.csv"}, Split("/home/x.csv"))
	assert.Nil(t, Split(""))
	assert.Nil(t, Split("/"))
}
