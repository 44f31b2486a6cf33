package csvparse

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/spice-ingest/internal/model"
	"github.com/Veraticus/spice-ingest/internal/pathmatch"
	"github.com/Veraticus/spice-ingest/internal/service"
)

type stubSuggester struct {
	err     error
	answers map[string]string
	delay   time.Duration
	calls   atomic.Int32
}

func (s *stubSuggester) Suggest(ctx context.Context, req service.SuggestionRequest) (string, bool, error) {
	s.calls.Add(1)
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return "", false, ctx.Err()
		}
	}
	if s.err != nil {
		return "", false, s.err
	}
	v, ok := s.answers[req.Value]
	return v, ok, nil
}

func bankA(t *testing.T) *model.FormatSpec {
	t.Helper()
	rule, err := pathmatch.ParseRule([]string{"!DIRS!", "statement.csv"}, nil)
	require.NoError(t, err)
	return &model.FormatSpec{
		ID:           "bank_a",
		Rule:         rule,
		HasHeaderRow: true,
		Columns: []model.ColumnSpec{
			{Name: "title", Type: model.String, Header: "Desc"},
			{Name: "date", Type: model.Date, Format: "YYYY-MM-DD", Header: "Date"},
			{Name: "charge", Type: model.Numeric, Format: "0.00", Header: "Amount"},
		},
	}
}

func TestParseRow_BankAScenario(t *testing.T) {
	p := New(nil, Options{})
	rec, err := p.ParseRow(context.Background(), bankA(t), []string{"Coffee Shop", "2024-03-01", "4.50"}, 2)
	require.NoError(t, err)

	assert.Equal(t, "Coffee Shop", rec.Title)
	assert.True(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC).Equal(rec.Date))
	assert.True(t, decimal.RequireFromString("4.50").Equal(rec.Charge))
	assert.Equal(t, "", rec.Category)
	assert.False(t, rec.FlagForReview)
	assert.False(t, rec.Recurring)
	assert.Equal(t, "", rec.Handler)
	assert.Equal(t, "", rec.SpecialMetadata)
	assert.Equal(t, "bank_a", rec.FormatID)
	assert.Equal(t, 2, rec.Line)
}

func TestParseRow_Errors(t *testing.T) {
	p := New(nil, Options{})
	spec := bankA(t)

	_, err := p.ParseRow(context.Background(), spec, []string{"Coffee Shop", "2024-03-01"}, 3)
	var shape *RowShapeError
	require.ErrorAs(t, err, &shape)
	assert.Equal(t, 2, shape.Got)
	assert.Equal(t, 3, shape.Want)
	assert.ErrorIs(t, err, ErrRowShape)
	assert.Equal(t, RowShapeKind, model.ErrorKind(err))

	_, err = p.ParseRow(context.Background(), spec, []string{"Coffee Shop", "2024-03-01", "abc"}, 4)
	var rowErr *RowError
	require.ErrorAs(t, err, &rowErr)
	assert.Equal(t, "charge", rowErr.Column)
	assert.Equal(t, "abc", rowErr.Raw)
	assert.Equal(t, 4, rowErr.Line)
	assert.Equal(t, "numeric_parse_error", model.ErrorKind(err))

	_, err = p.ParseRow(context.Background(), spec, []string{"Coffee Shop", "03/01/2024", "1.00"}, 5)
	assert.Equal(t, "date_parse_error", model.ErrorKind(err))
}

func TestParseRow_CanonicalAndMetadataColumns(t *testing.T) {
	spec := &model.FormatSpec{
		ID:      "card",
		Handler: "joint",
		Columns: []model.ColumnSpec{
			{Name: "posted", Type: model.Date, Format: "MM/DD/YYYY"},
			{Name: "title", Type: model.String},
			{Name: "charge", Type: model.Numeric, Format: "$#,##0.00"},
			{Name: "recurring", Type: model.String},
			{Name: "handler", Type: model.String},
			{Name: "account", Type: model.String},
			{Name: "date", Type: model.Date, Format: "MM/DD/YYYY"},
		},
	}
	p := New(nil, Options{})

	rec, err := p.ParseRow(context.Background(), spec,
		[]string{"03/02/2024", "Gym", "($1,200.00)", "yes", "", " 9921 ", "03/01/2024"}, 1)
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("-1200").Equal(rec.Charge))
	assert.True(t, rec.Recurring)
	assert.Equal(t, "joint", rec.Handler, "blank handler cell keeps the format default")
	assert.Equal(t, `{"account":"9921","posted":"2024-03-02"}`, rec.SpecialMetadata)

	rec, err = p.ParseRow(context.Background(), spec,
		[]string{"", "Gym", "$5.00", "no", "alex", "", "03/01/2024"}, 2)
	require.NoError(t, err)
	assert.Equal(t, "alex", rec.Handler)
	assert.Equal(t, `{"account":"","posted":""}`, rec.SpecialMetadata)

	_, err = p.ParseRow(context.Background(), spec,
		[]string{"03/02/2024", "Gym", "$5.00", "sometimes", "", "", "03/01/2024"}, 3)
	assert.Equal(t, "bool_parse_error", model.ErrorKind(err))
}

func TestParseRow_LoneSpecialMetadataIsVerbatim(t *testing.T) {
	spec := &model.FormatSpec{
		ID: "notes",
		Columns: []model.ColumnSpec{
			{Name: "title", Type: model.String},
			{Name: "special_metadata", Type: model.String},
		},
	}
	rec, err := New(nil, Options{}).ParseRow(context.Background(), spec, []string{"Rent", "ref 42"}, 1)
	require.NoError(t, err)
	assert.Equal(t, "ref 42", rec.SpecialMetadata)
}

func specialSpec(flag bool) *model.FormatSpec {
	return &model.FormatSpec{
		ID:              "tagged",
		FlagUnsuggested: flag,
		Columns: []model.ColumnSpec{
			{Name: "title", Type: model.String},
			{Name: "category", Type: model.String, Special: true},
		},
	}
}

func TestParseRow_Suggestions(t *testing.T) {
	ctx := context.Background()

	t.Run("accepted", func(t *testing.T) {
		s := &stubSuggester{answers: map[string]string{"food": "Dining"}}
		rec, err := New(s, Options{}).ParseRow(ctx, specialSpec(true), []string{"Cafe", "food"}, 1)
		require.NoError(t, err)
		assert.Equal(t, "Dining", rec.Category)
		assert.False(t, rec.FlagForReview)
		assert.Equal(t, int32(1), s.calls.Load())
	})

	t.Run("declined keeps value and flags", func(t *testing.T) {
		s := &stubSuggester{}
		rec, err := New(s, Options{}).ParseRow(ctx, specialSpec(true), []string{"Cafe", "food"}, 1)
		require.NoError(t, err)
		assert.Equal(t, "food", rec.Category)
		assert.True(t, rec.FlagForReview)
	})

	t.Run("declined without flag policy", func(t *testing.T) {
		rec, err := New(&stubSuggester{}, Options{}).ParseRow(ctx, specialSpec(false), []string{"Cafe", "food"}, 1)
		require.NoError(t, err)
		assert.False(t, rec.FlagForReview)
	})

	t.Run("error is a decline", func(t *testing.T) {
		s := &stubSuggester{err: errors.New("backend down")}
		rec, err := New(s, Options{}).ParseRow(ctx, specialSpec(false), []string{"Cafe", "food"}, 1)
		require.NoError(t, err)
		assert.Equal(t, "food", rec.Category)
	})

	t.Run("timeout is a decline", func(t *testing.T) {
		s := &stubSuggester{delay: time.Second, answers: map[string]string{"food": "Dining"}}
		start := time.Now()
		rec, err := New(s, Options{SuggestTimeout: 20 * time.Millisecond}).ParseRow(ctx, specialSpec(true), []string{"Cafe", "food"}, 1)
		require.NoError(t, err)
		assert.Less(t, time.Since(start), 500*time.Millisecond)
		assert.Equal(t, "food", rec.Category)
		assert.True(t, rec.FlagForReview)
	})

	t.Run("nil suggester", func(t *testing.T) {
		rec, err := New(nil, Options{}).ParseRow(ctx, specialSpec(true), []string{"Cafe", "food"}, 1)
		require.NoError(t, err)
		assert.Equal(t, "food", rec.Category)
		assert.True(t, rec.FlagForReview)
	})
}

func TestParseRow_SuggestionForTypedColumnIsCoerced(t *testing.T) {
	spec := &model.FormatSpec{
		ID: "typed",
		Columns: []model.ColumnSpec{
			{Name: "title", Type: model.String},
			{Name: "charge", Type: model.Numeric, Format: "0.00", Special: true},
		},
	}

	s := &stubSuggester{answers: map[string]string{"0": "12.50"}}
	rec, err := New(s, Options{}).ParseRow(context.Background(), spec, []string{"Refund", ""}, 1)
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("12.5").Equal(rec.Charge))

	s = &stubSuggester{answers: map[string]string{"3": "three"}}
	rec, err = New(s, Options{}).ParseRow(context.Background(), spec, []string{"Refund", "3.00"}, 1)
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("3").Equal(rec.Charge), "an unparseable suggestion is discarded")
}

func collect(t *testing.T, p *Parser, spec *model.FormatSpec, input string) ([]model.Event, error) {
	t.Helper()
	var events []model.Event
	err := p.Stream(context.Background(), spec, "in.csv", strings.NewReader(input), func(e model.Event) error {
		events = append(events, e)
		return nil
	})
	return events, err
}

func TestStream_ShortRowDoesNotAbortFile(t *testing.T) {
	input := "Desc,Date,Amount\n" +
		"Coffee Shop,2024-03-01,4.50\n" +
		"Bakery,2024-03-02\n" +
		"Grocer,2024-03-03,20.00\n"

	events, err := collect(t, New(nil, Options{}), bankA(t), input)
	require.NoError(t, err)
	require.Len(t, events, 3)

	assert.Equal(t, model.EventRecord, events[0].Kind)
	assert.Equal(t, "Coffee Shop", events[0].Record.Title)
	assert.Equal(t, 2, events[0].Line)
	assert.Equal(t, "in.csv", events[0].Record.SourcePath)

	assert.Equal(t, model.EventRowError, events[1].Kind)
	assert.ErrorIs(t, events[1].Err, ErrRowShape)
	assert.Equal(t, 3, events[1].Line)

	assert.Equal(t, model.EventRecord, events[2].Kind)
	assert.Equal(t, "Grocer", events[2].Record.Title)
	assert.Equal(t, 4, events[2].Line)
}

func TestStream_PreambleBOMAndDelimiter(t *testing.T) {
	spec := bankA(t)
	spec.SkipRows = 2
	spec.Delimiter = ';'
	spec.ValidateHeader = true

	input := "\xEF\xBB\xBFAccount: 1234 \"checking\n" +
		"Exported 2024-04-01\n" +
		" desc ;DATE;Amount\n" +
		"\n" +
		"\"Shop; Main St\";2024-03-01;4.50\n"

	events, err := collect(t, New(nil, Options{}), spec, input)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "Shop; Main St", events[0].Record.Title)
	assert.Equal(t, 5, events[0].Line)
}

func TestStream_HeaderMismatch(t *testing.T) {
	spec := bankA(t)
	spec.ValidateHeader = true

	events, err := collect(t, New(nil, Options{}), spec, "Description,Date,Amount\nCoffee,2024-03-01,1.00\n")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrHeaderMismatch)
	assert.Equal(t, HeaderMismatchKind, model.ErrorKind(err))
	assert.Empty(t, events)

	spec.ValidateHeader = false
	events, err = collect(t, New(nil, Options{}), spec, "Description,Date,Amount\nCoffee,2024-03-01,1.00\n")
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestStream_EmptyFile(t *testing.T) {
	events, err := collect(t, New(nil, Options{}), bankA(t), "")
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestStream_Cancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := New(nil, Options{}).Stream(ctx, bankA(t), "in.csv", strings.NewReader("a,b,c\n"), func(model.Event) error {
		t.Fatal("emit called after cancellation")
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStream_EmitErrorStops(t *testing.T) {
	sinkErr := errors.New("disk full")
	calls := 0
	err := New(nil, Options{}).Stream(context.Background(), bankA(t), "in.csv",
		strings.NewReader("h,h,h\nA,2024-01-01,1\nB,2024-01-02,2\n"),
		func(model.Event) error {
			calls++
			return sinkErr
		})
	assert.ErrorIs(t, err, sinkErr)
	assert.Equal(t, 1, calls)
}

func TestRowError_MalformedKind(t *testing.T) {
	err := &RowError{Line: 7, Err: ErrMalformedRow}
	assert.Equal(t, MalformedRowKind, err.Kind())
	assert.Contains(t, err.Error(), "line 7")
}
