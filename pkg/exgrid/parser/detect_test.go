package parser

import (
	"strings"
	"testing"
)

func TestDetectHeaderRow(t *testing.T) {
	tests := []struct {
		name   string
		rows   [][]string
		want   int
		wantOK bool
	}{
		{
			name: "title above blank rows",
			rows: [][]string{
				{"Quarterly Report", "", ""},
				{"", "", ""},
				{"", "", ""},
				{"id", "name", "amount"},
				{"1", "a", "10"},
				{"2", "b", "20"},
			},
			want:   3,
			wantOK: true,
		},
		{
			name: "header in first row",
			rows: [][]string{
				{"sku", "qty", "price"},
				{"A-1", "4", "2.5"},
			},
			want:   0,
			wantOK: true,
		},
		{
			name:   "single numeric row",
			rows:   [][]string{{"1", "2"}},
			wantOK: false,
		},
		{
			name:   "single column",
			rows:   [][]string{{"title"}, {"x"}, {"y"}},
			wantOK: false,
		},
		{
			name:   "empty",
			rows:   nil,
			wantOK: false,
		},
		{
			name:   "header below the scan limit",
			rows:   append(make([][]string, 55), []string{"id", "name"}, []string{"1", "a"}),
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := DetectHeaderRow(NewGrid("S", tt.rows), 50)
			if ok != tt.wantOK {
				t.Fatalf("DetectHeaderRow ok = %v, expected %v", ok, tt.wantOK)
			}
			if ok && got != tt.want {
				t.Errorf("DetectHeaderRow = %d, expected %d", got, tt.want)
			}
		})
	}
}

func TestScoreRow(t *testing.T) {
	long := strings.Repeat("x", 45)
	tests := []struct {
		name string
		rows [][]string
		want HeaderScore
	}{
		{
			name: "unique labels over numbers",
			rows: [][]string{{"id", "name", "amount"}, {"1", "a", "10"}},
			want: HeaderScore{Row: 0, NonEmpty: 3, Unique: 3, NextNonEmpty: 3, NextNumeric: 2, Score: 21},
		},
		{
			name: "case-insensitive duplicates",
			rows: [][]string{{"Name", "NAME", "x"}},
			want: HeaderScore{Row: 0, NonEmpty: 3, Unique: 2, Duplicates: 1, Score: 11},
		},
		{
			name: "numbers lower the score",
			rows: [][]string{{"1", "2", "a"}},
			want: HeaderScore{Row: 0, NonEmpty: 3, Numeric: 2, Unique: 1, Score: 9},
		},
		{
			name: "wider next row",
			rows: [][]string{{"a", "b", ""}, {"x", "y", "z"}},
			want: HeaderScore{Row: 0, NonEmpty: 2, Unique: 2, NextNonEmpty: 3, Score: 12},
		},
		{
			name: "long strings",
			rows: [][]string{{long, long + "y"}},
			want: HeaderScore{Row: 0, NonEmpty: 2, Unique: 2, Score: 8},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ScoreRow(NewGrid("S", tt.rows), 0)
			if got != tt.want {
				t.Errorf("ScoreRow = %+v, expected %+v", got, tt.want)
			}
		})
	}
}

func TestFirstNonEmptyRow(t *testing.T) {
	g := NewGrid("S", [][]string{{"", ""}, {"", ""}, {"x", ""}})
	got, ok := FirstNonEmptyRow(g, 200)
	if !ok || got != 2 {
		t.Errorf("FirstNonEmptyRow = %d, %v; expected 2, true", got, ok)
	}

	if _, ok := FirstNonEmptyRow(NewGrid("S", nil), 200); ok {
		t.Errorf("FirstNonEmptyRow on empty grid should fail")
	}
}

func TestIsLikelyDataRow(t *testing.T) {
	tests := []struct {
		values   []string
		expected bool
	}{
		{[]string{"id", "name", "amount"}, false},
		{[]string{"1", "abc"}, true},
		{[]string{"42", "Widget", "12.5"}, true},
		{[]string{"550e8400-e29b-41d4-a716-446655440000", "x", "y"}, false},
		{[]string{"550e8400-e29b-41d4-a716-446655440000", "12.5"}, true},
		{[]string{"", " "}, false},
		{nil, false},
	}

	for _, tt := range tests {
		result := IsLikelyDataRow(tt.values)
		if result != tt.expected {
			t.Errorf("IsLikelyDataRow(%q) = %v, expected %v", tt.values, result, tt.expected)
		}
	}
}

func TestIsUUID(t *testing.T) {
	if !IsUUID("550E8400-E29B-41D4-A716-446655440000") {
		t.Errorf("upper-case UUID not recognized")
	}
	for _, s := range []string{"550e8400e29b41d4a716446655440000", "urn:uuid:550e8400-e29b-41d4-a716-446655440000", "abc"} {
		if IsUUID(s) {
			t.Errorf("IsUUID(%q) = true", s)
		}
	}
}
