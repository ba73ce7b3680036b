package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitName(t *testing.T) {
	tests := []struct {
		full, first, last string
	}{
		{"Jalen Carter", "Jalen", "Carter"},
		{"Kool-Aid McKinstry", "Kool-Aid", "McKinstry"},
		{"Ja'Marr O'Neill Smith", "Ja'Marr", "O'Neill Smith"},
		{"  Cher  ", "", "Cher"},
		{"", "", ""},
	}
	for _, tc := range tests {
		t.Run(tc.full, func(t *testing.T) {
			first, last := SplitName(tc.full)
			assert.Equal(t, tc.first, first)
			assert.Equal(t, tc.last, last)
		})
	}
}

func TestFullName(t *testing.T) {
	p := Prospect{FirstName: "Jalen", LastName: "Carter"}
	assert.Equal(t, "Jalen Carter", p.FullName())

	mono := Prospect{LastName: "Cher"}
	assert.Equal(t, "Cher", mono.FullName())
}

func TestValidPosition(t *testing.T) {
	for _, p := range Positions {
		assert.True(t, ValidPosition(p), p)
	}
	assert.False(t, ValidPosition("QB1"))
	assert.False(t, ValidPosition("qb"))
	assert.False(t, ValidPosition(""))
}

func TestValidSource(t *testing.T) {
	for _, s := range KnownSources {
		assert.True(t, ValidSource(s), string(s))
	}
	assert.False(t, ValidSource(Source("mock_drafts")))
	assert.False(t, ValidSource(Source("")))
}

func TestCorroboration(t *testing.T) {
	p := Prospect{ExternalIDs: map[Source]string{
		SourceGrades:  "G1",
		SourceCombine: "C1",
	}}
	assert.Equal(t, 2, p.Corroboration())
	assert.Equal(t, 0, (&Prospect{}).Corroboration())
}
