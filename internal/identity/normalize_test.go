package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"simple", "Jalen Carter", "JALEN CARTER"},
		{"extra whitespace", "  Jalen   Carter ", "JALEN CARTER"},
		{"generational suffix jr", "Marvin Harrison Jr.", "MARVIN HARRISON"},
		{"generational suffix roman", "Kool-Aid McKinstry III", "KOOL AID MCKINSTRY"},
		{"punctuation", "Ja'Marr O'Neill-Smith", "JAMARR ONEILL SMITH"},
		{"accents folded", "José Ramírez", "JOSE RAMIREZ"},
		{"initial dot", "J. Carter", "J CARTER"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeName(tt.in))
		})
	}
}

func TestNormalizeName_SuffixIsNotStrippedAsSurname(t *testing.T) {
	// A bare "V" as the only surname token must survive.
	assert.Equal(t, "V", NormalizeName("V"))
}

func TestNormalizeSchool(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"alias ohio st", "Ohio St", "OHIO STATE"},
		{"alias lsu", "LSU", "LOUISIANA STATE"},
		{"trims university", "University of Georgia", "GEORGIA"},
		{"plain", "Georgia", "GEORGIA"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeSchool(tt.in))
		})
	}
}
