package sqlstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDialect_Rebind(t *testing.T) {
	tests := []struct {
		name     string
		numbered bool
		in, want string
	}{
		{"question marks kept", false, "a = ? AND b = ?", "a = ? AND b = ?"},
		{"numbered", true, "a = ? AND b IN (?,?)", "a = $1 AND b IN ($2,$3)"},
		{"no placeholders", true, "SELECT 1", "SELECT 1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Dialect{Numbered: tt.numbered}.Rebind(tt.in))
		})
	}
}
