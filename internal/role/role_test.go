package role

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantKind Kind
		wantText string
	}{
		{"sales engineer", "Sales Engineer", SalesEngineer, NameSalesEngineer},
		{"sales manager", "Sales Manager", SalesManager, NameSalesManager},
		{"scm admin", "SCM Admin", ScmAdmin, NameScmAdmin},
		{"management", "Management", Management, NameManagement},
		{"surrounding whitespace", "  SCM Admin ", ScmAdmin, NameScmAdmin},
		{"empty", "", None, ""},
		{"blank", "   ", None, ""},
		{"unrecognized", "Robot Whisperer", Unknown, "Robot Whisperer"},
		{"case differs", "scm admin", Unknown, "scm admin"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := Parse(tt.input)
			assert.Equal(t, tt.wantKind, r.Kind())
			assert.Equal(t, tt.wantText, r.String())
		})
	}
}

func TestRole_Predicates(t *testing.T) {
	assert.True(t, Role{}.IsZero())
	assert.False(t, Role{}.Known())
	assert.True(t, RoleScmAdmin.Known())
	assert.False(t, Parse("Intern").Known())
	assert.False(t, Parse("Intern").IsZero())
}

func TestNames(t *testing.T) {
	assert.Equal(t, []string{"Sales Engineer", "Sales Manager", "SCM Admin", "Management"}, Names())
}
