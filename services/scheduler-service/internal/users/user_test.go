package users

import (
	"testing"

	"github.com/google/uuid"
	"github.com/md-rashed-zaman/clinicflow/libs/auth"
	"github.com/stretchr/testify/assert"
)

func TestVariants(t *testing.T) {
	ident := Identity{ID: uuid.New(), FirstName: "Ada", LastName: "Okafor"}
	all := []User{
		Doctor{Identity: ident, Specialty: "Cardiology"},
		Nurse{Identity: ident, Department: "Triage"},
		Patient{Identity: ident},
	}

	var roles []auth.Role
	for _, u := range all {
		assert.Equal(t, "Ada Okafor", u.Ident().FullName())
		roles = append(roles, u.Role())
	}
	assert.Equal(t, []auth.Role{auth.RoleDoctor, auth.RoleNurse, auth.RolePatient}, roles)
}

func TestFullName_TrimsMissingParts(t *testing.T) {
	assert.Equal(t, "Okafor", Identity{LastName: "Okafor"}.FullName())
}
