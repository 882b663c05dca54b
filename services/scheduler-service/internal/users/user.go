// Package users models clinic personnel and patients as a closed set of
// variants sharing one Identity.
package users

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/md-rashed-zaman/clinicflow/libs/auth"
)

type Identity struct {
	ID        uuid.UUID
	FirstName string
	LastName  string
	Email     string
	Phone     string
	CreatedAt time.Time
}

func (i Identity) FullName() string {
	return strings.TrimSpace(i.FirstName + " " + i.LastName)
}

// User is one of Doctor, Nurse or Patient.
type User interface {
	Ident() Identity
	Role() auth.Role
	sealed()
}

type Doctor struct {
	Identity
	Specialty string
}

type Nurse struct {
	Identity
	Department string
}

type Patient struct {
	Identity
	DateOfBirth *time.Time
}

func (d Doctor) Ident() Identity  { return d.Identity }
func (n Nurse) Ident() Identity   { return n.Identity }
func (p Patient) Ident() Identity { return p.Identity }

func (Doctor) Role() auth.Role  { return auth.RoleDoctor }
func (Nurse) Role() auth.Role   { return auth.RoleNurse }
func (Patient) Role() auth.Role { return auth.RolePatient }

func (Doctor) sealed()  {}
func (Nurse) sealed()   {}
func (Patient) sealed() {}
