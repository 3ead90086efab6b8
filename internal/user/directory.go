// Package user holds the demo credential store. Passwords are kept and compared
// in plaintext; it exists for local demos and tests only and is not an
// authentication system.
package user

import "errors"

var (
	ErrAuthenticationFailed = errors.New("invalid email or password")
	ErrUserNotFound         = errors.New("user not found")
)

type Role string

const (
	RolePatient Role = "patient"
	RoleAdmin   Role = "admin"
	RoleDoctor  Role = "doctor"
)

// User is the profile handed out after a successful login.
type User struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  Role   `json:"role"`
}

// Credential pairs a profile with its plaintext demo password.
type Credential struct {
	User
	Password string
}

// Directory is fixed at construction and safe for concurrent reads.
type Directory struct {
	users map[string]Credential
}

func NewDirectory(creds []Credential) *Directory {
	d := &Directory{users: make(map[string]Credential, len(creds))}
	for _, c := range creds {
		d.users[c.Email] = c
	}
	return d
}

// Verify returns the profile when email and password both match exactly.
func (d *Directory) Verify(email, password string) (User, error) {
	c, ok := d.users[email]
	if !ok || c.Password != password {
		return User{}, ErrAuthenticationFailed
	}
	return c.User, nil
}

func (d *Directory) Get(email string) (User, error) {
	c, ok := d.users[email]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return c.User, nil
}

func (d *Directory) Count() int {
	return len(d.users)
}

// DemoUsers is the seeded account list.
func DemoUsers() []Credential {
	return []Credential{
		{User: User{Email: "patient@example.com", Name: "张三", Role: RolePatient}, Password: "Patient123!"},
		{User: User{Email: "admin@dentalreserve.ca", Name: "管理员", Role: RoleAdmin}, Password: "Admin123!"},
		{User: User{Email: "dr.smith@torontodental.com", Name: "Dr. Smith", Role: RoleDoctor}, Password: "Doctor123!"},
	}
}
