package agent

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("agent not found")

// Agent is a reseller identified by email. The email is a weak reference:
// license rows may point at an agent that is not present in the loaded set.
type Agent struct {
	Email string `db:"email" json:"email"`
	Name  string `db:"name" json:"name,omitempty"`
}

type Repository interface {
	List(ctx context.Context) ([]*Agent, error)
	FindByEmail(ctx context.Context, email string) (*Agent, error)
}

// Lookup resolves emails to display names for presentation and export.
type Lookup map[string]*Agent

func BuildLookup(agents []*Agent) Lookup {
	m := make(Lookup, len(agents))
	for _, a := range agents {
		m[a.Email] = a
	}
	return m
}

// DisplayName renders "Name (email)" when the agent is known, the raw
// email otherwise.
func (l Lookup) DisplayName(email string) string {
	if a, ok := l[email]; ok && a.Name != "" {
		return a.Name + " (" + email + ")"
	}
	return email
}
