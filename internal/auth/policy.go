package auth

import (
	_ "embed"
	"fmt"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
)

//go:embed model.conf
var policyModel string

// Guarded actions. Each one is allowed for admins and for the owner of the
// resource (the incident reporter or the evidence adder).
const (
	// IncidentUpdate allows patching an incident
	IncidentUpdate = "incident:update"

	// IncidentDelete allows deleting an incident and its evidence
	IncidentDelete = "incident:delete"

	// EvidenceDelete allows deleting a single evidence record
	EvidenceDelete = "evidence:delete"
)

var guardedActions = []string{IncidentUpdate, IncidentDelete, EvidenceDelete}

// policySubject and policyObject are the attribute bags the casbin matcher reads.
type policySubject struct {
	UserID  string
	IsAdmin bool
}

type policyObject struct {
	OwnerID string
}

// Policy evaluates the "admin or owner" rule for mutating actions.
type Policy struct {
	enforcer *casbin.SyncedEnforcer
}

// NewPolicy builds the enforcer from the embedded model and registers one
// policy line per guarded action. Policies live in memory only.
func NewPolicy() (*Policy, error) {
	m, err := model.NewModelFromString(policyModel)
	if err != nil {
		return nil, fmt.Errorf("parse casbin model: %w", err)
	}

	enforcer, err := casbin.NewSyncedEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("create casbin enforcer: %w", err)
	}

	for _, act := range guardedActions {
		if _, err := enforcer.AddPolicy(act); err != nil {
			return nil, fmt.Errorf("add policy for %s: %w", act, err)
		}
	}

	return &Policy{enforcer: enforcer}, nil
}

// Allowed reports whether actor may perform action on a resource owned by ownerID.
// Unknown actions and anonymous actors are always denied.
func (p *Policy) Allowed(actor Identity, action, ownerID string) (bool, error) {
	if actor.UserID == "" {
		return false, nil
	}

	allowed, err := p.enforcer.Enforce(
		policySubject{UserID: actor.UserID, IsAdmin: actor.IsAdmin},
		policyObject{OwnerID: ownerID},
		action,
	)
	if err != nil {
		return false, fmt.Errorf("evaluate policy %s: %w", action, err)
	}
	return allowed, nil
}
