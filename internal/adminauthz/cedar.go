package adminauthz

import (
	"fmt"
	"os"

	"github.com/cedar-policy/cedar-go"
	"github.com/cedar-policy/cedar-go/types"
)

// Action names Cedar policies are written against, per SPEC_FULL.md
// section 4.9.
const (
	ActionRead  = "admin::read"
	ActionWrite = "admin::write"
)

// PolicyDecisionPoint evaluates admin actions against a loaded Cedar
// policy set. A nil *PolicyDecisionPoint is a permissive no-op pass,
// matching "absent a loaded policy set, this layer is a no-op
// pass-through" from SPEC_FULL.md section 4.9 — the bearer/JWT check
// alone governs access in that case.
type PolicyDecisionPoint struct {
	policySet *cedar.PolicySet
}

// LoadPolicyDecisionPoint reads and parses a Cedar policy file. Returns
// (nil, nil) when path is empty, so CCFALLBACK_CEDAR_POLICY_PATH stays
// genuinely optional.
func LoadPolicyDecisionPoint(path string) (*PolicyDecisionPoint, error) {
	if path == "" {
		return nil, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("adminauthz: reading cedar policy file: %w", err)
	}
	policySet, err := cedar.NewPolicySetFromBytes(path, raw)
	if err != nil {
		return nil, fmt.Errorf("adminauthz: parsing cedar policies: %w", err)
	}
	return &PolicyDecisionPoint{policySet: policySet}, nil
}

// Authorize reports whether principal may perform action on resource.
// A nil receiver always allows, preserving spec.md's exact admin auth
// semantics when no policy set is configured.
func (p *PolicyDecisionPoint) Authorize(principal, action, resource string) bool {
	if p == nil {
		return true
	}
	principalID := types.NewEntityUID(types.EntityType("Admin::Principal"), types.String(principal))
	actionID := types.NewEntityUID(types.EntityType("Admin::Action"), types.String(action))
	resourceID := types.NewEntityUID(types.EntityType("Admin::Resource"), types.String(resource))

	entities := types.EntityMap{
		principalID: {UID: principalID, Attributes: types.Record{}},
		actionID:    {UID: actionID, Attributes: types.Record{}},
		resourceID:  {UID: resourceID, Attributes: types.Record{}},
	}
	req := types.Request{Principal: principalID, Action: actionID, Resource: resourceID}

	decision, _ := cedar.Authorize(p.policySet, entities, req)
	return decision == cedar.Allow
}
