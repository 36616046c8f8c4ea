package adminauthz

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilPolicyDecisionPointAllowsEverything(t *testing.T) {
	var p *PolicyDecisionPoint
	assert.True(t, p.Authorize("anyone", ActionWrite, "config"), "nil PolicyDecisionPoint should be a permissive pass-through")
}

func TestLoadPolicyDecisionPointEmptyPathIsNilNil(t *testing.T) {
	p, err := LoadPolicyDecisionPoint("")
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestLoadPolicyDecisionPointMissingFile(t *testing.T) {
	_, err := LoadPolicyDecisionPoint("/nonexistent/policy.cedar")
	assert.Error(t, err)
}
