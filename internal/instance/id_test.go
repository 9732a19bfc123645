package instance

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestID_String(t *testing.T) {
	testCases := []struct {
		name        string
		id          ID
		expectedStr string
	}{
		{
			name:        "top-level field",
			id:          Top("email"),
			expectedStr: "email",
		},
		{
			name:        "block sub-field",
			id:          InRow("trips", "destination", 2),
			expectedStr: "trips-destination-2",
		},
		{
			name:        "row zero",
			id:          InRow("trips", "amount", 0),
			expectedStr: "trips-amount-0",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expectedStr, tc.id.String())
		})
	}
}

func TestID_RoundTrip(t *testing.T) {
	testIDs := []string{
		"email",
		"field_42",
		"trips-destination-0",
		"trips-amount-15",
	}

	for _, id := range testIDs {
		t.Run(id, func(t *testing.T) {
			parsed, err := Parse(id)
			require.NoError(t, err)
			assert.Equal(t, id, parsed.String())
		})
	}
}

func TestParse_Malformed(t *testing.T) {
	for _, bad := range []string{"", "a b", "trips-destination", "trips-destination-x", "a-b-c-1"} {
		t.Run(bad, func(t *testing.T) {
			_, err := Parse(bad)
			assert.Error(t, err)
		})
	}
}

func TestID_InBlock(t *testing.T) {
	assert.False(t, Top("email").InBlock())
	assert.True(t, InRow("trips", "destination", 0).InBlock())
}
