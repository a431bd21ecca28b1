package threatfeed

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNoOp_AlwaysReportsUnknown(t *testing.T) {
	var s Source = NoOp{}
	malicious, score, err := s.ProbablyMalicious(context.Background(), "deadbeef")
	require.NoError(t, err)
	require.False(t, malicious)
	require.Zero(t, score)
}
