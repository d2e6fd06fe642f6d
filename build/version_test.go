package build

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUserVersion(t *testing.T) {
	require.Equal(t, BuildVersion, UserVersion())

	CurrentCommit = "1a2b3c"
	defer func() { CurrentCommit = "" }()
	require.Equal(t, BuildVersion+"+git1a2b3c", UserVersion())
}
