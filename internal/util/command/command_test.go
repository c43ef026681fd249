package command_test

import (
	"bytes"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SafeMPC/claim-signer/internal/util/command"
)

func TestNewSubcommandGroupDispatches(t *testing.T) {
	ran := false
	sub := &cobra.Command{
		Use: "child",
		Run: func(cmd *cobra.Command, args []string) {
			ran = true
		},
	}

	group := command.NewSubcommandGroup("parent", sub)
	group.SetArgs([]string{"child"})
	require.NoError(t, group.Execute())
	assert.True(t, ran)
}

func TestNewSubcommandGroupBareShowsUsage(t *testing.T) {
	sub := &cobra.Command{
		Use: "child",
		Run: func(cmd *cobra.Command, args []string) {},
	}

	group := command.NewSubcommandGroup("parent", sub)
	out := new(bytes.Buffer)
	group.SetOut(out)
	group.SetArgs(nil)
	require.NoError(t, group.Execute())
	assert.Contains(t, out.String(), "child")
}
