package config

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecodeParsesGlobalAndTargets(t *testing.T) {
	doc := `
[Global]
MaxSyncSpeed = 10
SelectionDelay = 0
EnableParity = true
EnableSCSI2 = true
Quirks = "Apple"

[[Target]]
ID = 0
Type = "cdrom"
BlockSize = 2048
Vendor = "SEAGATE"
Product = "ST32430N"
ReinsertAfterEject = true
ImgDir = "/cd0"
`
	f, err := Decode(strings.NewReader(doc))
	require.NoError(t, err)

	require.Equal(t, 10, f.Global.MaxSyncSpeed)
	require.Equal(t, QuirksApple, f.Global.Quirks)
	require.Len(t, f.Targets, 1)
	require.Equal(t, "cdrom", f.Targets[0].Type)
	require.Equal(t, 2048, f.Targets[0].BlockSize)
	require.True(t, f.Targets[0].ReinsertAfterEject)
}

func TestDecodeRejectsMalformedTOML(t *testing.T) {
	_, err := Decode(strings.NewReader("[Global\nnot valid"))
	require.Error(t, err)
}
