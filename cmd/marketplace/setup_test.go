package main

import (
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"

	"github.com/ruteri/nft-marketplace-backend/interfaces"
)

func TestParseAttributes(t *testing.T) {
	attrs, err := parseAttributes([]string{"color=red", "note=a=b", " size =10"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"color": "red", "note": "a=b", "size": "10"}, attrs)

	attrs, err = parseAttributes(nil)
	require.NoError(t, err)
	assert.Nil(t, attrs)

	_, err = parseAttributes([]string{"novalue"})
	var verr *interfaces.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestParseAmount(t *testing.T) {
	v, err := parseAmount("amount", "1000000000000000000000")
	require.NoError(t, err)
	assert.Equal(t, "1000000000000000000000", v.String())

	for _, bad := range []string{"", "-1", "1e18", "0x10"} {
		_, err := parseAmount("amount", bad)
		assert.Error(t, err, bad)
	}
}

func TestParseAddress(t *testing.T) {
	addr, err := parseAddress("owner", "0x000000000000000000000000000000000000a11c")
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress("0xa11c"), addr)

	_, err = parseAddress("owner", "a11c")
	assert.Error(t, err)
}

func TestExplain(t *testing.T) {
	hash := common.HexToHash("0x01")
	err := explain(&interfaces.OperationError{Op: "place bid", Err: &interfaces.TransactionTimeoutError{Hash: hash, Waited: time.Minute, Confirmations: 1}})
	assert.Contains(t, err.Error(), "marketplace await --tx "+hash.Hex())
	var timeout *interfaces.TransactionTimeoutError
	assert.ErrorAs(t, err, &timeout)

	err = explain(interfaces.ErrNoTransactOpts)
	assert.ErrorIs(t, err, interfaces.ErrNoTransactOpts)
	assert.Contains(t, err.Error(), "--private-key")

	plain := errors.New("boom")
	assert.Equal(t, plain, explain(plain))
	assert.NoError(t, explain(nil))
}

func TestTokensCommand_CollectionOptional(t *testing.T) {
	var found bool
	for _, cmd := range commands {
		if cmd.Name != "tokens" {
			continue
		}
		for _, f := range cmd.Flags {
			if sf, ok := f.(*cli.StringFlag); ok && sf.Name == "collection" {
				found = true
				assert.False(t, sf.Required)
			}
		}
	}
	assert.True(t, found)
}
