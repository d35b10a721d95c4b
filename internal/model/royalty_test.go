package model

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticRoyaltyPacking(t *testing.T) {
	recipient := common.HexToAddress("0x00000000000000000000000000000000000000aa")
	word, err := StaticRoyalty(recipient, 50_000).Pack()
	require.NoError(t, err)

	assert.Equal(t, byte(0), word[0]&0x80, "static royalties keep the top bit clear")
	assert.Equal(t, []byte{0, 0, 0xc3, 0x50}, word[8:12])
	assert.Equal(t, recipient.Bytes(), word[12:])

	got, err := UnpackRoyalty(word)
	require.NoError(t, err)
	assert.Equal(t, RoyaltyStatic, got.Kind)
	assert.Equal(t, recipient, got.Recipient)
	assert.Equal(t, uint32(50_000), got.Micros)
}

func TestDynamicRoyaltyPacking(t *testing.T) {
	oracle := common.HexToAddress("0x1111111111111111111111111111111111111111")
	word, err := DynamicRoyalty(oracle, 25_000, 42).Pack()
	require.NoError(t, err)
	assert.Equal(t, byte(0x80), word[0]&0x80)

	got, err := UnpackRoyalty(word)
	require.NoError(t, err)
	assert.Equal(t, RoyaltyDynamic, got.Kind)
	assert.Equal(t, oracle, got.Oracle)
	assert.Equal(t, uint32(25_000), got.Micros)
	assert.Equal(t, uint64(42), got.Data)

	maxWord, err := DynamicRoyalty(oracle, 1, MaxRoyaltyData).Pack()
	require.NoError(t, err)
	got, err = UnpackRoyalty(maxWord)
	require.NoError(t, err)
	assert.Equal(t, MaxRoyaltyData, got.Data)
}

func TestRoyaltyRejectsOversizedData(t *testing.T) {
	_, err := DynamicRoyalty(common.Address{}, 1, MaxRoyaltyData+1).Pack()
	assert.ErrorIs(t, err, ErrRoyaltyDataTooLarge)
}

func TestStaticRoyaltyWithDataBitsIsMalformed(t *testing.T) {
	var word common.Hash
	word[3] = 1
	_, err := UnpackRoyalty(word)
	assert.ErrorIs(t, err, ErrMalformedRoyalty)
}
