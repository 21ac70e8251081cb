package models

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStatusOrdering(t *testing.T) {
	require.True(t, StatusSent.AtLeast(StatusPending))
	require.True(t, StatusRead.AtLeast(StatusDelivered))
	require.True(t, StatusDelivered.AtLeast(StatusDelivered))
	require.False(t, StatusSent.AtLeast(StatusDelivered))
	require.False(t, StatusPending.AtLeast(StatusSent))
}

func TestStatusValid(t *testing.T) {
	for _, s := range []MessageStatus{StatusPending, StatusSent, StatusDelivered, StatusRead} {
		require.True(t, s.Valid(), string(s))
	}
	require.False(t, MessageStatus("vanished").Valid())
	require.False(t, MessageStatus("").Valid())
}

func TestTypeValid(t *testing.T) {
	for _, typ := range []MessageType{TypeText, TypeImage, TypeFile, TypeAudio} {
		require.True(t, typ.Valid(), string(typ))
	}
	require.False(t, MessageType("video").Valid())
}
