package registry_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/foundation42/microkernel/message"
	"github.com/foundation42/microkernel/registry"
)

var (
	idX = message.ActorID{Node: 1, Seq: 1}
	idY = message.ActorID{Node: 1, Seq: 2}
)

// TestRegistryRoundTrip exercises register/lookup/conflict/deregister.
func TestRegistryRoundTrip(t *testing.T) {
	r := registry.New(0)

	require.NoError(t, r.Register("/node/hardware/gpio", idX))

	got, err := r.Lookup("/node/hardware/gpio")
	require.NoError(t, err)
	require.Equal(t, idX, got)

	err = r.Register("/node/hardware/gpio", idY)
	require.ErrorIs(t, err, registry.ErrAlreadyExists)

	r.DeregisterPaths(idX)
	_, err = r.Lookup("/node/hardware/gpio")
	require.ErrorIs(t, err, registry.ErrNotFound)
}

func TestRegisterIdempotentForSameID(t *testing.T) {
	r := registry.New(0)
	require.NoError(t, r.Register("/a", idX))
	require.NoError(t, r.Register("/a", idX))
}

func TestMountForwardsAndBindingsShadow(t *testing.T) {
	r := registry.New(0)
	require.NoError(t, r.Mount("/mnt", idX))

	got, err := r.Lookup("/mnt/sub/path")
	require.NoError(t, err)
	require.Equal(t, idX, got)

	require.NoError(t, r.Register("/mnt/sub/path", idY))
	got, err = r.Lookup("/mnt/sub/path")
	require.NoError(t, err)
	require.Equal(t, idY, got, "a direct binding under a mount must shadow the mount")

	require.NoError(t, r.Unmount("/mnt"))
	_, err = r.Lookup("/mnt/other")
	require.ErrorIs(t, err, registry.ErrNotFound)
}

func TestReverseLookupAll(t *testing.T) {
	r := registry.New(0)
	require.NoError(t, r.Register("/a", idX))
	require.NoError(t, r.Register("/b", idX))

	all, err := r.ReverseLookupAll(idX)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"/a", "/b"}, all)

	r.DeregisterPaths(idX)
	_, err = r.ReverseLookupAll(idX)
	require.ErrorIs(t, err, registry.ErrNotFound)
}

func TestNSMessageRoundTrip(t *testing.T) {
	r := registry.New(0)
	self := message.ActorID{Node: 1, Seq: 99}

	req := registry.EncodeRequest(registry.Request{Path: "/node/svc", Target: idX})
	reply := registry.Handle(r, self, message.New(idY, self, message.NSRegister, req))
	decoded, err := registry.DecodeReply(reply.Payload)
	require.NoError(t, err)
	require.Equal(t, registry.StatusOK, decoded.Status)

	lookupReq := registry.EncodeRequest(registry.Request{Path: "/node/svc"})
	lookupReply := registry.Handle(r, self, message.New(idY, self, message.NSLookup, lookupReq))
	decodedLookup, err := registry.DecodeReply(lookupReply.Payload)
	require.NoError(t, err)
	require.Equal(t, registry.StatusOK, decodedLookup.Status)
	require.Equal(t, idX, decodedLookup.ID)
}

// TestRegistryRoundTripProperty: register then lookup always returns what
// was bound, until deregistered.
func TestRegistryRoundTripProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		r := registry.New(0)
		path := "/" + rapid.StringMatching(`[a-z]{1,20}`).Draw(rt, "path")
		id := message.ActorID{Node: 1, Seq: uint32(rapid.IntRange(1, 1000).Draw(rt, "seq"))}

		require.NoError(rt, r.Register(path, id))
		got, err := r.Lookup(path)
		require.NoError(rt, err)
		require.Equal(rt, id, got)

		r.DeregisterPaths(id)
		_, err = r.Lookup(path)
		require.ErrorIs(rt, err, registry.ErrNotFound)
	})
}
