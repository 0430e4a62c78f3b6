package nitram

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBinder_RejectsNonFunction(t *testing.T) {
	_, err := newBinder("Bad", "not a function", newResourceBag())
	require.Error(t, err)
}

func TestNewBinder_RequiresErrorSecondReturn(t *testing.T) {
	bad := func() string { return "nope" }
	_, err := newBinder("Bad", bad, newResourceBag())
	require.Error(t, err)
}

func TestNewBinder_RejectsUnregisteredResource(t *testing.T) {
	handler := func(r *mockResource) (string, error) { return "", nil } // mockResource implements Resource but is not in the bag
	_, err := newBinder("Bad", handler, newResourceBag())
	assert.Error(t, err)
}

func TestNewBinder_RejectsMultipleParamsArgs(t *testing.T) {
	type paramsA struct{ A string }
	type paramsB struct{ B string }
	handler := func(a paramsA, b paramsB) (string, error) { return "", nil }
	_, err := newBinder("Bad", handler, newResourceBag())
	assert.Error(t, err)
}

func TestNewBinder_AcceptsEmptyParamsOmitted(t *testing.T) {
	type empty struct{}
	handler := func(p empty) (string, error) { return "", nil }
	b, err := newBinder("OK", handler, newResourceBag())
	require.NoError(t, err)

	res, err := b.call(newResourceBag(), nil, &AuthenticatedSession{}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "", res)
}

func TestNamespace_FrozenRejectsRegistration(t *testing.T) {
	n := newNamespace()
	handler := func() (string, error) { return "", nil }
	require.NoError(t, n.add("A", handler, newResourceBag()))
	n.freeze()

	err := n.add("B", handler, newResourceBag())
	assert.Error(t, err)
}

func TestBinderCall_PropagatesHandlerError(t *testing.T) {
	sentinel := errors.New("boom")
	handler := func() (string, error) { return "", sentinel }
	b, err := newBinder("Boom", handler, newResourceBag())
	require.NoError(t, err)

	_, callErr := b.call(newResourceBag(), nil, nil, nil, nil)
	assert.ErrorIs(t, callErr, sentinel)
}
