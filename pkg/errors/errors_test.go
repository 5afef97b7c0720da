package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassificationIsFatal(t *testing.T) {
	err := ErrClassification.
		WithMessage("key does not match").
		WithDetail(DetailKey, "file.xml")

	assert.True(t, err.IsFatal())
	assert.True(t, IsClassification(fmt.Errorf("wrapped: %w", err)))
	assert.True(t, IsFatal(err))
}

func TestStoreOperationIsTransient(t *testing.T) {
	err := ErrStoreOperation.WithCause(fmt.Errorf("connection reset"))

	assert.False(t, err.IsFatal())
	assert.True(t, IsStoreOperation(err))
	assert.False(t, IsFatal(err))
}

func TestWithDetailDoesNotLeakIntoBase(t *testing.T) {
	_ = ErrStoreOperation.WithDetail(DetailDatastripID, "DS")

	_, ok := ErrStoreOperation.Details[DetailDatastripID]
	assert.False(t, ok)
}

func TestCatalogErrors(t *testing.T) {
	assert.True(t, IsCatalogError(ErrCatalogClient.WithDetail("status", 404)))
	assert.True(t, IsCatalogError(ErrCatalogServer))
	assert.True(t, IsCatalogError(ErrCatalogQuery))
	assert.False(t, IsCatalogError(ErrFileOperation))
}

func TestToErrorResponse(t *testing.T) {
	err := ErrNotFound.WithDetail(DetailDatastripID, "DS")

	assert.Equal(t, http.StatusNotFound, ToHTTPStatus(err))
	resp := ToErrorResponse(err)
	assert.Equal(t, "NOT_FOUND", resp["error_code"])
	assert.Equal(t, map[string]interface{}{DetailDatastripID: "DS"}, resp["details"])

	assert.Equal(t, http.StatusInternalServerError, ToHTTPStatus(fmt.Errorf("plain")))
}

func TestHasCodeWalksCauses(t *testing.T) {
	err := ErrStoreOperation.WithCause(ErrConflict.WithMessage("other location")).AsFatal()

	assert.True(t, IsStoreOperation(err))
	assert.True(t, IsConflict(err))
	assert.False(t, IsNotFound(err))
	assert.True(t, IsFatal(err))
}

func TestFromPanic(t *testing.T) {
	assert.Nil(t, FromPanic(nil))

	err := FromPanic("boom")
	require.NotNil(t, err)
	assert.Equal(t, ErrInternal.Code, err.Code)
	assert.True(t, err.IsFatal())
	assert.EqualError(t, err.Cause, "panic: boom")
	assert.Equal(t, true, err.Details["panic"])
	assert.NotEmpty(t, err.Details["stack_trace"])

	cause := stderrors.New("nil map")
	assert.ErrorIs(t, FromPanic(cause), cause)
}
