package branches

import (
	"net/http"
	"testing"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wisercms/wiser-api/pkg/models"
)

func TestCreateBranchRejectsPastStartOn(t *testing.T) {
	f := newMergeFixture(t, Config{}, &fakeHistory{maxIDs: map[string]uint64{}}, &fakeMappings{})

	startOn := time.Now().Add(-time.Hour)
	_, err := f.service.CreateBranch(f.ctx, models.CreateBranchSettings{
		Name:    "Winteractie",
		StartOn: &startOn,
	})

	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, httperror.GetStatusCode(err))
	assert.Nil(t, f.tenants.created)
}

func TestCreateBranchRecordsStartOn(t *testing.T) {
	f := newMergeFixture(t, Config{}, &fakeHistory{maxIDs: map[string]uint64{}}, &fakeMappings{})

	startOn := time.Now().Add(48 * time.Hour)
	result, err := f.service.CreateBranch(f.ctx, models.CreateBranchSettings{
		Name:    "Winteractie",
		StartOn: &startOn,
	})
	require.NoError(t, err)

	// the start time is stored on the branch tenant row and echoed back
	require.NotNil(t, f.tenants.created)
	require.NotNil(t, f.tenants.created.StartOn)
	assert.True(t, f.tenants.created.StartOn.Equal(startOn))
	require.NotNil(t, result.StartOn)
	assert.True(t, result.StartOn.Equal(startOn))
}
