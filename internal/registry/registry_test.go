package registry

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"snippetd/internal/models"
)

func TestJobRegistry_RegisterAndLookup(t *testing.T) {
	r := New()
	job := models.NewJobRecord("job-1", "demo", "echo hi", models.ScheduleNone)

	require.NoError(t, r.Register(job))
	assert.Equal(t, 1, r.Len())

	found, err := r.Lookup("job-1")
	require.NoError(t, err)
	assert.Same(t, job, found)
}

func TestJobRegistry_DuplicateID(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(models.NewJobRecord("job-1", "", "a", models.ScheduleNone)))

	err := r.Register(models.NewJobRecord("job-1", "", "b", models.ScheduleNone))
	assert.ErrorIs(t, err, ErrDuplicateID)
	assert.Equal(t, 1, r.Len())
}

func TestJobRegistry_LookupUnknown(t *testing.T) {
	r := New()

	_, err := r.Lookup("nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestJobRegistry_Views(t *testing.T) {
	r := New()
	for i := 0; i < 3; i++ {
		require.NoError(t, r.Register(models.NewJobRecord(fmt.Sprintf("job-%d", i), "", "x", models.ScheduleNone)))
	}

	views := r.Views()
	require.Len(t, views, 3)

	ids := make(map[string]bool)
	for _, v := range views {
		ids[v.ID] = true
	}
	assert.Len(t, ids, 3)
}

func TestJobRegistry_ConcurrentRegister(t *testing.T) {
	r := New()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			err := r.Register(models.NewJobRecord(fmt.Sprintf("job-%d", n), "", "x", models.ScheduleNone))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 50, r.Len())
}
