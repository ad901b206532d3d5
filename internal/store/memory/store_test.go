package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"analysis-backend/internal/models"
	"analysis-backend/internal/store/types"
)

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	defer store.Close()

	now := time.Now()
	task := &models.Task{
		ID:        "task-1",
		Kind:      models.TaskKindAnalysis,
		Status:    models.TaskStatusPending,
		Message:   "Task created, awaiting execution.",
		CreatedAt: now,
		UpdatedAt: now,
	}

	t.Run("Create and Get", func(t *testing.T) {
		require.NoError(t, store.CreateTask(ctx, task))

		got, err := store.GetTask(ctx, task.ID)
		require.NoError(t, err)
		assert.Equal(t, task.Message, got.Message)
		assert.Equal(t, models.TaskStatusPending, got.Status)
	})

	t.Run("Duplicate ID rejected", func(t *testing.T) {
		err := store.CreateTask(ctx, task)
		assert.ErrorIs(t, err, types.ErrTaskExists)
	})

	t.Run("Returned records are copies", func(t *testing.T) {
		got, err := store.GetTask(ctx, task.ID)
		require.NoError(t, err)
		got.Message = "mutated outside the store"

		again, err := store.GetTask(ctx, task.ID)
		require.NoError(t, err)
		assert.Equal(t, "Task created, awaiting execution.", again.Message)
	})

	t.Run("Update", func(t *testing.T) {
		got, err := store.GetTask(ctx, task.ID)
		require.NoError(t, err)
		require.NoError(t, got.Transition(models.TaskStatusProcessing, time.Now()))
		got.Message = "Step 1/3: Generating raw JSON..."
		require.NoError(t, store.UpdateTask(ctx, got))

		again, err := store.GetTask(ctx, task.ID)
		require.NoError(t, err)
		assert.Equal(t, models.TaskStatusProcessing, again.Status)
		assert.Equal(t, "Step 1/3: Generating raw JSON...", again.Message)
	})

	t.Run("Unknown IDs", func(t *testing.T) {
		_, err := store.GetTask(ctx, "missing")
		assert.ErrorIs(t, err, types.ErrTaskNotFound)

		err = store.UpdateTask(ctx, &models.Task{ID: "missing"})
		assert.ErrorIs(t, err, types.ErrTaskNotFound)
	})

	t.Run("List is ordered by creation", func(t *testing.T) {
		later := &models.Task{ID: "task-2", Status: models.TaskStatusPending, CreatedAt: now.Add(time.Minute)}
		require.NoError(t, store.CreateTask(ctx, later))

		tasks, err := store.ListTasks(ctx)
		require.NoError(t, err)
		require.Len(t, tasks, 2)
		assert.Equal(t, "task-1", tasks[0].ID)
		assert.Equal(t, "task-2", tasks[1].ID)
	})
}

func TestMemoryStoreConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("task-%d", i)
			task := &models.Task{ID: id, Status: models.TaskStatusPending, CreatedAt: time.Now()}
			assert.NoError(t, store.CreateTask(ctx, task))

			got, err := store.GetTask(ctx, id)
			if assert.NoError(t, err) {
				got.Message = "updated"
				assert.NoError(t, store.UpdateTask(ctx, got))
			}
			_, _ = store.ListTasks(ctx)
		}(i)
	}
	wg.Wait()

	tasks, err := store.ListTasks(ctx)
	require.NoError(t, err)
	assert.Len(t, tasks, 50)
	for _, task := range tasks {
		assert.Equal(t, "updated", task.Message)
	}
}
