package settings

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/use-agent/tubeshim/models"
)

func TestStore(t *testing.T) {
	s := NewStore(true)
	assert.True(t, s.HideShorts())

	s.SetHideShorts(false)
	assert.False(t, s.HideShorts())
	assert.Equal(t, models.Settings{HideShorts: false}, s.Snapshot())
}

func TestStore_Apply(t *testing.T) {
	s := NewStore(false)

	got := s.Apply(models.SettingsUpdate{})
	assert.False(t, got.HideShorts, "empty update leaves flags alone")

	on := true
	got = s.Apply(models.SettingsUpdate{HideShorts: &on})
	assert.True(t, got.HideShorts)
	assert.True(t, s.HideShorts())
}

func TestStore_Concurrent(t *testing.T) {
	s := NewStore(false)

	var wg sync.WaitGroup
	for i := range 64 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			s.SetHideShorts(i%2 == 0)
		}()
		go func() {
			defer wg.Done()
			_ = s.HideShorts()
		}()
	}
	wg.Wait()
}
