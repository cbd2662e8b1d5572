package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayusman/cursorflow/internal/config"
	"github.com/ayusman/cursorflow/internal/path"
	"github.com/ayusman/cursorflow/internal/predict"
)

func TestProfiles_CreateAndGet(t *testing.T) {
	repo := newTestStore(t).Profiles()

	cfg := config.Default()
	cfg.Predictor.Kind = predict.KindEMA
	cfg.Path.Style = path.StyleBezier

	p := &Profile{Name: "steady", Description: "slow tracking", Config: cfg}
	require.NoError(t, repo.Create(p))
	assert.NotEmpty(t, p.ID)
	assert.False(t, p.CreatedAt.IsZero())

	got, err := repo.GetByID(p.ID)
	require.NoError(t, err)
	assert.Equal(t, "steady", got.Name)
	assert.Equal(t, "slow tracking", got.Description)
	assert.Equal(t, cfg, got.Config)
	assert.False(t, got.Active)

	byName, err := repo.GetByName("steady")
	require.NoError(t, err)
	assert.Equal(t, p.ID, byName.ID)
}

func TestProfiles_RejectsDuplicateAndInvalid(t *testing.T) {
	repo := newTestStore(t).Profiles()
	require.NoError(t, repo.Create(&Profile{Name: "a", Config: config.Default()}))

	err := repo.Create(&Profile{Name: "a", Config: config.Default()})
	assert.ErrorIs(t, err, ErrDuplicateName)

	bad := config.Default()
	bad.Pipeline.IdleHz = 0
	err = repo.Create(&Profile{Name: "b", Config: bad})
	assert.ErrorIs(t, err, config.ErrInvalid)
}

func TestProfiles_UpdateDeleteList(t *testing.T) {
	repo := newTestStore(t).Profiles()

	a := &Profile{Name: "alpha", Config: config.Default()}
	b := &Profile{Name: "beta", Config: config.Default()}
	require.NoError(t, repo.Create(a))
	require.NoError(t, repo.Create(b))

	a.Config.Policy.DeadzoneRadius = 50
	a.Description = "tight deadzone"
	require.NoError(t, repo.Update(a))

	got, err := repo.GetByID(a.ID)
	require.NoError(t, err)
	assert.Equal(t, 50.0, got.Config.Policy.DeadzoneRadius)
	assert.Equal(t, "tight deadzone", got.Description)

	b.Name = "alpha"
	assert.ErrorIs(t, repo.Update(b), ErrDuplicateName)

	list, err := repo.List()
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "alpha", list[0].Name)
	assert.Equal(t, "beta", list[1].Name)

	require.NoError(t, repo.Delete(a.ID))
	_, err = repo.GetByID(a.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, repo.Delete(a.ID), ErrNotFound)
	assert.ErrorIs(t, repo.Update(&Profile{ID: "missing", Name: "x", Config: config.Default()}), ErrNotFound)
}

func TestProfiles_SetActive(t *testing.T) {
	repo := newTestStore(t).Profiles()

	_, err := repo.Active()
	assert.ErrorIs(t, err, ErrNotFound)

	a := &Profile{Name: "a", Config: config.Default()}
	b := &Profile{Name: "b", Config: config.Default()}
	require.NoError(t, repo.Create(a))
	require.NoError(t, repo.Create(b))

	require.NoError(t, repo.SetActive(a.ID))
	require.NoError(t, repo.SetActive(b.ID))

	active, err := repo.Active()
	require.NoError(t, err)
	assert.Equal(t, b.ID, active.ID)

	got, err := repo.GetByID(a.ID)
	require.NoError(t, err)
	assert.False(t, got.Active)

	// A failed activation leaves the previous one in place.
	assert.ErrorIs(t, repo.SetActive("missing"), ErrNotFound)
	active, err = repo.Active()
	require.NoError(t, err)
	assert.Equal(t, b.ID, active.ID)
}
