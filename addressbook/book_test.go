package addressbook

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"go-marketplace/apperr"
	"go-marketplace/models"
	"go-marketplace/repository"
)

// memBackend serves the book from the in-memory repository, the same code
// the server runs with STORE=memory.
type memBackend struct {
	repo  repository.AddressRepository
	calls int
	fail  error
	seq   int
}

func newBackend() *memBackend {
	return &memBackend{repo: repository.NewMemoryStore().Addresses}
}

func (m *memBackend) hit() error {
	m.calls++
	return m.fail
}

func (m *memBackend) ListAddresses(ctx context.Context, userID models.ID) ([]models.Address, error) {
	if err := m.hit(); err != nil {
		return nil, err
	}
	return m.repo.ListAddresses(ctx, userID)
}

func (m *memBackend) AddAddress(ctx context.Context, userID models.ID, a models.Address, makeDefault bool) ([]models.Address, error) {
	if err := m.hit(); err != nil {
		return nil, err
	}
	m.seq++
	a.ID = models.ID(fmt.Sprintf("addr-%d", m.seq))
	return m.repo.AddAddress(ctx, userID, a, makeDefault)
}

func (m *memBackend) UpdateAddress(ctx context.Context, userID models.ID, a models.Address, makeDefault bool) ([]models.Address, error) {
	if err := m.hit(); err != nil {
		return nil, err
	}
	list, err := m.repo.UpdateAddress(ctx, userID, a)
	if err == nil && makeDefault {
		list, err = m.repo.SetDefault(ctx, userID, a.ID)
	}
	return list, err
}

func (m *memBackend) DeleteAddress(ctx context.Context, userID, addressID models.ID) ([]models.Address, error) {
	if err := m.hit(); err != nil {
		return nil, err
	}
	return m.repo.DeleteAddress(ctx, userID, addressID)
}

func (m *memBackend) SetDefaultAddress(ctx context.Context, userID, addressID models.ID) ([]models.Address, error) {
	if err := m.hit(); err != nil {
		return nil, err
	}
	return m.repo.SetDefault(ctx, userID, addressID)
}

func address(city string) models.Address {
	return models.Address{Label: models.LabelWork, AddressText: "4 Park St", City: city, State: "WB", Pincode: "700016", Mobile: "9123456780"}
}

func newBook(t *testing.T) (*Book, *memBackend) {
	backend := newBackend()
	b := New(backend, "u1", zaptest.NewLogger(t))
	require.NoError(t, b.Load(context.Background()))
	return b, backend
}

func countDefaults(list []models.Address) int {
	n := 0
	for _, a := range list {
		if a.IsDefault {
			n++
		}
	}
	return n
}

func TestLocalValidationSkipsNetwork(t *testing.T) {
	b, backend := newBook(t)
	before := backend.calls

	bad := address("Kolkata")
	bad.Pincode = "70001"
	err := b.Add(context.Background(), bad, false)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	assert.Equal(t, "pincode", apperr.FieldOf(err))

	bad = address("Kolkata")
	bad.Mobile = "91234"
	err = b.Add(context.Background(), bad, false)
	assert.Equal(t, "mobile", apperr.FieldOf(err))

	err = b.Edit(context.Background(), address("Kolkata"), false)
	assert.Equal(t, "id", apperr.FieldOf(err))

	assert.Equal(t, before, backend.calls)
	assert.Empty(t, b.Addresses())
}

func TestDefaultComesFromServerList(t *testing.T) {
	b, _ := newBook(t)
	ctx := context.Background()

	require.NoError(t, b.Add(ctx, address("Kolkata"), false))
	require.NoError(t, b.Add(ctx, address("Howrah"), true))
	require.NoError(t, b.Add(ctx, address("Siliguri"), false))
	assert.Equal(t, 1, countDefaults(b.Addresses()))

	list := b.Addresses()
	require.NoError(t, b.SetDefault(ctx, list[2].ID))
	list = b.Addresses()
	assert.Equal(t, 1, countDefaults(list))
	assert.True(t, list[2].IsDefault)

	edited := list[0]
	edited.City = "Durgapur"
	require.NoError(t, b.Edit(ctx, edited, true))
	list = b.Addresses()
	assert.Equal(t, 1, countDefaults(list))
	assert.True(t, list[0].IsDefault)
	assert.Equal(t, "Durgapur", list[0].City)
}

func TestSelection(t *testing.T) {
	b, _ := newBook(t)
	ctx := context.Background()

	require.NoError(t, b.Add(ctx, address("Kolkata"), false))
	sel, ok := b.Selected()
	require.True(t, ok, "the default is selected when nothing was")
	assert.Equal(t, "Kolkata", sel.City)

	require.NoError(t, b.Add(ctx, address("Howrah"), false))
	other := b.Addresses()[1]
	require.NoError(t, b.Select(other.ID))
	sel, _ = b.Selected()
	assert.Equal(t, other.ID, sel.ID)

	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(b.Select("zz")))
	sel, _ = b.Selected()
	assert.Equal(t, other.ID, sel.ID, "failed select keeps the old selection")
}

func TestDeleteSelectedClearsSelection(t *testing.T) {
	b, _ := newBook(t)
	ctx := context.Background()
	require.NoError(t, b.Add(ctx, address("Kolkata"), false))
	require.NoError(t, b.Add(ctx, address("Howrah"), false))

	var changes []Change
	b.OnChange(func(c Change) { changes = append(changes, c) })

	first := b.Addresses()[0]
	require.NoError(t, b.Select(first.ID))
	require.NoError(t, b.Delete(ctx, first.ID))

	_, ok := b.Selected()
	assert.False(t, ok)
	last := changes[len(changes)-1]
	assert.True(t, last.SelectionLost)
	assert.Nil(t, last.Selected)
	assert.Len(t, last.Addresses, 1)

	remaining := b.Addresses()[0]
	require.NoError(t, b.Select(remaining.ID))
	require.NoError(t, b.Delete(ctx, remaining.ID))
	_, ok = b.Selected()
	assert.False(t, ok, "deleting the last address leaves nothing selected")
	assert.Empty(t, b.Addresses())
}

func TestServerFailureLeavesStateUntouched(t *testing.T) {
	b, backend := newBook(t)
	ctx := context.Background()
	require.NoError(t, b.Add(ctx, address("Kolkata"), false))
	before := b.Addresses()

	backend.fail = apperr.Transient("Network error, please try again", errors.New("reset"))
	assert.Error(t, b.Add(ctx, address("Howrah"), true))
	assert.Error(t, b.Delete(ctx, before[0].ID))
	assert.Error(t, b.SetDefault(ctx, before[0].ID))

	assert.Equal(t, before, b.Addresses())
	_, ok := b.Selected()
	assert.True(t, ok)
}
