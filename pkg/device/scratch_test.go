package device

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestDirStore жизненный цикл scratch хранилища: запись, удаление,
// очистка каталога при закрытии.
func TestDirStore(t *testing.T) {
	store, err := NewDirStore()
	require.NoError(t, err)

	handle, err := store.Write([]byte("сегмент"))
	require.NoError(t, err)
	data, err := os.ReadFile(handle)
	require.NoError(t, err)
	assert.Equal(t, []byte("сегмент"), data)

	// каждая запись дает свежий файл
	second, err := store.Write([]byte("другой"))
	require.NoError(t, err)
	assert.NotEqual(t, handle, second)

	require.NoError(t, store.Delete(handle))
	_, err = os.Stat(handle)
	assert.True(t, os.IsNotExist(err))

	// повторное удаление не ошибка
	require.NoError(t, store.Delete(handle))

	require.NoError(t, store.Close())
	_, err = os.Stat(store.Dir())
	assert.True(t, os.IsNotExist(err), "каталог должен исчезнуть целиком")
	require.NoError(t, store.Close())
}
