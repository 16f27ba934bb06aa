package device

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// DirStore реализует media.ScratchStore поверх каталога на диске.
// Хранит только переходные сегменты и видео кадры; Close удаляет
// каталог целиком.
type DirStore struct {
	dir string
}

// NewDirStore создает scratch каталог внутри системного temp.
func NewDirStore() (*DirStore, error) {
	dir, err := os.MkdirTemp("", "call_engine_scratch_")
	if err != nil {
		return nil, fmt.Errorf("device: создание scratch каталога: %w", err)
	}
	return &DirStore{dir: dir}, nil
}

// Dir возвращает путь к scratch каталогу.
func (s *DirStore) Dir() string {
	return s.dir
}

// Write записывает данные в свежий файл и возвращает путь к нему.
func (s *DirStore) Write(data []byte) (string, error) {
	path := filepath.Join(s.dir, uuid.NewString()+".seg")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", fmt.Errorf("device: запись scratch файла: %w", err)
	}
	return path, nil
}

// Delete удаляет файл. Отсутствующий файл не ошибка.
func (s *DirStore) Delete(handle string) error {
	if err := os.Remove(handle); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("device: удаление scratch файла: %w", err)
	}
	return nil
}

// Close удаляет scratch каталог со всем содержимым. Идемпотентен.
func (s *DirStore) Close() error {
	if err := os.RemoveAll(s.dir); err != nil {
		return fmt.Errorf("device: удаление scratch каталога: %w", err)
	}
	return nil
}
